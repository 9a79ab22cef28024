package codec

import (
	"fmt"

	"emperror.dev/errors"
)

// Reasons a response or request does not match its expected shape.
var (
	ErrWrongType    = errors.NewPlain("unexpected value type")
	ErrInvalidText  = errors.NewPlain("invalid UTF-8 text")
	ErrMissingField = errors.NewPlain("missing field")
)

// DecodeError reports a value that does not match the shape expected for an
// action.
type DecodeError struct {
	Action Action
	Want   string
	Err    error
}

func newDecodeError(action Action, want string, err error) *DecodeError {
	return &DecodeError{Action: action, Want: want, Err: err}
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("decode %s: %v", e.Want, e.Err)
	}
	return fmt.Sprintf("decode %s %s: %v", e.Action, e.Want, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecode reports whether err is or wraps a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
