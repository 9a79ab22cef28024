package location

import (
	"fmt"

	"emperror.dev/errors"
)

// Path resolution failures.
var (
	ErrNoParent       = errors.NewPlain("location has no parent")
	ErrInvalidSegment = errors.NewPlain("invalid path segment")
)

// PathError records a failed resolution step.
type PathError struct {
	Op    string
	Path  string
	Input string
	Err   error
}

func newPathError(op, path, input string, err error) *PathError {
	return &PathError{Op: op, Path: path, Input: input, Err: err}
}

// Error implements the error interface.
func (e *PathError) Error() string {
	if e.Path == "" && e.Input == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Input != "" {
		return fmt.Sprintf("%s %s: %q: %v", e.Op, e.Path, e.Input, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// IsNoParent reports whether err is or wraps ErrNoParent.
func IsNoParent(err error) bool {
	return errors.Is(err, ErrNoParent)
}

// IsInvalidSegment reports whether err is or wraps ErrInvalidSegment.
func IsInvalidSegment(err error) bool {
	return errors.Is(err, ErrInvalidSegment)
}
