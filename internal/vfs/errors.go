package vfs

import (
	"fmt"

	"emperror.dev/errors"
)

// Kind classifies an accessor failure.
type Kind int

// Failure kinds. Path failures are always reported before any host call.
const (
	KindPath Kind = iota + 1
	KindTransport
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Error is returned by every Accessor operation.
type Error struct {
	Kind     Kind
	Op       string
	Location string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("vfs: %s: %s error: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("vfs: %s %s: %s error: %v", e.Op, e.Location, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsPath reports whether err is a path resolution failure.
func IsPath(err error) bool {
	return kindOf(err) == KindPath
}

// IsTransport reports whether err is a host transport failure.
func IsTransport(err error) bool {
	return kindOf(err) == KindTransport
}

// IsDecode reports whether err is a response decoding failure.
func IsDecode(err error) bool {
	return kindOf(err) == KindDecode
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
