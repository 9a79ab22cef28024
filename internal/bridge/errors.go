package bridge

import (
	"fmt"

	"emperror.dev/errors"

	"github.com/CageChen/clarvfs/internal/codec"
)

// TransportKind classifies a transport failure.
type TransportKind int

// Transport failure kinds.
const (
	// KindInvocationFailed means the host did not accept the call.
	KindInvocationFailed TransportKind = iota + 1
	// KindHostRejected means the host's promise was rejected.
	KindHostRejected
	// KindAbandoned means the caller stopped waiting before the promise settled.
	KindAbandoned
)

func (k TransportKind) String() string {
	switch k {
	case KindInvocationFailed:
		return "invocation failed"
	case KindHostRejected:
		return "host rejected"
	case KindAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Sentinels matched by TransportError.Is, one per kind.
var (
	ErrInvocationFailed = errors.NewPlain("host invocation failed")
	ErrHostRejected     = errors.NewPlain("host rejected request")
	ErrAbandoned        = errors.NewPlain("request abandoned")

	// ErrNoHost is reported when a Bridge has no host to call.
	ErrNoHost = errors.NewPlain("no host configured")
	// ErrRejected is the rejection reason of a Deferred rejected with nil.
	ErrRejected = errors.NewPlain("rejected")
)

// TransportError reports that a host round trip did not produce a value.
// Detail is a diagnostic copy of whatever the host said; it is never parsed.
type TransportError struct {
	Action codec.Action
	Kind   TransportKind
	Detail string

	cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Action, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Action, e.Kind, e.Detail)
}

// Is matches the sentinel of e's kind.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrInvocationFailed:
		return e.Kind == KindInvocationFailed
	case ErrHostRejected:
		return e.Kind == KindHostRejected
	case ErrAbandoned:
		return e.Kind == KindAbandoned
	}
	return false
}

// Unwrap returns the context error for abandoned requests and nil otherwise;
// host errors are not propagated.
func (e *TransportError) Unwrap() error {
	return e.cause
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
