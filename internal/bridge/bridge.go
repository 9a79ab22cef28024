// Package bridge invokes a host's asynchronous entry point and awaits the
// result. One Invoke is exactly one host round trip: no queueing, batching or
// retries.
package bridge

import (
	"context"
	"reflect"

	"emperror.dev/errors"

	"github.com/CageChen/clarvfs/internal/codec"
)

// Host is the single asynchronous entry point a VFS host exposes. Call must
// not block on the operation itself; it hands back a Promise instead. An error
// from Call means the host refused the invocation.
type Host interface {
	Call(action codec.Action, payload codec.Payload) (Promise, error)
}

// Abandoner is implemented by hosts that keep per-call state. Invoke calls
// Abandon when its caller stops waiting for p, so the host can release that
// state. The operation behind p keeps running and p may still settle.
type Abandoner interface {
	Abandon(p Promise)
}

// HostFunc adapts an ordinary function to Host.
type HostFunc func(action codec.Action, payload codec.Payload) (Promise, error)

// Call implements Host.
func (f HostFunc) Call(action codec.Action, payload codec.Payload) (Promise, error) {
	return f(action, payload)
}

// Bridge forwards encoded requests to a Host. It holds no mutable state and
// is safe for concurrent use as long as the Host is.
type Bridge struct {
	host Host
}

// New creates a Bridge over host.
func New(host Host) *Bridge {
	return &Bridge{host: host}
}

// Invoke hands action and payload to the host and waits for the promise to
// settle. A host that refuses the call yields KindInvocationFailed without
// waiting; a rejected promise yields KindHostRejected. If ctx ends first the
// caller gets KindAbandoned, but the host operation itself keeps running.
func (b *Bridge) Invoke(ctx context.Context, action codec.Action, payload codec.Payload) (codec.Response, error) {
	p, err := b.call(action, payload)
	if err != nil {
		return nil, &TransportError{Action: action, Kind: KindInvocationFailed, Detail: err.Error()}
	}
	if isNil(p) {
		return nil, &TransportError{Action: action, Kind: KindInvocationFailed, Detail: "host returned no promise"}
	}

	select {
	case <-ctx.Done():
		if a, ok := b.host.(Abandoner); ok {
			a.Abandon(p)
		}
		return nil, &TransportError{Action: action, Kind: KindAbandoned, Detail: ctx.Err().Error(), cause: ctx.Err()}
	case <-p.Done():
	}

	v, err := p.Result()
	if err != nil {
		return nil, &TransportError{Action: action, Kind: KindHostRejected, Detail: err.Error()}
	}
	return v, nil
}

// call shields Invoke from hosts that panic instead of returning an error.
func (b *Bridge) call(action codec.Action, payload codec.Payload) (p Promise, err error) {
	if b.host == nil {
		return nil, ErrNoHost
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, errors.Errorf("host panicked: %v", r)
		}
	}()
	return b.host.Call(action, payload)
}

// isNil also catches a nil pointer stored in the Promise interface.
func isNil(p Promise) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
		return v.IsNil()
	}
	return false
}
