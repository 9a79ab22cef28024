package host

import (
	"github.com/goccy/go-json"

	"github.com/CageChen/clarvfs/internal/bridge"
	"github.com/CageChen/clarvfs/internal/codec"
)

// Local is an in-process bridge.Host. Each accepted call runs on its own
// goroutine and settles a promise.
type Local struct {
	dispatcher *Dispatcher
}

var _ bridge.Host = (*Local)(nil)

// NewLocal creates a Local host around d.
func NewLocal(d *Dispatcher) *Local {
	return &Local{dispatcher: d}
}

// Call implements bridge.Host. Unknown actions and payloads that are not JSON
// are refused up front.
func (l *Local) Call(action codec.Action, payload codec.Payload) (bridge.Promise, error) {
	if !action.Valid() {
		return nil, ErrUnknownAction
	}
	if !json.Valid(payload) {
		return nil, codec.ErrWrongType
	}
	return bridge.Go(func() (codec.Response, error) {
		return l.dispatcher.Handle(action, payload)
	}), nil
}
