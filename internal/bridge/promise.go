package bridge

import (
	"sync"

	"emperror.dev/errors"

	"github.com/CageChen/clarvfs/internal/codec"
)

// Promise is a single-shot asynchronous result produced by a host.
type Promise interface {
	// Done is closed once the promise has settled.
	Done() <-chan struct{}

	// Result returns the settled value or rejection. It must only be called
	// after Done is closed.
	Result() (codec.Response, error)
}

// Deferred is a Promise settled by its producer. Only the first Resolve or
// Reject has an effect.
type Deferred struct {
	once  sync.Once
	done  chan struct{}
	value codec.Response
	err   error
}

// NewDeferred creates an unsettled Deferred.
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolve settles d with v. It reports whether this call settled d.
func (d *Deferred) Resolve(v codec.Response) bool {
	return d.settle(v, nil)
}

// Reject settles d with err. A nil err is replaced by ErrRejected.
func (d *Deferred) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	return d.settle(nil, err)
}

func (d *Deferred) settle(v codec.Response, err error) bool {
	settled := false
	d.once.Do(func() {
		d.value, d.err = v, err
		close(d.done)
		settled = true
	})
	return settled
}

// Done implements Promise.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Result implements Promise.
func (d *Deferred) Result() (codec.Response, error) {
	<-d.done
	return d.value, d.err
}

// Resolved returns a promise already settled with v.
func Resolved(v codec.Response) Promise {
	d := NewDeferred()
	d.Resolve(v)
	return d
}

// Rejected returns a promise already rejected with err.
func Rejected(err error) Promise {
	d := NewDeferred()
	d.Reject(err)
	return d
}

// Go runs fn on its own goroutine and returns a promise settled with its
// result. A panic in fn rejects the promise.
func Go(fn func() (codec.Response, error)) Promise {
	d := NewDeferred()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.Reject(errors.Errorf("host operation panicked: %v", r))
			}
		}()
		v, err := fn()
		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(v)
	}()
	return d
}
