package vfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CageChen/clarvfs/internal/bridge"
	"github.com/CageChen/clarvfs/internal/codec"
	"github.com/CageChen/clarvfs/internal/fs"
	"github.com/CageChen/clarvfs/internal/host"
	"github.com/CageChen/clarvfs/internal/location"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHost records every call before delegating to next.
type countingHost struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  []codec.Action
	next  bridge.Host
}

func (h *countingHost) Call(action codec.Action, payload codec.Payload) (bridge.Promise, error) {
	h.calls.Add(1)
	h.mu.Lock()
	h.seen = append(h.seen, action)
	h.mu.Unlock()
	return h.next.Call(action, payload)
}

func newMemAccessor(t *testing.T, opts ...Option) (*Accessor, *countingHost, *fs.LocalFS) {
	t.Helper()
	m := fs.NewMemFS("/")
	require.NoError(t, m.WriteFile("/proj/Clarinet.toml", []byte("[project]\nname = \"counter\"\n")))
	require.NoError(t, m.WriteFile("/proj/contracts/counter.clar", []byte("(define-data-var counter uint u0)\n")))

	h := &countingHost{next: host.NewLocal(host.NewDispatcher(m, nil))}
	return New(h, opts...), h, m
}

func hostFunc(fn func(codec.Action, codec.Payload) (bridge.Promise, error)) bridge.Host {
	return bridge.HostFunc(fn)
}

var manifest = location.MustParse("/proj/Clarinet.toml")

func TestReadManifestContent(t *testing.T) {
	a, h, _ := newMemAccessor(t)

	loc, content, err := a.ReadManifestContent(context.Background(), manifest)
	require.NoError(t, err)
	assert.True(t, loc.Equal(manifest))
	assert.Equal(t, "[project]\nname = \"counter\"\n", content)
	assert.Equal(t, []codec.Action{codec.ActionReadFile}, h.seen)
}

func TestReadContractContent_ReturnsResolvedLocation(t *testing.T) {
	a, _, _ := newMemAccessor(t)

	loc, content, err := a.ReadContractContent(context.Background(), manifest, "contracts/counter.clar")
	require.NoError(t, err)
	assert.Equal(t, "/proj/contracts/counter.clar", loc.String())
	assert.Equal(t, "(define-data-var counter uint u0)\n", content)
}

func TestWriteThenRead_RoundTrip(t *testing.T) {
	a, _, m := newMemAccessor(t)
	ctx := context.Background()

	for i, content := range []string{"(ok u1)", "", "line1\nline2\n", "unicode: λ → ∀"} {
		rel := fmt.Sprintf("contracts/gen-%d.clar", i)
		require.NoError(t, a.WriteFile(ctx, manifest, rel, []byte(content)))

		loc, got, err := a.ReadContractContent(ctx, manifest, rel)
		require.NoError(t, err)
		assert.Equal(t, content, got)

		_, got, err = a.ReadManifestContent(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, content, got)

		raw, err := m.ReadFile(loc.String())
		require.NoError(t, err)
		assert.Equal(t, content, string(raw))
	}
}

func TestWriteFile_ContentNotRetained(t *testing.T) {
	a, _, _ := newMemAccessor(t)
	ctx := context.Background()

	buf := []byte("(ok u1)")
	require.NoError(t, a.WriteFile(ctx, manifest, "contracts/x.clar", buf))
	copy(buf, "XXXXXXX")

	_, got, err := a.ReadContractContent(ctx, manifest, "contracts/x.clar")
	require.NoError(t, err)
	assert.Equal(t, "(ok u1)", got)
}

func TestFileExists(t *testing.T) {
	a, _, _ := newMemAccessor(t)
	ctx := context.Background()
	target := location.MustParse("/proj/contracts/new.clar")

	exists, err := a.FileExists(ctx, target)
	require.NoError(t, err)
	assert.False(t, exists, "a path never written must report false, not an error")

	require.NoError(t, a.WriteFile(ctx, manifest, "contracts/new.clar", []byte("x")))

	exists, err = a.FileExists(ctx, target)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileExists_TransportFailureIsNotFalse(t *testing.T) {
	a := New(hostFunc(func(codec.Action, codec.Payload) (bridge.Promise, error) {
		return bridge.Rejected(errors.New("host offline")), nil
	}))

	exists, err := a.FileExists(context.Background(), manifest)
	require.Error(t, err)
	assert.False(t, exists)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, bridge.ErrHostRejected)
}

func TestFileExists_Truthiness(t *testing.T) {
	for raw, want := range map[string]bool{`true`: true, `1`: true, `"yes"`: true, `false`: false, `null`: false, `0`: false} {
		a := New(hostFunc(func(codec.Action, codec.Payload) (bridge.Promise, error) {
			return bridge.Resolved(codec.Response(raw)), nil
		}))
		got, err := a.FileExists(context.Background(), manifest)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestReadContractContent_PathFailureShortCircuits(t *testing.T) {
	a, h, _ := newMemAccessor(t, WithConfinement(true))
	ctx := context.Background()

	_, _, err := a.ReadContractContent(ctx, manifest, "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, IsPath(err))
	assert.False(t, IsTransport(err))
	assert.True(t, location.IsInvalidSegment(err))

	_, _, err = a.ReadContractContent(ctx, location.MustParse("/"), "a.clar")
	assert.True(t, IsPath(err))
	assert.True(t, location.IsNoParent(err))

	_, _, err = a.ReadContractContent(ctx, manifest, "/etc/passwd")
	assert.True(t, IsPath(err))

	err = a.WriteFile(ctx, manifest, "../outside.clar", []byte("x"))
	assert.True(t, IsPath(err))

	assert.Equal(t, int32(0), h.calls.Load(), "no host call may be made after a path failure")
}

func TestReadContractContent_Unconfined(t *testing.T) {
	a, _, m := newMemAccessor(t)
	require.NoError(t, m.WriteFile("/shared/lib.clar", []byte("(ok true)")))

	loc, content, err := a.ReadContractContent(context.Background(), manifest, "../shared/lib.clar")
	require.NoError(t, err)
	assert.Equal(t, "/shared/lib.clar", loc.String())
	assert.Equal(t, "(ok true)", content)
}

func TestRead_DecodeFailureIsolated(t *testing.T) {
	a := New(hostFunc(func(codec.Action, codec.Payload) (bridge.Promise, error) {
		return bridge.Resolved(codec.Response(`{"bytes":[1,2,3]}`)), nil
	}))
	ctx := context.Background()

	_, _, err := a.ReadManifestContent(ctx, manifest)
	require.Error(t, err)
	assert.True(t, IsDecode(err))
	assert.False(t, IsTransport(err))
	assert.True(t, codec.IsDecode(err))

	_, _, err = a.ReadContractContent(ctx, manifest, "contracts/a.clar")
	assert.True(t, IsDecode(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpReadContract, e.Op)
	assert.Equal(t, "/proj/contracts/a.clar", e.Location)
}

func TestTransportErrors(t *testing.T) {
	refusing := New(hostFunc(func(codec.Action, codec.Payload) (bridge.Promise, error) {
		return nil, errors.New("malformed")
	}))
	ctx := context.Background()

	_, _, err := refusing.ReadManifestContent(ctx, manifest)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, bridge.ErrInvocationFailed)

	err = refusing.WriteFile(ctx, manifest, "a.clar", []byte("x"))
	assert.True(t, IsTransport(err))

	a, _, _ := newMemAccessor(t)
	_, _, err = a.ReadContractContent(ctx, manifest, "contracts/missing.clar")
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, bridge.ErrHostRejected)
}

func TestWriteFile_ReadOnlyHost(t *testing.T) {
	h := host.NewLocal(host.NewDispatcher(fs.NewGitFS(t.TempDir(), "HEAD"), nil))
	a := New(h)

	err := a.WriteFile(context.Background(), manifest, "a.clar", []byte("x"))
	assert.True(t, IsTransport(err))
}

func TestTimeout(t *testing.T) {
	pending := bridge.NewDeferred()
	a := New(hostFunc(func(codec.Action, codec.Payload) (bridge.Promise, error) {
		return pending, nil
	}), WithTimeout(20*time.Millisecond))

	_, err := a.FileExists(context.Background(), manifest)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, bridge.ErrAbandoned)
}

func TestConcurrentExists_Independent(t *testing.T) {
	// The host answers in the reverse order of issue.
	var mu sync.Mutex
	pending := map[string]*bridge.Deferred{}
	issued := make(chan string, 2)

	a := New(hostFunc(func(_ codec.Action, payload codec.Payload) (bridge.Promise, error) {
		req, err := codec.DecodeReadRequest(payload)
		if err != nil {
			return nil, err
		}
		d := bridge.NewDeferred()
		mu.Lock()
		pending[req.Path] = d
		mu.Unlock()
		issued <- req.Path
		return d, nil
	}))

	type result struct {
		exists bool
		err    error
	}
	present := make(chan result, 1)
	absent := make(chan result, 1)

	go func() {
		ok, err := a.FileExists(context.Background(), location.MustParse("/proj/present.clar"))
		present <- result{ok, err}
	}()
	<-issued
	go func() {
		ok, err := a.FileExists(context.Background(), location.MustParse("/proj/absent.clar"))
		absent <- result{ok, err}
	}()
	<-issued

	mu.Lock()
	pending["/proj/absent.clar"].Resolve(codec.EncodeExists(false))
	pending["/proj/present.clar"].Resolve(codec.EncodeExists(true))
	mu.Unlock()

	r := <-absent
	require.NoError(t, r.err)
	assert.False(t, r.exists)

	r = <-present
	require.NoError(t, r.err)
	assert.True(t, r.exists)
}

func TestErrorMessage(t *testing.T) {
	a, _, _ := newMemAccessor(t, WithConfinement(true))
	_, _, err := a.ReadContractContent(context.Background(), manifest, "../x.clar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vfs: read-contract /proj/Clarinet.toml: path error")
}

func TestZeroLocation_IsPathError(t *testing.T) {
	a, h, _ := newMemAccessor(t)
	ctx := context.Background()

	_, err := a.FileExists(ctx, location.Location{})
	assert.True(t, IsPath(err))
	assert.True(t, location.IsInvalidSegment(err))

	_, _, err = a.ReadManifestContent(ctx, location.Location{})
	assert.True(t, IsPath(err))

	_, _, err = a.ReadContractContent(ctx, location.Location{}, "a.clar")
	assert.True(t, IsPath(err))

	assert.Equal(t, int32(0), h.calls.Load())
}
