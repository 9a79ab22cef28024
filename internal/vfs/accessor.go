// Package vfs exposes the file operations a language-tooling backend needs
// (existence check, manifest read, contract read, file write) on top of a
// host reached through an asynchronous bridge. The host may be the local disk
// or storage proxied by an editor; callers cannot tell the difference.
//
// Every operation is a one-shot pipeline: optional path resolution, request
// encoding, one host round trip, response decoding. Nothing is retried and no
// state is kept between calls, so concurrent calls are independent. Callers
// that need write-before-read ordering must wait for the write to return.
package vfs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/bridge"
	"github.com/CageChen/clarvfs/internal/codec"
	"github.com/CageChen/clarvfs/internal/location"
)

// FileAccessor is the capability surface consumed by the analysis engine.
type FileAccessor interface {
	FileExists(ctx context.Context, loc location.Location) (bool, error)
	ReadManifestContent(ctx context.Context, manifest location.Location) (location.Location, string, error)
	ReadContractContent(ctx context.Context, manifest location.Location, relativePath string) (location.Location, string, error)
	WriteFile(ctx context.Context, manifest location.Location, relativePath string, content []byte) error
}

// Operation names used in errors and logs.
const (
	OpExists       = "exists"
	OpReadManifest = "read-manifest"
	OpReadContract = "read-contract"
	OpWrite        = "write"
)

// Accessor implements FileAccessor over a bridge.Host.
type Accessor struct {
	bridge  *bridge.Bridge
	logger  *zap.Logger
	confine bool
	timeout time.Duration
}

var _ FileAccessor = (*Accessor)(nil)

// Option configures an Accessor.
type Option func(*Accessor)

// WithLogger sets the logger used for per-operation debug output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Accessor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithConfinement keeps contract and write paths inside the manifest's
// directory. Relative paths that climb out of it fail with a path error.
func WithConfinement(confine bool) Option {
	return func(a *Accessor) {
		a.confine = confine
	}
}

// WithTimeout bounds how long each operation waits for the host. Zero means
// wait indefinitely. Expiry abandons the wait; the host operation is not
// cancelled.
func WithTimeout(d time.Duration) Option {
	return func(a *Accessor) {
		a.timeout = d
	}
}

// New creates an Accessor that sends every request to host.
func New(host bridge.Host, opts ...Option) *Accessor {
	a := &Accessor{
		bridge: bridge.New(host),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FileExists asks the host whether loc exists. The host signals absence with
// a falsy value; a failed round trip is an error, never false.
func (a *Accessor) FileExists(ctx context.Context, loc location.Location) (bool, error) {
	a.logger.Debug("checking file", zap.Stringer("location", loc))
	if err := checkSet(OpExists, loc); err != nil {
		return false, err
	}

	resp, err := a.invoke(ctx, OpExists, loc, codec.ActionExists, codec.ReadRequest{Path: loc.String()})
	if err != nil {
		return false, err
	}
	exists, err := codec.DecodeExists(resp)
	if err != nil {
		return false, &Error{Kind: KindDecode, Op: OpExists, Location: loc.String(), Err: err}
	}
	return exists, nil
}

// ReadManifestContent reads the manifest at manifest verbatim and returns it
// along with the same location.
func (a *Accessor) ReadManifestContent(ctx context.Context, manifest location.Location) (location.Location, string, error) {
	a.logger.Debug("reading manifest", zap.Stringer("location", manifest))
	if err := checkSet(OpReadManifest, manifest); err != nil {
		return location.Location{}, "", err
	}

	content, err := a.read(ctx, OpReadManifest, manifest)
	if err != nil {
		return location.Location{}, "", err
	}
	return manifest, content, nil
}

// ReadContractContent resolves relativePath against the manifest's directory
// and reads it. The returned location is the resolved one. Resolution
// failures are reported as path errors and no host call is made.
func (a *Accessor) ReadContractContent(ctx context.Context, manifest location.Location, relativePath string) (location.Location, string, error) {
	contract, err := a.resolve(OpReadContract, manifest, relativePath)
	if err != nil {
		return location.Location{}, "", err
	}
	a.logger.Debug("reading contract", zap.Stringer("location", contract))

	content, err := a.read(ctx, OpReadContract, contract)
	if err != nil {
		return location.Location{}, "", err
	}
	return contract, content, nil
}

// WriteFile resolves relativePath like ReadContractContent and writes content
// there. content is not retained after WriteFile returns.
func (a *Accessor) WriteFile(ctx context.Context, manifest location.Location, relativePath string, content []byte) error {
	target, err := a.resolve(OpWrite, manifest, relativePath)
	if err != nil {
		return err
	}
	a.logger.Debug("writing file", zap.Stringer("location", target), zap.Int("size", len(content)))

	_, err = a.invoke(ctx, OpWrite, target, codec.ActionWriteFile, codec.WriteRequest{Path: target.String(), Content: content})
	return err
}

func (a *Accessor) read(ctx context.Context, op string, loc location.Location) (string, error) {
	resp, err := a.invoke(ctx, op, loc, codec.ActionReadFile, codec.ReadRequest{Path: loc.String()})
	if err != nil {
		return "", err
	}
	text, err := codec.DecodeText(resp)
	if err != nil {
		return "", &Error{Kind: KindDecode, Op: op, Location: loc.String(), Err: err}
	}
	return text, nil
}

// checkSet refuses the zero Location, which names no file.
func checkSet(op string, loc location.Location) error {
	if loc.IsZero() {
		return &Error{Kind: KindPath, Op: op, Err: &location.PathError{Op: "use", Err: location.ErrInvalidSegment}}
	}
	return nil
}

func (a *Accessor) resolve(op string, manifest location.Location, relativePath string) (location.Location, error) {
	dir, err := manifest.Parent()
	if err != nil {
		return location.Location{}, &Error{Kind: KindPath, Op: op, Location: manifest.String(), Err: err}
	}
	if a.confine {
		dir = dir.Confine()
	}
	target, err := dir.Append(relativePath)
	if err != nil {
		return location.Location{}, &Error{Kind: KindPath, Op: op, Location: manifest.String(), Err: err}
	}
	return target, nil
}

func (a *Accessor) invoke(ctx context.Context, op string, loc location.Location, action codec.Action, req any) (codec.Response, error) {
	payload, err := codec.Encode(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Location: loc.String(), Err: err}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.bridge.Invoke(ctx, action, payload)
	if err != nil {
		a.logger.Debug("host request failed", zap.String("op", op), zap.Stringer("location", loc), zap.Error(err))
		return nil, &Error{Kind: KindTransport, Op: op, Location: loc.String(), Err: err}
	}
	return resp, nil
}
