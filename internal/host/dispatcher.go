// Package host implements the host side of the VFS wire contract: it executes
// exists/read/write actions against a storage backend.
package host

import (
	"net/url"
	"strings"

	"emperror.dev/errors"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/codec"
	"github.com/CageChen/clarvfs/internal/fs"
)

// Errors returned to callers as rejections.
var (
	ErrUnknownAction     = errors.NewPlain("unknown action")
	ErrUnsupportedScheme = errors.NewPlain("unsupported location scheme")
	ErrEmptyPath         = errors.NewPlain("empty path")
)

// Dispatcher executes actions against a FileSystem. It is safe for concurrent
// use if the FileSystem is.
type Dispatcher struct {
	fs     fs.FileSystem
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher serving fsys.
func NewDispatcher(fsys fs.FileSystem, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{fs: fsys, logger: logger}
}

// Handle runs one action and returns its encoded response.
func (d *Dispatcher) Handle(action codec.Action, payload codec.Payload) (codec.Response, error) {
	switch action {
	case codec.ActionExists:
		req, err := codec.DecodeReadRequest(payload)
		if err != nil {
			return nil, err
		}
		p, err := hostPath(req.Path)
		if err != nil {
			return nil, err
		}
		exists, err := fs.Exists(d.fs, p)
		if err != nil {
			return nil, errors.WrapIf(err, "exists")
		}
		return codec.EncodeExists(exists), nil

	case codec.ActionReadFile:
		req, err := codec.DecodeReadRequest(payload)
		if err != nil {
			return nil, err
		}
		p, err := hostPath(req.Path)
		if err != nil {
			return nil, err
		}
		content, err := d.fs.ReadFile(p)
		if err != nil {
			return nil, errors.WrapIf(err, "read")
		}
		return codec.EncodeText(content)

	case codec.ActionWriteFile:
		req, err := codec.DecodeWriteRequest(payload)
		if err != nil {
			return nil, err
		}
		p, err := hostPath(req.Path)
		if err != nil {
			return nil, err
		}
		if err := d.fs.WriteFile(p, req.Content); err != nil {
			return nil, errors.WrapIf(err, "write")
		}
		d.logger.Debug("wrote file", zap.String("path", p), zap.Int("size", len(req.Content)))
		return codec.Response("null"), nil
	}

	return nil, errors.WithDetails(ErrUnknownAction, "action", string(action))
}

// hostPath maps a canonical location string onto a backend path. Plain paths
// pass through; only file:// URLs are understood.
func hostPath(p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}
	if !strings.Contains(p, "://") {
		return p, nil
	}
	u, err := url.Parse(p)
	if err != nil {
		return "", errors.WrapIf(err, "parse location")
	}
	if u.Scheme != "file" {
		return "", errors.WithDetails(ErrUnsupportedScheme, "scheme", u.Scheme)
	}
	return u.Path, nil
}
