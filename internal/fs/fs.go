// Package fs provides the storage backends a VFS host serves requests from:
// local disk, memory, or a git ref.
package fs

import (
	"os"
	"path"
	"strings"
	"time"

	"emperror.dev/errors"
)

// Errors shared by all backends.
var (
	ErrOutsideRoot = errors.NewPlain("path is outside the served root")
	ErrReadOnly    = errors.NewPlain("filesystem is read-only")
	ErrIsDir       = errors.NewPlain("path is a directory")
)

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FileSystem abstracts the storage behind a host so it can serve either
// the local filesystem, memory, or a git object database. Paths are
// absolute, slash separated, and must lie inside the backend's root.
type FileSystem interface {
	// Root is the directory every path must lie inside.
	Root() string
	ReadFile(path string) ([]byte, error)
	Stat(path string) (FileInfo, error)
	WriteFile(path string, data []byte) error
}

// Exists reports whether path exists on fsys. Not-exist errors are reported
// as false; other failures are returned.
func Exists(fsys FileSystem, p string) (bool, error) {
	_, err := fsys.Stat(p)
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// IsOutsideRoot reports whether err is a refused out-of-root request.
func IsOutsideRoot(err error) bool {
	return errors.Is(err, ErrOutsideRoot)
}

// IsDir reports whether err is a read of a directory.
func IsDir(err error) bool {
	return errors.Is(err, ErrIsDir)
}

// within returns p relative to root, or ErrOutsideRoot.
func within(root, p string) (string, error) {
	p = path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	root = path.Clean("/" + strings.ReplaceAll(root, `\`, "/"))
	if root == "/" {
		return strings.TrimPrefix(p, "/"), nil
	}
	if p == root {
		return "", nil
	}
	if !strings.HasPrefix(p, root+"/") {
		return "", errors.WithDetails(ErrOutsideRoot, "path", p, "root", root)
	}
	return strings.TrimPrefix(p, root+"/"), nil
}
