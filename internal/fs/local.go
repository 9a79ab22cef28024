package fs

import (
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalFS implements FileSystem on top of an afero filesystem, either the
// local disk or memory. Requests outside root are refused.
type LocalFS struct {
	fs   afero.Fs
	root string
}

// NewLocalFS creates a LocalFS serving the local disk below root.
func NewLocalFS(root string) *LocalFS {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &LocalFS{fs: afero.NewOsFs(), root: filepath.ToSlash(root)}
}

// NewMemFS creates an empty in-memory LocalFS below root.
func NewMemFS(root string) *LocalFS {
	return NewAferoFS(afero.NewMemMapFs(), root)
}

// NewOverlayFS serves the local disk below root but keeps writes in memory;
// the disk is never modified.
func NewOverlayFS(root string) *LocalFS {
	l := NewLocalFS(root)
	l.fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(l.fs), afero.NewMemMapFs())
	return l
}

// NewAferoFS wraps an arbitrary afero filesystem.
func NewAferoFS(fs afero.Fs, root string) *LocalFS {
	if root == "" {
		root = "/"
	}
	return &LocalFS{fs: fs, root: root}
}

// Root returns the directory this filesystem is confined to.
func (l *LocalFS) Root() string {
	return l.root
}

func (l *LocalFS) abs(p string) (string, error) {
	rel, err := within(l.root, p)
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(path.Join(l.root, rel)), nil
}

// ReadFile reads the contents of the file at the given path.
func (l *LocalFS) ReadFile(p string) ([]byte, error) {
	abs, err := l.abs(p)
	if err != nil {
		return nil, err
	}
	info, err := l.fs.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrIsDir
	}
	return afero.ReadFile(l.fs, abs)
}

// Stat returns metadata for the file or directory at the given path.
func (l *LocalFS) Stat(p string) (FileInfo, error) {
	abs, err := l.abs(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := l.fs.Stat(abs)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// WriteFile writes data to the given path, creating parent directories.
func (l *LocalFS) WriteFile(p string, data []byte) error {
	abs, err := l.abs(p)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(l.fs, abs, data, os.FileMode(0o644))
}
