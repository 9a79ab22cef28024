package fs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
)

// GitFS implements a read-only FileSystem by reading from a git ref (branch,
// tag, or commit). Paths are absolute and must lie inside the repository.
type GitFS struct {
	repoPath string
	ref      string
}

// NewGitFS creates a GitFS that reads files from the given ref in the repository at repoPath.
func NewGitFS(repoPath, ref string) *GitFS {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	if ref == "" {
		ref = "HEAD"
	}
	return &GitFS{repoPath: filepath.ToSlash(repoPath), ref: ref}
}

// Root returns the repository directory.
func (g *GitFS) Root() string {
	return g.repoPath
}

func (g *GitFS) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", errors.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", errors.WithStack(err)
	}
	return string(out), nil
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(path string) ([]byte, error) {
	objPath, err := within(g.repoPath, path)
	if err != nil {
		return nil, err
	}
	if objPath == "" {
		return nil, ErrIsDir
	}
	cmd := exec.Command("git", "-C", g.repoPath, "show", g.ref+":"+objPath)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "does not exist") || strings.Contains(stderr, "not exist") {
				return nil, os.ErrNotExist
			}
			return nil, errors.Errorf("git show: %s", stderr)
		}
		return nil, errors.WithStack(err)
	}
	return out, nil
}

// Stat returns metadata for the file or directory at the given path in the git ref.
func (g *GitFS) Stat(path string) (FileInfo, error) {
	objPath, err := within(g.repoPath, path)
	if err != nil {
		return FileInfo{}, err
	}

	// For root, check if the ref exists at all
	if objPath == "" {
		if _, err := g.git("rev-parse", "--verify", g.ref); err != nil {
			return FileInfo{}, os.ErrNotExist
		}
		return FileInfo{Name: g.ref, IsDir: true, ModTime: g.getModTime(".")}, nil
	}

	// ls-tree prints "<mode> <type> <hash>\t<name>"
	out, err := g.git("ls-tree", g.ref, objPath)
	if err != nil {
		return FileInfo{}, os.ErrNotExist
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 4 {
		return FileInfo{}, os.ErrNotExist
	}

	modTime := g.getModTime(objPath)
	if fields[1] == "tree" {
		return FileInfo{Name: baseName(objPath), IsDir: true, ModTime: modTime}, nil
	}

	var size int64
	if sizeOut, err := g.git("cat-file", "-s", g.ref+":"+objPath); err == nil {
		size, _ = strconv.ParseInt(strings.TrimSpace(sizeOut), 10, 64)
	}
	return FileInfo{Name: baseName(objPath), Size: size, ModTime: modTime}, nil
}

// WriteFile always fails: a git ref cannot be written through.
func (g *GitFS) WriteFile(path string, _ []byte) error {
	return errors.WithDetails(ErrReadOnly, "ref", g.ref, "path", path)
}

func (g *GitFS) getModTime(path string) time.Time {
	args := []string{"log", "-1", "--format=%ct", g.ref}
	if path != "." && path != "" {
		args = append(args, "--", path)
	}
	out, err := g.git(args...)
	if err != nil {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
