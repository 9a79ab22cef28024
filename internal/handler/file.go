// Package handler provides the HTTP surface of a VFS host: the websocket
// request endpoint and read-only REST views of the served files.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	mfs "github.com/CageChen/clarvfs/internal/fs"
)

// ExistsResponse is returned by GetExists.
type ExistsResponse struct {
	Path    string     `json:"path"`
	Exists  bool       `json:"exists"`
	Size    int64      `json:"size,omitempty"`
	ModTime *time.Time `json:"modTime,omitempty"`
}

// FileHandler serves files of the host's backend over plain HTTP.
type FileHandler struct {
	fs mfs.FileSystem
}

// NewFileHandler creates a new file handler
func NewFileHandler(fs mfs.FileSystem) *FileHandler {
	return &FileHandler{fs: fs}
}

func requestPath(c *gin.Context) string {
	p := c.Param("path")
	if p == "" {
		p = c.Query("path")
	}
	return "/" + strings.TrimPrefix(p, "/")
}

// GetExists reports whether a path exists.
func (h *FileHandler) GetExists(c *gin.Context) {
	p := requestPath(c)

	info, err := h.fs.Stat(p)
	switch {
	case err == nil:
		modTime := info.ModTime
		c.JSON(http.StatusOK, ExistsResponse{Path: p, Exists: true, Size: info.Size, ModTime: &modTime})
	case mfs.IsNotExist(err):
		c.JSON(http.StatusOK, ExistsResponse{Path: p})
	default:
		h.fail(c, err)
	}
}

// GetRaw returns the raw file content
func (h *FileHandler) GetRaw(c *gin.Context) {
	content, err := h.fs.ReadFile(requestPath(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", content)
}

func (h *FileHandler) fail(c *gin.Context, err error) {
	switch {
	case mfs.IsNotExist(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case mfs.IsOutsideRoot(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case mfs.IsDir(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is a directory"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
