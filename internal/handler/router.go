package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mfs "github.com/CageChen/clarvfs/internal/fs"
)

// NewRouter wires the host endpoints:
//
//	GET /api/vfs           websocket request endpoint
//	GET /api/exists/*path  existence and metadata
//	GET /api/raw/*path     raw file content
//	GET /api/status        served root and connected clients
func NewRouter(fs mfs.FileSystem, ws *WSHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	files := NewFileHandler(fs)

	api := r.Group("/api")
	{
		api.GET("/vfs", ws.HandleWS)
		api.GET("/exists/*path", files.GetExists)
		api.GET("/raw/*path", files.GetRaw)
		api.GET("/status", status(fs, ws))
	}
	return r
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Root    string `json:"root"`
	Clients int    `json:"clients"`
}

func status(fs mfs.FileSystem, ws *WSHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{Root: fs.Root(), Clients: ws.ClientCount()})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
