package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/host"
	"github.com/CageChen/clarvfs/internal/watcher"
	"github.com/CageChen/clarvfs/internal/wsbridge"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Editors connect from arbitrary webview origins
	},
}

// wsClient serializes writes; gorilla connections allow one writer at a time.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg wsbridge.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHandler serves VFS requests over websocket connections and pushes file
// change notifications to every connected client.
type WSHandler struct {
	dispatcher *host.Dispatcher
	logger     *zap.Logger

	clients map[*wsClient]bool
	mu      sync.RWMutex
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(d *host.Dispatcher, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		dispatcher: d,
		logger:     logger,
		clients:    make(map[*wsClient]bool),
	}
}

// HandleWS upgrades the connection and answers requests until it closes.
// Requests are handled concurrently; responses may arrive out of order and
// are matched by id.
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{conn: conn}
	defer func() {
		h.removeClient(client)
		_ = conn.Close()
	}()

	h.addClient(client)
	h.logger.Info("vfs client connected", zap.String("remote", c.Request.RemoteAddr))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info("vfs client disconnected", zap.String("remote", c.Request.RemoteAddr))
			break
		}

		var msg wsbridge.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != wsbridge.TypeRequest {
			h.logger.Debug("ignoring message", zap.ByteString("data", data))
			continue
		}
		go h.serve(client, msg)
	}
}

func (h *WSHandler) serve(client *wsClient, req wsbridge.Message) {
	resp := wsbridge.Message{Type: wsbridge.TypeResponse, ID: req.ID}

	result, err := h.dispatcher.Handle(req.Action, req.Payload)
	if err != nil {
		h.logger.Debug("request rejected", zap.String("action", string(req.Action)), zap.Error(err))
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}

	if err := client.send(resp); err != nil {
		h.removeClient(client)
	}
}

// OnFileChange is called when a file change is detected
func (h *WSHandler) OnFileChange(event watcher.Event) {
	payload, err := json.Marshal(wsbridge.Change{Event: event.Type.String(), Path: event.Path})
	if err != nil {
		return
	}

	h.broadcast(wsbridge.Message{
		Type:    wsbridge.TypeNotification,
		Action:  wsbridge.ActionDidChange,
		Payload: payload,
	})
}

// ClientCount returns the number of connected clients.
func (h *WSHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHandler) addClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHandler) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *WSHandler) broadcast(msg wsbridge.Message) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.send(msg); err != nil {
			h.removeClient(client)
		}
	}
}
