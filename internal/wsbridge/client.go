package wsbridge

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/bridge"
	"github.com/CageChen/clarvfs/internal/codec"
)

// ErrClosed is returned for calls on a closed client and used to reject
// requests still pending when the connection goes away.
var ErrClosed = errors.NewPlain("websocket host connection closed")

// NotificationHandler receives host notifications.
type NotificationHandler func(Message)

// Client is a bridge.Host whose calls travel over a websocket connection.
// Each call is one request message; its promise settles when the matching
// response arrives.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]*bridge.Deferred
	handlers []NotificationHandler

	closed atomic.Bool
	done   chan struct{}
}

var (
	_ bridge.Host      = (*Client)(nil)
	_ bridge.Abandoner = (*Client)(nil)
)

// pendingCall is the promise handed out by Call; it remembers its request id
// so an abandoned call can be forgotten.
type pendingCall struct {
	*bridge.Deferred
	id string
}

// Dial connects to a host endpoint such as ws://localhost:8080/api/vfs.
func Dial(ctx context.Context, url string, header http.Header, logger *zap.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.WrapIf(err, "wsbridge: dial host")
	}
	return NewClient(conn, logger), nil
}

// NewClient wraps an established connection and starts reading from it.
func NewClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]*bridge.Deferred),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call implements bridge.Host. A failed write refuses the call; everything
// after that is reported through the returned promise.
func (c *Client) Call(action codec.Action, payload codec.Payload) (bridge.Promise, error) {
	id := uuid.NewString()
	d := bridge.NewDeferred()

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = d
	c.mu.Unlock()

	err := c.write(Message{Type: TypeRequest, ID: id, Action: action, Payload: payload})
	if err != nil {
		c.forget(id)
		return nil, err
	}
	return &pendingCall{Deferred: d, id: id}, nil
}

// Abandon implements bridge.Abandoner. The request stays with the host; a
// late response for it is dropped.
func (c *Client) Abandon(p bridge.Promise) {
	if pc, ok := p.(*pendingCall); ok {
		c.forget(pc.id)
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// OnNotification registers fn for host notifications.
func (c *Client) OnNotification(fn NotificationHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

// Done is closed when the connection has gone away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. Pending calls are rejected with ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapIf(err, "wsbridge: marshal message")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapIf(err, "wsbridge: write message")
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.shutdown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("host connection lost", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case TypeResponse:
			c.handleResponse(msg)
		case TypeNotification:
			c.handleNotification(msg)
		}
	}
}

func (c *Client) handleResponse(msg Message) {
	c.mu.Lock()
	d, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", zap.String("id", msg.ID))
		return
	}
	if msg.Error != "" {
		d.Reject(errors.New(msg.Error))
		return
	}
	d.Resolve(codec.Response(msg.Result))
}

func (c *Client) handleNotification(msg Message) {
	c.mu.Lock()
	handlers := make([]NotificationHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) shutdown() {
	c.closed.Store(true)
	_ = c.conn.Close()

	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*bridge.Deferred)
	c.mu.Unlock()

	for _, d := range pending {
		d.Reject(ErrClosed)
	}
	close(c.done)
}
