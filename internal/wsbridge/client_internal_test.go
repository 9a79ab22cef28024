package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CageChen/clarvfs/internal/bridge"
	"github.com/CageChen/clarvfs/internal/codec"
)

func pendingCount(c *Client) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func TestClient_AbandonedCallsAreForgotten(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Message, 128)
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for {
				var msg Message
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				received <- msg
			}
		}()

		// Answer the first request once the caller has long given up.
		<-release
		first := <-received
		_ = conn.WriteJSON(Message{Type: TypeResponse, ID: first.ID, Result: []byte(`true`)})
	}))
	t.Cleanup(srv.Close)

	client, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	b := bridge.New(client)
	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := b.Invoke(ctx, codec.ActionExists, codec.Payload(`{"path":"/a"}`))
		cancel()
		require.ErrorIs(t, err, bridge.ErrAbandoned)
	}
	assert.Equal(t, 0, pendingCount(client))

	// A late answer to an abandoned request is dropped without harm.
	close(release)
	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("host did not hang up")
	}
	assert.Equal(t, 0, pendingCount(client))
}
