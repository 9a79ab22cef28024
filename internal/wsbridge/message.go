// Package wsbridge carries VFS host calls over a websocket connection, so the
// host can live in an editor or a separate daemon.
package wsbridge

import (
	"github.com/goccy/go-json"

	"github.com/CageChen/clarvfs/internal/codec"
)

// Message types.
const (
	TypeRequest      = "request"
	TypeResponse     = "response"
	TypeNotification = "notification"
)

// ActionDidChange is pushed by hosts when a served file changes.
const ActionDidChange codec.Action = "vfs/didChange"

// Message is the envelope exchanged in both directions. Requests carry ID,
// Action and Payload; responses carry ID and either Result or Error;
// notifications carry Action and Payload.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Action  codec.Action    `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Change is the payload of a vfs/didChange notification.
type Change struct {
	Event string `json:"event"`
	Path  string `json:"path"`
}
