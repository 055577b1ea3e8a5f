package driftwatch

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is the JSON format for WebSocket messages.
type StreamMessage struct {
	Type   string            `json:"type"`
	Sample *ClassifiedSample `json:"sample,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// streamHandler upgrades the connection and forwards every classified
// sample from a hub subscription. This is where a live dashboard attaches;
// rendering is the client's concern.
func streamHandler(d *Detector, cfg HTTPConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := d.Subscribe()
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sub.Close()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = conn.Close() }()
		defer sub.Close()

		closed := make(chan struct{})

		// Drain client frames so close frames are processed.
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case cs, ok := <-sub.C():
				if !ok {
					return
				}
				msg, _ := json.Marshal(StreamMessage{Type: "sample", Sample: &cs})
				_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout.Duration()))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}
}
