package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 10 * time.Second
	pongWait         = 60 * time.Second
	maxMessageSize   = 8 * 1024
)

// WSHandle adapts a gorilla websocket connection to the Handle interface.
// gorilla connections allow one concurrent writer, so every write goes
// through the handle's mutex.
type WSHandle struct {
	conn      *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

// NewWSHandle wraps an upgraded websocket connection. writeWait bounds each
// write; 0 uses the default.
func NewWSHandle(conn *websocket.Conn, writeWait time.Duration) *WSHandle {
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &WSHandle{conn: conn, writeWait: writeWait}
}

// Send writes one JSON frame.
func (h *WSHandle) Send(payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	return h.conn.WriteJSON(payload)
}

// Ping writes a keepalive control frame.
func (h *WSHandle) Ping() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait))
}

// Close closes the underlying connection.
func (h *WSHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	_ = h.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return h.conn.Close()
}

// ReadLoop drains inbound frames until the connection drops, keeping the
// read deadline fresh. The server treats client frames as keepalive only;
// onClose runs exactly once when the loop exits.
func (h *WSHandle) ReadLoop(onClose func()) {
	defer onClose()
	for {
		if _, _, err := h.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ Handle = (*WSHandle)(nil)
