package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport adapts a gorilla connection to Transport. gorilla allows one
// concurrent writer, so data frames are serialized; control frames are
// safe to send alongside.
type WSTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       atomic.Bool
}

func NewWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *WSTransport {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WSTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *WSTransport) WriteText(data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// WriteJSON sends v as a text frame.
func (t *WSTransport) WriteJSON(v any) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteJSON(v)
}

func (t *WSTransport) Ping() error {
	if t.closed.Load() {
		return ErrClosed
	}
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
}

func (t *WSTransport) Open() bool {
	return !t.closed.Load()
}

// Close sends a normal closure frame and releases the socket. Repeated calls
// are no-ops.
func (t *WSTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

// ReadUntilClosed drains inbound frames until the peer goes away or the
// connection is closed locally. Pongs mark c alive.
func (t *WSTransport) ReadUntilClosed(c *Connection) error {
	t.conn.SetPongHandler(func(string) error {
		c.Pong()
		return nil
	})
	_ = t.conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			t.closed.Store(true)
			return err
		}
	}
}
