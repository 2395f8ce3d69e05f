package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnInfo carries the request-scoped identity attached to a connection,
// used for audit events and metrics.
type ConnInfo struct {
	DeviceID  string
	IP        string
	RequestID string
	TraceID   string
}

// Client is one live channel: the websocket connection plus its buffered
// outbound queue. All socket writes go through the write pump so broadcast
// paths never block on a slow peer.
type Client struct {
	ID          string
	UserID      int
	Info        ConnInfo
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(id string, userID int, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, buffer),
	}
}

// TrySend queues a frame without blocking. A full buffer means the client
// cannot keep up; the frame is dropped and the caller decides what to do.
func (c *Client) TrySend(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close shuts the send queue and the underlying connection. Safe to call
// more than once and from any goroutine.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// WritePump drains the send queue into the websocket until the queue is
// closed or a write fails.
func (c *Client) WritePump() {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
