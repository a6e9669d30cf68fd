package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection wraps a websocket and coordinates outbound writes via a buffered
// channel. Each connection carries the identity of its member (set at join
// time) and is safe for concurrent use.
type Connection struct {
	ID string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}

	mu         sync.Mutex
	memberID   string
	memberName string
}

// NewConnection constructs a Connection around an upgraded websocket.
func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:    uuid.NewString(),
		ws:    ws,
		send:  make(chan []byte, 128),
		close: make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Key returns the unique connection identifier used by the room registry.
func (c *Connection) Key() string { return c.ID }

// SetIdentity records who this connection speaks for. Stored at join time
// and used for message attribution on subsequent sends.
func (c *Connection) SetIdentity(memberID, memberName string) {
	c.mu.Lock()
	c.memberID = memberID
	c.memberName = memberName
	c.mu.Unlock()
}

// Identity returns the member bound to this connection, if any.
func (c *Connection) Identity() (memberID, memberName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memberID, c.memberName
}

// Send enqueues payload for delivery. If the client is slow and the buffer is
// full, the connection is closed to keep backpressure bounded. Safe to call
// concurrently with Close: after a close it always returns an error.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return errors.New("connection closed")
	default:
	}
	select {
	case <-c.close:
		return errors.New("connection closed")
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop. The send channel
// is never closed; c.close alone signals shutdown so a concurrent Send can
// never hit a closed channel.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
