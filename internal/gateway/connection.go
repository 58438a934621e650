package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	errConnectionClosed = errors.New("connection closed")
	errBufferExceeded   = errors.New("connection buffer exceeded")
)

// Connection wraps a websocket and serializes outbound writes through a
// buffered channel. Send is safe for concurrent use.
type Connection struct {
	id     string
	userID string

	ws         *websocket.Conn
	send       chan []byte
	once       sync.Once
	closed     chan struct{}
	writeWait  time.Duration
	pingPeriod time.Duration
}

func newConnection(userID string, ws *websocket.Conn, cfg Config) *Connection {
	return &Connection{
		id:         uuid.NewString(),
		userID:     userID,
		ws:         ws,
		send:       make(chan []byte, cfg.SendBuffer),
		closed:     make(chan struct{}),
		writeWait:  cfg.WriteWait,
		pingPeriod: cfg.PingPeriod,
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// UserID returns the id of the authenticated user.
func (c *Connection) UserID() string { return c.userID }

func (c *Connection) start() {
	go c.writeLoop()
}

// Send enqueues frame for delivery. A client too slow to drain its buffer is
// disconnected.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.closed:
		return errConnectionClosed
	default:
	}

	select {
	case <-c.closed:
		return errConnectionClosed
	case c.send <- frame:
		return nil
	default:
		c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return errBufferExceeded
	}
}

// Close terminates the connection and stops the write loop. Only the first
// call has an effect.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
