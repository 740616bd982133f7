// Package transport owns the physical websocket to the chat server.
// It moves raw frames and lifecycle events; it knows nothing about
// message semantics.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send once the connection is closed.
var ErrNotConnected = errors.New("transport: not connected")

// Handler receives frames and lifecycle events from a connection.
// HandleClose is delivered exactly once, as the terminal event;
// HandleError may precede it but never substitutes for it. All
// callbacks run on the connection's read goroutine, in frame order.
type Handler interface {
	HandleFrame(data []byte)
	HandleClose(code int, reason string)
	HandleError(err error)
}

// Connection is the engine-facing surface of a live connection.
type Connection interface {
	Start()
	Send(data []byte) error
	Close() error
}

// Conn is one physical websocket connection.
type Conn struct {
	ws      *websocket.Conn
	handler Handler
	logger  *zap.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Dial opens a websocket to rawURL with the auth token appended as a
// query parameter. The read loop does not run until Start is called,
// so the caller can finish wiring its state first; a successful Dial
// is the connection's single opened event.
func Dial(ctx context.Context, rawURL, token string, h Handler, logger *zap.Logger) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{ws: ws, handler: h, logger: logger}, nil
}

// Start launches the read loop.
func (c *Conn) Start() {
	go c.readLoop()
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			code, reason := closeDetails(err)
			if code == -1 && !c.isClosed() {
				c.handler.HandleError(err)
			}
			c.markClosed()
			c.closeOnce.Do(func() { c.handler.HandleClose(code, reason) })
			return
		}
		c.handler.HandleFrame(data)
	}
}

func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return -1, err.Error()
}

// Send writes one text frame. It reports ErrNotConnected after Close
// rather than writing on a dead socket.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears down the socket. Idempotent; the read loop delivers the
// terminal HandleClose.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.ws.Close()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
