package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait is how long a silent client is kept. Clients ping well
	// inside it.
	readWait = 2 * time.Minute
)

// Conn serializes writes to a gorilla connection, which allows a single
// concurrent writer only.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

// Wrap takes ownership of conn.
func Wrap(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// WriteRaw forwards an already encoded event.
func (c *Conn) WriteRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, data)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string, retryable bool) error {
	return c.WriteTyped(ErrorResponse{
		Event:     EventError,
		Code:      code,
		Error:     errMsg,
		Retryable: retryable,
	})
}

// CloseWithReason sends a close frame with code and text, then closes the
// connection. A blocked reader returns a *websocket.CloseError or a net
// error.
func (c *Conn) CloseWithReason(code int, text string) error {
	_ = c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	return c.Close()
}

// ReadRequest reads and decodes the next client message with a read
// deadline.
func (c *Conn) ReadRequest() (RequestPayload, error) {
	var req RequestPayload
	_ = c.SetReadDeadline(time.Now().Add(readWait))
	err := c.ReadJSON(&req)
	return req, err
}
