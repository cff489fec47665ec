// Package wsconn exposes a WebSocket connection as a byte stream so the
// PlainTalk codec can run over it unchanged.
package wsconn

import (
	"errors"
	"io"

	"github.com/gorilla/websocket"
)

// Conn adapts a *websocket.Conn to io.ReadWriteCloser. Reads concatenate the
// payloads of incoming text or binary frames; each Write is sent as one
// binary frame, since fields may hold arbitrary bytes.
// One goroutine may read while another writes.
type Conn struct {
	ws *websocket.Conn
	r  io.Reader
}

// New wraps ws.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Read implements io.Reader. A normal close from the peer reads as io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.r = r
		}

		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying connection without a close handshake.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
