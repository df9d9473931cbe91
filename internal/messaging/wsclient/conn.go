package wsclient

import (
	"io"

	"github.com/gorilla/websocket"
)

// streamConn adapts a *websocket.Conn into the plain io.ReadWriteCloser
// byte-stream smux.Client/smux.Server expect: each Write becomes one
// binary websocket message, and Read drains buffered message bytes
// across as many calls as the caller needs, refilling by pulling the
// next message once the buffer is empty.
type streamConn struct {
	ws      *websocket.Conn
	pending []byte
}

func newStreamConn(ws *websocket.Conn) *streamConn {
	return &streamConn{ws: ws}
}

func (c *streamConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *streamConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *streamConn) Close() error {
	return c.ws.Close()
}

var _ io.ReadWriteCloser = (*streamConn)(nil)
