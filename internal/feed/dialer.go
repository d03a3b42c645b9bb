package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of a websocket connection a Session needs.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens feed connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket. No keep-alive pings are sent
// and no read deadline is set; server pings are still answered by the default
// ping handler.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	CloseTimeout     time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	if d.MaxMessageSize > 0 {
		conn.SetReadLimit(d.MaxMessageSize)
	}
	closeTimeout := d.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = time.Second
	}
	return &wsConn{Conn: conn, closeTimeout: closeTimeout}, nil
}

// wsConn sends a close frame before tearing down the socket. Close is safe to
// call more than once and from another goroutine than the reader.
type wsConn struct {
	*websocket.Conn
	closeTimeout time.Duration
	once         sync.Once
	err          error
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.closeTimeout))
		c.err = c.Conn.Close()
	})
	return c.err
}
