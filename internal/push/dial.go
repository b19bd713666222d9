package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned when writing to a connection that is not open.
var ErrClosed = errors.New("push connection closed")

// Conn is one open push connection. ReadMessage is called only from the
// read pump; WriteMessage and Close only from the loop.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens push connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial push channel: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial push channel: %w", err)
	}
	c.SetReadLimit(maxMessageSize)
	return &wsConn{Conn: c}, nil
}

type wsConn struct {
	*websocket.Conn
}

// WriteMessage bounds each write so a stalled peer cannot block the loop.
func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

// Close sends a normal close frame before tearing down the socket.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.Conn.Close()
}

func withToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	if token == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
