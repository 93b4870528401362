package mqttlite

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the MQTT WebSocket subprotocol name.
const WebSocketSubprotocol = "mqtt"

// DefaultWSPath is the request path used when WSDialer.Path is empty.
const DefaultWSPath = "/mqtt"

// WSConn adapts a WebSocket connection carrying binary frames to net.Conn.
type WSConn struct {
	conn    *websocket.Conn
	pending []byte
}

// Read returns bytes from the current binary frame, reading the next frame
// when it is exhausted.
func (c *WSConn) Read(b []byte) (int, error) {
	for len(c.pending) == 0 {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}

		if messageType != websocket.BinaryMessage {
			return 0, ErrProtocolViolation
		}

		c.pending = data
	}

	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends b as one binary frame.
func (c *WSConn) Write(b []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *WSConn) Close() error         { return c.conn.Close() }
func (c *WSConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *WSConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *WSConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *WSConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *WSConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// NewWSConn wraps an established WebSocket connection.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// WSDialer connects to MQTT brokers over WebSocket.
type WSDialer struct {
	// Dialer is the underlying WebSocket dialer.
	Dialer *websocket.Dialer

	// Scheme is "ws" or "wss".
	Scheme string

	// Path is the HTTP request path.
	Path string

	// Header holds extra handshake headers.
	Header http.Header
}

// NewWSDialer creates a dialer negotiating the mqtt subprotocol.
func NewWSDialer(scheme string) *WSDialer {
	return &WSDialer{
		Dialer: &websocket.Dialer{
			Subprotocols:     []string{WebSocketSubprotocol},
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: DefaultConnectTimeout,
		},
		Scheme: scheme,
		Path:   DefaultWSPath,
	}
}

// Dial connects to scheme://address/path.
func (d *WSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	scheme := d.Scheme
	if scheme == "" {
		scheme = "ws"
	}

	path := d.Path
	if path == "" {
		path = DefaultWSPath
	}

	u := url.URL{Scheme: scheme, Host: address, Path: path}

	conn, resp, err := dialer.DialContext(ctx, u.String(), d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return NewWSConn(conn), nil
}
