package mqttlite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSBroker serves fn on every WebSocket connection negotiated with the
// mqtt subprotocol.
func newWSBroker(t *testing.T, fn func(*websocket.Conn, *http.Request)) string {
	t.Helper()

	upgrader := websocket.Upgrader{
		Subprotocols: []string{WebSocketSubprotocol},
		CheckOrigin:  func(*http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn, r)
	}))
	t.Cleanup(server.Close)

	return strings.TrimPrefix(server.URL, "http://")
}

func TestWSDialer(t *testing.T) {
	type request struct {
		path        string
		subprotocol string
		header      string
	}
	requests := make(chan request, 1)

	addr := newWSBroker(t, func(conn *websocket.Conn, r *http.Request) {
		requests <- request{r.URL.Path, conn.Subprotocol(), r.Header.Get("X-Device")}
		serveConnack(NewWSConn(conn))
	})

	d := NewWSDialer("ws")
	d.Header = http.Header{"X-Device": []string{"dev-1"}}

	conn, err := d.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer conn.Close()

	req := <-requests
	assert.Equal(t, DefaultWSPath, req.path)
	assert.Equal(t, WebSocketSubprotocol, req.subprotocol)
	assert.Equal(t, "dev-1", req.header)

	assertHandshake(t, conn)
}

func TestWSDialerCustomPath(t *testing.T) {
	paths := make(chan string, 1)
	addr := newWSBroker(t, func(_ *websocket.Conn, r *http.Request) {
		paths <- r.URL.Path
	})

	d := &WSDialer{Path: "/ws"}
	conn, err := d.Dial(context.Background(), addr)
	require.NoError(t, err)
	conn.Close()

	assert.Equal(t, "/ws", <-paths)
}

func TestWSDialerRejected(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	d := NewWSDialer("ws")
	_, err := d.Dial(context.Background(), strings.TrimPrefix(server.URL, "http://"))
	assert.Error(t, err)
}

func TestWSConnFraming(t *testing.T) {
	t.Run("packets split across frames", func(t *testing.T) {
		addr := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
			// Read the CONNECT, then answer with a CONNACK split over two frames.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			conn.WriteMessage(websocket.BinaryMessage, []byte{0x20})
			conn.WriteMessage(websocket.BinaryMessage, []byte{0x02, 0x00, 0x00})
			conn.ReadMessage()
		})

		conn, err := NewWSDialer("ws").Dial(context.Background(), addr)
		require.NoError(t, err)
		defer conn.Close()

		assertHandshake(t, conn)
	})

	t.Run("small reads drain a frame", func(t *testing.T) {
		addr := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
			conn.WriteMessage(websocket.BinaryMessage, []byte("abcdef"))
			conn.ReadMessage()
		})

		conn, err := NewWSDialer("ws").Dial(context.Background(), addr)
		require.NoError(t, err)
		defer conn.Close()

		var got []byte
		buf := make([]byte, 4)
		for len(got) < 6 {
			n, err := conn.Read(buf)
			require.NoError(t, err)
			got = append(got, buf[:n]...)
		}
		assert.Equal(t, "abcdef", string(got))
	})

	t.Run("text frames are rejected", func(t *testing.T) {
		addr := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
			conn.WriteMessage(websocket.TextMessage, []byte("hello"))
			conn.ReadMessage()
		})

		conn, err := NewWSDialer("ws").Dial(context.Background(), addr)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Read(make([]byte, 16))
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("each write is one frame", func(t *testing.T) {
		frames := make(chan []byte, 2)
		addr := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
			for range 2 {
				typ, data, err := conn.ReadMessage()
				if err != nil || typ != websocket.BinaryMessage {
					return
				}
				frames <- data
			}
		})

		conn, err := NewWSDialer("ws").Dial(context.Background(), addr)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte{0xC0, 0x00})
		require.NoError(t, err)
		_, err = conn.Write([]byte{0xE0, 0x00})
		require.NoError(t, err)

		assert.Equal(t, []byte{0xC0, 0x00}, <-frames)
		assert.Equal(t, []byte{0xE0, 0x00}, <-frames)
	})
}

func TestWSConnDeadlines(t *testing.T) {
	addr := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.ReadMessage()
	})

	conn, err := NewWSDialer("ws").Dial(context.Background(), addr)
	require.NoError(t, err)
	defer conn.Close()

	assert.NotNil(t, conn.LocalAddr())
	assert.NotNil(t, conn.RemoteAddr())
	require.NoError(t, conn.SetDeadline(time.Now().Add(50*time.Millisecond)))

	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "read times out")
}
