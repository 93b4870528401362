package mqttlite

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortSocketPath stays under the sun_path limit that t.TempDir can exceed.
func shortSocketPath(t testing.TB) string {
	t.Helper()

	path := fmt.Sprintf("/tmp/mqttlite_%d.sock", time.Now().UnixNano())
	t.Cleanup(func() { os.Remove(path) })
	return path
}

func TestUnixDialer(t *testing.T) {
	path := shortSocketPath(t)

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	serverDone := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- serveConnack(conn)
	}()

	dialer := NewUnixDialer(path)
	assert.Equal(t, path, dialer.Path)

	conn, err := dialer.Dial(context.Background(), "ignored:1883")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "unix", conn.RemoteAddr().Network())
	assertHandshake(t, conn)
	require.NoError(t, <-serverDone)
}

func TestUnixDialerErrors(t *testing.T) {
	t.Run("missing socket", func(t *testing.T) {
		_, err := NewUnixDialer("/nonexistent/socket.sock").Dial(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewUnixDialer("/nonexistent/socket.sock").Dial(ctx, "")
		assert.Error(t, err)
	})
}

func TestRunnerOverUnixSocket(t *testing.T) {
	path := shortSocketPath(t)

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serveConnack(conn)
	}()

	r := newTestRunner(t, NewUnixDialer(path))
	events := make(eventSink, 4)

	require.NoError(t, r.ConnectAndWait(context.Background(), "localhost", DefaultPortTCP, testInfo(), events.handler))
	assert.Equal(t, &ConnectEvent{Status: ConnStatusAccepted}, events.next(t))
}

func BenchmarkUnixSocketDial(b *testing.B) {
	path := shortSocketPath(b)

	listener, err := net.Listen("unix", path)
	require.NoError(b, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	dialer := NewUnixDialer(path)

	b.ReportAllocs()
	for b.Loop() {
		conn, err := dialer.Dial(context.Background(), "")
		if err != nil {
			b.Fatal(err)
		}
		conn.Close()
	}
}
