package mqttlite

import (
	"context"
	"net"
)

// UnixDialer connects to MQTT brokers over Unix domain sockets. The
// host:port address the Client dials with is ignored in favour of Path.
type UnixDialer struct {
	// Path is the socket file path (e.g., "/var/run/mqtt.sock").
	Path string
}

// NewUnixDialer creates a dialer for the socket at path.
func NewUnixDialer(path string) *UnixDialer {
	return &UnixDialer{Path: path}
}

// Dial connects to the Unix socket.
func (d *UnixDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", d.Path)
}
