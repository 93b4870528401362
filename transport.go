package mqttlite

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"
)

// Transport is the byte stream a Client drives. Implementations complete
// Open and Close asynchronously by calling Client.Opened and Client.Closed,
// and report flushed bytes with Client.Sent, all on the Client's goroutine.
type Transport interface {
	// Open starts connecting to host:port.
	Open(host string, port uint16) error

	// Send queues b for writing. b is only valid for the duration of the call.
	// ErrSendQueueFull rejects b and leaves the connection up; any other
	// error ends the session.
	Send(b []byte) error

	// Close tears the connection down.
	Close() error
}

// Conn represents a network connection for MQTT communication.
type Conn interface {
	net.Conn
}

// Dialer establishes MQTT connections.
type Dialer interface {
	// Dial connects to the address ("host:port") with the given context.
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// TCPDialer connects to MQTT brokers over TCP.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration
}

// Dial connects to the address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", address)
}

// TLSDialer connects to MQTT brokers over TLS.
type TLSDialer struct {
	// Config is the TLS configuration.
	Config *tls.Config

	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration
}

// Dial connects to the address.
func (d *TLSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: d.Timeout},
		Config:    d.Config,
	}
	return dialer.DialContext(ctx, "tcp", address)
}

// Default broker ports per scheme.
const (
	DefaultPortTCP  = 1883
	DefaultPortTLS  = 8883
	DefaultPortWS   = 80
	DefaultPortWSS  = 443
	DefaultPortQUIC = 14567
)

// DialerForScheme returns a dialer for a broker URL scheme and the scheme's
// default port. Supported schemes are tcp, mqtt, tls, ssl, mqtts, ws, wss
// and quic. tlsConfig is used by the TLS based schemes and may be nil.
func DialerForScheme(scheme string, tlsConfig *tls.Config) (Dialer, uint16, error) {
	switch strings.ToLower(scheme) {
	case "", "tcp", "mqtt":
		return &TCPDialer{}, DefaultPortTCP, nil
	case "tls", "ssl", "mqtts":
		return &TLSDialer{Config: tlsConfig}, DefaultPortTLS, nil
	case "ws":
		return NewWSDialer("ws"), DefaultPortWS, nil
	case "wss":
		d := NewWSDialer("wss")
		d.Dialer.TLSClientConfig = tlsConfig
		return d, DefaultPortWSS, nil
	case "quic":
		return NewQUICDialer(tlsConfig), DefaultPortQUIC, nil
	default:
		return nil, 0, fmt.Errorf("unsupported scheme %q", scheme)
	}
}
