package mqttlite

import (
	"errors"
	"fmt"
)

// Sentinel errors for operations - check with errors.Is().
var (
	// ErrNotConnected is returned when an operation requires an MQTT session.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current connection state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrTooManyRequests is returned when every request slot is in use.
	ErrTooManyRequests = errors.New("too many in-flight requests")

	// ErrInvalidClientInfo is returned when ClientInfo fails validation.
	ErrInvalidClientInfo = errors.New("invalid client info")

	// ErrInvalidTopic is returned when a topic name or filter is invalid.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrClientClosed is returned when an operation is attempted on a closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrNoTransport is returned by NewClient without a transport.
	ErrNoTransport = errors.New("transport required")
)

// Sentinel errors reported in operation events - check with errors.Is().
var (
	// ErrSubscribeRefused is reported when the broker answers SUBACK 0x80.
	ErrSubscribeRefused = errors.New("subscription refused")

	// ErrRequestTimeout is reported when a request is not acknowledged in time.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrRetriesExhausted is reported when a request stays unacknowledged
	// after its last retransmission. It also matches ErrRequestTimeout.
	ErrRetriesExhausted = fmt.Errorf("%w: retries exhausted", ErrRequestTimeout)

	// ErrDisconnected is reported for requests cancelled by Disconnect.
	ErrDisconnected = errors.New("disconnected")
)

// Sentinel errors for connection loss - check with errors.Is().
var (
	// ErrConnectionLost is reported when the connection drops unexpectedly.
	ErrConnectionLost = errors.New("connection lost")

	// ErrProtocolError is the cause when the broker violates the protocol or
	// sends undecodable bytes.
	ErrProtocolError = errors.New("protocol error")

	// ErrKeepAliveTimeout is the cause when the broker doesn't answer PINGREQ.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")

	// ErrSendFailed wraps an error returned by Transport.Send.
	ErrSendFailed = errors.New("transport send failed")

	// ErrTransportClosed is the cause when the transport closed without error.
	ErrTransportClosed = errors.New("transport closed")

	// ErrSendQueueFull is returned when the transport cannot take more bytes
	// yet. Nothing was sent and the session stays up.
	ErrSendQueueFull = errors.New("send queue full")

	// ErrRunnerClosed is returned by Runner methods after Close.
	ErrRunnerClosed = errors.New("runner closed")
)

// ConnectError contains details about a refused connection attempt.
// Extract with errors.As().
type ConnectError struct {
	err    error
	Status ConnStatus
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.Status.String()
}

func (e *ConnectError) Unwrap() error { return e.err }

// NewConnectError creates a new ConnectError from a connection status.
func NewConnectError(status ConnStatus) *ConnectError {
	var baseErr error
	switch status {
	case ConnStatusTimeout:
		baseErr = ErrRequestTimeout
	case ConnStatusTCPFailed:
		baseErr = ErrConnectionLost
	default:
		baseErr = ErrProtocolError
	}
	return &ConnectError{
		err:    baseErr,
		Status: status,
	}
}

// ConnectionLostError contains details about an unexpected disconnection.
// Extract with errors.As().
type ConnectionLostError struct {
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return "connection lost: " + e.Cause.Error()
	}
	return "connection lost"
}

// Unwrap returns both ErrConnectionLost and the cause, so errors.Is matches
// either.
func (e *ConnectionLostError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConnectionLost}
	}
	return []error{ErrConnectionLost, e.Cause}
}

// NewConnectionLostError creates a new ConnectionLostError.
func NewConnectionLostError(cause error) *ConnectionLostError {
	return &ConnectionLostError{Cause: cause}
}

// RequestError contains details about a failed subscribe, unsubscribe or
// publish. Extract with errors.As().
type RequestError struct {
	err      error
	Op       string
	Topic    string
	PacketID uint16
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %q (packet %d) failed: %v", e.Op, e.Topic, e.PacketID, e.err)
}

func (e *RequestError) Unwrap() error { return e.err }

// NewRequestError creates a new RequestError.
func NewRequestError(op, topic string, packetID uint16, err error) *RequestError {
	return &RequestError{
		err:      err,
		Op:       op,
		Topic:    topic,
		PacketID: packetID,
	}
}
