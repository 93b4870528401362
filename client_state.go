package mqttlite

// State is the connection state of a Client.
type State int

const (
	// StateDisconnected means no transport connection exists.
	StateDisconnected State = iota
	// StateTCPConnecting means Transport.Open was called and has not completed.
	StateTCPConnecting
	// StateTCPDisconnecting means Transport.Close was called and has not completed.
	StateTCPDisconnecting
	// StateMQTTConnecting means CONNECT was sent and CONNACK is awaited.
	StateMQTTConnecting
	// StateMQTTConnected means the broker accepted the session.
	StateMQTTConnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateTCPConnecting:
		return "tcp_connecting"
	case StateTCPDisconnecting:
		return "tcp_disconnecting"
	case StateMQTTConnecting:
		return "mqtt_connecting"
	case StateMQTTConnected:
		return "mqtt_connected"
	default:
		return "unknown"
	}
}

// transportOpen reports whether the transport connection is established.
func (s State) transportOpen() bool {
	return s == StateMQTTConnecting || s == StateMQTTConnected
}

// setState moves the client to next and logs the transition.
func (c *Client) setState(next State) {
	if c.state == next {
		return
	}
	c.log.Debug("state change", LogFields{
		"from":        c.state.String(),
		LogFieldState: next.String(),
	})
	c.state = next
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state
}

// IsConnected reports whether the MQTT session is established.
func (c *Client) IsConnected() bool {
	return c.state == StateMQTTConnected
}
