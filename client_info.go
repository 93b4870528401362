package mqttlite

import (
	"fmt"
	"time"
)

// ClientInfo identifies the client to the broker.
type ClientInfo struct {
	// ID is the client identifier. Required.
	ID string

	// Username and Password are optional credentials. A password requires a
	// username.
	Username string
	Password string

	// KeepAlive is the keep-alive interval. Zero disables keep-alive.
	// It is sent to the broker in whole seconds.
	KeepAlive time.Duration

	// Will message, published by the broker if the connection drops.
	// WillTopic and WillMessage are set together or not at all.
	WillTopic   string
	WillMessage []byte
	WillQoS     byte
	WillRetain  bool
}

// hasWill reports whether a will message is configured.
func (i *ClientInfo) hasWill() bool {
	return i.WillTopic != ""
}

// Validate checks the info can be sent in a CONNECT packet.
func (i *ClientInfo) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: client ID required", ErrInvalidClientInfo)
	}

	if err := validString(i.ID); err != nil {
		return fmt.Errorf("%w: client ID: %w", ErrInvalidClientInfo, err)
	}

	if i.Password != "" && i.Username == "" {
		return fmt.Errorf("%w: %w", ErrInvalidClientInfo, ErrPasswordWithoutUser)
	}

	if (i.WillTopic == "") != (len(i.WillMessage) == 0) {
		return fmt.Errorf("%w: will topic and message must be set together", ErrInvalidClientInfo)
	}

	if i.WillQoS > 2 {
		return fmt.Errorf("%w: will %w", ErrInvalidClientInfo, ErrInvalidQoS)
	}

	if !i.hasWill() && (i.WillQoS != 0 || i.WillRetain) {
		return fmt.Errorf("%w: will QoS or retain set without will", ErrInvalidClientInfo)
	}

	if i.hasWill() {
		if err := ValidateTopicName(i.WillTopic); err != nil {
			return fmt.Errorf("%w: will topic: %w", ErrInvalidClientInfo, err)
		}
	}

	if i.KeepAlive < 0 || (i.KeepAlive+time.Second-1)/time.Second > maxUint16 {
		return fmt.Errorf("%w: keep-alive out of range", ErrInvalidClientInfo)
	}

	return nil
}

// keepAliveSeconds returns the keep-alive interval as sent in CONNECT.
// Sub-second intervals round up to one second.
func (i *ClientInfo) keepAliveSeconds() uint16 {
	if i.KeepAlive <= 0 {
		return 0
	}
	secs := (i.KeepAlive + time.Second - 1) / time.Second
	return uint16(secs)
}

func (i *ClientInfo) connectPacket() *ConnectPacket {
	p := &ConnectPacket{
		ClientID:     i.ID,
		CleanSession: true,
		KeepAlive:    i.keepAliveSeconds(),
		Username:     i.Username,
		Password:     []byte(i.Password),
	}

	if i.hasWill() {
		p.WillFlag = true
		p.WillTopic = i.WillTopic
		p.WillPayload = i.WillMessage
		p.WillQoS = i.WillQoS
		p.WillRetain = i.WillRetain
	}

	return p
}
