package mqttlite

import "fmt"

// ConnStatus is the outcome of a connection attempt. Values up to 0xFF are
// CONNACK return codes sent by the broker; higher values are local outcomes.
type ConnStatus uint16

// CONNACK return codes.
const (
	ConnStatusAccepted                   ConnStatus = 0x00
	ConnStatusRefusedProtocolVersion     ConnStatus = 0x01
	ConnStatusRefusedIdentifierRejected  ConnStatus = 0x02
	ConnStatusRefusedServerUnavailable   ConnStatus = 0x03
	ConnStatusRefusedBadUsernamePassword ConnStatus = 0x04
	ConnStatusRefusedNotAuthorized       ConnStatus = 0x05
	maxConnackReturnCode                 ConnStatus = ConnStatusRefusedNotAuthorized
	ConnStatusTCPFailed                  ConnStatus = 0x100
	ConnStatusTimeout                    ConnStatus = 0x101
)

// String returns a human-readable description of the status.
func (s ConnStatus) String() string {
	switch s {
	case ConnStatusAccepted:
		return "accepted"
	case ConnStatusRefusedProtocolVersion:
		return "refused: unacceptable protocol version"
	case ConnStatusRefusedIdentifierRejected:
		return "refused: identifier rejected"
	case ConnStatusRefusedServerUnavailable:
		return "refused: server unavailable"
	case ConnStatusRefusedBadUsernamePassword:
		return "refused: bad user name or password"
	case ConnStatusRefusedNotAuthorized:
		return "refused: not authorized"
	case ConnStatusTCPFailed:
		return "transport connection failed"
	case ConnStatusTimeout:
		return "connection timeout"
	default:
		return fmt.Sprintf("unknown status 0x%02X", uint16(s))
	}
}

// Accepted reports whether the broker accepted the connection.
func (s ConnStatus) Accepted() bool {
	return s == ConnStatusAccepted
}

// IsReturnCode reports whether s is a CONNACK return code defined by MQTT 3.1.1.
func (s ConnStatus) IsReturnCode() bool {
	return s <= maxConnackReturnCode
}

// SUBACK return codes.
const (
	SubackMaxQoS0 byte = 0x00
	SubackMaxQoS1 byte = 0x01
	SubackMaxQoS2 byte = 0x02
	SubackFailure byte = 0x80
)

func validSubackCode(code byte) bool {
	return code <= SubackMaxQoS2 || code == SubackFailure
}
