package mqttlite

import (
	"errors"
	"io"
)

// PacketType represents an MQTT control packet type.
type PacketType byte

// MQTT 3.1.1 control packet types. Values 0 and 15 are reserved.
const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
)

// String returns the string representation of the packet type.
func (p PacketType) String() string {
	switch p {
	case PacketCONNECT:
		return "CONNECT"
	case PacketCONNACK:
		return "CONNACK"
	case PacketPUBLISH:
		return "PUBLISH"
	case PacketPUBACK:
		return "PUBACK"
	case PacketPUBREC:
		return "PUBREC"
	case PacketPUBREL:
		return "PUBREL"
	case PacketPUBCOMP:
		return "PUBCOMP"
	case PacketSUBSCRIBE:
		return "SUBSCRIBE"
	case PacketSUBACK:
		return "SUBACK"
	case PacketUNSUBSCRIBE:
		return "UNSUBSCRIBE"
	case PacketUNSUBACK:
		return "UNSUBACK"
	case PacketPINGREQ:
		return "PINGREQ"
	case PacketPINGRESP:
		return "PINGRESP"
	case PacketDISCONNECT:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Valid returns true if the packet type is defined by MQTT 3.1.1.
func (p PacketType) Valid() bool {
	return p >= PacketCONNECT && p <= PacketDISCONNECT
}

// Fixed header errors.
var (
	ErrInvalidPacketType       = errors.New("invalid packet type")
	ErrInvalidPacketFlags      = errors.New("invalid packet flags")
	ErrRemainingLengthTooLarge = errors.New("remaining length too large")
)

// FixedHeader represents the fixed header of an MQTT control packet.
type FixedHeader struct {
	PacketType      PacketType
	Flags           byte
	RemainingLength uint32
}

// Encode writes the fixed header to the writer.
// Returns the number of bytes written.
func (h *FixedHeader) Encode(w io.Writer) (int, error) {
	if !h.PacketType.Valid() {
		return 0, ErrInvalidPacketType
	}

	// Packet type in the high nibble, flags in the low one
	firstByte := byte(h.PacketType)<<4 | (h.Flags & 0x0F)
	n, err := w.Write([]byte{firstByte})
	if err != nil {
		return n, err
	}

	// Remaining length as variable byte integer
	n2, err := encodeVarint(w, h.RemainingLength)
	return n + n2, err
}

// Decode reads the fixed header from the reader.
// Returns the number of bytes read.
func (h *FixedHeader) Decode(r io.Reader) (int, error) {
	// Read first byte
	var buf [1]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return n, err
	}

	h.PacketType = PacketType(buf[0] >> 4)
	h.Flags = buf[0] & 0x0F

	if !h.PacketType.Valid() {
		return n, ErrInvalidPacketType
	}

	// Read remaining length
	length, n2, err := decodeVarint(r)
	n += n2
	if err != nil {
		return n, err
	}

	h.RemainingLength = length
	return n, nil
}

// parseFixedHeader parses a fixed header from the start of b without
// consuming it. It returns the header length, or 0 if b does not yet hold a
// complete header.
func parseFixedHeader(b []byte) (FixedHeader, int, error) {
	var h FixedHeader
	if len(b) < 2 {
		return h, 0, nil
	}

	h.PacketType = PacketType(b[0] >> 4)
	h.Flags = b[0] & 0x0F
	if !h.PacketType.Valid() {
		return h, 0, ErrInvalidPacketType
	}

	length, n, err := decodeVarintBytes(b[1:])
	if err != nil || n == 0 {
		return h, 0, err
	}

	h.RemainingLength = length
	return h, 1 + n, nil
}

// Size returns the encoded size of the fixed header in bytes.
func (h *FixedHeader) Size() int {
	return 1 + varintSize(h.RemainingLength)
}

// ValidateFlags validates the flags for the packet type.
// Returns nil if valid, ErrInvalidPacketFlags otherwise.
func (h *FixedHeader) ValidateFlags() error {
	switch h.PacketType {
	case PacketPUBLISH:
		// DUP and RETAIN are free; QoS 3 is malformed.
		if h.QoS() > 2 {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		// Reserved flags must be 0010
		if h.Flags != 0x02 {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketCONNECT, PacketCONNACK, PacketPUBACK, PacketPUBREC,
		PacketPUBCOMP, PacketSUBACK, PacketUNSUBACK, PacketPINGREQ,
		PacketPINGRESP, PacketDISCONNECT:
		// Reserved flags must be 0000
		if h.Flags != 0x00 {
			return ErrInvalidPacketFlags
		}
		return nil

	default:
		return ErrInvalidPacketType
	}
}

// PUBLISH flag bits.
const (
	publishFlagDUP    byte = 0x08
	publishFlagQoS    byte = 0x06
	publishFlagRetain byte = 0x01
)

// DUP reports whether a PUBLISH is a redelivery.
func (h *FixedHeader) DUP() bool {
	return h.Flags&publishFlagDUP != 0
}

// SetDUP marks a PUBLISH as a redelivery. Only valid for QoS 1 and 2.
func (h *FixedHeader) SetDUP(dup bool) {
	h.setFlag(publishFlagDUP, dup)
}

// QoS returns the delivery level of a PUBLISH. A value of 3 is malformed.
func (h *FixedHeader) QoS() byte {
	return (h.Flags & publishFlagQoS) >> 1
}

// SetQoS stores the delivery level of a PUBLISH.
func (h *FixedHeader) SetQoS(qos byte) {
	h.Flags = (h.Flags &^ publishFlagQoS) | ((qos << 1) & publishFlagQoS)
}

// Retain reports whether the broker should keep a PUBLISH for new subscribers.
func (h *FixedHeader) Retain() bool {
	return h.Flags&publishFlagRetain != 0
}

// SetRetain sets the RETAIN flag of a PUBLISH.
func (h *FixedHeader) SetRetain(retain bool) {
	h.setFlag(publishFlagRetain, retain)
}

func (h *FixedHeader) setFlag(bit byte, on bool) {
	if on {
		h.Flags |= bit
	} else {
		h.Flags &^= bit
	}
}
