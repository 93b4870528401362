package mqttlite

import (
	"bytes"
	"io"
)

// SubackPacket represents an MQTT SUBACK packet.
type SubackPacket struct {
	PacketID uint16

	// ReturnCodes holds one granted QoS or SubackFailure per requested filter.
	ReturnCodes []byte
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType { return PacketSUBACK }

// GetPacketID returns the packet identifier.
func (p *SubackPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodePacketID(&buf, p.PacketID); err != nil {
		return 0, err
	}

	buf.Write(p.ReturnCodes)

	header := FixedHeader{
		PacketType:      PacketSUBACK,
		RemainingLength: uint32(buf.Len()),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(buf.Bytes())
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBACK {
		return 0, ErrInvalidPacketType
	}

	if header.RemainingLength < 3 {
		return 0, ErrInvalidLength
	}

	id, n, err := decodePacketID(r)
	if err != nil {
		return n, err
	}
	p.PacketID = id

	p.ReturnCodes = make([]byte, int(header.RemainingLength)-n)
	n2, err := io.ReadFull(r, p.ReturnCodes)
	n += n2
	if err != nil {
		return n, err
	}

	return n, p.Validate()
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrInvalidPacketID
	}

	if len(p.ReturnCodes) == 0 {
		return ErrProtocolViolation
	}

	for _, code := range p.ReturnCodes {
		if !validSubackCode(code) {
			return ErrInvalidReturnCode
		}
	}

	return nil
}
