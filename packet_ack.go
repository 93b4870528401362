package mqttlite

import (
	"errors"
	"io"
)

// ErrInvalidPacketID is returned when a packet carries identifier 0.
var ErrInvalidPacketID = errors.New("invalid packet identifier")

// encodeAck encodes a two-byte acknowledgement (PUBACK, PUBREC, PUBREL,
// PUBCOMP and UNSUBACK).
func encodeAck(w io.Writer, packetType PacketType, flags byte, packetID uint16) (int, error) {
	if packetID == 0 {
		return 0, ErrInvalidPacketID
	}

	header := FixedHeader{
		PacketType:      packetType,
		Flags:           flags,
		RemainingLength: 2,
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := encodePacketID(w, packetID)
	return total + n, err
}

// decodeAck decodes a two-byte acknowledgement body.
func decodeAck(r io.Reader, header FixedHeader) (uint16, int, error) {
	if header.RemainingLength != 2 {
		return 0, 0, ErrInvalidLength
	}

	id, n, err := decodePacketID(r)
	if err != nil {
		return 0, n, err
	}

	if id == 0 {
		return 0, n, ErrInvalidPacketID
	}

	return id, n, nil
}
