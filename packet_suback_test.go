package mqttlite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubackPacketEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		packet SubackPacket
	}{
		{"granted qos 1", SubackPacket{PacketID: 1, ReturnCodes: []byte{SubackMaxQoS1}}},
		{"failure", SubackPacket{PacketID: 2, ReturnCodes: []byte{SubackFailure}}},
		{"mixed", SubackPacket{PacketID: 3, ReturnCodes: []byte{SubackMaxQoS0, SubackMaxQoS2, SubackFailure}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := roundTrip(t, &tt.packet)
			assert.Equal(t, &tt.packet, decoded)
		})
	}
}

func TestSubackPacketDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"no return codes", []byte{0x90, 0x02, 0x00, 0x01}, ErrInvalidLength},
		{"invalid code", []byte{0x90, 0x03, 0x00, 0x01, 0x03}, ErrInvalidReturnCode},
		{"zero packet id", []byte{0x90, 0x03, 0x00, 0x00, 0x00}, ErrInvalidPacketID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadPacket(bytes.NewReader(tt.data), 0)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
