package mqttlite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckPacketsEncodeDecode(t *testing.T) {
	tests := []struct {
		name      string
		packet    PacketWithID
		firstByte byte
	}{
		{"PUBACK", &PubackPacket{PacketID: 1}, 0x40},
		{"PUBREC", &PubrecPacket{PacketID: 2}, 0x50},
		{"PUBREL", &PubrelPacket{PacketID: 3}, 0x62},
		{"PUBCOMP", &PubcompPacket{PacketID: 4}, 0x70},
		{"UNSUBACK", &UnsubackPacket{PacketID: 65535}, 0xB0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := tt.packet.Encode(&buf)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			id := tt.packet.GetPacketID()
			assert.Equal(t, []byte{tt.firstByte, 0x02, byte(id >> 8), byte(id)}, buf.Bytes())

			decoded := roundTrip(t, tt.packet)
			assert.Equal(t, tt.packet, decoded)
			assert.NoError(t, decoded.Validate())
		})
	}
}

func TestAckPacketsRejectZeroID(t *testing.T) {
	packets := []Packet{&PubackPacket{}, &PubrecPacket{}, &PubrelPacket{}, &PubcompPacket{}, &UnsubackPacket{}}

	for _, p := range packets {
		t.Run(p.Type().String(), func(t *testing.T) {
			_, err := p.Encode(&bytes.Buffer{})
			assert.ErrorIs(t, err, ErrInvalidPacketID)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPacketID)
		})
	}
}

func TestAckPacketsDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"PUBACK zero id", []byte{0x40, 0x02, 0x00, 0x00}, ErrInvalidPacketID},
		{"PUBACK long", []byte{0x40, 0x03, 0x00, 0x01, 0x00}, ErrInvalidLength},
		{"PUBREL without flags", []byte{0x60, 0x02, 0x00, 0x01}, ErrInvalidPacketFlags},
		{"PUBCOMP with flags", []byte{0x72, 0x02, 0x00, 0x01}, ErrInvalidPacketFlags},
		{"UNSUBACK short", []byte{0xB0, 0x01, 0x00}, ErrInvalidLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadPacket(bytes.NewReader(tt.data), 0)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
