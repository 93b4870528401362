package mqttlite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePackets(t *testing.T, packets ...Packet) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, p := range packets {
		_, err := p.Encode(&buf)
		require.NoError(t, err)
	}
	return buf.Bytes()
}

func TestReadPacketMaxSize(t *testing.T) {
	data := encodePackets(t, &PublishPacket{Topic: "a/b", Payload: make([]byte, 100)})

	_, _, err := ReadPacket(bytes.NewReader(data), 50)
	assert.ErrorIs(t, err, ErrPacketTooLarge)

	p, n, err := ReadPacket(bytes.NewReader(data), uint32(len(data)))
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, PacketPUBLISH, p.Type())
}

func TestWritePacket(t *testing.T) {
	p := &PublishPacket{Topic: "a/b", Payload: make([]byte, 100)}

	var buf bytes.Buffer
	_, err := WritePacket(&buf, p, 50)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Zero(t, buf.Len())

	n, err := WritePacket(&buf, p, 0)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)

	_, err = WritePacket(&buf, &PublishPacket{}, 0)
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestDecodeBodyTrailingBytes(t *testing.T) {
	// PUBACK body with a trailing byte.
	header := FixedHeader{PacketType: PacketPUBACK, RemainingLength: 2}
	_, err := decodeBody(header, []byte{0x00, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecoderWholePackets(t *testing.T) {
	data := encodePackets(t,
		&ConnackPacket{ReturnCode: ConnStatusAccepted},
		&PubackPacket{PacketID: 5},
		&PingrespPacket{},
	)

	d := NewDecoder(64)
	n, err := d.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	var types []PacketType
	for {
		p, err := d.Next()
		require.NoError(t, err)
		if p == nil {
			break
		}
		types = append(types, p.Type())
	}

	assert.Equal(t, []PacketType{PacketCONNACK, PacketPUBACK, PacketPINGRESP}, types)
	assert.Zero(t, d.Buffered())
}

func TestDecoderFragmented(t *testing.T) {
	want := &PublishPacket{Topic: "sensors/temp", Payload: []byte("21.5"), QoS: 1, PacketID: 300}
	data := encodePackets(t, want, &PubrelPacket{PacketID: 9})

	for _, chunk := range []int{1, 2, 3, 7} {
		d := NewDecoder(64)

		var got []Packet
		for off := 0; off < len(data); off += chunk {
			end := min(off+chunk, len(data))
			n, err := d.Write(data[off:end])
			require.NoError(t, err)
			require.Equal(t, end-off, n)

			for {
				p, err := d.Next()
				require.NoError(t, err)
				if p == nil {
					break
				}
				got = append(got, p)
			}
		}

		require.Len(t, got, 2, "chunk size %d", chunk)
		assert.Equal(t, want, got[0])
		assert.Equal(t, &PubrelPacket{PacketID: 9}, got[1])
	}
}

func TestDecoderPacketTooLarge(t *testing.T) {
	data := encodePackets(t, &PublishPacket{Topic: "a", Payload: make([]byte, 64)})

	d := NewDecoder(32)
	n, err := d.Write(data)
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrPacketTooLarge)

	_, err = d.Write(data[n:])
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestDecoderExactFit(t *testing.T) {
	data := encodePackets(t, &PublishPacket{Topic: "a", Payload: make([]byte, 16)})

	d := NewDecoder(len(data))
	n, err := d.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	p, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Zero(t, d.Buffered())
}

func TestDecoderMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"reserved type", []byte{0x00, 0x00}},
		{"AUTH", []byte{0xF0, 0x00}},
		{"bad flags", []byte{0x41, 0x02, 0x00, 0x01}},
		{"bad varint", []byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(64)
			_, err := d.Write(tt.data)
			require.NoError(t, err)

			_, err = d.Next()
			assert.Error(t, err)
		})
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder(16)
	_, err := d.Write([]byte{0x30, 0x05, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Buffered())

	d.Reset()
	assert.Zero(t, d.Buffered())
}

func TestEncodedSize(t *testing.T) {
	p := &SubscribePacket{PacketID: 1, Subscriptions: []Subscription{{TopicFilter: "a/b"}}}
	size, err := encodedSize(p)
	require.NoError(t, err)
	assert.Equal(t, len(encodePackets(t, p)), size)
}

func TestNewPacketUnknown(t *testing.T) {
	_, err := newPacket(PacketType(0))
	assert.ErrorIs(t, err, ErrUnknownPacketType)
}
