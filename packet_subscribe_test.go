package mqttlite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePacketEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		packet SubscribePacket
	}{
		{"single", SubscribePacket{PacketID: 1, Subscriptions: []Subscription{{TopicFilter: "a/b", QoS: 1}}}},
		{"wildcards", SubscribePacket{PacketID: 2, Subscriptions: []Subscription{
			{TopicFilter: "sensors/+/temp", QoS: 0},
			{TopicFilter: "alerts/#", QoS: 2},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := roundTrip(t, &tt.packet)
			assert.Equal(t, &tt.packet, decoded)
		})
	}
}

func TestSubscribePacketWireFormat(t *testing.T) {
	p := &SubscribePacket{PacketID: 7, Subscriptions: []Subscription{{TopicFilter: "a", QoS: 2}}}

	var buf bytes.Buffer
	_, err := p.Encode(&buf)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x82, 0x06, 0x00, 0x07, 0x00, 0x01, 'a', 0x02}, buf.Bytes())
}

func TestSubscribePacketValidate(t *testing.T) {
	tests := []struct {
		name   string
		packet SubscribePacket
		err    error
	}{
		{"no packet id", SubscribePacket{Subscriptions: []Subscription{{TopicFilter: "a"}}}, ErrInvalidPacketID},
		{"no filters", SubscribePacket{PacketID: 1}, ErrEmptySubscriptions},
		{"qos 3", SubscribePacket{PacketID: 1, Subscriptions: []Subscription{{TopicFilter: "a", QoS: 3}}}, ErrInvalidQoS},
		{"bad filter", SubscribePacket{PacketID: 1, Subscriptions: []Subscription{{TopicFilter: "a/#/b"}}}, ErrInvalidTopicFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.packet.Validate(), tt.err)
		})
	}
}

func TestSubscribePacketDecodeReservedBits(t *testing.T) {
	data := []byte{0x82, 0x06, 0x00, 0x07, 0x00, 0x01, 'a', 0x04}
	_, _, err := ReadPacket(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, ErrInvalidSubscribeByte)
}
