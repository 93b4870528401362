package mqttlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType(t *testing.T) {
	tests := []struct {
		event Event
		typ   EventType
		name  string
	}{
		{&ConnectEvent{}, EventConnect, "connect"},
		{&SubscribeEvent{}, EventSubscribe, "subscribe"},
		{&UnsubscribeEvent{}, EventUnsubscribe, "unsubscribe"},
		{&PublishEvent{}, EventPublish, "publish"},
		{&PublishRecvEvent{}, EventPublishRecv, "publish_recv"},
		{&DisconnectEvent{}, EventDisconnect, "disconnect"},
		{&KeepAliveEvent{}, EventKeepAlive, "keep_alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.event.Type())
			assert.Equal(t, tt.name, tt.typ.String())
		})
	}

	assert.Equal(t, "unknown", EventType(0).String())
}

func TestConnectEventErr(t *testing.T) {
	assert.NoError(t, (&ConnectEvent{Status: ConnStatusAccepted}).Err())

	err := (&ConnectEvent{Status: ConnStatusRefusedBadUsernamePassword}).Err()
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ConnStatusRefusedBadUsernamePassword, connErr.Status)
}

func TestPublishRecvEventMessage(t *testing.T) {
	e := &PublishRecvEvent{Topic: "a/b", Payload: []byte("x"), DUP: true, QoS: 2, Retain: true}

	assert.Equal(t, &Message{Topic: "a/b", Payload: []byte("x"), DUP: true, QoS: 2, Retain: true}, e.Message())
}

func TestDispatcher(t *testing.T) {
	t.Run("delivers after outermost end", func(t *testing.T) {
		var got []Event
		d := dispatcher{handler: func(_ *Client, e Event) { got = append(got, e) }}

		d.begin()
		d.begin()
		d.emit(&ConnectEvent{})
		d.end(nil)
		assert.Empty(t, got)

		d.emit(&KeepAliveEvent{})
		d.end(nil)
		assert.Equal(t, []Event{&ConnectEvent{}, &KeepAliveEvent{}}, got)
	})

	t.Run("events emitted by a handler follow in order", func(t *testing.T) {
		var got []EventType
		var d dispatcher
		d.handler = func(_ *Client, e Event) {
			got = append(got, e.Type())
			if e.Type() == EventConnect {
				d.begin()
				d.emit(&SubscribeEvent{})
				d.emit(&PublishEvent{})
				d.end(nil)
				assert.Len(t, got, 1, "nested events wait for the current one")
			}
		}

		d.begin()
		d.emit(&ConnectEvent{})
		d.emit(&DisconnectEvent{})
		d.end(nil)

		assert.Equal(t, []EventType{EventConnect, EventDisconnect, EventSubscribe, EventPublish}, got)
		assert.Empty(t, d.queue)
	})

	t.Run("nil handler drops events", func(t *testing.T) {
		var d dispatcher
		d.begin()
		d.emit(&ConnectEvent{})
		d.end(nil)
		assert.Empty(t, d.queue)
	})

	t.Run("handler replaced mid-delivery", func(t *testing.T) {
		var first, second int
		var d dispatcher
		d.handler = func(_ *Client, _ Event) {
			first++
			d.handler = func(_ *Client, _ Event) { second++ }
		}

		d.begin()
		d.emit(&ConnectEvent{})
		d.emit(&ConnectEvent{})
		d.end(nil)

		assert.Equal(t, 1, first)
		assert.Equal(t, 1, second)
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
		open  bool
	}{
		{StateDisconnected, "disconnected", false},
		{StateTCPConnecting, "tcp_connecting", false},
		{StateTCPDisconnecting, "tcp_disconnecting", false},
		{StateMQTTConnecting, "mqtt_connecting", true},
		{StateMQTTConnected, "mqtt_connected", true},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
			assert.Equal(t, tt.open, tt.state.transportOpen())
		})
	}
}

func TestConnStatus(t *testing.T) {
	assert.True(t, ConnStatusAccepted.Accepted())
	assert.False(t, ConnStatusTimeout.Accepted())

	assert.True(t, ConnStatusRefusedNotAuthorized.IsReturnCode())
	assert.False(t, ConnStatus(6).IsReturnCode())
	assert.False(t, ConnStatusTCPFailed.IsReturnCode())

	assert.Equal(t, "unknown status 0x06", ConnStatus(6).String())
	assert.Equal(t, "connection timeout", ConnStatusTimeout.String())

	assert.True(t, validSubackCode(SubackMaxQoS2))
	assert.True(t, validSubackCode(SubackFailure))
	assert.False(t, validSubackCode(0x03))
}
