package mqttlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyCheck(t *testing.T) {
	policy := retryPolicy{timeout: time.Second, maxRetries: 2}
	start := time.Unix(1000, 0)

	s := &requestSlot{}
	policy.arm(s, start)

	assert.Equal(t, retryNone, policy.check(s, start.Add(999*time.Millisecond)))

	now := start.Add(time.Second)
	assert.Equal(t, retryResend, policy.check(s, now))
	assert.Equal(t, 1, s.retries)
	assert.Equal(t, now.Add(time.Second), s.deadline)

	now = now.Add(time.Second)
	assert.Equal(t, retryResend, policy.check(s, now))
	assert.Equal(t, 2, s.retries)

	now = now.Add(time.Second)
	assert.Equal(t, retryExhausted, policy.check(s, now))
}

func TestRetryPolicyZeroRetries(t *testing.T) {
	policy := retryPolicy{timeout: time.Second}
	start := time.Unix(1000, 0)

	s := &requestSlot{}
	policy.arm(s, start)
	assert.Equal(t, retryExhausted, policy.check(s, start.Add(time.Second)))
}

func TestRetryPolicyRestart(t *testing.T) {
	policy := retryPolicy{timeout: time.Second, maxRetries: 1}
	start := time.Unix(1000, 0)

	s := &requestSlot{retries: 1}
	policy.restart(s, start)
	assert.Zero(t, s.retries)
	assert.Equal(t, start.Add(time.Second), s.deadline)
}

func TestAckExpectation(t *testing.T) {
	tests := []struct {
		pt    PacketType
		kind  requestKind
		state requestState
		ok    bool
	}{
		{PacketPUBACK, requestPublish, awaitPuback, true},
		{PacketPUBREC, requestPublish, awaitPubrec, true},
		{PacketPUBCOMP, requestPublish, awaitPubcomp, true},
		{PacketSUBACK, requestSubscribe, awaitSuback, true},
		{PacketUNSUBACK, requestUnsubscribe, awaitUnsuback, true},
		{PacketPUBREL, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.pt.String(), func(t *testing.T) {
			kind, state, ok := ackExpectation(tt.pt)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.state, state)
		})
	}
}

func TestInitialState(t *testing.T) {
	assert.Equal(t, awaitPuback, initialState(1))
	assert.Equal(t, awaitPubrec, initialState(2))
}

func TestRequestPacket(t *testing.T) {
	t.Run("publish first transmission", func(t *testing.T) {
		s := &requestSlot{packetID: 3, state: awaitPuback, topic: "a", qos: 1, retain: true, payload: []byte("x")}
		p, ok := requestPacket(s, false).(*PublishPacket)
		require.True(t, ok)
		assert.Equal(t, &PublishPacket{Topic: "a", Payload: []byte("x"), QoS: 1, Retain: true, PacketID: 3}, p)
	})

	t.Run("publish retransmission sets DUP", func(t *testing.T) {
		s := &requestSlot{packetID: 3, state: awaitPubrec, topic: "a", qos: 2}
		p, ok := requestPacket(s, true).(*PublishPacket)
		require.True(t, ok)
		assert.True(t, p.DUP)
		assert.Equal(t, byte(2), p.QoS)
	})

	t.Run("pubrel", func(t *testing.T) {
		s := &requestSlot{packetID: 4, state: awaitPubcomp}
		assert.Equal(t, &PubrelPacket{PacketID: 4}, requestPacket(s, true))
	})

	t.Run("subscribe resent unchanged", func(t *testing.T) {
		s := &requestSlot{packetID: 5, state: awaitSuback, topic: "a/#", qos: 1}
		assert.Equal(t, requestPacket(s, false), requestPacket(s, true))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		s := &requestSlot{packetID: 6, state: awaitUnsuback, topic: "a/#"}
		assert.Equal(t, &UnsubscribePacket{PacketID: 6, TopicFilters: []string{"a/#"}}, requestPacket(s, false))
	})

	t.Run("idle", func(t *testing.T) {
		assert.Nil(t, requestPacket(&requestSlot{}, false))
	})
}

func TestFlushTracker(t *testing.T) {
	f := newFlushTracker(2)

	assert.True(t, f.add(flushWaiter{expectedSent: 10, topic: "a"}))
	assert.True(t, f.add(flushWaiter{expectedSent: 20, topic: "b"}))
	assert.False(t, f.add(flushWaiter{expectedSent: 30, topic: "c"}), "ring is full")
	assert.Equal(t, 2, f.len())

	_, ok := f.pop(9)
	assert.False(t, ok)

	w, ok := f.pop(15)
	require.True(t, ok)
	assert.Equal(t, "a", w.topic)

	_, ok = f.pop(15)
	assert.False(t, ok)

	assert.True(t, f.add(flushWaiter{expectedSent: 30, topic: "c"}), "wraps around")

	w, ok = f.pop(30)
	require.True(t, ok)
	assert.Equal(t, "b", w.topic)
	w, ok = f.pop(30)
	require.True(t, ok)
	assert.Equal(t, "c", w.topic)
	assert.Zero(t, f.len())

	f.add(flushWaiter{expectedSent: 40})
	f.reset()
	assert.Zero(t, f.len())
	_, ok = f.pop(100)
	assert.False(t, ok)
}

func TestInboundQoS2(t *testing.T) {
	q := newInboundQoS2(2)

	assert.False(t, q.contains(1))
	assert.True(t, q.add(1))
	assert.True(t, q.add(2))
	assert.False(t, q.add(3))
	assert.True(t, q.contains(1))

	q.remove(1)
	assert.False(t, q.contains(1))
	assert.True(t, q.contains(2))
	q.remove(42)

	q.reset()
	assert.False(t, q.contains(2))
}
