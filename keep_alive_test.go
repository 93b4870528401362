package mqttlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeepAliveDisabled(t *testing.T) {
	var k keepAlive
	k.start(0, 0)

	now := time.Unix(1000, 0)
	assert.False(t, k.enabled())
	assert.False(t, k.due(now.Add(time.Hour)))
}

func TestKeepAliveCycle(t *testing.T) {
	start := time.Unix(1000, 0)

	var k keepAlive
	k.activity(start)
	k.start(10*time.Second, 0)
	assert.Equal(t, 10*time.Second, k.pingTimeout, "ping timeout defaults to the interval")

	assert.False(t, k.due(start.Add(9*time.Second)))
	assert.True(t, k.due(start.Add(10*time.Second)))

	k.activity(start.Add(5 * time.Second))
	assert.False(t, k.due(start.Add(10*time.Second)), "sending resets idleness")

	sentAt := start.Add(15 * time.Second)
	k.pingSent(sentAt)
	assert.False(t, k.due(sentAt.Add(time.Hour)), "one PINGREQ outstanding at a time")
	assert.False(t, k.expired(sentAt.Add(9*time.Second)))

	rtt, ok := k.pong(sentAt.Add(40 * time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 40*time.Millisecond, rtt)

	_, ok = k.pong(sentAt.Add(time.Second))
	assert.False(t, ok, "unsolicited PINGRESP")
}

func TestKeepAliveExpired(t *testing.T) {
	start := time.Unix(1000, 0)

	var k keepAlive
	k.start(10*time.Second, 2*time.Second)
	k.pingSent(start)

	assert.False(t, k.expired(start.Add(time.Second)))
	assert.True(t, k.expired(start.Add(2*time.Second)))
}

func TestKeepAliveStop(t *testing.T) {
	var k keepAlive
	k.start(time.Second, 0)
	k.pingSent(time.Unix(1000, 0))

	k.stop()
	assert.False(t, k.enabled())
	assert.False(t, k.expired(time.Unix(2000, 0)))
}
