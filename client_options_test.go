package mqttlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := defaultOptions()

	assert.Equal(t, 8, opts.maxRequests)
	assert.Equal(t, 512, opts.txBufferSize)
	assert.Equal(t, 512, opts.rxBufferSize)
	assert.Equal(t, 8, opts.flushQueue)
	assert.Equal(t, 10*time.Second, opts.requestTimeout)
	assert.Equal(t, 3, opts.maxRetries)
	assert.Equal(t, 10*time.Second, opts.connectTimeout)
	assert.Zero(t, opts.pingTimeout)
	assert.NotNil(t, opts.logger)
	assert.NotNil(t, opts.metrics)
	assert.NotNil(t, opts.clock)
	assert.Equal(t, 100*time.Millisecond, opts.tickInterval)
	assert.Equal(t, 16, opts.sendQueueLen)
}

func TestWithMaxRequests(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"one", 1, 1},
		{"maximum", 65535, 65535},
		{"zero ignored", 0, DefaultMaxRequests},
		{"negative ignored", -1, DefaultMaxRequests},
		{"too large ignored", 65536, DefaultMaxRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyOptions(WithMaxRequests(tt.in)).maxRequests)
		})
	}
}

func TestWithBufferSizes(t *testing.T) {
	opts := applyOptions(WithTxBufferSize(4096), WithRxBufferSize(2048))
	assert.Equal(t, 4096, opts.txBufferSize)
	assert.Equal(t, 2048, opts.rxBufferSize)

	opts = applyOptions(WithTxBufferSize(1), WithRxBufferSize(0))
	assert.Equal(t, minBufferSize, opts.txBufferSize)
	assert.Equal(t, minBufferSize, opts.rxBufferSize)
}

func TestWithFlushQueue(t *testing.T) {
	assert.Equal(t, 32, applyOptions(WithFlushQueue(32)).flushQueue)
	assert.Zero(t, applyOptions(WithFlushQueue(0)).flushQueue)
	assert.Zero(t, applyOptions(WithFlushQueue(-5)).flushQueue)
}

func TestWithRetries(t *testing.T) {
	opts := applyOptions(WithRequestTimeout(2*time.Second), WithMaxRetries(0))
	assert.Equal(t, 2*time.Second, opts.requestTimeout)
	assert.Zero(t, opts.maxRetries)

	opts = applyOptions(WithRequestTimeout(0), WithMaxRetries(-1))
	assert.Equal(t, DefaultRequestTimeout, opts.requestTimeout)
	assert.Zero(t, opts.maxRetries)
}

func TestWithTimeouts(t *testing.T) {
	opts := applyOptions(
		WithConnectTimeout(3*time.Second),
		WithPingTimeout(4*time.Second),
		WithDialTimeout(5*time.Second),
		WithTickInterval(50*time.Millisecond),
	)
	assert.Equal(t, 3*time.Second, opts.connectTimeout)
	assert.Equal(t, 4*time.Second, opts.pingTimeout)
	assert.Equal(t, 5*time.Second, opts.dialTimeout)
	assert.Equal(t, 50*time.Millisecond, opts.tickInterval)

	opts = applyOptions(
		WithConnectTimeout(0),
		WithPingTimeout(-time.Second),
		WithDialTimeout(0),
		WithTickInterval(0),
	)
	assert.Equal(t, DefaultConnectTimeout, opts.connectTimeout)
	assert.Zero(t, opts.pingTimeout)
	assert.Equal(t, DefaultConnectTimeout, opts.dialTimeout)
	assert.Equal(t, DefaultTickInterval, opts.tickInterval)
}

func TestWithSendQueueLen(t *testing.T) {
	assert.Equal(t, 64, applyOptions(WithSendQueueLen(64)).sendQueueLen)
	assert.Equal(t, DefaultSendQueueLen, applyOptions(WithSendQueueLen(0)).sendQueueLen)
}

func TestWithAmbient(t *testing.T) {
	logger := NewStdLogger(nil, LogLevelDebug)
	metrics := NewMemoryMetrics()
	fixed := time.Unix(100, 0)

	opts := applyOptions(
		WithLogger(logger),
		WithMetrics(metrics),
		WithClock(func() time.Time { return fixed }),
	)
	assert.Same(t, logger, opts.logger)
	assert.Same(t, metrics, opts.metrics)
	assert.Equal(t, fixed, opts.clock())

	t.Run("nil values keep defaults", func(t *testing.T) {
		opts := applyOptions(WithLogger(nil), WithMetrics(nil), WithClock(nil))
		assert.NotNil(t, opts.logger)
		assert.NotNil(t, opts.metrics)
		assert.NotNil(t, opts.clock)
	})
}

func TestOptionsOverride(t *testing.T) {
	opts := applyOptions(WithMaxRetries(1), WithMaxRetries(5))
	assert.Equal(t, 5, opts.maxRetries)
}
