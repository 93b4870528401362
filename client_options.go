package mqttlite

import (
	"time"
)

// Defaults for a new Client.
const (
	DefaultMaxRequests    = 8
	DefaultTxBufferSize   = 512
	DefaultRxBufferSize   = 512
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultConnectTimeout = 10 * time.Second
	DefaultTickInterval   = 100 * time.Millisecond
	DefaultSendQueueLen   = 16

	// minBufferSize fits a fixed header plus a minimal body.
	minBufferSize = 16
)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// Capacity and buffers
	maxRequests  int
	txBufferSize int
	rxBufferSize int
	flushQueue   int

	// Timeouts and retries
	requestTimeout time.Duration
	maxRetries     int
	connectTimeout time.Duration
	pingTimeout    time.Duration

	// Ambient
	logger  Logger
	metrics Metrics
	clock   func() time.Time

	// Runner
	tickInterval time.Duration
	sendQueueLen int
	dialTimeout  time.Duration
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		maxRequests:    DefaultMaxRequests,
		txBufferSize:   DefaultTxBufferSize,
		rxBufferSize:   DefaultRxBufferSize,
		flushQueue:     DefaultMaxRequests,
		requestTimeout: DefaultRequestTimeout,
		maxRetries:     DefaultMaxRetries,
		connectTimeout: DefaultConnectTimeout,
		logger:         NewNoOpLogger(),
		metrics:        NoOpMetrics{},
		clock:          time.Now,
		tickInterval:   DefaultTickInterval,
		sendQueueLen:   DefaultSendQueueLen,
		dialTimeout:    DefaultConnectTimeout,
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithMaxRequests sets the number of request slots, which bounds in-flight
// QoS 1/2 publishes, subscribes and unsubscribes. Values outside 1..65535
// are ignored.
func WithMaxRequests(n int) Option {
	return func(o *clientOptions) {
		if n > 0 && n <= maxUint16 {
			o.maxRequests = n
		}
	}
}

// WithTxBufferSize sets the largest outbound packet the client will encode.
func WithTxBufferSize(n int) Option {
	return func(o *clientOptions) {
		o.txBufferSize = max(n, minBufferSize)
	}
}

// WithRxBufferSize sets the largest inbound packet the client will buffer.
func WithRxBufferSize(n int) Option {
	return func(o *clientOptions) {
		o.rxBufferSize = max(n, minBufferSize)
	}
}

// WithFlushQueue sets how many QoS 0 publishes can wait for a flushed
// PublishEvent at once. Zero disables QoS 0 publish events.
func WithFlushQueue(n int) Option {
	return func(o *clientOptions) {
		o.flushQueue = max(n, 0)
	}
}

// WithRequestTimeout sets how long a request waits for its acknowledgement
// before it is retransmitted.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithMaxRetries sets how many times a request is retransmitted before it
// fails with ErrRetriesExhausted.
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) {
		o.maxRetries = max(n, 0)
	}
}

// WithConnectTimeout sets how long to wait for CONNACK after CONNECT.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithPingTimeout sets how long to wait for PINGRESP. Zero means the
// keep-alive interval.
func WithPingTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.pingTimeout = max(d, 0)
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics backend.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock sets the time source used for deadlines.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithTickInterval sets how often a Runner calls Tick.
func WithTickInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithSendQueueLen sets how many packets a Runner buffers for its writer.
func WithSendQueueLen(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.sendQueueLen = n
		}
	}
}

// WithDialTimeout sets how long a Runner waits for its Dialer.
func WithDialTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// applyOptions applies options to the default configuration.
func applyOptions(opts ...Option) *clientOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
