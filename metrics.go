package mqttlite

import (
	"strconv"
	"time"
)

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics is a factory for named, labelled instruments.
type Metrics interface {
	Counter(name string, labels MetricLabels) Counter
	Gauge(name string, labels MetricLabels) Gauge
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	Inc()
	Add(delta float64)
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Value() float64
}

// Histogram tracks the distribution of values.
type Histogram interface {
	Observe(value float64)

	// ObserveDuration records a duration in seconds.
	ObserveDuration(d time.Duration)

	Count() uint64
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

func (NoOpMetrics) Counter(_ string, _ MetricLabels) Counter     { return noOpInstrument{} }
func (NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge         { return noOpInstrument{} }
func (NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram { return noOpInstrument{} }

type noOpInstrument struct{}

func (noOpInstrument) Inc()                            {}
func (noOpInstrument) Dec()                            {}
func (noOpInstrument) Set(_ float64)                   {}
func (noOpInstrument) Add(_ float64)                   {}
func (noOpInstrument) Value() float64                  { return 0 }
func (noOpInstrument) Observe(_ float64)               {}
func (noOpInstrument) ObserveDuration(_ time.Duration) {}
func (noOpInstrument) Count() uint64                   { return 0 }
func (noOpInstrument) Sum() float64                    { return 0 }

// Standard metric names for the client engine.
const (
	MetricPacketsSent       = "mqtt_client_packets_sent_total"
	MetricPacketsReceived   = "mqtt_client_packets_received_total"
	MetricBytesSent         = "mqtt_client_bytes_sent_total"
	MetricBytesReceived     = "mqtt_client_bytes_received_total"
	MetricPendingRequests   = "mqtt_client_pending_requests"
	MetricRetransmissions   = "mqtt_client_retransmissions_total"
	MetricRequestTimeouts   = "mqtt_client_request_timeouts_total"
	MetricUnexpectedAcks    = "mqtt_client_unexpected_acks_total"
	MetricConnectionResults = "mqtt_client_connect_results_total"
	MetricConnectionsLost   = "mqtt_client_connections_lost_total"
	MetricKeepAliveRTT      = "mqtt_client_keepalive_rtt_seconds"
	MetricMessagesSent      = "mqtt_client_messages_sent_total"
	MetricMessagesReceived  = "mqtt_client_messages_received_total"
)

// Standard metric labels.
const (
	LabelPacketType = "packet_type"
	LabelQoS        = "qos"
	LabelStatus     = "status"
	LabelKind       = "kind"
)

// ClientMetrics records engine activity into a Metrics backend.
type ClientMetrics struct {
	metrics Metrics
}

// NewClientMetrics wraps m. A nil m records nothing.
func NewClientMetrics(m Metrics) *ClientMetrics {
	if m == nil {
		m = NoOpMetrics{}
	}
	return &ClientMetrics{metrics: m}
}

// PacketSent records an encoded packet handed to the transport.
func (c *ClientMetrics) PacketSent(pt PacketType, n int) {
	c.metrics.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: pt.String()}).Inc()
	c.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
}

// PacketReceived records a decoded inbound packet.
func (c *ClientMetrics) PacketReceived(pt PacketType) {
	c.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: pt.String()}).Inc()
}

// BytesReceived records raw inbound bytes.
func (c *ClientMetrics) BytesReceived(n int) {
	c.metrics.Counter(MetricBytesReceived, nil).Add(float64(n))
}

// PendingRequests sets the number of occupied request slots.
func (c *ClientMetrics) PendingRequests(n int) {
	c.metrics.Gauge(MetricPendingRequests, nil).Set(float64(n))
}

// Retransmission records a request sent again after its deadline.
func (c *ClientMetrics) Retransmission(kind string) {
	c.metrics.Counter(MetricRetransmissions, MetricLabels{LabelKind: kind}).Inc()
}

// RequestTimeout records a request that exhausted its retries.
func (c *ClientMetrics) RequestTimeout(kind string) {
	c.metrics.Counter(MetricRequestTimeouts, MetricLabels{LabelKind: kind}).Inc()
}

// UnexpectedAck records an acknowledgement with no matching request.
func (c *ClientMetrics) UnexpectedAck(pt PacketType) {
	c.metrics.Counter(MetricUnexpectedAcks, MetricLabels{LabelPacketType: pt.String()}).Inc()
}

// ConnectResult records the outcome of a connection attempt.
func (c *ClientMetrics) ConnectResult(status ConnStatus) {
	labels := MetricLabels{LabelStatus: strconv.FormatUint(uint64(status), 16)}
	c.metrics.Counter(MetricConnectionResults, labels).Inc()
}

// ConnectionLost records an abrupt disconnect.
func (c *ClientMetrics) ConnectionLost() {
	c.metrics.Counter(MetricConnectionsLost, nil).Inc()
}

// KeepAliveRTT records a PINGREQ round trip.
func (c *ClientMetrics) KeepAliveRTT(d time.Duration) {
	c.metrics.Histogram(MetricKeepAliveRTT, nil).ObserveDuration(d)
}

// MessageSent records an application PUBLISH issued by the caller.
func (c *ClientMetrics) MessageSent(qos byte) {
	c.metrics.Counter(MetricMessagesSent, qosLabel(qos)).Inc()
}

// MessageReceived records an application message delivered to the handler.
func (c *ClientMetrics) MessageReceived(qos byte) {
	c.metrics.Counter(MetricMessagesReceived, qosLabel(qos)).Inc()
}

func qosLabel(qos byte) MetricLabels {
	return MetricLabels{LabelQoS: strconv.Itoa(int(qos))}
}
