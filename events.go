package mqttlite

import "time"

// EventType identifies the kind of an Event.
type EventType int

const (
	EventConnect EventType = iota + 1
	EventSubscribe
	EventUnsubscribe
	EventPublish
	EventPublishRecv
	EventDisconnect
	EventKeepAlive
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventSubscribe:
		return "subscribe"
	case EventUnsubscribe:
		return "unsubscribe"
	case EventPublish:
		return "publish"
	case EventPublishRecv:
		return "publish_recv"
	case EventDisconnect:
		return "disconnect"
	case EventKeepAlive:
		return "keep_alive"
	default:
		return "unknown"
	}
}

// Event is delivered to the session's EventHandler. The set of events is
// closed: switch on the concrete type or on Type().
type Event interface {
	Type() EventType
	event()
}

// EventHandler receives every event of a session. It runs on the goroutine
// that drives the Client and may call back into it.
type EventHandler func(c *Client, e Event)

// ConnectEvent reports the outcome of Connect.
type ConnectEvent struct {
	Status ConnStatus
}

// Err returns nil for an accepted connection and a *ConnectError otherwise.
func (e *ConnectEvent) Err() error {
	if e.Status.Accepted() {
		return nil
	}
	return NewConnectError(e.Status)
}

// SubscribeEvent reports the outcome of Subscribe.
type SubscribeEvent struct {
	Topic string
	QoS   byte

	// GrantedQoS is the maximum QoS the broker granted.
	GrantedQoS byte

	Arg any
	Err error
}

// UnsubscribeEvent reports the outcome of Unsubscribe.
type UnsubscribeEvent struct {
	Topic string
	Arg   any
	Err   error
}

// PublishEvent reports the outcome of Publish. For QoS 0 it means the bytes
// were flushed by the transport.
type PublishEvent struct {
	Topic    string
	QoS      byte
	PacketID uint16
	Arg      any
	Err      error
}

// PublishRecvEvent carries an application message from the broker.
type PublishRecvEvent struct {
	Topic   string
	Payload []byte
	DUP     bool
	QoS     byte
	Retain  bool
}

// Message returns the event as a Message.
func (e *PublishRecvEvent) Message() *Message {
	return &Message{
		Topic:   e.Topic,
		Payload: e.Payload,
		QoS:     e.QoS,
		Retain:  e.Retain,
		DUP:     e.DUP,
	}
}

// DisconnectEvent reports the end of a session. Accepted is true when the
// session had reached StateMQTTConnected. Err is nil for a requested
// disconnect and a *ConnectionLostError otherwise.
type DisconnectEvent struct {
	Accepted bool
	Err      error
}

// KeepAliveEvent reports a PINGRESP and the measured round trip.
type KeepAliveEvent struct {
	RTT time.Duration
}

func (*ConnectEvent) Type() EventType     { return EventConnect }
func (*SubscribeEvent) Type() EventType   { return EventSubscribe }
func (*UnsubscribeEvent) Type() EventType { return EventUnsubscribe }
func (*PublishEvent) Type() EventType     { return EventPublish }
func (*PublishRecvEvent) Type() EventType { return EventPublishRecv }
func (*DisconnectEvent) Type() EventType  { return EventDisconnect }
func (*KeepAliveEvent) Type() EventType   { return EventKeepAlive }

func (*ConnectEvent) event()     {}
func (*SubscribeEvent) event()   {}
func (*UnsubscribeEvent) event() {}
func (*PublishEvent) event()     {}
func (*PublishRecvEvent) event() {}
func (*DisconnectEvent) event()  {}
func (*KeepAliveEvent) event()   {}

// dispatcher delivers events one at a time. Events emitted while an entry
// point or a handler is running are queued and delivered, in order, once the
// outermost entry point returns.
type dispatcher struct {
	handler     EventHandler
	queue       []Event
	depth       int
	dispatching bool
}

// begin marks entry into the engine.
func (d *dispatcher) begin() {
	d.depth++
}

// end marks exit from the engine and delivers queued events when leaving
// the outermost call.
func (d *dispatcher) end(c *Client) {
	d.depth--
	if d.depth == 0 {
		d.deliver(c)
	}
}

func (d *dispatcher) emit(e Event) {
	if d.handler == nil {
		return
	}
	d.queue = append(d.queue, e)
}

func (d *dispatcher) deliver(c *Client) {
	if d.dispatching || len(d.queue) == 0 {
		return
	}

	d.dispatching = true
	defer func() {
		clear(d.queue)
		d.queue = d.queue[:0]
		d.dispatching = false
	}()

	for i := 0; i < len(d.queue); i++ {
		// A handler may start a new session with a different handler.
		if h := d.handler; h != nil {
			h(c, d.queue[i])
		}
	}
}
