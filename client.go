package mqttlite

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Client is the protocol engine for one MQTT 3.1.1 session.
//
// A Client is not safe for concurrent use. Every method, including the
// transport entry points Opened, Received, Sent, Closed and Tick, must be
// called from a single goroutine. Runner provides that goroutine for
// programs that need one.
type Client struct {
	transport Transport
	options   *clientOptions
	log       Logger
	metrics   *ClientMetrics
	retry     retryPolicy
	now       func() time.Time

	state    State
	info     ClientInfo
	events   dispatcher
	arg      any
	accepted bool
	closed   bool

	requests  *requestTable
	flushes   *flushTracker
	inbound   *inboundQoS2
	keepAlive keepAlive
	decoder   *Decoder
	txBuf     bytesBuffer
	scratch   []slotRef

	connectDeadline time.Time

	// Cumulative byte counts for the current connection.
	queued  uint64
	flushed uint64
}

// NewClient creates a session bound to transport. The session starts in
// StateDisconnected.
func NewClient(transport Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}

	o := applyOptions(opts...)

	c := &Client{
		transport: transport,
		options:   o,
		log:       o.logger,
		metrics:   NewClientMetrics(o.metrics),
		retry:     retryPolicy{timeout: o.requestTimeout, maxRetries: o.maxRetries},
		now:       o.clock,
		requests:  newRequestTable(o.maxRequests),
		inbound:   newInboundQoS2(o.maxRequests),
		decoder:   NewDecoder(o.rxBufferSize),
		txBuf:     bytesBuffer{data: make([]byte, 0, o.txBufferSize)},
		scratch:   make([]slotRef, 0, o.maxRequests),
	}

	if o.flushQueue > 0 {
		c.flushes = newFlushTracker(o.flushQueue)
	}

	return c, nil
}

// Close destroys the session. The transport connection must already be
// torn down.
func (c *Client) Close() error {
	if c.closed {
		return ErrClientClosed
	}

	if c.state != StateDisconnected {
		return fmt.Errorf("%w: close in state %s", ErrInvalidState, c.state)
	}

	c.closed = true
	c.events.handler = nil
	return nil
}

// Arg returns the session argument.
func (c *Client) Arg() any {
	return c.arg
}

// SetArg sets the session argument.
func (c *Client) SetArg(arg any) {
	c.arg = arg
}

// PendingRequests returns the number of occupied request slots.
func (c *Client) PendingRequests() int {
	return c.requests.inUse()
}

// ClientID returns the identifier of the current or last session.
func (c *Client) ClientID() string {
	return c.info.ID
}

// Connect starts a session with the broker at host:port. The outcome is
// delivered to handler as a ConnectEvent.
func (c *Client) Connect(host string, port uint16, info ClientInfo, handler EventHandler) error {
	c.events.begin()
	defer c.events.end(c)

	if c.closed {
		return ErrClientClosed
	}

	if c.state != StateDisconnected {
		return fmt.Errorf("%w: connect in state %s", ErrInvalidState, c.state)
	}

	if err := info.Validate(); err != nil {
		return err
	}

	size, err := encodedSize(info.connectPacket())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidClientInfo, err)
	}
	if size > c.options.txBufferSize {
		return ErrPacketTooLarge
	}

	c.info = info
	c.events.handler = handler
	c.log = c.options.logger.WithFields(LogFields{LogFieldClientID: info.ID})
	if info.KeepAlive == 0 {
		c.log.Warn("keep-alive disabled", nil)
	}

	c.resetConnection()
	c.setState(StateTCPConnecting)

	c.log.Info("connecting", LogFields{LogFieldRemoteAddr: fmt.Sprintf("%s:%d", host, port)})

	if err := c.transport.Open(host, port); err != nil {
		if c.state == StateTCPConnecting {
			c.setState(StateDisconnected)
		}
		return fmt.Errorf("open transport: %w", err)
	}

	return nil
}

// Disconnect ends the session. When connected a DISCONNECT is sent first;
// during a connection attempt the attempt is aborted. Outstanding requests
// fail with ErrDisconnected. A DisconnectEvent follows once the transport
// reports Closed.
func (c *Client) Disconnect() error {
	c.events.begin()
	defer c.events.end(c)

	if c.closed {
		return ErrClientClosed
	}

	switch c.state {
	case StateDisconnected:
		return ErrNotConnected
	case StateTCPDisconnecting:
		return fmt.Errorf("%w: disconnect in progress", ErrInvalidState)
	case StateMQTTConnected:
		if err := c.send(&DisconnectPacket{}); err != nil {
			c.log.Debug("DISCONNECT not sent", LogFields{LogFieldError: err.Error()})
		}
	}

	c.setState(StateTCPDisconnecting)
	c.keepAlive.stop()
	c.failPending(ErrDisconnected)

	if err := c.transport.Close(); err != nil {
		c.log.Debug("transport close failed", LogFields{LogFieldError: err.Error()})
		if c.state == StateTCPDisconnecting {
			c.finishDisconnect()
		}
	}

	return nil
}

// Subscribe asks the broker for messages matching topic at up to qos. The
// outcome is delivered as a SubscribeEvent carrying arg.
func (c *Client) Subscribe(topic string, qos byte, arg any) error {
	c.events.begin()
	defer c.events.end(c)

	if err := c.checkConnected(); err != nil {
		return err
	}

	if err := ValidateTopicFilter(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	if qos > 2 {
		return ErrInvalidQoS
	}

	slot, err := c.requests.allocate(requestSubscribe, awaitSuback)
	if err != nil {
		return err
	}
	slot.topic, slot.qos, slot.arg = topic, qos, arg

	return c.issue(slot)
}

// Unsubscribe removes a subscription. The outcome is delivered as an
// UnsubscribeEvent carrying arg.
func (c *Client) Unsubscribe(topic string, arg any) error {
	c.events.begin()
	defer c.events.end(c)

	if err := c.checkConnected(); err != nil {
		return err
	}

	if err := ValidateTopicFilter(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	slot, err := c.requests.allocate(requestUnsubscribe, awaitUnsuback)
	if err != nil {
		return err
	}
	slot.topic, slot.arg = topic, arg

	return c.issue(slot)
}

// Publish sends an application message. QoS 1 and 2 publishes occupy a
// request slot until acknowledged and the payload is copied for
// retransmission. The outcome is delivered as a PublishEvent carrying arg;
// for QoS 0 the event means the bytes were flushed.
func (c *Client) Publish(topic string, payload []byte, qos byte, retain bool, arg any) error {
	c.events.begin()
	defer c.events.end(c)

	if err := c.checkConnected(); err != nil {
		return err
	}

	if err := ValidateTopicName(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	if qos > 2 {
		return ErrInvalidQoS
	}

	if qos == 0 {
		return c.publishQoS0(topic, payload, retain, arg)
	}

	slot, err := c.requests.allocate(requestPublish, initialState(qos))
	if err != nil {
		return err
	}
	slot.topic, slot.qos, slot.retain, slot.arg = topic, qos, retain, arg
	slot.payload = append(slot.payload[:0], payload...)

	if err := c.issue(slot); err != nil {
		return err
	}

	c.metrics.MessageSent(qos)
	return nil
}

func (c *Client) publishQoS0(topic string, payload []byte, retain bool, arg any) error {
	pkt := &PublishPacket{Topic: topic, Payload: payload, Retain: retain}
	if err := c.send(pkt); err != nil {
		c.dropOnSendFailure(err)
		return err
	}

	c.metrics.MessageSent(0)

	if c.flushes != nil {
		if !c.flushes.add(flushWaiter{expectedSent: c.queued, topic: topic, arg: arg}) {
			c.log.Debug("flush queue full, no publish event", LogFields{LogFieldTopic: topic})
		}
		c.drainFlushed()
	}

	return nil
}

// Opened is called by the transport when the connection requested by
// Transport.Open is established, or failed with err.
func (c *Client) Opened(err error) {
	c.events.begin()
	defer c.events.end(c)

	if c.state != StateTCPConnecting {
		c.log.Debug("ignoring transport open", LogFields{LogFieldState: c.state.String()})
		return
	}

	if err != nil {
		c.log.Warn("transport open failed", LogFields{LogFieldError: err.Error()})
		c.setState(StateDisconnected)
		c.connectFinished(ConnStatusTCPFailed)
		return
	}

	c.setState(StateMQTTConnecting)
	c.connectDeadline = c.now().Add(c.options.connectTimeout)

	if err := c.send(c.info.connectPacket()); err != nil {
		c.log.Warn("CONNECT not sent", LogFields{LogFieldError: err.Error()})
		c.refuse(ConnStatusTCPFailed)
	}
}

// Received is called by the transport with bytes read from the broker. b
// may hold any fragment of the stream and is not retained.
func (c *Client) Received(b []byte) {
	c.events.begin()
	defer c.events.end(c)

	if !c.state.transportOpen() {
		c.log.Debug("ignoring inbound bytes", LogFields{LogFieldState: c.state.String(), LogFieldBytes: len(b)})
		return
	}

	c.metrics.BytesReceived(len(b))

	for len(b) > 0 {
		n, err := c.decoder.Write(b)
		if err != nil {
			c.protocolFailure(err)
			return
		}
		b = b[n:]

		for {
			pkt, err := c.decoder.Next()
			if err != nil {
				c.protocolFailure(err)
				return
			}
			if pkt == nil {
				break
			}

			c.handlePacket(pkt)
			if !c.state.transportOpen() {
				return
			}
		}
	}
}

// Sent is called by the transport when n more bytes handed to
// Transport.Send have been flushed.
func (c *Client) Sent(n int) {
	c.events.begin()
	defer c.events.end(c)

	if n <= 0 {
		return
	}

	c.flushed += uint64(n)
	c.drainFlushed()
}

// Closed is called by the transport when the connection is gone, either
// after Transport.Close or because it dropped. err is nil for an orderly
// close.
func (c *Client) Closed(err error) {
	c.events.begin()
	defer c.events.end(c)

	switch c.state {
	case StateTCPDisconnecting:
		c.finishDisconnect()
	case StateTCPConnecting:
		c.setState(StateDisconnected)
		c.connectFinished(ConnStatusTCPFailed)
	case StateMQTTConnecting, StateMQTTConnected:
		if err == nil {
			err = ErrTransportClosed
		}
		c.lose(err, false)
	default:
		c.log.Debug("ignoring transport close", LogFields{LogFieldState: c.state.String()})
	}
}

// Tick advances timers. Call it periodically, at least several times per
// request timeout.
func (c *Client) Tick() {
	c.events.begin()
	defer c.events.end(c)

	now := c.now()

	switch c.state {
	case StateMQTTConnecting:
		if !now.Before(c.connectDeadline) {
			c.log.Warn("connect timeout", nil)
			c.refuse(ConnStatusTimeout)
		}
	case StateMQTTConnected:
		c.tickKeepAlive(now)
		if c.state == StateMQTTConnected {
			c.tickRequests(now)
		}
	}
}

func (c *Client) tickKeepAlive(now time.Time) {
	if c.keepAlive.expired(now) {
		c.lose(ErrKeepAliveTimeout, true)
		return
	}

	if !c.keepAlive.due(now) {
		return
	}

	if err := c.send(&PingreqPacket{}); err != nil {
		c.dropOnSendFailure(err)
		return
	}
	c.keepAlive.pingSent(now)
}

func (c *Client) tickRequests(now time.Time) {
	c.scratch = c.requests.active(c.scratch[:0])

	for _, ref := range c.scratch {
		if c.state != StateMQTTConnected {
			return
		}

		slot := c.requests.get(ref.index, ref.packetID)
		if slot == nil {
			continue
		}

		switch c.retry.check(slot, now) {
		case retryResend:
			c.log.Debug("retransmitting request", LogFields{
				LogFieldPacketID: slot.packetID,
				LogFieldState:    slot.state.String(),
				LogFieldRetries:  slot.retries,
			})
			c.metrics.Retransmission(slot.kind.String())

			if err := c.send(requestPacket(slot, true)); err != nil {
				c.dropOnSendFailure(err)
				return
			}
			slot.expectedSent = c.queued

		case retryExhausted:
			c.log.Warn("request timed out", LogFields{
				LogFieldPacketID: slot.packetID,
				LogFieldTopic:    slot.topic,
				LogFieldState:    slot.state.String(),
			})
			c.metrics.RequestTimeout(slot.kind.String())
			c.completeRequest(slot, ErrRetriesExhausted, 0)
		}
	}
}

func (c *Client) handlePacket(pkt Packet) {
	c.metrics.PacketReceived(pkt.Type())
	c.log.Debug("packet received", LogFields{LogFieldPacketType: pkt.Type().String()})

	if c.state == StateMQTTConnecting {
		connack, ok := pkt.(*ConnackPacket)
		if !ok {
			c.protocolFailure(fmt.Errorf("%s before CONNACK", pkt.Type()))
			return
		}
		c.handleConnack(connack)
		return
	}

	switch p := pkt.(type) {
	case *PublishPacket:
		c.handlePublish(p)
	case *PubrelPacket:
		c.handlePubrel(p)
	case *PubackPacket:
		c.handleAck(PacketPUBACK, p.PacketID, 0)
	case *PubrecPacket:
		c.handleAck(PacketPUBREC, p.PacketID, 0)
	case *PubcompPacket:
		c.handleAck(PacketPUBCOMP, p.PacketID, 0)
	case *UnsubackPacket:
		c.handleAck(PacketUNSUBACK, p.PacketID, 0)
	case *SubackPacket:
		c.handleAck(PacketSUBACK, p.PacketID, p.ReturnCodes[0])
	case *PingrespPacket:
		c.handlePingresp()
	default:
		c.protocolFailure(fmt.Errorf("unexpected %s from broker", pkt.Type()))
	}
}

func (c *Client) handleConnack(p *ConnackPacket) {
	if !p.ReturnCode.Accepted() {
		c.log.Warn("connection refused", LogFields{LogFieldStatus: p.ReturnCode.String()})
		c.refuse(p.ReturnCode)
		return
	}

	c.setState(StateMQTTConnected)
	c.accepted = true

	interval := time.Duration(c.info.keepAliveSeconds()) * time.Second
	c.keepAlive.start(interval, c.options.pingTimeout)

	c.log.Info("connected", LogFields{"session_present": p.SessionPresent})
	c.connectFinished(ConnStatusAccepted)
}

func (c *Client) handlePublish(p *PublishPacket) {
	switch p.QoS {
	case 1:
		if !c.reply(&PubackPacket{PacketID: p.PacketID}) {
			return
		}
	case 2:
		dup := c.inbound.contains(p.PacketID)
		if !dup && !c.inbound.add(p.PacketID) {
			c.log.Warn("inbound QoS 2 table full", LogFields{LogFieldPacketID: p.PacketID})
		}
		if !c.reply(&PubrecPacket{PacketID: p.PacketID}) {
			return
		}
		if dup {
			c.log.Debug("duplicate QoS 2 publish", LogFields{LogFieldPacketID: p.PacketID})
			return
		}
	}

	c.metrics.MessageReceived(p.QoS)
	c.events.emit(&PublishRecvEvent{
		Topic:   p.Topic,
		Payload: p.Payload,
		DUP:     p.DUP,
		QoS:     p.QoS,
		Retain:  p.Retain,
	})
}

func (c *Client) handlePubrel(p *PubrelPacket) {
	c.inbound.remove(p.PacketID)
	c.reply(&PubcompPacket{PacketID: p.PacketID})
}

// handleAck matches an acknowledgement to its request. code is the SUBACK
// return code and is ignored for other types.
func (c *Client) handleAck(pt PacketType, id uint16, code byte) {
	kind, state, _ := ackExpectation(pt)

	slot := c.requests.lookup(id, kind, state)
	if slot == nil {
		c.log.Debug("unexpected acknowledgement", LogFields{
			LogFieldPacketType: pt.String(),
			LogFieldPacketID:   id,
		})
		c.metrics.UnexpectedAck(pt)
		return
	}

	switch pt {
	case PacketPUBREC:
		slot.state = awaitPubcomp
		c.retry.restart(slot, c.now())
		if err := c.send(requestPacket(slot, false)); err != nil {
			c.dropOnSendFailure(err)
			return
		}
		slot.expectedSent = c.queued

	case PacketSUBACK:
		if code == SubackFailure {
			c.completeRequest(slot, ErrSubscribeRefused, 0)
			return
		}
		c.completeRequest(slot, nil, code)

	default:
		c.completeRequest(slot, nil, 0)
	}
}

func (c *Client) handlePingresp() {
	rtt, ok := c.keepAlive.pong(c.now())
	if !ok {
		c.log.Debug("unsolicited PINGRESP", nil)
		return
	}

	c.metrics.KeepAliveRTT(rtt)
	c.events.emit(&KeepAliveEvent{RTT: rtt})
}

// issue transmits a freshly allocated request and arms its deadline. The
// slot is released if nothing could be sent.
func (c *Client) issue(slot *requestSlot) error {
	if err := c.send(requestPacket(slot, false)); err != nil {
		c.requests.release(slot)
		c.metrics.PendingRequests(c.requests.inUse())
		c.dropOnSendFailure(err)
		return err
	}

	slot.expectedSent = c.queued
	c.retry.arm(slot, c.now())
	c.metrics.PendingRequests(c.requests.inUse())
	return nil
}

// completeRequest releases slot and reports its outcome.
func (c *Client) completeRequest(slot *requestSlot, cause error, granted byte) {
	var err error
	if cause != nil {
		err = NewRequestError(slot.kind.String(), slot.topic, slot.packetID, cause)
	}

	var ev Event
	switch slot.kind {
	case requestPublish:
		ev = &PublishEvent{Topic: slot.topic, QoS: slot.qos, PacketID: slot.packetID, Arg: slot.arg, Err: err}
	case requestSubscribe:
		ev = &SubscribeEvent{Topic: slot.topic, QoS: slot.qos, GrantedQoS: granted, Arg: slot.arg, Err: err}
	case requestUnsubscribe:
		ev = &UnsubscribeEvent{Topic: slot.topic, Arg: slot.arg, Err: err}
	}

	c.requests.release(slot)
	c.metrics.PendingRequests(c.requests.inUse())

	if ev != nil {
		c.events.emit(ev)
	}
}

// failPending fails every outstanding request and QoS 0 flush waiter.
func (c *Client) failPending(cause error) {
	c.scratch = c.requests.active(c.scratch[:0])
	for _, ref := range c.scratch {
		if slot := c.requests.get(ref.index, ref.packetID); slot != nil {
			c.completeRequest(slot, cause, 0)
		}
	}

	if c.flushes != nil {
		for {
			w, ok := c.flushes.pop(math.MaxUint64)
			if !ok {
				break
			}
			c.events.emit(&PublishEvent{
				Topic: w.topic,
				Arg:   w.arg,
				Err:   NewRequestError(requestPublish.String(), w.topic, 0, cause),
			})
		}
	}

	c.inbound.reset()
}

func (c *Client) drainFlushed() {
	if c.flushes == nil {
		return
	}

	for {
		w, ok := c.flushes.pop(c.flushed)
		if !ok {
			return
		}
		c.events.emit(&PublishEvent{Topic: w.topic, Arg: w.arg})
	}
}

// send encodes pkt into the transmit buffer and hands it to the transport.
// Transport failures are wrapped with ErrSendFailed; ErrSendQueueFull is
// returned as is.
func (c *Client) send(pkt Packet) error {
	c.txBuf.Reset()

	n, err := pkt.Encode(&c.txBuf)
	if err != nil {
		return err
	}

	if n > c.options.txBufferSize {
		return ErrPacketTooLarge
	}

	if err := c.transport.Send(c.txBuf.Bytes()); err != nil {
		if errors.Is(err, ErrSendQueueFull) {
			c.log.Debug("transport busy", LogFields{LogFieldPacketType: pkt.Type().String()})
			return ErrSendQueueFull
		}
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	c.queued += uint64(n)
	c.keepAlive.activity(c.now())
	c.metrics.PacketSent(pkt.Type(), n)

	if pid, ok := pkt.(PacketWithID); ok {
		c.log.Debug("packet sent", LogFields{LogFieldPacketType: pkt.Type().String(), LogFieldPacketID: pid.GetPacketID()})
	} else {
		c.log.Debug("packet sent", LogFields{LogFieldPacketType: pkt.Type().String()})
	}

	return nil
}

// reply sends an acknowledgement and reports whether the connection
// survived. Acknowledgements are not retried, so any failure is fatal.
func (c *Client) reply(pkt Packet) bool {
	if err := c.send(pkt); err != nil {
		c.lose(err, true)
		return false
	}
	return true
}

// dropOnSendFailure tears the connection down if err came from the
// transport.
func (c *Client) dropOnSendFailure(err error) {
	if errors.Is(err, ErrSendFailed) {
		c.lose(err, true)
	}
}

func (c *Client) protocolFailure(err error) {
	c.lose(fmt.Errorf("%w: %w", ErrProtocolError, err), true)
}

// lose ends the session abruptly. closeTransport is false when the
// transport already reported the connection gone.
func (c *Client) lose(cause error, closeTransport bool) {
	if !c.state.transportOpen() {
		return
	}

	wasConnected := c.state == StateMQTTConnected

	c.log.Warn("connection lost", LogFields{LogFieldError: cause.Error()})
	c.setState(StateDisconnected)
	c.keepAlive.stop()
	c.metrics.ConnectionLost()

	if closeTransport {
		c.closeTransport()
	}

	c.failPending(ErrConnectionLost)
	c.events.emit(&DisconnectEvent{
		Accepted: wasConnected,
		Err:      NewConnectionLostError(cause),
	})
}

// refuse ends a connection attempt with status.
func (c *Client) refuse(status ConnStatus) {
	c.setState(StateDisconnected)
	c.closeTransport()
	c.failPending(ErrConnectionLost)
	c.connectFinished(status)
}

func (c *Client) connectFinished(status ConnStatus) {
	c.metrics.ConnectResult(status)
	c.events.emit(&ConnectEvent{Status: status})
}

func (c *Client) finishDisconnect() {
	c.setState(StateDisconnected)
	c.log.Info("disconnected", nil)
	c.events.emit(&DisconnectEvent{Accepted: c.accepted})
}

func (c *Client) closeTransport() {
	if err := c.transport.Close(); err != nil {
		c.log.Debug("transport close failed", LogFields{LogFieldError: err.Error()})
	}
}

// resetConnection clears per-connection state before a new attempt.
func (c *Client) resetConnection() {
	c.decoder.Reset()
	c.keepAlive.stop()
	c.inbound.reset()
	if c.flushes != nil {
		c.flushes.reset()
	}
	c.accepted = false
	c.queued = 0
	c.flushed = 0
}

func (c *Client) checkConnected() error {
	if c.closed {
		return ErrClientClosed
	}
	if c.state != StateMQTTConnected {
		return ErrNotConnected
	}
	return nil
}
