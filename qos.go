package mqttlite

import (
	"time"
)

// retryAction is the outcome of checking a slot's deadline.
type retryAction int

const (
	retryNone retryAction = iota
	retryResend
	retryExhausted
)

// retryPolicy holds the per-request timeout and retransmission limit.
type retryPolicy struct {
	timeout    time.Duration
	maxRetries int
}

// arm starts a fresh deadline for the slot's current phase.
func (p retryPolicy) arm(s *requestSlot, now time.Time) {
	s.deadline = now.Add(p.timeout)
}

// restart begins a new acknowledgement phase with its own retry budget.
func (p retryPolicy) restart(s *requestSlot, now time.Time) {
	s.retries = 0
	p.arm(s, now)
}

// check decides what to do with a slot at time now. A resend consumes one
// retry and re-arms the deadline.
func (p retryPolicy) check(s *requestSlot, now time.Time) retryAction {
	if now.Before(s.deadline) {
		return retryNone
	}

	if s.retries >= p.maxRetries {
		return retryExhausted
	}

	s.retries++
	p.arm(s, now)
	return retryResend
}

// ackExpectation maps an inbound acknowledgement type to the slot kind and
// state it completes or advances.
func ackExpectation(pt PacketType) (requestKind, requestState, bool) {
	switch pt {
	case PacketPUBACK:
		return requestPublish, awaitPuback, true
	case PacketPUBREC:
		return requestPublish, awaitPubrec, true
	case PacketPUBCOMP:
		return requestPublish, awaitPubcomp, true
	case PacketSUBACK:
		return requestSubscribe, awaitSuback, true
	case PacketUNSUBACK:
		return requestUnsubscribe, awaitUnsuback, true
	default:
		return 0, 0, false
	}
}

// initialState returns the first acknowledgement a publish at qos waits for.
func initialState(qos byte) requestState {
	if qos == 2 {
		return awaitPubrec
	}
	return awaitPuback
}

// requestPacket builds the packet to transmit for a slot in its current
// state. Retransmitted PUBLISH packets carry the DUP flag; SUBSCRIBE and
// UNSUBSCRIBE are resent unchanged.
func requestPacket(s *requestSlot, retransmit bool) Packet {
	switch s.state {
	case awaitPuback, awaitPubrec:
		return &PublishPacket{
			Topic:    s.topic,
			Payload:  s.payload,
			QoS:      s.qos,
			Retain:   s.retain,
			DUP:      retransmit,
			PacketID: s.packetID,
		}
	case awaitPubcomp:
		return &PubrelPacket{PacketID: s.packetID}
	case awaitSuback:
		return &SubscribePacket{
			PacketID:      s.packetID,
			Subscriptions: []Subscription{{TopicFilter: s.topic, QoS: s.qos}},
		}
	case awaitUnsuback:
		return &UnsubscribePacket{
			PacketID:     s.packetID,
			TopicFilters: []string{s.topic},
		}
	default:
		return nil
	}
}

// flushWaiter is a QoS 0 publish waiting for its bytes to leave the transport.
type flushWaiter struct {
	expectedSent uint64
	topic        string
	arg          any
}

// flushTracker is a bounded FIFO of QoS 0 flush waiters. Waiters complete in
// order because the transport flushes bytes in order.
type flushTracker struct {
	ring  []flushWaiter
	head  int
	count int
}

func newFlushTracker(capacity int) *flushTracker {
	return &flushTracker{ring: make([]flushWaiter, capacity)}
}

// add queues a waiter. It reports false when the ring is full, in which case
// the publish proceeds without a flushed event.
func (f *flushTracker) add(w flushWaiter) bool {
	if f.count == len(f.ring) {
		return false
	}
	f.ring[(f.head+f.count)%len(f.ring)] = w
	f.count++
	return true
}

// pop removes and returns the oldest waiter whose bytes are all flushed.
func (f *flushTracker) pop(flushed uint64) (flushWaiter, bool) {
	if f.count == 0 || f.ring[f.head].expectedSent > flushed {
		return flushWaiter{}, false
	}

	w := f.ring[f.head]
	f.ring[f.head] = flushWaiter{}
	f.head = (f.head + 1) % len(f.ring)
	f.count--
	return w, true
}

func (f *flushTracker) reset() {
	clear(f.ring)
	f.head = 0
	f.count = 0
}

func (f *flushTracker) len() int {
	return f.count
}

// inboundQoS2 tracks packet identifiers of received QoS 2 publishes awaiting
// PUBREL, so duplicates are acknowledged without being delivered twice.
type inboundQoS2 struct {
	ids []uint16
	max int
}

func newInboundQoS2(capacity int) *inboundQoS2 {
	return &inboundQoS2{ids: make([]uint16, 0, capacity), max: capacity}
}

func (q *inboundQoS2) contains(id uint16) bool {
	for _, v := range q.ids {
		if v == id {
			return true
		}
	}
	return false
}

// add records id. It reports false when the set is full.
func (q *inboundQoS2) add(id uint16) bool {
	if len(q.ids) >= q.max {
		return false
	}
	q.ids = append(q.ids, id)
	return true
}

func (q *inboundQoS2) remove(id uint16) {
	for i, v := range q.ids {
		if v == id {
			q.ids[i] = q.ids[len(q.ids)-1]
			q.ids = q.ids[:len(q.ids)-1]
			return
		}
	}
}

func (q *inboundQoS2) reset() {
	q.ids = q.ids[:0]
}
