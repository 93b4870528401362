package mqttlite

import (
	"time"
)

// requestKind identifies the operation a slot tracks.
type requestKind uint8

const (
	requestPublish requestKind = iota + 1
	requestSubscribe
	requestUnsubscribe
)

func (k requestKind) String() string {
	switch k {
	case requestPublish:
		return "publish"
	case requestSubscribe:
		return "subscribe"
	case requestUnsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}

// requestState is the acknowledgement a slot is waiting for.
type requestState uint8

const (
	awaitPuback requestState = iota + 1
	awaitPubrec
	awaitPubcomp
	awaitSuback
	awaitUnsuback
)

func (s requestState) String() string {
	switch s {
	case awaitPuback:
		return "awaiting PUBACK"
	case awaitPubrec:
		return "awaiting PUBREC"
	case awaitPubcomp:
		return "awaiting PUBCOMP"
	case awaitSuback:
		return "awaiting SUBACK"
	case awaitUnsuback:
		return "awaiting UNSUBACK"
	default:
		return "idle"
	}
}

// requestSlot is one in-flight acknowledged operation.
type requestSlot struct {
	index int
	inUse bool

	packetID uint16
	kind     requestKind
	state    requestState

	// expectedSent is the cumulative byte count at which the last
	// transmission of this request has been fully flushed.
	expectedSent uint64
	deadline     time.Time
	retries      int

	arg any

	// Retained for retransmission.
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

func (s *requestSlot) reset() {
	payload := s.payload[:0]
	*s = requestSlot{index: s.index, payload: payload}
}

// requestTable is a fixed-capacity arena of request slots with a free list
// and the session's packet identifier counter.
type requestTable struct {
	slots  []requestSlot
	free   []int
	nextID uint16
	used   int
}

func newRequestTable(capacity int) *requestTable {
	t := &requestTable{
		slots:  make([]requestSlot, capacity),
		free:   make([]int, 0, capacity),
		nextID: 1,
	}

	// Push in reverse so the lowest index is handed out first.
	for i := capacity - 1; i >= 0; i-- {
		t.slots[i].index = i
		t.free = append(t.free, i)
	}

	return t
}

// allocate takes a free slot and assigns it a packet identifier that no other
// live slot holds. It fails with ErrTooManyRequests when the table is full.
func (t *requestTable) allocate(kind requestKind, state requestState) (*requestSlot, error) {
	if len(t.free) == 0 {
		return nil, ErrTooManyRequests
	}

	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	s := &t.slots[idx]
	s.inUse = true
	s.kind = kind
	s.state = state
	s.packetID = t.nextPacketID()
	t.used++

	return s, nil
}

// nextPacketID returns the next identifier in 1..65535 not held by a live
// slot. The counter wraps from 65535 back to 1 and never yields 0.
func (t *requestTable) nextPacketID() uint16 {
	for {
		id := t.nextID
		t.nextID++
		if t.nextID == 0 {
			t.nextID = 1
		}

		if !t.idInUse(id) {
			return id
		}
	}
}

func (t *requestTable) idInUse(id uint16) bool {
	for i := range t.slots {
		if t.slots[i].inUse && t.slots[i].packetID == id {
			return true
		}
	}
	return false
}

// lookup finds the live slot with the given identifier, kind and state.
func (t *requestTable) lookup(id uint16, kind requestKind, state requestState) *requestSlot {
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse && s.packetID == id && s.kind == kind && s.state == state {
			return s
		}
	}
	return nil
}

// get returns the slot at idx if it is still live with the given identifier.
func (t *requestTable) get(idx int, id uint16) *requestSlot {
	if idx < 0 || idx >= len(t.slots) {
		return nil
	}
	s := &t.slots[idx]
	if !s.inUse || s.packetID != id {
		return nil
	}
	return s
}

// release returns a slot to the free list. Releasing a free slot is a no-op.
func (t *requestTable) release(s *requestSlot) {
	if s == nil || !s.inUse {
		return
	}
	s.reset()
	t.free = append(t.free, s.index)
	t.used--
}

// active appends the index and packet identifier of every live slot to dst.
func (t *requestTable) active(dst []slotRef) []slotRef {
	for i := range t.slots {
		if t.slots[i].inUse {
			dst = append(dst, slotRef{index: i, packetID: t.slots[i].packetID})
		}
	}
	return dst
}

func (t *requestTable) inUse() int {
	return t.used
}

func (t *requestTable) capacity() int {
	return len(t.slots)
}

// slotRef names a slot across a callback that may release or reuse it.
type slotRef struct {
	index    int
	packetID uint16
}
