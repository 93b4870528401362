package mqttlite

import (
	"errors"
	"io"
)

var (
	ErrPacketTooLarge    = errors.New("mqttlite: packet exceeds maximum size")
	ErrUnknownPacketType = errors.New("mqttlite: unknown packet type")
	ErrMalformedPacket   = errors.New("mqttlite: malformed packet")
)

// newPacket returns an empty packet for the given type.
func newPacket(pt PacketType) (Packet, error) {
	switch pt {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPUBACK:
		return &PubackPacket{}, nil
	case PacketPUBREC:
		return &PubrecPacket{}, nil
	case PacketPUBREL:
		return &PubrelPacket{}, nil
	case PacketPUBCOMP:
		return &PubcompPacket{}, nil
	case PacketSUBSCRIBE:
		return &SubscribePacket{}, nil
	case PacketSUBACK:
		return &SubackPacket{}, nil
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case PacketUNSUBACK:
		return &UnsubackPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	case PacketDISCONNECT:
		return &DisconnectPacket{}, nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// decodeBody decodes a packet body and checks the body length matches the
// remaining length announced in the fixed header.
func decodeBody(header FixedHeader, body []byte) (Packet, error) {
	if err := header.ValidateFlags(); err != nil {
		return nil, err
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, err
	}

	reader := getBytesReader(body)
	defer putBytesReader(reader)

	n, err := packet.Decode(reader, header)
	if err != nil {
		return nil, err
	}

	if n != len(body) {
		return nil, ErrMalformedPacket
	}

	return packet, nil
}

// ReadPacket reads a complete MQTT packet from the reader.
// If maxSize is greater than 0, packets larger than maxSize will return ErrPacketTooLarge.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		return nil, n, err
	}

	if maxSize > 0 && uint32(header.Size())+header.RemainingLength > maxSize {
		return nil, n, ErrPacketTooLarge
	}

	remaining := make([]byte, header.RemainingLength)
	if header.RemainingLength > 0 {
		rn, err := io.ReadFull(r, remaining)
		n += rn
		if err != nil {
			return nil, n, err
		}
	}

	packet, err := decodeBody(header, remaining)
	if err != nil {
		return nil, n, err
	}

	return packet, n, nil
}

// WritePacket writes a complete MQTT packet to the writer.
// If maxSize is greater than 0, packets larger than maxSize will return ErrPacketTooLarge.
func WritePacket(w io.Writer, packet Packet, maxSize uint32) (int, error) {
	if err := packet.Validate(); err != nil {
		return 0, err
	}

	if maxSize > 0 {
		buf := getBytesBuffer()
		defer putBytesBuffer(buf)

		n, err := packet.Encode(buf)
		if err != nil {
			return 0, err
		}
		if uint32(n) > maxSize {
			return 0, ErrPacketTooLarge
		}
		return w.Write(buf.Bytes())
	}

	return packet.Encode(w)
}

// countingWriter discards writes and counts their length.
type countingWriter struct {
	n int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

// encodedSize returns the number of bytes packet encodes to.
func encodedSize(packet Packet) (int, error) {
	var w countingWriter
	if _, err := packet.Encode(&w); err != nil {
		return 0, err
	}
	return w.n, nil
}

// Decoder reassembles packets from a byte stream delivered in arbitrary
// fragments. Buffered bytes never exceed the size given to NewDecoder, so a
// packet larger than that is rejected with ErrPacketTooLarge.
type Decoder struct {
	buf []byte
	max int
}

// NewDecoder creates a decoder whose buffer holds at most maxSize bytes.
func NewDecoder(maxSize int) *Decoder {
	return &Decoder{
		buf: make([]byte, 0, maxSize),
		max: maxSize,
	}
}

// Write buffers as much of b as fits and returns the number of bytes taken.
// Callers drain complete packets with Next between writes.
func (d *Decoder) Write(b []byte) (int, error) {
	free := d.max - len(d.buf)
	if free <= 0 {
		return 0, ErrPacketTooLarge
	}

	n := min(free, len(b))
	d.buf = append(d.buf, b[:n]...)
	return n, nil
}

// Next returns the next complete packet, or nil when more bytes are needed.
// Any error leaves the stream unusable until Reset.
func (d *Decoder) Next() (Packet, error) {
	header, headerLen, err := parseFixedHeader(d.buf)
	if err != nil {
		return nil, err
	}
	if headerLen == 0 {
		return nil, nil
	}

	total := headerLen + int(header.RemainingLength)
	if total > d.max {
		return nil, ErrPacketTooLarge
	}
	if len(d.buf) < total {
		return nil, nil
	}

	packet, err := decodeBody(header, d.buf[headerLen:total])
	if err != nil {
		return nil, err
	}

	rest := copy(d.buf, d.buf[total:])
	d.buf = d.buf[:rest]

	return packet, nil
}

// Buffered returns the number of bytes waiting for the rest of their packet.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// bytesReader wraps a byte slice for io.Reader interface.
type bytesReader struct {
	data []byte
	pos  int
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// bytesBuffer is a simple buffer for encoding.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bytesBuffer) Bytes() []byte {
	return b.data
}

func (b *bytesBuffer) Len() int {
	return len(b.data)
}

func (b *bytesBuffer) Reset() {
	b.data = b.data[:0]
}
