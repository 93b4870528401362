package mqttlite

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"ascii", "sensors/temp"},
		{"utf8", "température/€"},
		{"max length", strings.Repeat("a", maxUint16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := encodeString(&buf, tt.value)
			require.NoError(t, err)
			assert.Equal(t, 2+len(tt.value), n)

			decoded, n, err := decodeString(&buf)
			require.NoError(t, err)
			assert.Equal(t, 2+len(tt.value), n)
			assert.Equal(t, tt.value, decoded)
		})
	}
}

func TestStringEncodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		value string
		err   error
	}{
		{"too long", strings.Repeat("a", maxUint16+1), ErrStringTooLong},
		{"invalid utf8", "\xff\xfe", ErrInvalidUTF8},
		{"null", "a\x00b", ErrStringContainsNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := encodeString(&bytes.Buffer{}, tt.value)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStringDecodeErrors(t *testing.T) {
	t.Run("invalid utf8", func(t *testing.T) {
		_, _, err := decodeString(bytes.NewReader([]byte{0x00, 0x02, 0xff, 0xfe}))
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})

	t.Run("null", func(t *testing.T) {
		_, _, err := decodeString(bytes.NewReader([]byte{0x00, 0x01, 0x00}))
		assert.ErrorIs(t, err, ErrStringContainsNull)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := decodeString(bytes.NewReader([]byte{0x00, 0x05, 'a'}))
		assert.Error(t, err)
	})
}

func TestBinaryEncodeDecode(t *testing.T) {
	data := []byte{0x00, 0x01, 0xff}

	var buf bytes.Buffer
	n, err := encodeBinary(&buf, data)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	decoded, n, err := decodeBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, data, decoded)

	_, err = encodeBinary(&bytes.Buffer{}, make([]byte, maxUint16+1))
	assert.ErrorIs(t, err, ErrBinaryTooLong)
}

func TestPacketIDEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	_, err := encodePacketID(&buf, 0xABCD)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD}, buf.Bytes())

	id, n, err := decodePacketID(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint16(0xABCD), id)
}

func TestVarintEncodeDecode(t *testing.T) {
	tests := []struct {
		value   uint32
		encoded []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{maxVarint, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		n, err := encodeVarint(&buf, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.encoded, buf.Bytes())
		assert.Equal(t, len(tt.encoded), n)
		assert.Equal(t, len(tt.encoded), varintSize(tt.value))

		value, n, err := decodeVarint(bytes.NewReader(tt.encoded))
		require.NoError(t, err)
		assert.Equal(t, tt.value, value)
		assert.Equal(t, len(tt.encoded), n)

		value, n, err = decodeVarintBytes(tt.encoded)
		require.NoError(t, err)
		assert.Equal(t, tt.value, value)
		assert.Equal(t, len(tt.encoded), n)
	}
}

func TestVarintErrors(t *testing.T) {
	_, err := encodeVarint(&bytes.Buffer{}, maxVarint+1)
	assert.ErrorIs(t, err, ErrVarintTooLarge)

	_, _, err = decodeVarint(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}))
	assert.Error(t, err)

	_, _, err = decodeVarintBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	assert.ErrorIs(t, err, ErrVarintMalformed)
}

func TestDecodeVarintBytesIncomplete(t *testing.T) {
	for _, data := range [][]byte{nil, {0x80}, {0xFF, 0xFF}, {0xFF, 0xFF, 0xFF}} {
		value, n, err := decodeVarintBytes(data)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, value)
	}
}
