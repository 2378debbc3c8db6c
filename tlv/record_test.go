package tlv

import (
	"errors"
	"testing"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	data := []byte{0x00, 0x05, 0x00, 0x03, 'a', 'b', 'c', 0xff}
	r, n, err := Parse(bytespan.New(data))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, uint16(5), r.Tag)
	assert.Equal(t, []byte("abc"), r.Value.Bytes())
	assert.Equal(t, 7, r.Len())
	assert.Equal(t, data[:7], r.Bytes())
}

func TestParseRecordInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{0x00, 0x01, 0x00}},
		{"value past end", []byte{0x00, 0x01, 0x00, 0x04, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, n, err := Parse(bytespan.New(tt.data))
			assert.True(t, errors.Is(err, ErrInsufficientData), "got %v", err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestRecordIntegerAccessors(t *testing.T) {
	r := NewUint32(1, 0xdeadbeef)
	v32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)

	// narrower reads take the leading bytes
	v16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xdead), v16)

	_, err = r.Uint64()
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, ErrMalformedField)
	assert.Equal(t, uint16(1), fe.Tag)
	assert.Equal(t, 8, fe.Want)
	assert.Equal(t, 4, fe.Have)

	v8, err := NewUint8(2, 7).Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v8)

	v64, err := NewUint64(3, 1<<40).Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	_, err = NewEmpty(4).Uint8()
	assert.ErrorIs(t, err, ErrMalformedField)
}

func TestRecordStrings(t *testing.T) {
	r, err := NewString(1, "hé", charset.UCS2)
	require.NoError(t, err)
	s, err := r.String(charset.UCS2)
	require.NoError(t, err)
	assert.Equal(t, "hé", s)

	prefixed := New(2, []byte{0x00, 0x02, 'o', 'k', 'x'})
	s, err = prefixed.PrefixedString(charset.ASCII)
	require.NoError(t, err)
	assert.Equal(t, "ok", s)

	_, err = New(3, []byte{0x00, 0x09, 'a'}).PrefixedString(charset.ASCII)
	assert.ErrorIs(t, err, ErrMalformedField)

	_, err = NewString(4, "é", charset.ASCII)
	assert.ErrorIs(t, err, charset.ErrUnrepresentable)
}

func TestNewPanicsOnOversizedValue(t *testing.T) {
	assert.Panics(t, func() { New(1, make([]byte, MaxValueLen+1)) })
	assert.NotPanics(t, func() { New(1, make([]byte, MaxValueLen)) })
}

func TestAppendToPanicsOnOversizedLiteral(t *testing.T) {
	r := Record{Tag: 2, Value: bytespan.New(make([]byte, MaxValueLen+1))}
	assert.Panics(t, func() { r.AppendTo(nil) })
	assert.Panics(t, func() { r.Bytes() })

	ok := Record{Tag: 2, Value: bytespan.New(make([]byte, MaxValueLen))}
	assert.Len(t, ok.Bytes(), 4+MaxValueLen)
}

func TestRecordOwnedAndEqual(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x00, 0x01, 0x42}
	r, _, err := Parse(bytespan.New(buf))
	require.NoError(t, err)
	owned := r.Owned()
	buf[4] = 0x00

	assert.Equal(t, []byte{0x42}, owned.Value.Bytes())
	assert.False(t, owned.Equal(r))
	assert.True(t, owned.Equal(NewUint8(1, 0x42)))
	assert.Equal(t, owned.Hash(), NewUint8(1, 0x42).Hash())
	assert.NotEqual(t, NewUint8(1, 0x42).Hash(), NewUint8(2, 0x42).Hash())
}

func TestNestedChainRecord(t *testing.T) {
	inner := NewChain(NewUint16(1, 2), NewUint8(3, 4))
	r := NewNested(0x10, inner)
	assert.Equal(t, inner.WritableLength(), r.Value.Len())
	assert.True(t, r.Chain().Equal(inner))
}
