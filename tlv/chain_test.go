package tlv

import (
	"bytes"
	"testing"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChain() *Chain {
	return NewChain(
		NewUint16(0x0001, 0x0010),
		New(0x0002, []byte("profile")),
		NewEmpty(0x0003),
		NewUint32(0x0004, 42),
	)
}

func TestChainRoundTrip(t *testing.T) {
	original := sampleChain()
	encoded := original.Bytes()
	assert.Len(t, encoded, original.WritableLength())

	parsed, n := ParseChain(bytespan.New(encoded), 0)
	assert.Equal(t, len(encoded), n)
	assert.True(t, parsed.Equal(original))
	assert.Equal(t, encoded, parsed.Bytes())
}

func TestWritableLengthMatchesWrite(t *testing.T) {
	chains := []*Chain{
		NewChain(),
		sampleChain(),
		NewChain(NewEmpty(1), NewEmpty(1), New(2, make([]byte, 300))),
	}
	for _, c := range chains {
		var buf bytes.Buffer
		n, err := c.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, int64(c.WritableLength()), n)
		assert.Equal(t, c.WritableLength(), buf.Len())
	}
}

func TestDuplicateTagsFirstLastAll(t *testing.T) {
	c := NewChain(
		New(7, []byte("A")),
		New(9, []byte("x")),
		New(7, []byte("B")),
		New(7, []byte("C")),
	)

	first, ok := c.First(7)
	require.True(t, ok)
	assert.Equal(t, "A", string(first.Value.Bytes()))

	last, ok := c.Last(7)
	require.True(t, ok)
	assert.Equal(t, "C", string(last.Value.Bytes()))

	var all []string
	for _, r := range c.All(7) {
		all = append(all, string(r.Value.Bytes()))
	}
	assert.Equal(t, []string{"A", "B", "C"}, all)

	assert.True(t, c.Has(9))
	assert.False(t, c.Has(8))
	_, ok = c.Last(8)
	assert.False(t, ok)
	assert.Empty(t, c.All(8))
}

func TestUnknownRecordPreservation(t *testing.T) {
	const known1, known2 = 0x0001, 0x0002
	wire := NewChain(
		New(known1, []byte{1}),
		New(0x0100, []byte("future-a")),
		New(known2, []byte{2}),
		New(0x0200, []byte("future-b")),
		New(known1, []byte{3}),
		New(0x0100, []byte("future-c")),
	).Bytes()
	expected := NewChain(
		New(0x0100, []byte("future-a")),
		New(0x0200, []byte("future-b")),
		New(0x0100, []byte("future-c")),
	).Bytes()

	parsed, _ := ParseChain(bytespan.New(wire), 0)
	extra := parsed.Mutable()
	assert.Equal(t, 3, extra.RemoveAll(known1, known2))
	assert.Equal(t, expected, extra.Freeze().Bytes())

	// the parsed chain is untouched
	assert.Equal(t, 6, parsed.Len())
}

func TestTruncatedChainStopsEarly(t *testing.T) {
	good := NewChain(NewUint16(1, 1), NewUint16(2, 2)).Bytes()
	truncated := append(append([]byte{}, good...), 0x00, 0x03, 0x00, 0x10, 0xaa)

	c, n := ParseChain(bytespan.New(truncated), 0)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, len(good), n)

	// a lone partial header also ends the chain
	c, n = ParseChain(bytespan.New(append(append([]byte{}, good...), 0x00)), 0)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, len(good), n)
}

func TestParseChainMaxRecords(t *testing.T) {
	encoded := sampleChain().Bytes()
	c, n := ParseChain(bytespan.New(encoded), 2)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, NewUint16(1, 0x10).Len()+New(2, []byte("profile")).Len(), n)
}

func TestCountedAndLengthChains(t *testing.T) {
	src := sampleChain()

	counted := src.AppendCounted(nil)
	counted = append(counted, 0xee) // trailing data belongs to the caller
	c, n, err := ParseCountedChain(bytespan.New(counted))
	require.NoError(t, err)
	assert.True(t, c.Equal(src))
	assert.Equal(t, len(counted)-1, n)

	withLen := src.AppendLength(nil)
	c, n, err = ParseLengthChain(bytespan.New(withLen))
	require.NoError(t, err)
	assert.True(t, c.Equal(src))
	assert.Equal(t, len(withLen), n)

	_, _, err = ParseLengthChain(bytespan.New(withLen[:len(withLen)-1]))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = ParseCountedChain(bytespan.New([]byte{0x00}))
	assert.ErrorIs(t, err, ErrInsufficientData)

	empty, n, err := ParseCountedChain(bytespan.New([]byte{0x00, 0x00, 0x01}))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 2, n)
}

func TestTypedAccessorsAbsentAndMalformed(t *testing.T) {
	c := NewChain(New(1, []byte{0x12}), NewUint32(2, 7))

	_, ok, err := c.Uint16(99)
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = c.Uint16(1)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrMalformedField)

	v, ok, err := c.Uint32(2)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	v8, ok, err := c.Uint8(1)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x12), v8)

	_, ok, err = c.Uint64(2)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrMalformedField)
}

func TestChainCharset(t *testing.T) {
	ucs, err := NewString(5, "ü", charset.UCS2)
	require.NoError(t, err)
	c := NewChain(ucs, New(6, []byte{0x00, 0x01, 'z'}))

	// default charset reads the raw bytes as ASCII
	s, ok, err := c.WithCharset(charset.UCS2).String(5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ü", s)

	s, ok, err = c.StringCharset(5, charset.UCS2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ü", s)

	s, ok, err = c.PrefixedString(6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "z", s)

	_, ok, _ = c.String(42)
	assert.False(t, ok)
}

func TestSubChainInheritsCharset(t *testing.T) {
	inner := NewChain(New(1, []byte{0x00, 'q'}))
	outer := NewChain(NewNested(0x20, inner)).WithCharset(charset.UCS2)

	sub, ok := outer.SubChain(0x20)
	require.True(t, ok)
	s, _, err := sub.String(1)
	require.NoError(t, err)
	assert.Equal(t, "q", s)

	_, ok = outer.SubChain(0x21)
	assert.False(t, ok)
}

func TestOwnedDetachesFromBuffer(t *testing.T) {
	buf := sampleChain().Bytes()
	parsed, _ := ParseChain(bytespan.New(buf), 0)
	owned := parsed.Owned()
	want := sampleChain()

	for i := range buf {
		buf[i] = 0
	}
	assert.True(t, owned.Equal(want))
	assert.Equal(t, 0, NewChain().Owned().Len())
}

func TestMutableChainOperations(t *testing.T) {
	m := NewMutableChain(NewUint8(1, 1))
	m.Append(NewUint8(2, 2), NewUint8(1, 3))
	m.AppendAll(NewChain(NewUint8(3, 4)))
	m.AppendAll(nil)
	assert.Equal(t, 4, m.Len())

	frozen := m.Freeze()
	m.Replace(NewUint8(1, 9))
	assert.Equal(t, 3, m.Len())
	last, _ := m.Last(1)
	v, _ := last.Uint8()
	assert.Equal(t, uint8(9), v)

	// freezing took a snapshot
	assert.Equal(t, 4, frozen.Len())
	assert.Equal(t, 0, m.RemoveAll())
	assert.Equal(t, 1, m.RemoveAll(2))
	assert.Equal(t, []uint16{3, 1}, tags(m))

	m.SetCharset(charset.Latin1)
	assert.Equal(t, charset.Latin1.Name(), m.Freeze().Charset().Name())
}

func TestRecordsReturnsCopy(t *testing.T) {
	c := sampleChain()
	rs := c.Records()
	rs[0] = NewEmpty(0xffff)
	assert.Equal(t, uint16(1), c.At(0).Tag)
}

func tags(r Reader) []uint16 {
	var out []uint16
	for _, rec := range r.Records() {
		out = append(out, rec.Tag)
	}
	return out
}
