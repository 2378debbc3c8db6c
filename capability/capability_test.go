package capability

import (
	"testing"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateBytes(t *testing.T) {
	want := [16]byte{0x09, 0x46, 0x00, 0x00, 0x4c, 0x7f, 0x11, 0xd1, 0x82, 0x22, 0x44, 0x45, 0x53, 0x54, 0x00, 0x00}
	assert.Equal(t, want, [16]byte(Template()))
}

func TestCompactRoundTripAllVariableBytes(t *testing.T) {
	for hi := 0; hi < 256; hi += 17 {
		for lo := 0; lo < 256; lo++ {
			c := Template()
			c[2], c[3] = byte(hi), byte(lo)

			require.True(t, c.Compactible())
			s, err := c.Short()
			require.NoError(t, err)
			assert.Equal(t, Short(hi<<8|lo), s)
			assert.Equal(t, c, FromShort(s))
			assert.Equal(t, c, s.Full())
		}
	}
}

func TestNotCompactible(t *testing.T) {
	for _, idx := range []int{0, 1, 4, 8, 15} {
		c := BuddyIcon
		c[idx] ^= 0xff
		assert.False(t, c.Compactible(), "byte %d changed", idx)
		_, err := c.Short()
		assert.ErrorIs(t, err, ErrNotCompactible)
	}

	_, err := Chat.Short()
	assert.ErrorIs(t, err, ErrNotCompactible)
}

func TestStringForms(t *testing.T) {
	assert.Equal(t, "09461346-4c7f-11d1-8222-444553540000", BuddyIcon.String())
	assert.Equal(t, "1346", Short(0x1346).String())

	c, err := ParseString("09461346-4C7F-11D1-8222-444553540000")
	require.NoError(t, err)
	assert.Equal(t, BuddyIcon, c)
	assert.Equal(t, "buddy-icon", c.Name())

	c, err = ParseString(" 094613464c7f11d18222444553540000 ")
	require.NoError(t, err)
	assert.Equal(t, BuddyIcon, c)

	_, err = ParseString("0946")
	assert.ErrorIs(t, err, ErrInvalidString)
	_, err = ParseString("zz461346-4c7f-11d1-8222-444553540000")
	assert.ErrorIs(t, err, ErrInvalidString)
	assert.Panics(t, func() { MustParseString("nope") })

	unknown := FromShort(0x7777)
	assert.Equal(t, unknown.String(), unknown.Name())
}

func TestParseCopies(t *testing.T) {
	raw := BuddyIcon.Bytes()
	c, err := Parse(raw)
	require.NoError(t, err)
	raw[0] = 0
	assert.Equal(t, BuddyIcon, c)

	_, err = Parse(raw[:15])
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestEqualityAsMapKey(t *testing.T) {
	seen := map[Capability]bool{FromShort(0x1346): true}
	c, _ := Parse(BuddyIcon.Bytes())
	assert.True(t, seen[c])
}

func TestBlocks(t *testing.T) {
	caps := []Capability{BuddyIcon, Chat, UTF8}
	block := AppendBlock(nil, caps)
	require.Len(t, block, 48)

	parsed, err := ParseBlock(bytespan.New(block))
	require.NoError(t, err)
	assert.Equal(t, caps, parsed)

	block[0] = 0xff
	assert.Equal(t, BuddyIcon, parsed[0], "parsed identifiers are owned copies")

	_, err = ParseBlock(bytespan.New(block[:47]))
	assert.ErrorIs(t, err, ErrInvalidLength)

	short, long := Split(caps)
	assert.Equal(t, []Short{0x1346, 0x134e}, short)
	assert.Equal(t, []Capability{Chat}, long)

	sb := AppendShortBlock(nil, short)
	assert.Equal(t, []byte{0x13, 0x46, 0x13, 0x4e}, sb)
	back, err := ParseShortBlock(bytespan.New(sb))
	require.NoError(t, err)
	assert.Equal(t, []Capability{BuddyIcon, UTF8}, Expand(back))

	_, err = ParseShortBlock(bytespan.New(sb[:3]))
	assert.ErrorIs(t, err, ErrInvalidLength)

	assert.True(t, Contains(caps, Chat))
	assert.False(t, Contains(caps, Voice))
}
