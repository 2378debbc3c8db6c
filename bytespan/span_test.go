package bytespan

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIsView(t *testing.T) {
	backing := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	s := New(backing)

	sub, err := s.Slice(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Len())
	assert.Equal(t, 2, sub.Offset())
	assert.Equal(t, []byte{2, 3, 4, 5}, sub.Bytes())

	// views see changes made to the backing storage
	backing[2] = 0xff
	assert.Equal(t, byte(0xff), sub.Bytes()[0])

	nested, err := sub.Slice(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, nested.Offset())
	assert.Equal(t, []byte{3, 4}, nested.Bytes())
}

func TestSliceOutOfRange(t *testing.T) {
	s := New([]byte{1, 2, 3})
	tests := []struct {
		name           string
		offset, length int
	}{
		{"past end", 2, 2},
		{"offset past end", 4, 0},
		{"negative offset", -1, 1},
		{"negative length", 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Slice(tt.offset, tt.length)
			assert.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)
		})
	}

	_, err := s.SliceFrom(4)
	assert.ErrorIs(t, err, ErrOutOfRange)

	end, err := s.SliceFrom(3)
	require.NoError(t, err)
	assert.Equal(t, 0, end.Len())
}

func TestBytesCapacityClipped(t *testing.T) {
	backing := []byte{1, 2, 3, 4}
	sub, err := New(backing).Slice(0, 2)
	require.NoError(t, err)

	b := sub.Bytes()
	_ = append(b, 9)
	assert.Equal(t, byte(3), backing[2], "append through a view must not clobber the backing buffer")
}

func TestToOwnedDetaches(t *testing.T) {
	backing := []byte{1, 2, 3}
	s := New(backing)
	owned := s.ToOwned()
	backing[0] = 7
	assert.Equal(t, []byte{1, 2, 3}, owned.Bytes())
	assert.Equal(t, 0, owned.Offset())
}

func TestEqualAndHashByContent(t *testing.T) {
	a, _ := New([]byte{9, 9, 1, 2, 3}).Slice(2, 3)
	b := New([]byte{1, 2, 3})
	c := New([]byte{1, 2, 4})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(c))
	assert.True(t, Empty.Equal(New(nil)))
	assert.Equal(t, Empty.Hash(), New([]byte{}).Hash())
}

func TestIntegerReaders(t *testing.T) {
	s := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	v8, err := s.Uint8At(7)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), v8)

	v16, err := s.Uint16At(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	v32, err := s.Uint32At(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x05060708), v32)

	v64, err := s.Uint64At(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)

	_, err = s.Uint32At(6)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestWriteToAndString(t *testing.T) {
	s := New([]byte{0xca, 0xfe})
	var buf bytes.Buffer
	n, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "cafe", s.String())
	assert.Equal(t, []byte{0, 0xca, 0xfe}, s.AppendTo([]byte{0}))
}
