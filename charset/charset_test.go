package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"us-ascii", "us-ascii"},
		{"US-ASCII", "us-ascii"},
		{"iso-8859-1", "iso-8859-1"},
		{"unicode-2-0", "unicode-2-0"},
		{"utf-8", "utf-8"},
		{"shift_jis", "shift_jis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cs.Name())
		})
	}

	_, err := Lookup("klingon")
	assert.ErrorIs(t, err, ErrUnknownCharset)
}

func TestUCS2RoundTrip(t *testing.T) {
	b, err := UCS2.Encode("hé")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 'h', 0x00, 0xe9}, b)

	s, err := UCS2.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "hé", s)
}

func TestLatin1(t *testing.T) {
	b, err := Latin1.Encode("é")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe9}, b)

	_, err = Latin1.Encode("日")
	assert.ErrorIs(t, err, ErrUnrepresentable)
}

func TestASCIIRejectsHighRunes(t *testing.T) {
	_, err := ASCII.Encode("é")
	assert.ErrorIs(t, err, ErrUnrepresentable)

	b, err := ASCII.Encode("buddy")
	require.NoError(t, err)
	assert.Equal(t, []byte("buddy"), b)
}

func TestZeroCharsetUsesDefault(t *testing.T) {
	var cs Charset
	assert.True(t, cs.IsZero())
	assert.Equal(t, Default.Name(), cs.Name())
	s, err := cs.Decode([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
}

func TestBest(t *testing.T) {
	assert.Equal(t, ASCII.Name(), Best("plain").Name())
	assert.Equal(t, Latin1.Name(), Best("café").Name())
	assert.Equal(t, UCS2.Name(), Best("日本").Name())
}
