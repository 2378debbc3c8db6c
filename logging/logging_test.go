package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerFields(t *testing.T) {
	l := NewLogger("tlv", "ParseChain").WithField("records", 3)
	fields := l.Fields()
	assert.Equal(t, "tlv", fields["package"])
	assert.Equal(t, "ParseChain", fields["function"])
	assert.Equal(t, 3, fields["records"])

	// copies do not alias the helper
	fields["records"] = 9
	assert.Equal(t, 3, l.Fields()["records"])
}

func TestWithErrorNil(t *testing.T) {
	fields := NewLogger("snac", "Dispatch").WithError(nil, "decode").Fields()
	assert.NotContains(t, fields, "error")
	assert.Equal(t, "decode", fields["operation"])
}

func TestWithCaller(t *testing.T) {
	fields := NewLogger("snac", "Dispatch").WithCaller().Fields()
	assert.Equal(t, "logging.TestWithCaller", fields["caller_func"])
	assert.Contains(t, fields["caller"], "logging_test.go:")
}

func TestHexPreview(t *testing.T) {
	assert.Equal(t, "nil", HexPreview(nil, "body")["body_preview"])
	f := HexPreview([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, "body")
	assert.Equal(t, "0102030405060708...", f["body_preview"])
	assert.Equal(t, 9, f["body_size"])
}

func TestConfigure(t *testing.T) {
	prev := logrus.GetLevel()
	defer logrus.SetLevel(prev)

	assert.True(t, Configure("debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.False(t, Configure("loud"))
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
