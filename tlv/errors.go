package tlv

import (
	"errors"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
)

var (
	// ErrInsufficientData indicates the buffer is shorter than a declared or required length.
	ErrInsufficientData = bytespan.ErrInsufficientData

	// ErrMalformedField indicates a record is present but its value is the wrong width.
	ErrMalformedField = errors.New("malformed field")
)

// FieldError describes a record whose value could not be decoded.
type FieldError struct {
	Tag  uint16 // record tag
	Op   string // accessor that failed
	Want int    // minimum value length required
	Have int    // actual value length
	Err  error  // underlying error
}

func (e *FieldError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("tlv 0x%04x %s: %v: need %d bytes, have %d", e.Tag, e.Op, e.Err, e.Want, e.Have)
	}
	return fmt.Sprintf("tlv 0x%04x %s: %v", e.Tag, e.Op, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func shortField(tag uint16, op string, want, have int) *FieldError {
	return &FieldError{Tag: tag, Op: op, Want: want, Have: have, Err: ErrMalformedField}
}
