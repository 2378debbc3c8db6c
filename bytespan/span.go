// Package bytespan provides Span, an immutable window over a byte slice.
//
// Spans let the codec slice an incoming buffer into headers, records and
// payloads without copying. A Span never writes to the bytes it views.
// When a value must outlive the buffer it was parsed from (the transport
// may reuse its read buffer), take an independent copy with ToOwned:
//
//	body, err := span.Slice(10, span.Len()-10)
//	if err != nil {
//	    return err
//	}
//	kept := body.ToOwned()
package bytespan

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrOutOfRange is returned when a requested window does not fit inside its source span.
	ErrOutOfRange = errors.New("span window out of range")

	// ErrInsufficientData is returned by decoders when the input is shorter
	// than a declared or required length.
	ErrInsufficientData = errors.New("insufficient data")
)

// Span is a (backing, offset, length) view. The zero value is an empty span.
type Span struct {
	buf []byte
	off int
	n   int
}

// Empty is the zero-length span.
var Empty = Span{}

// New wraps b without copying.
func New(b []byte) Span {
	return Span{buf: b, n: len(b)}
}

// Copy returns a span over a private copy of b.
func Copy(b []byte) Span {
	if len(b) == 0 {
		return Empty
	}
	owned := make([]byte, len(b))
	copy(owned, b)
	return New(owned)
}

// Len returns the number of bytes in the span.
func (s Span) Len() int { return s.n }

// Offset returns the start of the span within its backing storage.
func (s Span) Offset() int { return s.off }

// Slice returns the sub-window [offset, offset+length) of s.
func (s Span) Slice(offset, length int) (Span, error) {
	if offset < 0 || length < 0 || offset > s.n || length > s.n-offset {
		return Span{}, fmt.Errorf("%w: slice(%d, %d) of %d bytes", ErrOutOfRange, offset, length, s.n)
	}
	return Span{buf: s.buf, off: s.off + offset, n: length}, nil
}

// SliceFrom returns everything from offset to the end of s.
func (s Span) SliceFrom(offset int) (Span, error) {
	if offset < 0 || offset > s.n {
		return Span{}, fmt.Errorf("%w: slice(%d) of %d bytes", ErrOutOfRange, offset, s.n)
	}
	return Span{buf: s.buf, off: s.off + offset, n: s.n - offset}, nil
}

// Bytes returns the viewed bytes. The result shares storage with the
// span; its capacity is clipped so appending to it cannot overwrite
// neighbouring data.
func (s Span) Bytes() []byte {
	if s.n == 0 {
		return nil
	}
	return s.buf[s.off : s.off+s.n : s.off+s.n]
}

// ToOwned copies the viewed bytes into fresh storage.
func (s Span) ToOwned() Span {
	return Copy(s.Bytes())
}

// Equal reports whether both spans view the same byte content.
func (s Span) Equal(other Span) bool {
	return bytes.Equal(s.Bytes(), other.Bytes())
}

// Hash returns a content hash; equal spans hash equally regardless of
// where they sit in their backing storage.
func (s Span) Hash() uint64 {
	return xxhash.Sum64(s.Bytes())
}

// Uint8At reads one byte at offset.
func (s Span) Uint8At(offset int) (uint8, error) {
	b, err := s.Slice(offset, 1)
	if err != nil {
		return 0, err
	}
	return b.buf[b.off], nil
}

// Uint16At reads a big-endian uint16 at offset.
func (s Span) Uint16At(offset int) (uint16, error) {
	b, err := s.Slice(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.Bytes()), nil
}

// Uint32At reads a big-endian uint32 at offset.
func (s Span) Uint32At(offset int) (uint32, error) {
	b, err := s.Slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.Bytes()), nil
}

// Uint64At reads a big-endian uint64 at offset.
func (s Span) Uint64At(offset int) (uint64, error) {
	b, err := s.Slice(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b.Bytes()), nil
}

// AppendTo appends the viewed bytes to dst.
func (s Span) AppendTo(dst []byte) []byte {
	return append(dst, s.Bytes()...)
}

// WriteTo implements io.WriterTo.
func (s Span) WriteTo(w io.Writer) (int64, error) {
	if s.n == 0 {
		return 0, nil
	}
	n, err := w.Write(s.Bytes())
	return int64(n), err
}

// String returns the content as lowercase hex.
func (s Span) String() string {
	return hex.EncodeToString(s.Bytes())
}
