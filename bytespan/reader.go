package bytespan

import "fmt"

// Reader consumes a span from the front. The first failed read is kept
// and every later read returns zero values, so a decoder can read a whole
// fixed layout and check Err once at the end. A read past the end reports
// ErrInsufficientData.
type Reader struct {
	s   Span
	off int
	err error
}

// NewReader returns a reader positioned at the start of s.
func NewReader(s Span) *Reader {
	return &Reader{s: s}
}

// Err returns the first read error, if any.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return r.s.Len() - r.off }

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.s.Uint8At(r.off)
	r.advance(1, err, "uint8")
	return v
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.s.Uint16At(r.off)
	r.advance(2, err, "uint16")
	return v
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.s.Uint32At(r.off)
	r.advance(4, err, "uint32")
	return v
}

// Span reads the next n bytes as a view.
func (r *Reader) Span(n int) Span {
	if r.err != nil {
		return Empty
	}
	v, err := r.s.Slice(r.off, n)
	r.advance(n, err, "span")
	return v
}

// Rest consumes and returns every unread byte.
func (r *Reader) Rest() Span {
	if r.err != nil {
		return Empty
	}
	v, _ := r.s.SliceFrom(r.off)
	r.off = r.s.Len()
	return v
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	r.Span(n)
}

func (r *Reader) advance(n int, err error, what string) {
	if err != nil {
		r.err = fmt.Errorf("%w: read %s at offset %d needs %d bytes, have %d",
			ErrInsufficientData, what, r.off, n, r.Remaining())
		return
	}
	r.off += n
}
