package tlv

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/logging"
)

// Reader is the read-only view shared by *Chain and *MutableChain.
type Reader interface {
	Len() int
	Records() []Record
	First(tag uint16) (Record, bool)
	Last(tag uint16) (Record, bool)
	All(tag uint16) []Record
	Has(tag uint16) bool
	WritableLength() int
	AppendTo(dst []byte) []byte
}

// body holds the records and read accessors common to both chain forms.
type body struct {
	records []Record
	charset charset.Charset
}

// Len returns the number of records.
func (b *body) Len() int { return len(b.records) }

// Records returns the records in order. The slice is a copy.
func (b *body) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// At returns the i-th record.
func (b *body) At(i int) Record { return b.records[i] }

// First returns the earliest record with the given tag.
func (b *body) First(tag uint16) (Record, bool) {
	for _, r := range b.records {
		if r.Tag == tag {
			return r, true
		}
	}
	return Record{}, false
}

// Last returns the latest record with the given tag.
func (b *body) Last(tag uint16) (Record, bool) {
	for i := len(b.records) - 1; i >= 0; i-- {
		if b.records[i].Tag == tag {
			return b.records[i], true
		}
	}
	return Record{}, false
}

// All returns every record with the given tag, in order.
func (b *body) All(tag uint16) []Record {
	var out []Record
	for _, r := range b.records {
		if r.Tag == tag {
			out = append(out, r)
		}
	}
	return out
}

// Has reports whether any record carries tag.
func (b *body) Has(tag uint16) bool {
	_, ok := b.First(tag)
	return ok
}

// Charset returns the charset used by String when none is given.
func (b *body) Charset() charset.Charset { return b.charset }

// Uint8 decodes the first record with tag. ok is false when the tag is absent.
func (b *body) Uint8(tag uint16) (v uint8, ok bool, err error) {
	r, ok := b.First(tag)
	if !ok {
		return 0, false, nil
	}
	v, err = r.Uint8()
	return v, true, err
}

// Uint16 decodes the first record with tag. ok is false when the tag is absent.
func (b *body) Uint16(tag uint16) (v uint16, ok bool, err error) {
	r, ok := b.First(tag)
	if !ok {
		return 0, false, nil
	}
	v, err = r.Uint16()
	return v, true, err
}

// Uint32 decodes the first record with tag. ok is false when the tag is absent.
func (b *body) Uint32(tag uint16) (v uint32, ok bool, err error) {
	r, ok := b.First(tag)
	if !ok {
		return 0, false, nil
	}
	v, err = r.Uint32()
	return v, true, err
}

// Uint64 decodes the first record with tag. ok is false when the tag is absent.
func (b *body) Uint64(tag uint16) (v uint64, ok bool, err error) {
	r, ok := b.First(tag)
	if !ok {
		return 0, false, nil
	}
	v, err = r.Uint64()
	return v, true, err
}

// String decodes the first record with tag in the chain's charset.
func (b *body) String(tag uint16) (string, bool, error) {
	return b.StringCharset(tag, b.charset)
}

// StringCharset decodes the first record with tag in cs.
func (b *body) StringCharset(tag uint16, cs charset.Charset) (string, bool, error) {
	r, ok := b.First(tag)
	if !ok {
		return "", false, nil
	}
	s, err := r.String(cs)
	return s, true, err
}

// PrefixedString decodes the first record with tag as a length-prefixed string.
func (b *body) PrefixedString(tag uint16) (string, bool, error) {
	r, ok := b.First(tag)
	if !ok {
		return "", false, nil
	}
	s, err := r.PrefixedString(b.charset)
	return s, true, err
}

// SubChain parses the first record with tag as a nested chain.
func (b *body) SubChain(tag uint16) (*Chain, bool) {
	r, ok := b.First(tag)
	if !ok {
		return nil, false
	}
	sub := r.Chain()
	sub.charset = b.charset
	return sub, true
}

// WritableLength returns the exact number of bytes AppendTo and WriteTo produce.
func (b *body) WritableLength() int {
	n := 0
	for _, r := range b.records {
		n += r.Len()
	}
	return n
}

// AppendTo appends every record, in order, to dst.
func (b *body) AppendTo(dst []byte) []byte {
	for _, r := range b.records {
		dst = r.AppendTo(dst)
	}
	return dst
}

// Bytes returns the encoded chain.
func (b *body) Bytes() []byte {
	return b.AppendTo(make([]byte, 0, b.WritableLength()))
}

// AppendCounted appends a two-byte record count followed by the chain.
func (b *body) AppendCounted(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(b.records)))
	return b.AppendTo(dst)
}

// AppendLength appends a two-byte byte length followed by the chain.
func (b *body) AppendLength(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(b.WritableLength()))
	return b.AppendTo(dst)
}

// WriteTo writes the encoded chain to w.
func (b *body) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes())
	return int64(n), err
}

// Chain is a frozen, ordered sequence of records. It is safe for
// concurrent readers.
type Chain struct {
	body
}

// NewChain creates a frozen chain holding records in order.
func NewChain(records ...Record) *Chain {
	c := &Chain{}
	c.records = make([]Record, len(records))
	copy(c.records, records)
	return c
}

// ParseChain reads records from the front of s until s is exhausted or
// maxRecords have been read (maxRecords <= 0 means no limit). A trailing
// record whose header or value is cut short ends the chain without an
// error. The second result is the number of bytes consumed.
func ParseChain(s bytespan.Span, maxRecords int) (*Chain, int) {
	c := &Chain{}
	offset := 0
	for maxRecords <= 0 || len(c.records) < maxRecords {
		if offset == s.Len() {
			break
		}
		rest, _ := s.SliceFrom(offset)
		r, n, err := Parse(rest)
		if err != nil {
			logging.NewLogger("tlv", "ParseChain").
				WithField("records", len(c.records)).
				WithField("trailing_bytes", rest.Len()).
				WithError(err, "parse_record").
				Debug("Chain ends at truncated record")
			break
		}
		c.records = append(c.records, r)
		offset += n
	}
	return c, offset
}

// ParseCountedChain reads a two-byte record count followed by up to that
// many records. It fails only if the count itself is missing.
func ParseCountedChain(s bytespan.Span) (*Chain, int, error) {
	count, err := s.Uint16At(0)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing record count", ErrInsufficientData)
	}
	rest, _ := s.SliceFrom(2)
	if count == 0 {
		return &Chain{}, 2, nil
	}
	c, n := ParseChain(rest, int(count))
	return c, 2 + n, nil
}

// ParseLengthChain reads a two-byte byte length followed by a chain
// filling exactly that many bytes.
func ParseLengthChain(s bytespan.Span) (*Chain, int, error) {
	length, err := s.Uint16At(0)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing chain length", ErrInsufficientData)
	}
	region, err := s.Slice(2, int(length))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: chain declares %d bytes, have %d", ErrInsufficientData, length, s.Len()-2)
	}
	c, _ := ParseChain(region, 0)
	return c, 2 + int(length), nil
}

// WithCharset returns a chain sharing c's records whose String accessor
// decodes in cs.
func (c *Chain) WithCharset(cs charset.Charset) *Chain {
	return &Chain{body{records: c.records, charset: cs}}
}

// Equal reports whether both chains hold equal records in the same order.
func (c *Chain) Equal(other Reader) bool {
	if other == nil || c.Len() != other.Len() {
		return false
	}
	theirs := other.Records()
	for i, r := range c.records {
		if !r.Equal(theirs[i]) {
			return false
		}
	}
	return true
}

// Owned returns a chain whose values live in one private buffer.
func (c *Chain) Owned() *Chain {
	if len(c.records) == 0 {
		return &Chain{body{charset: c.charset}}
	}
	size := 0
	for _, r := range c.records {
		size += r.Value.Len()
	}
	buf := make([]byte, 0, size)
	out := &Chain{body{records: make([]Record, len(c.records)), charset: c.charset}}
	for i, r := range c.records {
		start := len(buf)
		buf = r.Value.AppendTo(buf)
		out.records[i] = Record{Tag: r.Tag, Value: bytespan.New(buf[start:len(buf):len(buf)])}
	}
	return out
}

// Mutable returns a builder seeded with c's records.
func (c *Chain) Mutable() *MutableChain {
	m := &MutableChain{}
	m.records = c.Records()
	m.charset = c.charset
	return m
}
