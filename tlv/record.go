package tlv

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/charset"
)

const (
	// HeaderLen is the size of a record's tag and length fields.
	HeaderLen = 4

	// MaxValueLen is the largest value a 16-bit length field can describe.
	MaxValueLen = 0xffff
)

// Record is a single tagged value. Records are immutable.
type Record struct {
	Tag   uint16
	Value bytespan.Span
}

// New creates a record viewing value without copying it. It panics if
// value cannot be described by a 16-bit length.
func New(tag uint16, value []byte) Record {
	checkValueLen(tag, len(value))
	return Record{Tag: tag, Value: bytespan.New(value)}
}

func checkValueLen(tag uint16, n int) {
	if n > MaxValueLen {
		panic(fmt.Sprintf("tlv: value for tag 0x%04x is %d bytes, max %d", tag, n, MaxValueLen))
	}
}

// NewEmpty creates a record with no value. Empty records act as flags.
func NewEmpty(tag uint16) Record {
	return Record{Tag: tag}
}

// NewUint8 creates a one-byte record.
func NewUint8(tag uint16, v uint8) Record {
	return New(tag, []byte{v})
}

// NewUint16 creates a big-endian two-byte record.
func NewUint16(tag uint16, v uint16) Record {
	return New(tag, binary.BigEndian.AppendUint16(nil, v))
}

// NewUint32 creates a big-endian four-byte record.
func NewUint32(tag uint16, v uint32) Record {
	return New(tag, binary.BigEndian.AppendUint32(nil, v))
}

// NewUint64 creates a big-endian eight-byte record.
func NewUint64(tag uint16, v uint64) Record {
	return New(tag, binary.BigEndian.AppendUint64(nil, v))
}

// NewString encodes s in cs and wraps it in a record.
func NewString(tag uint16, s string, cs charset.Charset) (Record, error) {
	b, err := cs.Encode(s)
	if err != nil {
		return Record{}, err
	}
	if len(b) > MaxValueLen {
		return Record{}, fmt.Errorf("tlv 0x%04x: string of %d bytes exceeds %d", tag, len(b), MaxValueLen)
	}
	return New(tag, b), nil
}

// NewNested wraps the encoded form of a nested chain in a record.
func NewNested(tag uint16, nested Reader) Record {
	return New(tag, nested.AppendTo(make([]byte, 0, nested.WritableLength())))
}

// Parse reads one record from the front of s and reports how many bytes
// it consumed. It returns ErrInsufficientData if s holds fewer than four
// bytes or the declared length runs past the end of s.
func Parse(s bytespan.Span) (Record, int, error) {
	if s.Len() < HeaderLen {
		return Record{}, 0, fmt.Errorf("%w: record header needs %d bytes, have %d", ErrInsufficientData, HeaderLen, s.Len())
	}
	tag, _ := s.Uint16At(0)
	length, _ := s.Uint16At(2)
	value, err := s.Slice(HeaderLen, int(length))
	if err != nil {
		return Record{}, 0, fmt.Errorf("%w: tag 0x%04x declares %d bytes, have %d", ErrInsufficientData, tag, length, s.Len()-HeaderLen)
	}
	return Record{Tag: tag, Value: value}, HeaderLen + int(length), nil
}

// Len returns the encoded size: four header bytes plus the value.
func (r Record) Len() int {
	return HeaderLen + r.Value.Len()
}

// AppendTo appends the encoded record to dst. Like New, it panics if a
// record built as a struct literal holds more than MaxValueLen bytes.
func (r Record) AppendTo(dst []byte) []byte {
	checkValueLen(r.Tag, r.Value.Len())
	dst = binary.BigEndian.AppendUint16(dst, r.Tag)
	dst = binary.BigEndian.AppendUint16(dst, uint16(r.Value.Len()))
	return r.Value.AppendTo(dst)
}

// Bytes returns the encoded record.
func (r Record) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, r.Len()))
}

// Owned returns a copy of r whose value no longer aliases the parse buffer.
func (r Record) Owned() Record {
	return Record{Tag: r.Tag, Value: r.Value.ToOwned()}
}

// Equal reports whether both records have the same tag and value bytes.
func (r Record) Equal(other Record) bool {
	return r.Tag == other.Tag && r.Value.Equal(other.Value)
}

// Hash returns a content hash of tag and value.
func (r Record) Hash() uint64 {
	return r.Value.Hash()*31 + uint64(r.Tag)
}

// Uint8 decodes the first value byte.
func (r Record) Uint8() (uint8, error) {
	v, err := r.Value.Uint8At(0)
	if err != nil {
		return 0, shortField(r.Tag, "uint8", 1, r.Value.Len())
	}
	return v, nil
}

// Uint16 decodes the first two value bytes.
func (r Record) Uint16() (uint16, error) {
	v, err := r.Value.Uint16At(0)
	if err != nil {
		return 0, shortField(r.Tag, "uint16", 2, r.Value.Len())
	}
	return v, nil
}

// Uint32 decodes the first four value bytes.
func (r Record) Uint32() (uint32, error) {
	v, err := r.Value.Uint32At(0)
	if err != nil {
		return 0, shortField(r.Tag, "uint32", 4, r.Value.Len())
	}
	return v, nil
}

// Uint64 decodes the first eight value bytes.
func (r Record) Uint64() (uint64, error) {
	v, err := r.Value.Uint64At(0)
	if err != nil {
		return 0, shortField(r.Tag, "uint64", 8, r.Value.Len())
	}
	return v, nil
}

// String decodes the whole value in cs.
func (r Record) String(cs charset.Charset) (string, error) {
	s, err := cs.Decode(r.Value.Bytes())
	if err != nil {
		return "", &FieldError{Tag: r.Tag, Op: "string", Err: fmt.Errorf("%w: %v", ErrMalformedField, err)}
	}
	return s, nil
}

// PrefixedString decodes a string preceded by a two-byte length.
func (r Record) PrefixedString(cs charset.Charset) (string, error) {
	n, err := r.Value.Uint16At(0)
	if err != nil {
		return "", shortField(r.Tag, "prefixed string", 2, r.Value.Len())
	}
	body, err := r.Value.Slice(2, int(n))
	if err != nil {
		return "", shortField(r.Tag, "prefixed string", 2+int(n), r.Value.Len())
	}
	s, err := cs.Decode(body.Bytes())
	if err != nil {
		return "", &FieldError{Tag: r.Tag, Op: "prefixed string", Err: fmt.Errorf("%w: %v", ErrMalformedField, err)}
	}
	return s, nil
}

// Chain parses the value as a nested chain.
func (r Record) Chain() *Chain {
	c, _ := ParseChain(r.Value, 0)
	return c
}

// GoString renders the record for %#v.
func (r Record) GoString() string {
	return fmt.Sprintf("tlv.Record{Tag: 0x%04x, Value: %s}", r.Tag, r.Value.String())
}
