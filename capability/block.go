package capability

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
)

// ParseBlock decodes a run of 16-byte identifiers. The identifiers are
// copied, so the result does not alias the packet buffer.
func ParseBlock(s bytespan.Span) ([]Capability, error) {
	if s.Len()%Len != 0 {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrInvalidLength, s.Len())
	}
	b := s.Bytes()
	out := make([]Capability, 0, len(b)/Len)
	for i := 0; i < len(b); i += Len {
		out = append(out, Capability(b[i:i+Len]))
	}
	return out, nil
}

// ParseShortBlock decodes a run of 2-byte compact identifiers.
func ParseShortBlock(s bytespan.Span) ([]Short, error) {
	if s.Len()%2 != 0 {
		return nil, fmt.Errorf("%w: short block of %d bytes", ErrInvalidLength, s.Len())
	}
	b := s.Bytes()
	out := make([]Short, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		out = append(out, Short(binary.BigEndian.Uint16(b[i:])))
	}
	return out, nil
}

// AppendBlock appends the full form of each identifier to dst.
func AppendBlock(dst []byte, caps []Capability) []byte {
	for _, c := range caps {
		dst = append(dst, c[:]...)
	}
	return dst
}

// AppendShortBlock appends each compact identifier to dst.
func AppendShortBlock(dst []byte, shorts []Short) []byte {
	for _, s := range shorts {
		dst = binary.BigEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// Split separates caps into those that can be sent compactly and those
// that need the full form, keeping the input order within each group.
func Split(caps []Capability) (short []Short, long []Capability) {
	for _, c := range caps {
		if s, err := c.Short(); err == nil {
			short = append(short, s)
			continue
		}
		long = append(long, c)
	}
	return short, long
}

// Expand converts compact identifiers to their full form.
func Expand(shorts []Short) []Capability {
	out := make([]Capability, len(shorts))
	for i, s := range shorts {
		out[i] = FromShort(s)
	}
	return out
}

// Contains reports whether caps holds c.
func Contains(caps []Capability, c Capability) bool {
	for _, have := range caps {
		if have == c {
			return true
		}
	}
	return false
}
