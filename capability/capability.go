// Package capability implements the 16-byte identifiers peers use to
// advertise optional features, and the 2-byte compact form that covers
// the common identifier family.
//
// Identifiers of the form 09 46 XX YY 4c 7f 11 d1 82 22 44 45 53 54 00 00
// differ only in bytes 2 and 3, so they can be sent as just XX YY:
//
//	short, err := capability.BuddyIcon.Short() // 0x1346
//	full := capability.FromShort(short)        // == capability.BuddyIcon
package capability

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Len is the size of a full capability identifier.
const Len = 16

var (
	// ErrNotCompactible is returned when an identifier does not fit the compact template.
	ErrNotCompactible = errors.New("capability does not fit compact template")

	// ErrInvalidLength is returned when input is not a whole number of identifiers.
	ErrInvalidLength = errors.New("invalid capability length")

	// ErrInvalidString is returned by ParseString for text that is not a UUID.
	ErrInvalidString = errors.New("invalid capability string")
)

// Capability is a full 16-byte identifier. Arrays compare and hash by
// value, so Capability works directly as a map key.
type Capability [Len]byte

// Short is the compact 2-byte form.
type Short uint16

// template holds the fixed bytes of compactible identifiers; bytes 2 and 3 vary.
var template = Capability{
	0x09, 0x46, 0x00, 0x00, 0x4c, 0x7f, 0x11, 0xd1,
	0x82, 0x22, 0x44, 0x45, 0x53, 0x54, 0x00, 0x00,
}

// Template returns the fixed template with zeroes in the variable bytes.
func Template() Capability { return template }

// Parse copies a 16-byte identifier out of b.
func Parse(b []byte) (Capability, error) {
	var c Capability
	if len(b) != Len {
		return c, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(b))
	}
	copy(c[:], b)
	return c, nil
}

// ParseString parses the dashed UUID form, e.g.
// "09461346-4c7f-11d1-8222-444553540000". The bare 32-digit hex and
// braced forms are accepted too.
func ParseString(s string) (Capability, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return Capability{}, fmt.Errorf("%w %q: %w", ErrInvalidString, s, err)
	}
	return Capability(u), nil
}

// MustParseString is ParseString for package-level constants.
func MustParseString(s string) Capability {
	c, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Compactible reports whether bytes [0,2) and [4,16) match the template.
func (c Capability) Compactible() bool {
	return c[0] == template[0] && c[1] == template[1] && [12]byte(c[4:]) == [12]byte(template[4:])
}

// Short returns bytes [2,4) of a compactible identifier.
func (c Capability) Short() (Short, error) {
	if !c.Compactible() {
		return 0, fmt.Errorf("%w: %s", ErrNotCompactible, c)
	}
	return Short(binary.BigEndian.Uint16(c[2:4])), nil
}

// FromShort rebuilds the full identifier by splicing s into the template.
func FromShort(s Short) Capability {
	c := template
	binary.BigEndian.PutUint16(c[2:4], uint16(s))
	return c
}

// Full is FromShort as a method.
func (s Short) Full() Capability { return FromShort(s) }

// Bytes returns the identifier as a slice.
func (c Capability) Bytes() []byte {
	out := make([]byte, Len)
	copy(out, c[:])
	return out
}

// String returns the dashed UUID form.
func (c Capability) String() string {
	return uuid.UUID(c).String()
}

// Name returns the well-known name of c, or its UUID form.
func (c Capability) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return c.String()
}

// String returns the short form as four hex digits.
func (s Short) String() string {
	return fmt.Sprintf("%04x", uint16(s))
}
