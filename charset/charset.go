// Package charset maps the charset names carried in message records to
// text encoders and decoders.
//
// The protocol names charsets with short strings ("us-ascii",
// "iso-8859-1", "unicode-2-0"). Names outside that set are resolved
// through the WHATWG encoding index.
package charset

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrUnknownCharset is returned by Lookup for names no encoder exists for.
	ErrUnknownCharset = errors.New("unknown charset")

	// ErrUnrepresentable is returned when a string holds runes the charset cannot encode.
	ErrUnrepresentable = errors.New("text not representable in charset")
)

// Charset is a named text encoding.
type Charset struct {
	name  string
	enc   encoding.Encoding
	ascii bool
}

var (
	// ASCII is 7-bit US-ASCII.
	ASCII = Charset{name: "us-ascii", enc: charmap.ISO8859_1, ascii: true}
	// Latin1 is ISO-8859-1.
	Latin1 = Charset{name: "iso-8859-1", enc: charmap.ISO8859_1}
	// UCS2 is big-endian UTF-16, which the protocol calls "unicode-2-0".
	UCS2 = Charset{name: "unicode-2-0", enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}
	// UTF8 is UTF-8.
	UTF8 = Charset{name: "utf-8", enc: unicode.UTF8}
)

// Default is used when neither the caller nor the chain names a charset.
var Default = ASCII

var aliases = map[string]Charset{
	"us-ascii":    ASCII,
	"ascii":       ASCII,
	"iso-8859-1":  Latin1,
	"latin1":      Latin1,
	"unicode-2-0": UCS2,
	"utf-16be":    UCS2,
	"utf-8":       UTF8,
	"utf8":        UTF8,
}

// Lookup resolves a charset name, case-insensitively.
func Lookup(name string) (Charset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if cs, ok := aliases[key]; ok {
		return cs, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return Charset{}, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = key
	}
	return Charset{name: canonical, enc: enc}, nil
}

// Name returns the protocol name of the charset.
func (c Charset) Name() string {
	if c.enc == nil {
		return Default.name
	}
	return c.name
}

// IsZero reports whether c is the zero Charset.
func (c Charset) IsZero() bool { return c.enc == nil }

func (c Charset) resolve() Charset {
	if c.enc == nil {
		return Default
	}
	return c
}

// Decode converts wire bytes to a string.
func (c Charset) Decode(b []byte) (string, error) {
	c = c.resolve()
	if len(b) == 0 {
		return "", nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	return string(out), nil
}

// Encode converts a string to wire bytes.
func (c Charset) Encode(s string) ([]byte, error) {
	c = c.resolve()
	if c.ascii {
		for _, r := range s {
			if r >= 0x80 {
				return nil, fmt.Errorf("%w: %q in %s", ErrUnrepresentable, r, c.name)
			}
		}
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnrepresentable, c.name, err)
	}
	return out, nil
}

// Best picks the narrowest of ASCII, Latin1 and UCS2 able to carry s.
func Best(s string) Charset {
	best := ASCII
	for _, r := range s {
		switch {
		case r < 0x80:
		case r <= 0xff:
			best = Latin1
		default:
			return UCS2
		}
	}
	return best
}
