package snac

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/tlv"
)

// HeaderLen is the size of the command header.
const HeaderLen = 10

// Header flags.
const (
	// FlagMoreReplies marks a reply that will be followed by more replies
	// to the same request.
	FlagMoreReplies uint16 = 0x0001
	// FlagHasVersionInfo marks a body that starts with a length-prefixed
	// version block.
	FlagHasVersionInfo uint16 = 0x8000
)

// ErrInsufficientData is returned when a buffer is shorter than the header
// or a declared length.
var ErrInsufficientData = tlv.ErrInsufficientData

// Key identifies a command type.
type Key struct {
	Family  uint16
	Subtype uint16
}

// String returns the key as "0xFFFF/0xSSSS".
func (k Key) String() string {
	return fmt.Sprintf("0x%04x/0x%04x", k.Family, k.Subtype)
}

// Less orders keys by family then subtype.
func (k Key) Less(other Key) bool {
	if k.Family != other.Family {
		return k.Family < other.Family
	}
	return k.Subtype < other.Subtype
}

// Header is the fixed command header.
type Header struct {
	Family    uint16
	Subtype   uint16
	Flags     uint16
	RequestID uint32
}

// Key returns the dispatch key.
func (h Header) Key() Key {
	return Key{Family: h.Family, Subtype: h.Subtype}
}

// ParseHeader reads the header from the front of s.
func ParseHeader(s bytespan.Span) (Header, error) {
	if s.Len() < HeaderLen {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInsufficientData, HeaderLen, s.Len())
	}
	family, _ := s.Uint16At(0)
	subtype, _ := s.Uint16At(2)
	flags, _ := s.Uint16At(4)
	reqID, _ := s.Uint32At(6)
	return Header{Family: family, Subtype: subtype, Flags: flags, RequestID: reqID}, nil
}

// AppendTo appends the encoded header to dst.
func (h Header) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, h.Family)
	dst = binary.BigEndian.AppendUint16(dst, h.Subtype)
	dst = binary.BigEndian.AppendUint16(dst, h.Flags)
	return binary.BigEndian.AppendUint32(dst, h.RequestID)
}

// Envelope is a parsed header plus a view of its body.
type Envelope struct {
	Header
	// VersionInfo holds the block announced by FlagHasVersionInfo.
	VersionInfo bytespan.Span
	Body        bytespan.Span
	// MaxRecords bounds chains parsed from the body; zero means unbounded.
	MaxRecords int
}

// ParseEnvelope parses raw without copying; the envelope views raw.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	return ParseEnvelopeSpan(bytespan.New(raw))
}

// ParseEnvelopeSpan parses one envelope occupying all of s.
func ParseEnvelopeSpan(s bytespan.Span) (*Envelope, error) {
	h, err := ParseHeader(s)
	if err != nil {
		return nil, err
	}
	body, _ := s.SliceFrom(HeaderLen)
	env := &Envelope{Header: h}
	if h.Flags&FlagHasVersionInfo != 0 {
		n, err := body.Uint16At(0)
		if err != nil {
			return nil, fmt.Errorf("%w: %s version block length missing", ErrInsufficientData, h.Key())
		}
		info, err := body.Slice(2, int(n))
		if err != nil {
			return nil, fmt.Errorf("%w: %s version block declares %d bytes, have %d", ErrInsufficientData, h.Key(), n, body.Len()-2)
		}
		env.VersionInfo = info
		body, _ = body.SliceFrom(2 + int(n))
	}
	env.Body = body
	return env, nil
}

// ParseChain parses a chain from s honouring MaxRecords.
func (e *Envelope) ParseChain(s bytespan.Span) (*tlv.Chain, int) {
	return tlv.ParseChain(s, e.MaxRecords)
}

// Owned returns a copy of e that no longer views the packet buffer.
func (e *Envelope) Owned() *Envelope {
	out := *e
	out.VersionInfo = e.VersionInfo.ToOwned()
	out.Body = e.Body.ToOwned()
	return &out
}
