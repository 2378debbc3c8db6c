package service

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/tlv"
	"github.com/opd-ai/oscarcore/userinfo"
)

// Family is the service family id.
const Family uint16 = 0x0001

// Subtypes.
const (
	SubtypeError           uint16 = 0x0001
	SubtypeClientReady     uint16 = 0x0002
	SubtypeServerReady     uint16 = 0x0003
	SubtypeRateInfoRequest uint16 = 0x0006
	SubtypeRateInfo        uint16 = 0x0007
	SubtypeRateAck         uint16 = 0x0008
	SubtypeRateChange      uint16 = 0x000a
	SubtypeSelfInfoRequest uint16 = 0x000e
	SubtypeSelfInfo        uint16 = 0x000f
	SubtypeClientVersions  uint16 = 0x0017
	SubtypeServerVersions  uint16 = 0x0018
)

// ErrUnknownSubtype is returned by Decode for subtypes outside the family.
var ErrUnknownSubtype = errors.New("unknown service subtype")

// Command is a member of the service family.
type Command interface {
	snac.Command
	isService()
}

func key(subtype uint16) snac.Key {
	return snac.Key{Family: Family, Subtype: subtype}
}

// Error reports that a request could not be served.
type Error struct {
	Code uint16
	// Extra holds the optional records following the code.
	Extra *tlv.Chain
}

func (*Error) isService()    {}
func (*Error) Key() snac.Key { return key(SubtypeError) }

// BodyLen implements snac.Command.
func (e *Error) BodyLen() int {
	n := 2
	if e.Extra != nil {
		n += e.Extra.WritableLength()
	}
	return n
}

// AppendBody implements snac.Command.
func (e *Error) AppendBody(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, e.Code)
	if e.Extra != nil {
		dst = e.Extra.AppendTo(dst)
	}
	return dst
}

// FamilyVersion names a family with the version and tool the client
// implements for it.
type FamilyVersion struct {
	Family      uint16
	Version     uint16
	ToolID      uint16
	ToolVersion uint16
}

// ClientReady tells the server the client has finished setting up.
type ClientReady struct {
	Families []FamilyVersion
}

func (*ClientReady) isService()    {}
func (*ClientReady) Key() snac.Key { return key(SubtypeClientReady) }

// BodyLen implements snac.Command.
func (c *ClientReady) BodyLen() int { return 8 * len(c.Families) }

// AppendBody implements snac.Command.
func (c *ClientReady) AppendBody(dst []byte) []byte {
	for _, f := range c.Families {
		dst = binary.BigEndian.AppendUint16(dst, f.Family)
		dst = binary.BigEndian.AppendUint16(dst, f.Version)
		dst = binary.BigEndian.AppendUint16(dst, f.ToolID)
		dst = binary.BigEndian.AppendUint16(dst, f.ToolVersion)
	}
	return dst
}

// ServerReady lists the families the connection serves.
type ServerReady struct {
	Families []uint16
}

func (*ServerReady) isService()    {}
func (*ServerReady) Key() snac.Key { return key(SubtypeServerReady) }

// BodyLen implements snac.Command.
func (s *ServerReady) BodyLen() int { return 2 * len(s.Families) }

// AppendBody implements snac.Command.
func (s *ServerReady) AppendBody(dst []byte) []byte {
	return appendUint16s(dst, s.Families)
}

// RateInfoRequest asks for the rate class table.
type RateInfoRequest struct{}

func (*RateInfoRequest) isService()                 {}
func (*RateInfoRequest) Key() snac.Key              { return key(SubtypeRateInfoRequest) }
func (*RateInfoRequest) BodyLen() int               { return 0 }
func (*RateInfoRequest) AppendBody(b []byte) []byte { return b }

// RateAck acknowledges the listed rate classes.
type RateAck struct {
	ClassIDs []uint16
}

func (*RateAck) isService()    {}
func (*RateAck) Key() snac.Key { return key(SubtypeRateAck) }

// BodyLen implements snac.Command.
func (a *RateAck) BodyLen() int { return 2 * len(a.ClassIDs) }

// AppendBody implements snac.Command.
func (a *RateAck) AppendBody(dst []byte) []byte {
	return appendUint16s(dst, a.ClassIDs)
}

// SelfInfoRequest asks for the client's own user information.
type SelfInfoRequest struct{}

func (*SelfInfoRequest) isService()                 {}
func (*SelfInfoRequest) Key() snac.Key              { return key(SubtypeSelfInfoRequest) }
func (*SelfInfoRequest) BodyLen() int               { return 0 }
func (*SelfInfoRequest) AppendBody(b []byte) []byte { return b }

// SelfInfo carries the client's own user information.
type SelfInfo struct {
	Info *userinfo.Info
}

func (*SelfInfo) isService()    {}
func (*SelfInfo) Key() snac.Key { return key(SubtypeSelfInfo) }

// BodyLen implements snac.Command.
func (s *SelfInfo) BodyLen() int { return s.Info.Len() }

// AppendBody implements snac.Command.
func (s *SelfInfo) AppendBody(dst []byte) []byte { return s.Info.AppendTo(dst) }

// Version pairs a family with a protocol version.
type Version struct {
	Family  uint16
	Version uint16
}

// ClientVersions lists the family versions the client speaks.
type ClientVersions struct {
	Versions []Version
}

func (*ClientVersions) isService()    {}
func (*ClientVersions) Key() snac.Key { return key(SubtypeClientVersions) }

// BodyLen implements snac.Command.
func (c *ClientVersions) BodyLen() int { return 4 * len(c.Versions) }

// AppendBody implements snac.Command.
func (c *ClientVersions) AppendBody(dst []byte) []byte { return appendVersions(dst, c.Versions) }

// ServerVersions lists the family versions the server speaks.
type ServerVersions struct {
	Versions []Version
}

func (*ServerVersions) isService()    {}
func (*ServerVersions) Key() snac.Key { return key(SubtypeServerVersions) }

// BodyLen implements snac.Command.
func (s *ServerVersions) BodyLen() int { return 4 * len(s.Versions) }

// AppendBody implements snac.Command.
func (s *ServerVersions) AppendBody(dst []byte) []byte { return appendVersions(dst, s.Versions) }

func appendUint16s(dst []byte, vs []uint16) []byte {
	for _, v := range vs {
		dst = binary.BigEndian.AppendUint16(dst, v)
	}
	return dst
}

func appendVersions(dst []byte, vs []Version) []byte {
	for _, v := range vs {
		dst = binary.BigEndian.AppendUint16(dst, v.Family)
		dst = binary.BigEndian.AppendUint16(dst, v.Version)
	}
	return dst
}

func parseUint16s(s bytespan.Span) ([]uint16, error) {
	if s.Len()%2 != 0 {
		return nil, fmt.Errorf("%w: list of %d bytes is not a multiple of 2", tlv.ErrMalformedField, s.Len())
	}
	r := bytespan.NewReader(s)
	out := make([]uint16, 0, s.Len()/2)
	for r.Remaining() > 0 {
		out = append(out, r.Uint16())
	}
	return out, r.Err()
}

func parseVersions(s bytespan.Span) ([]Version, error) {
	if s.Len()%4 != 0 {
		return nil, fmt.Errorf("%w: version list of %d bytes is not a multiple of 4", tlv.ErrMalformedField, s.Len())
	}
	r := bytespan.NewReader(s)
	out := make([]Version, 0, s.Len()/4)
	for r.Remaining() > 0 {
		out = append(out, Version{Family: r.Uint16(), Version: r.Uint16()})
	}
	return out, r.Err()
}

func parseFamilyVersions(s bytespan.Span) ([]FamilyVersion, error) {
	if s.Len()%8 != 0 {
		return nil, fmt.Errorf("%w: family list of %d bytes is not a multiple of 8", tlv.ErrMalformedField, s.Len())
	}
	r := bytespan.NewReader(s)
	out := make([]FamilyVersion, 0, s.Len()/8)
	for r.Remaining() > 0 {
		out = append(out, FamilyVersion{
			Family:      r.Uint16(),
			Version:     r.Uint16(),
			ToolID:      r.Uint16(),
			ToolVersion: r.Uint16(),
		})
	}
	return out, r.Err()
}

var (
	_ Command = (*Error)(nil)
	_ Command = (*ClientReady)(nil)
	_ Command = (*ServerReady)(nil)
	_ Command = (*RateInfoRequest)(nil)
	_ Command = (*RateInfo)(nil)
	_ Command = (*RateAck)(nil)
	_ Command = (*RateChange)(nil)
	_ Command = (*SelfInfoRequest)(nil)
	_ Command = (*SelfInfo)(nil)
	_ Command = (*ClientVersions)(nil)
	_ Command = (*ServerVersions)(nil)
)
