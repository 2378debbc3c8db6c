// Package userinfo implements the user information block embedded in
// presence, self-info and incoming message commands.
//
// Wire format:
//
//	[name_len(1)][screen_name][warning_level(2)][tlv_count(2)][tlvs...]
//
// The record chain of an Info is built at most once, the first time it is
// needed, and shared by every later call. TLVCount and AppendTo therefore
// always agree, even when called from different goroutines.
package userinfo

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/capability"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/logging"
	"github.com/opd-ai/oscarcore/tlv"
)

// Record tags inside the block.
const (
	TagUserFlags     uint16 = 0x0001
	TagOnlineSince   uint16 = 0x0003
	TagIdleMinutes   uint16 = 0x0004
	TagMemberSince   uint16 = 0x0005
	TagStatus        uint16 = 0x0006
	TagCapabilities  uint16 = 0x000d
	TagSessionLength uint16 = 0x000f
	TagShortCaps     uint16 = 0x0019
)

// MaxScreenNameLen is the most a one-byte length prefix allows.
const MaxScreenNameLen = 0xff

// Options describes a user. Zero values are omitted from the encoding.
type Options struct {
	ScreenName        string
	WarningLevel      uint16
	Flags             uint16
	OnlineSince       time.Time
	IdleMinutes       uint16
	MemberSince       time.Time
	Status            *uint32
	SessionLength     uint32
	Capabilities      []capability.Capability
	ShortCapabilities []capability.Short
	// Extra holds records to emit after the known ones, in order.
	Extra *tlv.Chain
}

// Info is an immutable user information block.
type Info struct {
	opts Options
	// name is the screen name as sent on the wire.
	name []byte

	once  sync.Once
	chain *tlv.Chain
}

// ScreenNameBytes returns the wire form of a screen name: Latin-1 when
// every rune fits, the UTF-8 bytes otherwise.
func ScreenNameBytes(s string) []byte {
	if b, err := charset.Latin1.Encode(s); err == nil {
		return b
	}
	return []byte(s)
}

// New creates an Info. It fails if the screen name does not fit.
func New(opts Options) (*Info, error) {
	name := ScreenNameBytes(opts.ScreenName)
	if len(name) > MaxScreenNameLen {
		return nil, fmt.Errorf("screen name of %d bytes exceeds %d", len(name), MaxScreenNameLen)
	}
	opts.Capabilities = append([]capability.Capability(nil), opts.Capabilities...)
	opts.ShortCapabilities = append([]capability.Short(nil), opts.ShortCapabilities...)
	return &Info{opts: opts, name: name}, nil
}

// Parse reads one block from the front of s and reports the bytes consumed.
// Values that fail to decode are dropped from the typed view but kept in
// the chain, so re-encoding reproduces the input.
func Parse(s bytespan.Span) (*Info, int, error) {
	nameLen, err := s.Uint8At(0)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing screen name length", tlv.ErrInsufficientData)
	}
	name, err := s.Slice(1, int(nameLen))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: screen name declares %d bytes", tlv.ErrInsufficientData, nameLen)
	}
	off := 1 + int(nameLen)
	warning, err := s.Uint16At(off)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing warning level", tlv.ErrInsufficientData)
	}
	off += 2
	rest, _ := s.SliceFrom(off)
	chain, n, err := tlv.ParseCountedChain(rest)
	if err != nil {
		return nil, 0, err
	}
	off += n

	screenName, _ := charset.Latin1.Decode(name.Bytes())
	owned := chain.Owned()
	info := &Info{
		opts: Options{ScreenName: screenName, WarningLevel: warning},
		name: name.ToOwned().Bytes(),
	}
	info.decodeKnown(owned)
	info.once.Do(func() { info.chain = owned })
	return info, off, nil
}

func (i *Info) decodeKnown(c *tlv.Chain) {
	log := logging.NewLogger("userinfo", "Parse").WithField("screen_name", i.opts.ScreenName)
	warn := func(err error) {
		log.WithError(err, "decode_field").Warn("Ignoring malformed user info field")
	}

	if v, ok, err := c.Uint16(TagUserFlags); err != nil {
		warn(err)
	} else if ok {
		i.opts.Flags = v
	}
	if v, ok, err := c.Uint32(TagOnlineSince); err != nil {
		warn(err)
	} else if ok {
		i.opts.OnlineSince = time.Unix(int64(v), 0).UTC()
	}
	if v, ok, err := c.Uint16(TagIdleMinutes); err != nil {
		warn(err)
	} else if ok {
		i.opts.IdleMinutes = v
	}
	if v, ok, err := c.Uint32(TagMemberSince); err != nil {
		warn(err)
	} else if ok {
		i.opts.MemberSince = time.Unix(int64(v), 0).UTC()
	}
	if v, ok, err := c.Uint32(TagStatus); err != nil {
		warn(err)
	} else if ok {
		i.opts.Status = &v
	}
	if v, ok, err := c.Uint32(TagSessionLength); err != nil {
		warn(err)
	} else if ok {
		i.opts.SessionLength = v
	}
	if r, ok := c.First(TagCapabilities); ok {
		caps, err := capability.ParseBlock(r.Value)
		if err != nil {
			warn(err)
		} else {
			i.opts.Capabilities = caps
		}
	}
	if r, ok := c.First(TagShortCaps); ok {
		shorts, err := capability.ParseShortBlock(r.Value)
		if err != nil {
			warn(err)
		} else {
			i.opts.ShortCapabilities = shorts
		}
	}

	extra := c.Mutable()
	extra.RemoveAll(TagUserFlags, TagOnlineSince, TagIdleMinutes, TagMemberSince,
		TagStatus, TagCapabilities, TagSessionLength, TagShortCaps)
	if extra.Len() > 0 {
		i.opts.Extra = extra.Freeze()
	}
}

// build encodes the known fields followed by the extra records.
func (i *Info) build() *tlv.Chain {
	o := i.opts
	m := tlv.NewMutableChain()
	if o.Flags != 0 {
		m.Append(tlv.NewUint16(TagUserFlags, o.Flags))
	}
	if !o.OnlineSince.IsZero() {
		m.Append(tlv.NewUint32(TagOnlineSince, uint32(o.OnlineSince.Unix())))
	}
	if o.IdleMinutes != 0 {
		m.Append(tlv.NewUint16(TagIdleMinutes, o.IdleMinutes))
	}
	if !o.MemberSince.IsZero() {
		m.Append(tlv.NewUint32(TagMemberSince, uint32(o.MemberSince.Unix())))
	}
	if o.Status != nil {
		m.Append(tlv.NewUint32(TagStatus, *o.Status))
	}
	if len(o.Capabilities) > 0 {
		m.Append(tlv.New(TagCapabilities, capability.AppendBlock(nil, o.Capabilities)))
	}
	if o.SessionLength != 0 {
		m.Append(tlv.NewUint32(TagSessionLength, o.SessionLength))
	}
	if len(o.ShortCapabilities) > 0 {
		m.Append(tlv.New(TagShortCaps, capability.AppendShortBlock(nil, o.ShortCapabilities)))
	}
	if o.Extra != nil {
		m.AppendAll(o.Extra)
	}
	return m.Freeze()
}

// Chain returns the record chain, building it on first use.
func (i *Info) Chain() *tlv.Chain {
	i.once.Do(func() { i.chain = i.build() })
	return i.chain
}

// ScreenName returns the user's screen name.
func (i *Info) ScreenName() string { return i.opts.ScreenName }

// WarningLevel returns the warning level in tenths of a percent.
func (i *Info) WarningLevel() uint16 { return i.opts.WarningLevel }

// Flags returns the user class flags.
func (i *Info) Flags() uint16 { return i.opts.Flags }

// OnlineSince returns the sign-on time, or the zero time.
func (i *Info) OnlineSince() time.Time { return i.opts.OnlineSince }

// IdleMinutes returns the idle time in minutes.
func (i *Info) IdleMinutes() uint16 { return i.opts.IdleMinutes }

// MemberSince returns the account creation time, or the zero time.
func (i *Info) MemberSince() time.Time { return i.opts.MemberSince }

// Status returns the presence status word if present.
func (i *Info) Status() (uint32, bool) {
	if i.opts.Status == nil {
		return 0, false
	}
	return *i.opts.Status, true
}

// SessionLength returns the session length in seconds.
func (i *Info) SessionLength() uint32 { return i.opts.SessionLength }

// Capabilities returns every advertised capability, full and compact
// forms merged, in wire order.
func (i *Info) Capabilities() []capability.Capability {
	out := append([]capability.Capability(nil), i.opts.Capabilities...)
	for _, c := range capability.Expand(i.opts.ShortCapabilities) {
		if !capability.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Extra returns the records this package does not interpret.
func (i *Info) Extra() *tlv.Chain {
	if i.opts.Extra == nil {
		return tlv.NewChain()
	}
	return i.opts.Extra
}

// TLVCount returns the number of records AppendTo writes.
func (i *Info) TLVCount() int { return i.Chain().Len() }

// Len returns the encoded size of the block.
func (i *Info) Len() int {
	return 1 + len(i.name) + 2 + 2 + i.Chain().WritableLength()
}

// AppendTo appends the encoded block to dst.
func (i *Info) AppendTo(dst []byte) []byte {
	c := i.Chain()
	dst = append(dst, byte(len(i.name)))
	dst = append(dst, i.name...)
	dst = binary.BigEndian.AppendUint16(dst, i.opts.WarningLevel)
	return c.AppendCounted(dst)
}

// Bytes returns the encoded block.
func (i *Info) Bytes() []byte {
	return i.AppendTo(make([]byte, 0, i.Len()))
}
