// Package locate implements the location family (0x0002), which carries
// profiles, away messages and advertised capabilities.
package locate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"mime"

	"github.com/opd-ai/oscarcore/capability"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/logging"
	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/tlv"
)

// Family is the location family id.
const Family uint16 = 0x0002

// Subtypes.
const (
	SubtypeError   uint16 = 0x0001
	SubtypeSetInfo uint16 = 0x0004
)

// SetInfo record tags.
const (
	TagProfileMIME  uint16 = 0x0001
	TagProfile      uint16 = 0x0002
	TagAwayMIME     uint16 = 0x0003
	TagAwayMessage  uint16 = 0x0004
	TagCapabilities uint16 = 0x0005
)

// TextMIMEType is the content type sent with profiles and away messages.
const TextMIMEType = "text/aolrtf"

// ErrUnknownSubtype is returned by Decode for subtypes outside the family.
var ErrUnknownSubtype = errors.New("unknown locate subtype")

// Command is a member of the location family.
type Command interface {
	snac.Command
	isLocate()
}

// Error reports that a location request failed.
type Error struct {
	Code  uint16
	Extra *tlv.Chain
}

func (*Error) isLocate()     {}
func (*Error) Key() snac.Key { return snac.Key{Family: Family, Subtype: SubtypeError} }

// BodyLen implements snac.Command.
func (e *Error) BodyLen() int {
	if e.Extra == nil {
		return 2
	}
	return 2 + e.Extra.WritableLength()
}

// AppendBody implements snac.Command.
func (e *Error) AppendBody(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, e.Code)
	if e.Extra != nil {
		dst = e.Extra.AppendTo(dst)
	}
	return dst
}

// Text is a profile or away message body with its charset.
type Text struct {
	Charset charset.Charset
	Body    string
}

// SetInfoOptions selects what SetInfo changes. Nil fields are left unchanged.
type SetInfoOptions struct {
	Profile      *Text
	Away         *Text
	Capabilities []capability.Capability
	// Extra records are sent after the known ones.
	Extra *tlv.Chain
}

// SetInfo updates the sender's profile, away message or capabilities.
type SetInfo struct {
	profile *Text
	away    *Text
	caps    []capability.Capability
	extra   *tlv.Chain
	chain   *tlv.Chain
}

func (*SetInfo) isLocate()     {}
func (*SetInfo) Key() snac.Key { return snac.Key{Family: Family, Subtype: SubtypeSetInfo} }

// NewSetInfo encodes o. A text whose charset is unset gets the narrowest
// charset able to carry it.
func NewSetInfo(o SetInfoOptions) (*SetInfo, error) {
	m := tlv.NewMutableChain()
	s := &SetInfo{}
	if o.Profile != nil {
		t, err := appendText(m, TagProfileMIME, TagProfile, *o.Profile)
		if err != nil {
			return nil, fmt.Errorf("profile: %w", err)
		}
		s.profile = &t
	}
	if o.Away != nil {
		t, err := appendText(m, TagAwayMIME, TagAwayMessage, *o.Away)
		if err != nil {
			return nil, fmt.Errorf("away message: %w", err)
		}
		s.away = &t
	}
	if o.Capabilities != nil {
		s.caps = append([]capability.Capability{}, o.Capabilities...)
		m.Append(tlv.New(TagCapabilities, capability.AppendBlock(nil, s.caps)))
	}
	if o.Extra != nil {
		s.extra = o.Extra
		m.AppendAll(o.Extra)
	}
	s.chain = m.Freeze()
	return s, nil
}

func appendText(m *tlv.MutableChain, mimeTag, bodyTag uint16, t Text) (Text, error) {
	if t.Charset.IsZero() {
		t.Charset = charset.Best(t.Body)
	}
	body, err := tlv.NewString(bodyTag, t.Body, t.Charset)
	if err != nil {
		return Text{}, err
	}
	mt := mime.FormatMediaType(TextMIMEType, map[string]string{"charset": t.Charset.Name()})
	m.Append(tlv.New(mimeTag, []byte(mt)), body)
	return t, nil
}

// Profile returns the profile, if the command sets one.
func (s *SetInfo) Profile() (Text, bool) { return deref(s.profile) }

// Away returns the away message, if the command sets one. An empty body
// clears the away state.
func (s *SetInfo) Away() (Text, bool) { return deref(s.away) }

// Capabilities returns the advertised capabilities and whether the
// command sets them.
func (s *SetInfo) Capabilities() ([]capability.Capability, bool) {
	return s.caps, s.caps != nil
}

// Extra returns the records not interpreted above.
func (s *SetInfo) Extra() *tlv.Chain {
	if s.extra == nil {
		return tlv.NewChain()
	}
	return s.extra
}

// BodyLen implements snac.Command.
func (s *SetInfo) BodyLen() int { return s.chain.WritableLength() }

// AppendBody implements snac.Command.
func (s *SetInfo) AppendBody(dst []byte) []byte { return s.chain.AppendTo(dst) }

func deref(t *Text) (Text, bool) {
	if t == nil {
		return Text{}, false
	}
	return *t, true
}

// Decode builds the typed command for env, copying what it keeps out of
// the envelope's buffer.
func Decode(env *snac.Envelope) (Command, error) {
	if env.Family != Family {
		return nil, fmt.Errorf("%w: family 0x%04x", ErrUnknownSubtype, env.Family)
	}
	switch env.Subtype {
	case SubtypeError:
		code, err := env.Body.Uint16At(0)
		if err != nil {
			return nil, fmt.Errorf("%w: missing error code", snac.ErrInsufficientData)
		}
		rest, _ := env.Body.SliceFrom(2)
		extra, _ := env.ParseChain(rest)
		return &Error{Code: code, Extra: extra.Owned()}, nil
	case SubtypeSetInfo:
		chain, _ := env.ParseChain(env.Body)
		info, err := decodeSetInfo(chain.Owned())
		if err != nil {
			return nil, err
		}
		return info, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownSubtype, env.Subtype)
	}
}

func decodeSetInfo(c *tlv.Chain) (*SetInfo, error) {
	s := &SetInfo{chain: c}
	var err error
	if s.profile, err = decodeText(c, TagProfileMIME, TagProfile); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if s.away, err = decodeText(c, TagAwayMIME, TagAwayMessage); err != nil {
		return nil, fmt.Errorf("away message: %w", err)
	}
	if r, ok := c.Last(TagCapabilities); ok {
		if s.caps, err = capability.ParseBlock(r.Value); err != nil {
			return nil, err
		}
		if s.caps == nil {
			s.caps = []capability.Capability{}
		}
	}
	extra := c.Mutable()
	extra.RemoveAll(TagProfileMIME, TagProfile, TagAwayMIME, TagAwayMessage, TagCapabilities)
	if extra.Len() > 0 {
		s.extra = extra.Freeze()
	}
	return s, nil
}

// decodeText reads a text body using the charset named in its MIME
// record. The last record of each tag wins.
func decodeText(c *tlv.Chain, mimeTag, bodyTag uint16) (*Text, error) {
	body, ok := c.Last(bodyTag)
	if !ok {
		return nil, nil
	}
	cs := charset.Default
	if mt, ok := c.Last(mimeTag); ok {
		cs = charsetFromMIME(string(mt.Value.Bytes()))
	}
	text, err := body.String(cs)
	if err != nil {
		return nil, err
	}
	return &Text{Charset: cs, Body: text}, nil
}

func charsetFromMIME(mt string) charset.Charset {
	log := logging.NewLogger("locate", "charsetFromMIME").WithField("mime_type", mt)
	_, params, err := mime.ParseMediaType(mt)
	if err != nil {
		log.WithError(err, "parse_media_type").Debug("Using default charset")
		return charset.Default
	}
	name, ok := params["charset"]
	if !ok {
		return charset.Default
	}
	cs, err := charset.Lookup(name)
	if err != nil {
		log.WithError(err, "lookup_charset").Warn("Unknown charset, using default")
		return charset.Default
	}
	return cs
}

func decodeCommand(env *snac.Envelope) (snac.Command, error) {
	cmd, err := Decode(env)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// ClientFactory returns the factory for location commands a client receives.
func ClientFactory() snac.Factory {
	return snac.NewFactory(decodeCommand, snac.Key{Family: Family, Subtype: SubtypeError})
}

// ServerFactory returns the factory for location commands a server receives.
func ServerFactory() snac.Factory {
	return snac.NewFactory(decodeCommand, snac.Key{Family: Family, Subtype: SubtypeSetInfo})
}

var (
	_ Command = (*Error)(nil)
	_ Command = (*SetInfo)(nil)
)
