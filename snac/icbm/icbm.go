package icbm

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/logging"
	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/tlv"
	"github.com/opd-ai/oscarcore/userinfo"
)

// Family is the messaging family id.
const Family uint16 = 0x0004

// Subtypes.
const (
	SubtypeError  uint16 = 0x0001
	SubtypeSendIM uint16 = 0x0006
	SubtypeRecvIM uint16 = 0x0007
	SubtypeTyping uint16 = 0x0014
)

// ChannelIM is the plain instant message channel.
const ChannelIM uint16 = 0x0001

// Message record tags.
const (
	TagMessageData  uint16 = 0x0002
	TagRequestAck   uint16 = 0x0003
	TagAutoResponse uint16 = 0x0004
	TagStoreOffline uint16 = 0x0006
)

// ErrUnknownSubtype is returned by Decode for subtypes outside the family.
var ErrUnknownSubtype = errors.New("unknown icbm subtype")

// Command is a member of the messaging family.
type Command interface {
	snac.Command
	isICBM()
}

func key(subtype uint16) snac.Key {
	return snac.Key{Family: Family, Subtype: subtype}
}

// Cookie identifies one message exchange.
type Cookie [8]byte

// NewCookie returns a random cookie.
func NewCookie() (Cookie, error) {
	var c Cookie
	if _, err := rand.Read(c[:]); err != nil {
		return Cookie{}, fmt.Errorf("generate cookie: %w", err)
	}
	return c, nil
}

// Error reports that a message could not be delivered.
type Error struct {
	Code  uint16
	Extra *tlv.Chain
}

func (*Error) isICBM()       {}
func (*Error) Key() snac.Key { return key(SubtypeError) }

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

// SendIMOptions describes an outgoing message.
type SendIMOptions struct {
	Cookie Cookie
	// Channel defaults to ChannelIM.
	Channel      uint16
	ScreenName   string
	Message      *Message
	RequestAck   bool
	AutoResponse bool
	StoreOffline bool
	Extra        *tlv.Chain
}

// SendIM sends a message to another user.
type SendIM struct {
	cookie     Cookie
	channel    uint16
	screenName string
	message    *Message
	flags      messageFlags
	extra      *tlv.Chain
	chain      *tlv.Chain
}

type messageFlags struct {
	requestAck, autoResponse, storeOffline bool
}

func (*SendIM) isICBM()       {}
func (*SendIM) Key() snac.Key { return key(SubtypeSendIM) }

// NewSendIM encodes o.
func NewSendIM(o SendIMOptions) (*SendIM, error) {
	if err := checkScreenName(o.ScreenName); err != nil {
		return nil, err
	}
	if o.Channel == 0 {
		o.Channel = ChannelIM
	}
	s := &SendIM{
		cookie:     o.Cookie,
		channel:    o.Channel,
		screenName: o.ScreenName,
		flags:      messageFlags{o.RequestAck, o.AutoResponse, o.StoreOffline},
		extra:      o.Extra,
	}
	m := tlv.NewMutableChain()
	if o.Message != nil {
		r, err := o.Message.record(TagMessageData)
		if err != nil {
			return nil, err
		}
		msg := *o.Message
		if msg.Charset.IsZero() {
			msg.Charset = charset.Best(msg.Text)
		}
		s.message = &msg
		m.Append(r)
	}
	if o.RequestAck {
		m.Append(tlv.NewEmpty(TagRequestAck))
	}
	if o.AutoResponse {
		m.Append(tlv.NewEmpty(TagAutoResponse))
	}
	if o.StoreOffline {
		m.Append(tlv.NewEmpty(TagStoreOffline))
	}
	if o.Extra != nil {
		m.AppendAll(o.Extra)
	}
	s.chain = m.Freeze()
	return s, nil
}

// Cookie returns the message cookie.
func (s *SendIM) Cookie() Cookie { return s.cookie }

// Channel returns the message channel.
func (s *SendIM) Channel() uint16 { return s.channel }

// ScreenName returns the recipient.
func (s *SendIM) ScreenName() string { return s.screenName }

// Message returns the message content, if the channel carries text.
func (s *SendIM) Message() (Message, bool) { return derefMessage(s.message) }

// RequestAck reports whether the sender asked for a delivery acknowledgement.
func (s *SendIM) RequestAck() bool { return s.flags.requestAck }

// AutoResponse reports whether the message is an automatic reply.
func (s *SendIM) AutoResponse() bool { return s.flags.autoResponse }

// StoreOffline reports whether the server should hold the message for an
// offline recipient.
func (s *SendIM) StoreOffline() bool { return s.flags.storeOffline }

// Extra returns the records not interpreted above.
func (s *SendIM) Extra() *tlv.Chain { return orEmpty(s.extra) }

// BodyLen implements snac.Command.
func (s *SendIM) BodyLen() int {
	return 8 + 2 + 1 + len(userinfo.ScreenNameBytes(s.screenName)) + s.chain.WritableLength()
}

// AppendBody implements snac.Command.
func (s *SendIM) AppendBody(dst []byte) []byte {
	dst = append(dst, s.cookie[:]...)
	dst = binary.BigEndian.AppendUint16(dst, s.channel)
	dst = appendScreenName(dst, s.screenName)
	return s.chain.AppendTo(dst)
}

// RecvIMOptions describes an incoming message.
type RecvIMOptions struct {
	Cookie       Cookie
	Channel      uint16
	Sender       *userinfo.Info
	Message      *Message
	AutoResponse bool
	Extra        *tlv.Chain
}

// RecvIM delivers a message from another user.
type RecvIM struct {
	cookie       Cookie
	channel      uint16
	sender       *userinfo.Info
	message      *Message
	autoResponse bool
	extra        *tlv.Chain
	chain        *tlv.Chain
}

func (*RecvIM) isICBM()       {}
func (*RecvIM) Key() snac.Key { return key(SubtypeRecvIM) }

// NewRecvIM encodes o. The sender is required.
func NewRecvIM(o RecvIMOptions) (*RecvIM, error) {
	if o.Sender == nil {
		return nil, errors.New("incoming message without sender")
	}
	if o.Channel == 0 {
		o.Channel = ChannelIM
	}
	r := &RecvIM{
		cookie:       o.Cookie,
		channel:      o.Channel,
		sender:       o.Sender,
		autoResponse: o.AutoResponse,
		extra:        o.Extra,
	}
	m := tlv.NewMutableChain()
	if o.Message != nil {
		rec, err := o.Message.record(TagMessageData)
		if err != nil {
			return nil, err
		}
		msg := *o.Message
		if msg.Charset.IsZero() {
			msg.Charset = charset.Best(msg.Text)
		}
		r.message = &msg
		m.Append(rec)
	}
	if o.AutoResponse {
		m.Append(tlv.NewEmpty(TagAutoResponse))
	}
	if o.Extra != nil {
		m.AppendAll(o.Extra)
	}
	r.chain = m.Freeze()
	return r, nil
}

// Cookie returns the message cookie.
func (r *RecvIM) Cookie() Cookie { return r.cookie }

// Channel returns the message channel.
func (r *RecvIM) Channel() uint16 { return r.channel }

// Sender returns the sender's user information.
func (r *RecvIM) Sender() *userinfo.Info { return r.sender }

// Message returns the message content, if the channel carries text.
func (r *RecvIM) Message() (Message, bool) { return derefMessage(r.message) }

// AutoResponse reports whether the message is an automatic reply.
func (r *RecvIM) AutoResponse() bool { return r.autoResponse }

// Extra returns the records not interpreted above.
func (r *RecvIM) Extra() *tlv.Chain { return orEmpty(r.extra) }

// BodyLen implements snac.Command.
func (r *RecvIM) BodyLen() int {
	return 8 + 2 + r.sender.Len() + r.chain.WritableLength()
}

// AppendBody implements snac.Command.
func (r *RecvIM) AppendBody(dst []byte) []byte {
	dst = append(dst, r.cookie[:]...)
	dst = binary.BigEndian.AppendUint16(dst, r.channel)
	dst = r.sender.AppendTo(dst)
	return r.chain.AppendTo(dst)
}

// TypingEvent is the state a typing notification reports.
type TypingEvent uint16

const (
	TypingFinished TypingEvent = 0x0000
	TypingPaused   TypingEvent = 0x0001
	TypingBegun    TypingEvent = 0x0002
)

// Typing notifies a user that the peer is composing a message.
type Typing struct {
	Cookie     Cookie
	Channel    uint16
	ScreenName string
	Event      TypingEvent

	// Extra holds bytes found after the event. Decode keeps its own copy
	// and encoding appends them unchanged.
	Extra []byte
}

func (*Typing) isICBM()       {}
func (*Typing) Key() snac.Key { return key(SubtypeTyping) }

// BodyLen implements snac.Command.
func (t *Typing) BodyLen() int {
	return 8 + 2 + 1 + len(userinfo.ScreenNameBytes(t.ScreenName)) + 2 + len(t.Extra)
}

// AppendBody implements snac.Command.
func (t *Typing) AppendBody(dst []byte) []byte {
	dst = append(dst, t.Cookie[:]...)
	dst = binary.BigEndian.AppendUint16(dst, t.Channel)
	dst = appendScreenName(dst, t.ScreenName)
	dst = binary.BigEndian.AppendUint16(dst, uint16(t.Event))
	return append(dst, t.Extra...)
}

func checkScreenName(s string) error {
	n := len(userinfo.ScreenNameBytes(s))
	if n == 0 || n > userinfo.MaxScreenNameLen {
		return fmt.Errorf("screen name length %d out of range", n)
	}
	return nil
}

func appendScreenName(dst []byte, s string) []byte {
	b := userinfo.ScreenNameBytes(s)
	dst = append(dst, byte(len(b)))
	return append(dst, b...)
}

func readScreenName(r *bytespan.Reader) string {
	n := int(r.Uint8())
	b := r.Span(n)
	if r.Err() != nil {
		return ""
	}
	s, _ := charset.Latin1.Decode(b.Bytes())
	return s
}

func readCookie(r *bytespan.Reader) Cookie {
	var c Cookie
	copy(c[:], r.Span(len(c)).Bytes())
	return c
}

func derefMessage(m *Message) (Message, bool) {
	if m == nil {
		return Message{}, false
	}
	return *m, true
}

func orEmpty(c *tlv.Chain) *tlv.Chain {
	if c == nil {
		return tlv.NewChain()
	}
	return c
}

// decodeMessageRecords reads the known message records from c and returns
// the rest. Message data on other channels is left uninterpreted.
func decodeMessageRecords(c *tlv.Chain, channel uint16, known ...uint16) (*Message, *tlv.Chain, error) {
	var msg *Message
	if channel == ChannelIM {
		if r, ok := c.Last(TagMessageData); ok {
			m, err := parseMessage(r.Value)
			if err != nil {
				return nil, nil, err
			}
			msg = &m
		}
		known = append(known, TagMessageData)
	}
	extra := c.Mutable()
	extra.RemoveAll(known...)
	if extra.Len() == 0 {
		return msg, nil, nil
	}
	return msg, extra.Freeze(), nil
}

// Decode builds the typed command for env, copying what it keeps out of
// the envelope's buffer.
func Decode(env *snac.Envelope) (Command, error) {
	if env.Family != Family {
		return nil, fmt.Errorf("%w: family 0x%04x", ErrUnknownSubtype, env.Family)
	}
	r := bytespan.NewReader(env.Body)
	switch env.Subtype {
	case SubtypeError:
		code := r.Uint16()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("error code: %w", err)
		}
		extra, _ := env.ParseChain(r.Rest())
		return &Error{Code: code, Extra: extra.Owned()}, nil

	case SubtypeSendIM:
		s := &SendIM{cookie: readCookie(r), channel: r.Uint16(), screenName: readScreenName(r)}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("send im header: %w", err)
		}
		chain, _ := env.ParseChain(r.Rest())
		s.chain = chain.Owned()
		s.flags = messageFlags{
			requestAck:   s.chain.Has(TagRequestAck),
			autoResponse: s.chain.Has(TagAutoResponse),
			storeOffline: s.chain.Has(TagStoreOffline),
		}
		var err error
		s.message, s.extra, err = decodeMessageRecords(s.chain, s.channel,
			TagRequestAck, TagAutoResponse, TagStoreOffline)
		if err != nil {
			return nil, err
		}
		return s, nil

	case SubtypeRecvIM:
		rc := &RecvIM{cookie: readCookie(r), channel: r.Uint16()}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("recv im header: %w", err)
		}
		sender, n, err := userinfo.Parse(r.Rest())
		if err != nil {
			return nil, fmt.Errorf("sender: %w", err)
		}
		rest, _ := env.Body.SliceFrom(8 + 2 + n)
		chain, _ := env.ParseChain(rest)
		rc.sender = sender
		rc.chain = chain.Owned()
		rc.autoResponse = rc.chain.Has(TagAutoResponse)
		rc.message, rc.extra, err = decodeMessageRecords(rc.chain, rc.channel, TagAutoResponse)
		if err != nil {
			return nil, err
		}
		return rc, nil

	case SubtypeTyping:
		t := &Typing{Cookie: readCookie(r), Channel: r.Uint16(), ScreenName: readScreenName(r)}
		t.Event = TypingEvent(r.Uint16())
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("typing: %w", err)
		}
		if r.Remaining() > 0 {
			logging.NewLogger("icbm", "Decode").
				WithField("trailing_bytes", r.Remaining()).
				Debug("Keeping trailing typing notification bytes")
			t.Extra = r.Rest().ToOwned().Bytes()
		}
		return t, nil

	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownSubtype, env.Subtype)
	}
}

func decodeCommand(env *snac.Envelope) (snac.Command, error) {
	cmd, err := Decode(env)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// ClientFactory returns the factory for messaging commands a client receives.
func ClientFactory() snac.Factory {
	return snac.NewFactory(decodeCommand, key(SubtypeError), key(SubtypeRecvIM), key(SubtypeTyping))
}

// ServerFactory returns the factory for messaging commands a server receives.
func ServerFactory() snac.Factory {
	return snac.NewFactory(decodeCommand, key(SubtypeSendIM), key(SubtypeTyping))
}

var (
	_ Command = (*Error)(nil)
	_ Command = (*SendIM)(nil)
	_ Command = (*RecvIM)(nil)
	_ Command = (*Typing)(nil)
)
