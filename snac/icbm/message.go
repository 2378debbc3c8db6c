package icbm

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/tlv"
)

// Fragment tags inside the message data record.
const (
	FragmentFeatures uint16 = 0x0501
	FragmentText     uint16 = 0x0101
)

// Charset codes carried by a text fragment.
const (
	CharsetCodeASCII  uint16 = 0x0000
	CharsetCodeUCS2   uint16 = 0x0002
	CharsetCodeLatin1 uint16 = 0x0003
)

// DefaultFeatures is the feature list sent with plain text messages.
var DefaultFeatures = []byte{0x01}

// Message is the content of a channel 1 instant message.
type Message struct {
	Text string
	// Charset is chosen from the text when unset.
	Charset charset.Charset
	// Features defaults to DefaultFeatures when nil.
	Features []byte
}

func charsetCode(cs charset.Charset) (uint16, error) {
	switch cs.Name() {
	case charset.ASCII.Name():
		return CharsetCodeASCII, nil
	case charset.Latin1.Name():
		return CharsetCodeLatin1, nil
	case charset.UCS2.Name():
		return CharsetCodeUCS2, nil
	default:
		return 0, fmt.Errorf("%w: %s has no message charset code", charset.ErrUnrepresentable, cs.Name())
	}
}

func charsetForCode(code uint16) charset.Charset {
	switch code {
	case CharsetCodeUCS2:
		return charset.UCS2
	case CharsetCodeLatin1:
		return charset.Latin1
	default:
		return charset.ASCII
	}
}

// record encodes m as the message data record with the given tag.
func (m Message) record(tag uint16) (tlv.Record, error) {
	cs := m.Charset
	if cs.IsZero() {
		cs = charset.Best(m.Text)
	}
	code, err := charsetCode(cs)
	if err != nil {
		return tlv.Record{}, err
	}
	text, err := cs.Encode(m.Text)
	if err != nil {
		return tlv.Record{}, err
	}
	if len(text)+4 > tlv.MaxValueLen {
		return tlv.Record{}, fmt.Errorf("message text of %d bytes is too long", len(text))
	}
	features := m.Features
	if features == nil {
		features = DefaultFeatures
	}

	body := make([]byte, 0, 4+len(text))
	body = binary.BigEndian.AppendUint16(body, code)
	body = binary.BigEndian.AppendUint16(body, 0x0000)
	body = append(body, text...)

	frags := tlv.NewChain(tlv.New(FragmentFeatures, features), tlv.New(FragmentText, body))
	if frags.WritableLength() > tlv.MaxValueLen {
		return tlv.Record{}, fmt.Errorf("message data of %d bytes is too long", frags.WritableLength())
	}
	return tlv.NewNested(tag, frags), nil
}

// parseMessage decodes a message data record value.
func parseMessage(v bytespan.Span) (Message, error) {
	frags, _ := tlv.ParseChain(v, 0)
	var m Message
	if f, ok := frags.First(FragmentFeatures); ok {
		m.Features = append([]byte{}, f.Value.Bytes()...)
	}
	text, ok := frags.First(FragmentText)
	if !ok {
		return m, fmt.Errorf("%w: message data has no text fragment", tlv.ErrMalformedField)
	}
	r := bytespan.NewReader(text.Value)
	code := r.Uint16()
	r.Uint16()
	if err := r.Err(); err != nil {
		return m, fmt.Errorf("%w: text fragment header: %v", tlv.ErrMalformedField, err)
	}
	m.Charset = charsetForCode(code)
	s, err := m.Charset.Decode(r.Rest().Bytes())
	if err != nil {
		return m, err
	}
	m.Text = s
	return m, nil
}
