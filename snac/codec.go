package snac

import (
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/limits"
	"github.com/opd-ai/oscarcore/logging"
)

// ServerRequestBit marks request ids chosen by the server for unsolicited
// commands; locally generated ids keep it clear.
const ServerRequestBit uint32 = 0x80000000

// Message is a decoded command together with the header and version
// block it arrived with.
type Message struct {
	Header Header
	// VersionInfo is an owned copy of the block announced by
	// FlagHasVersionInfo.
	VersionInfo bytespan.Span
	Command     Command
}

// Codec pairs a registry with size limits and a request id sequence. It
// is the entry point the transport layer uses for one connection role.
type Codec struct {
	registry   *Registry
	maxSnac    int
	maxRecords int
	nextID     atomic.Uint32
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithMaxSnacSize limits whole commands, header included.
func WithMaxSnacSize(n int) CodecOption {
	return func(c *Codec) {
		if n > 0 && n <= limits.MaxSnacSize {
			c.maxSnac = n
		}
	}
}

// WithMaxChainRecords bounds the records read from any one chain; zero
// means unbounded.
func WithMaxChainRecords(n int) CodecOption {
	return func(c *Codec) {
		if n >= 0 {
			c.maxRecords = n
		}
	}
}

// NewCodec creates a codec dispatching through reg.
func NewCodec(reg *Registry, opts ...CodecOption) *Codec {
	c := &Codec{
		registry:   reg,
		maxSnac:    limits.MaxSnacSize,
		maxRecords: limits.DefaultMaxChainRecords,
	}
	for _, opt := range opts {
		opt(c)
	}
	logging.NewLogger("snac", "NewCodec").
		WithField("registry", reg.Name()).
		WithField("max_snac", c.maxSnac).
		WithField("max_chain_records", c.maxRecords).
		Info("Created codec")
	return c
}

// Registry returns the registry the codec dispatches through.
func (c *Codec) Registry() *Registry { return c.registry }

// MaxSnacSize returns the configured command size limit.
func (c *Codec) MaxSnacSize() int { return c.maxSnac }

// MaxChainRecords returns the configured chain record limit.
func (c *Codec) MaxChainRecords() int { return c.maxRecords }

// Decode parses and dispatches one complete command. Unknown keys produce
// an *Unrecognized command, not an error.
func (c *Codec) Decode(raw []byte) (*Message, error) {
	if err := limits.ValidateMessageSize(raw, c.maxSnac); err != nil {
		return nil, err
	}
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	env.MaxRecords = c.maxRecords
	cmd, err := c.registry.Dispatch(env)
	if err != nil {
		return nil, err
	}
	return &Message{Header: env.Header, VersionInfo: env.VersionInfo.ToOwned(), Command: cmd}, nil
}

// NextRequestID returns the next locally generated request id. Ids are
// never zero and never have ServerRequestBit set.
func (c *Codec) NextRequestID() uint32 {
	for {
		id := c.nextID.Add(1) &^ ServerRequestBit
		if id != 0 {
			return id
		}
	}
}

// Encode writes cmd under a fresh request id and returns both.
func (c *Codec) Encode(cmd Command, flags uint16) ([]byte, uint32, error) {
	id := c.NextRequestID()
	out, err := c.EncodeReply(cmd, flags, id)
	return out, id, err
}

// EncodeReply writes cmd under an existing request id.
func (c *Codec) EncodeReply(cmd Command, flags uint16, requestID uint32) ([]byte, error) {
	return c.encode(cmd, flags, requestID, bytespan.Empty)
}

// EncodeMessage re-encodes a decoded message with its own header fields
// and version block.
func (c *Codec) EncodeMessage(msg *Message) ([]byte, error) {
	return c.encode(msg.Command, msg.Header.Flags, msg.Header.RequestID, msg.VersionInfo)
}

func (c *Codec) encode(cmd Command, flags uint16, requestID uint32, info bytespan.Span) ([]byte, error) {
	n := EncodedLen(cmd, flags, info)
	if err := limits.ValidateBodyLen(n-HeaderLen, c.maxSnac); err != nil {
		return nil, fmt.Errorf("snac %s: %w", cmd.Key(), err)
	}
	return EncodeVersion(cmd, flags, requestID, info), nil
}
