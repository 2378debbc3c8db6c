package snac

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
)

// Command is a typed message that can write its own body.
type Command interface {
	// Key returns the family and subtype the command is sent under.
	Key() Key
	// BodyLen returns exactly the number of bytes AppendBody appends.
	BodyLen() int
	// AppendBody appends the encoded body to dst.
	AppendBody(dst []byte) []byte
}

// Encode writes the header and body of cmd into a buffer sized up front.
// If flags carries FlagHasVersionInfo an empty version block is written;
// EncodeVersion supplies one.
func Encode(cmd Command, flags uint16, requestID uint32) []byte {
	return EncodeVersion(cmd, flags, requestID, bytespan.Empty)
}

// EncodeVersion is Encode with a version block between header and body.
// A non-empty info sets FlagHasVersionInfo.
func EncodeVersion(cmd Command, flags uint16, requestID uint32, info bytespan.Span) []byte {
	dst := make([]byte, 0, EncodedLen(cmd, flags, info))
	return AppendEncodeVersion(dst, cmd, flags, requestID, info)
}

// EncodedLen returns the size EncodeVersion produces.
func EncodedLen(cmd Command, flags uint16, info bytespan.Span) int {
	info = versionInfoFor(cmd, info)
	n := HeaderLen + cmd.BodyLen()
	if info.Len() > 0 || flags&FlagHasVersionInfo != 0 {
		n += 2 + info.Len()
	}
	return n
}

// AppendEncode appends the encoded command to dst.
func AppendEncode(dst []byte, cmd Command, flags uint16, requestID uint32) []byte {
	return AppendEncodeVersion(dst, cmd, flags, requestID, bytespan.Empty)
}

// AppendEncodeVersion appends the encoded command, with its version
// block, to dst.
func AppendEncodeVersion(dst []byte, cmd Command, flags uint16, requestID uint32, info bytespan.Span) []byte {
	info = versionInfoFor(cmd, info)
	if info.Len() > 0 {
		flags |= FlagHasVersionInfo
	}
	k := cmd.Key()
	h := Header{Family: k.Family, Subtype: k.Subtype, Flags: flags, RequestID: requestID}
	dst = h.AppendTo(dst)
	if flags&FlagHasVersionInfo != 0 {
		dst = binary.BigEndian.AppendUint16(dst, uint16(info.Len()))
		dst = info.AppendTo(dst)
	}
	return cmd.AppendBody(dst)
}

// versionInfoFor falls back to the block an *Unrecognized arrived with.
func versionInfoFor(cmd Command, info bytespan.Span) bytespan.Span {
	if info.Len() == 0 {
		if u, ok := cmd.(*Unrecognized); ok {
			return u.VersionInfo
		}
	}
	return info
}

// Unrecognized carries an envelope no factory is registered for. It is a
// value, not an error: unknown commands are expected as the protocol
// evolves. Encoding it writes back the version block it arrived with.
type Unrecognized struct {
	Envelope
}

// BodyLen implements Command.
func (u *Unrecognized) BodyLen() int { return u.Body.Len() }

// AppendBody implements Command.
func (u *Unrecognized) AppendBody(dst []byte) []byte { return u.Body.AppendTo(dst) }

// Bytes re-encodes the original command, header included.
func (u *Unrecognized) Bytes() []byte {
	return Encode(u, u.Flags, u.RequestID)
}

// String describes the unrecognized key.
func (u *Unrecognized) String() string {
	return fmt.Sprintf("unrecognized %s (%d body bytes)", u.Key(), u.Body.Len())
}

// IsUnrecognized reports whether cmd is an *Unrecognized.
func IsUnrecognized(cmd Command) bool {
	_, ok := cmd.(*Unrecognized)
	return ok
}

// Raw is a command with a caller-supplied body, for commands that have no
// typed representation yet.
type Raw struct {
	K    Key
	Body []byte
}

// Key implements Command.
func (r *Raw) Key() Key { return r.K }

// BodyLen implements Command.
func (r *Raw) BodyLen() int { return len(r.Body) }

// AppendBody implements Command.
func (r *Raw) AppendBody(dst []byte) []byte { return append(dst, r.Body...) }

var (
	_ Command = (*Unrecognized)(nil)
	_ Command = (*Raw)(nil)
)
