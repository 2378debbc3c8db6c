// Package tlv implements the tagged, length-prefixed records that make up
// most message bodies, and the ordered chains that hold them.
//
// # Wire Format
//
// Each record is encoded as:
//
//	[tag(2)][length(2)][value(length)]
//
// with both integers big-endian. A chain is records laid end to end;
// order is significant and tags may repeat.
//
// # Chains
//
// Parsed chains are frozen (*Chain) and may be shared between goroutines.
// A *MutableChain is the build-time form: it supports Append, AppendAll
// and RemoveAll and must stay on the goroutine that builds it until
// Freeze is called.
//
// A common pattern strips the records a message understands and keeps the
// rest verbatim so it can be written back out unchanged:
//
//	extra := chain.Mutable()
//	extra.RemoveAll(TagProfile, TagCapabilities)
//	m.Extra = extra.Freeze().Owned()
//
// # Accessors
//
// Typed accessors return ok=false when the tag is absent, and a
// *FieldError wrapping ErrMalformedField only when the tag is present
// but its value is too short for the requested width. First and Last are
// distinct: several messages want the last of a repeated tag.
//
// Values are views into the parsed buffer. Call Owned on anything that is
// kept after the buffer may be reused.
package tlv
