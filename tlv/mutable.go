package tlv

import "github.com/opd-ai/oscarcore/charset"

// MutableChain is the build-time form of a chain. It is not safe for
// concurrent use; call Freeze before sharing the result.
type MutableChain struct {
	body
}

// NewMutableChain creates a builder holding records in order.
func NewMutableChain(records ...Record) *MutableChain {
	m := &MutableChain{}
	m.records = append(m.records, records...)
	return m
}

// SetCharset sets the charset used by the String accessor.
func (m *MutableChain) SetCharset(cs charset.Charset) {
	m.charset = cs
}

// Append adds records to the end of the chain.
func (m *MutableChain) Append(records ...Record) {
	m.records = append(m.records, records...)
}

// AppendAll adds every record of other, in order.
func (m *MutableChain) AppendAll(other Reader) {
	if other == nil {
		return
	}
	m.records = append(m.records, other.Records()...)
}

// RemoveAll drops every record whose tag is listed and returns how many
// were removed. The surviving records keep their relative order.
func (m *MutableChain) RemoveAll(tags ...uint16) int {
	if len(tags) == 0 {
		return 0
	}
	drop := make(map[uint16]struct{}, len(tags))
	for _, t := range tags {
		drop[t] = struct{}{}
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if _, ok := drop[r.Tag]; !ok {
			kept = append(kept, r)
		}
	}
	removed := len(m.records) - len(kept)
	for i := len(kept); i < len(m.records); i++ {
		m.records[i] = Record{}
	}
	m.records = kept
	return removed
}

// Replace removes every record with r's tag and appends r.
func (m *MutableChain) Replace(r Record) {
	m.RemoveAll(r.Tag)
	m.Append(r)
}

// Freeze returns a frozen copy. Later changes to m do not affect it.
func (m *MutableChain) Freeze() *Chain {
	c := NewChain(m.records...)
	c.charset = m.charset
	return c
}

var (
	_ Reader = (*Chain)(nil)
	_ Reader = (*MutableChain)(nil)
)
