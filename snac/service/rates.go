package service

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/oscarcore/bytespan"
	"github.com/opd-ai/oscarcore/ratelimit"
	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/tlv"
)

// ParamsLen is the encoded size of one rate class description.
const ParamsLen = 35

// RateGroup lists the commands that draw on one rate class.
type RateGroup struct {
	ClassID uint16
	Keys    []snac.Key
}

// RateInfo announces the rate classes and their member commands.
type RateInfo struct {
	Classes []ratelimit.Params
	Groups  []RateGroup
}

func (*RateInfo) isService()    {}
func (*RateInfo) Key() snac.Key { return key(SubtypeRateInfo) }

// BodyLen implements snac.Command.
func (r *RateInfo) BodyLen() int {
	n := 2 + ParamsLen*len(r.Classes)
	for _, g := range r.Groups {
		n += 4 + 4*len(g.Keys)
	}
	return n
}

// AppendBody implements snac.Command.
func (r *RateInfo) AppendBody(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(r.Classes)))
	for _, p := range r.Classes {
		dst = appendParams(dst, p)
	}
	for _, g := range r.Groups {
		dst = binary.BigEndian.AppendUint16(dst, g.ClassID)
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(g.Keys)))
		for _, k := range g.Keys {
			dst = binary.BigEndian.AppendUint16(dst, k.Family)
			dst = binary.BigEndian.AppendUint16(dst, k.Subtype)
		}
	}
	return dst
}

// Members maps each class id to its commands.
func (r *RateInfo) Members() map[uint16][]snac.Key {
	out := make(map[uint16][]snac.Key, len(r.Groups))
	for _, g := range r.Groups {
		out[g.ClassID] = append(out[g.ClassID], g.Keys...)
	}
	return out
}

// Configure loads the announced classes into m.
func (r *RateInfo) Configure(m *ratelimit.Monitor) error {
	return m.SetClasses(r.Classes, r.Members())
}

// Ack returns the acknowledgement for every announced class.
func (r *RateInfo) Ack() *RateAck {
	ids := make([]uint16, len(r.Classes))
	for i, p := range r.Classes {
		ids[i] = p.ClassID
	}
	return &RateAck{ClassIDs: ids}
}

// RateChange notifies the client that one or more classes changed.
type RateChange struct {
	Code    ratelimit.ChangeCode
	Classes []ratelimit.Params
}

func (*RateChange) isService()    {}
func (*RateChange) Key() snac.Key { return key(SubtypeRateChange) }

// BodyLen implements snac.Command.
func (c *RateChange) BodyLen() int { return 2 + ParamsLen*len(c.Classes) }

// AppendBody implements snac.Command.
func (c *RateChange) AppendBody(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(c.Code))
	for _, p := range c.Classes {
		dst = appendParams(dst, p)
	}
	return dst
}

// Apply routes the notice for every listed class to m.
func (c *RateChange) Apply(m *ratelimit.Monitor) error {
	for _, p := range c.Classes {
		if err := m.ApplyChange(c.Code, p); err != nil {
			return err
		}
	}
	return nil
}

func appendParams(dst []byte, p ratelimit.Params) []byte {
	dst = binary.BigEndian.AppendUint16(dst, p.ClassID)
	for _, v := range [...]uint32{
		p.WindowSize, p.ClearAvg, p.WarnAvg, p.LimitedAvg,
		p.DisconnectAvg, p.CurrentAvg, p.MaxAvg, p.LastTime,
	} {
		dst = binary.BigEndian.AppendUint32(dst, v)
	}
	return append(dst, p.PeerState)
}

func readParams(r *bytespan.Reader) ratelimit.Params {
	return ratelimit.Params{
		ClassID:       r.Uint16(),
		WindowSize:    r.Uint32(),
		ClearAvg:      r.Uint32(),
		WarnAvg:       r.Uint32(),
		LimitedAvg:    r.Uint32(),
		DisconnectAvg: r.Uint32(),
		CurrentAvg:    r.Uint32(),
		MaxAvg:        r.Uint32(),
		LastTime:      r.Uint32(),
		PeerState:     r.Uint8(),
	}
}

func parseRateInfo(s bytespan.Span) (*RateInfo, error) {
	r := bytespan.NewReader(s)
	count := int(r.Uint16())
	info := &RateInfo{Classes: make([]ratelimit.Params, 0, min(count, s.Len()/ParamsLen))}
	for i := 0; i < count && r.Err() == nil; i++ {
		info.Classes = append(info.Classes, readParams(r))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("rate classes: %w", err)
	}
	// Member groups may be left out entirely.
	for r.Remaining() > 0 {
		g := RateGroup{ClassID: r.Uint16()}
		n := int(r.Uint16())
		if r.Err() == nil && r.Remaining() < 4*n {
			return nil, fmt.Errorf("%w: class %d lists %d commands in %d bytes",
				tlv.ErrInsufficientData, g.ClassID, n, r.Remaining())
		}
		g.Keys = make([]snac.Key, 0, n)
		for i := 0; i < n; i++ {
			g.Keys = append(g.Keys, snac.Key{Family: r.Uint16(), Subtype: r.Uint16()})
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("rate group: %w", err)
		}
		info.Groups = append(info.Groups, g)
	}
	return info, nil
}

func parseRateChange(s bytespan.Span) (*RateChange, error) {
	r := bytespan.NewReader(s)
	c := &RateChange{Code: ratelimit.ChangeCode(r.Uint16())}
	if r.Err() == nil && r.Remaining()%ParamsLen != 0 {
		return nil, fmt.Errorf("%w: %d bytes of class data is not a multiple of %d",
			tlv.ErrMalformedField, r.Remaining(), ParamsLen)
	}
	for r.Err() == nil && r.Remaining() > 0 {
		c.Classes = append(c.Classes, readParams(r))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("rate change: %w", err)
	}
	return c, nil
}
