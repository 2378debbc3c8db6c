package ratelimit

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/oscarcore/logging"
	"github.com/opd-ai/oscarcore/snac"
)

// Monitor routes commands to their rate classes.
// It is safe for concurrent use.
type Monitor struct {
	mu      sync.RWMutex
	classes map[uint16]*Class
	byKey   map[snac.Key]uint16
	opts    options
}

// NewMonitor creates a monitor with no classes.
func NewMonitor(opts ...Option) *Monitor {
	return &Monitor{
		classes: make(map[uint16]*Class),
		byKey:   make(map[snac.Key]uint16),
		opts:    buildOptions(opts),
	}
}

// SetClasses replaces every class with the peer's announcement. members
// maps class ids to the commands that draw on them.
func (m *Monitor) SetClasses(params []Params, members map[uint16][]snac.Key) error {
	classes := make(map[uint16]*Class, len(params))
	for _, p := range params {
		c, err := NewClass(p, m.classOptions()...)
		if err != nil {
			return err
		}
		classes[p.ClassID] = c
	}
	byKey := make(map[snac.Key]uint16)
	for id, keys := range members {
		if _, ok := classes[id]; !ok {
			return fmt.Errorf("%w: commands listed for unknown class %d", ErrInvalidConfiguration, id)
		}
		for _, k := range keys {
			byKey[k] = id
		}
	}

	m.mu.Lock()
	m.classes = classes
	m.byKey = byKey
	m.mu.Unlock()

	logging.NewLogger("ratelimit", "Monitor.SetClasses").
		WithField("classes", len(classes)).
		WithField("commands", len(byKey)).
		Info("Rate classes configured")
	return nil
}

func (m *Monitor) classOptions() []Option {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return []Option{WithTimeProvider(m.opts.clock), WithErrorMargin(m.opts.margin)}
}

// SetErrorMargin changes the margin for every current and future class.
func (m *Monitor) SetErrorMargin(ms uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.margin = ms
	for _, c := range m.classes {
		c.mu.Lock()
		c.margin = ms
		c.mu.Unlock()
	}
}

// Class returns the class with the given id.
func (m *Monitor) Class(id uint16) (*Class, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	return c, ok
}

// ClassFor returns the class key draws on.
func (m *Monitor) ClassFor(key snac.Key) (*Class, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, false
	}
	c, ok := m.classes[id]
	return c, ok
}

// Classes returns every class ordered by id.
func (m *Monitor) Classes() []*Class {
	m.mu.RLock()
	out := make([]*Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Sent records that key was just sent. ok is false for commands outside
// every class.
func (m *Monitor) Sent(key snac.Key) (state State, ok bool) {
	c, ok := m.ClassFor(key)
	if !ok {
		return StateNormal, false
	}
	c.Update()
	return c.State(), true
}

// WaitTime returns how long to hold key back. Unclassified commands never wait.
func (m *Monitor) WaitTime(key snac.Key) time.Duration {
	c, ok := m.ClassFor(key)
	if !ok {
		return 0
	}
	return c.WaitTime()
}

// Reconcile folds a peer-reported average into class id.
func (m *Monitor) Reconcile(id uint16, peerAvg uint32) bool {
	c, ok := m.Class(id)
	if !ok {
		return false
	}
	return c.Reconcile(peerAvg)
}

// ApplyChange routes a rate-change notice to its class, creating the
// class if the peer announces one not seen before.
func (m *Monitor) ApplyChange(code ChangeCode, p Params) error {
	if c, ok := m.Class(p.ClassID); ok {
		return c.ApplyChange(code, p)
	}
	c, err := NewClass(p, m.classOptions()...)
	if err != nil {
		return err
	}
	if err := c.ApplyChange(code, p); err != nil {
		return err
	}
	m.mu.Lock()
	m.classes[p.ClassID] = c
	m.mu.Unlock()
	return nil
}
