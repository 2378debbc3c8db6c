package ratelimit

import (
	"sync"
	"time"

	"github.com/opd-ai/oscarcore/logging"
)

// maxPossibleCommands caps PossibleCommands for classes whose threshold
// can never be crossed.
const maxPossibleCommands = 1 << 10

// Class tracks the moving average of one rate class.
type Class struct {
	mu      sync.Mutex
	params  Params
	avg     uint32
	last    time.Time
	limited bool
	margin  uint32
	clock   TimeProvider
}

// Option configures a Class or Monitor.
type Option func(*options)

type options struct {
	clock  TimeProvider
	margin uint32
}

// WithTimeProvider replaces the wall clock.
func WithTimeProvider(tp TimeProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.clock = tp
		}
	}
}

// WithErrorMargin keeps WaitTime and PossibleCommands this many
// milliseconds clear of the limited threshold.
func WithErrorMargin(ms uint32) Option {
	return func(o *options) { o.margin = ms }
}

func buildOptions(opts []Option) options {
	o := options{clock: DefaultTimeProvider{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClass starts tracking a class from the peer's announced parameters.
func NewClass(p Params, opts ...Option) (*Class, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	avg := p.CurrentAvg
	if avg > p.MaxAvg {
		avg = p.MaxAvg
	}
	c := &Class{
		params: p,
		avg:    avg,
		last:   o.clock.Now().Add(-time.Duration(p.LastTime) * time.Millisecond),
		margin: o.margin,
		clock:  o.clock,
	}
	c.limited = stateFor(avg, p, false) >= StateLimited
	return c, nil
}

// ID returns the class id.
func (c *Class) ID() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.ClassID
}

// Params returns the current parameters with CurrentAvg set to the local average.
func (c *Class) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.params
	p.CurrentAvg = c.avg
	return p
}

// Average returns the local moving average in milliseconds.
func (c *Class) Average() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avg
}

// State returns the local state of the class.
func (c *Class) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stateFor(c.avg, c.params, c.limited)
}

// Update records a command sent now and returns the new average.
func (c *Class) Update() uint32 {
	return c.UpdateAt(c.clock.Now())
}

// UpdateAt records a command sent at now and returns the new average.
// A clock that moved backwards counts as no time elapsed.
func (c *Class) UpdateAt(now time.Time) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := stateFor(c.avg, c.params, c.limited)
	avg, _ := ComputeAverage(c.avg, c.params.WindowSize, c.params.MaxAvg, elapsedMs(c.last, now))
	c.avg = avg
	c.last = now
	after := c.settle()

	if after != before {
		logging.NewLogger("ratelimit", "Class.UpdateAt").
			WithField("class_id", c.params.ClassID).
			WithField("average", c.avg).
			WithField("from", before.String()).
			WithField("to", after.String()).
			Info("Rate class state changed")
	}
	return c.avg
}

// settle recomputes the state and the limited latch. Callers hold mu.
func (c *Class) settle() State {
	s := stateFor(c.avg, c.params, c.limited)
	c.limited = s >= StateLimited
	return s
}

// Reconcile folds in an average reported by the peer. The local value is
// replaced only when the peer's is lower, since a stale report must not
// loosen throttling. It reports whether the local value changed.
func (c *Class) Reconcile(peerAvg uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if peerAvg >= c.avg {
		return false
	}
	logging.NewLogger("ratelimit", "Class.Reconcile").
		WithField("class_id", c.params.ClassID).
		WithField("local_average", c.avg).
		WithField("peer_average", peerAvg).
		Debug("Lowering local average to peer value")
	c.avg = peerAvg
	c.settle()
	return true
}

// ApplyChange handles the peer's rate-change notice. New thresholds are
// adopted as given; the average is reconciled conservatively. A limited
// notice latches the class as limited and caps the average at the clear
// threshold, so the class stays limited until later gaps raise it above
// that. A cleared notice releases the latch only once the local average
// agrees.
func (c *Class) ApplyChange(code ChangeCode, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.params = p
	if c.avg > p.MaxAvg {
		c.avg = p.MaxAvg
	}
	if p.CurrentAvg < c.avg {
		c.avg = p.CurrentAvg
	}
	switch code {
	case ChangeLimited:
		if c.avg > p.ClearAvg {
			c.avg = p.ClearAvg
		}
		c.limited = true
	case ChangeCleared:
		if c.avg > p.ClearAvg {
			c.limited = false
		}
	}
	s := c.settle()

	logging.NewLogger("ratelimit", "Class.ApplyChange").
		WithField("class_id", p.ClassID).
		WithField("code", code.String()).
		WithField("average", c.avg).
		WithField("state", s.String()).
		Info("Applied peer rate change")
	return nil
}

// threshold is the average the next command must not drop below.
// Callers hold mu.
func (c *Class) threshold() uint32 {
	t := c.params.LimitedAvg
	if c.limited {
		t = c.params.ClearAvg + 1
	}
	return t + c.margin
}

// WaitTime returns how long to wait before a command can be sent without
// pushing the class into the limited state.
func (c *Class) WaitTime() time.Duration {
	return c.WaitTimeAt(c.clock.Now())
}

// WaitTimeAt is WaitTime evaluated at now.
func (c *Class) WaitTimeAt(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	need := requiredDiff(c.avg, c.params.WindowSize, c.threshold())
	elapsed := elapsedMs(c.last, now)
	if elapsed >= need {
		return 0
	}
	return time.Duration(need-elapsed) * time.Millisecond
}

// PossibleCommands returns how many commands could be sent back to back
// at now before the class would become limited.
func (c *Class) PossibleCommands(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.threshold()
	avg := c.avg
	diff := elapsedMs(c.last, now)
	count := 0
	for count < maxPossibleCommands {
		next, _ := ComputeAverage(avg, c.params.WindowSize, c.params.MaxAvg, diff)
		if next < target {
			break
		}
		avg = next
		diff = 0
		count++
	}
	return count
}

func elapsedMs(last, now time.Time) uint64 {
	d := now.Sub(last)
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
