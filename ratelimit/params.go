package ratelimit

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned for rate parameters the control loop cannot run with.
var ErrInvalidConfiguration = errors.New("invalid rate class configuration")

// Params describes one rate class as announced by the peer. Averages are
// millisecond counts.
type Params struct {
	ClassID       uint16
	WindowSize    uint32
	ClearAvg      uint32
	WarnAvg       uint32
	LimitedAvg    uint32
	DisconnectAvg uint32
	CurrentAvg    uint32
	MaxAvg        uint32
	// LastTime is how long ago, in milliseconds, the peer last saw a
	// command in this class.
	LastTime uint32
	// PeerState is the peer's own view of the class state.
	PeerState uint8
}

// Validate checks the parameters can drive the moving average.
func (p Params) Validate() error {
	if p.WindowSize == 0 {
		return fmt.Errorf("%w: class %d has zero window size", ErrInvalidConfiguration, p.ClassID)
	}
	return nil
}

// ComputeAverage applies one step of the moving average:
//
//	avg = (current*(window-1) + diff) / window, clamped to maxAvg
//
// using integer arithmetic so the result matches the peer's accounting.
func ComputeAverage(current, window, maxAvg uint32, diffMs uint64) (uint32, error) {
	if window == 0 {
		return 0, fmt.Errorf("%w: zero window size", ErrInvalidConfiguration)
	}
	if diffMs > uint64(^uint32(0)) {
		diffMs = uint64(^uint32(0))
	}
	avg := (uint64(current)*uint64(window-1) + diffMs) / uint64(window)
	if avg > uint64(maxAvg) {
		avg = uint64(maxAvg)
	}
	return uint32(avg), nil
}

// requiredDiff returns the gap in milliseconds needed after a command so
// that the next average is at least target.
func requiredDiff(current, window, target uint32) uint64 {
	need := uint64(target) * uint64(window)
	have := uint64(current) * uint64(window-1)
	if have >= need {
		return 0
	}
	return need - have
}
