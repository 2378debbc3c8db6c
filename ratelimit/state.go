package ratelimit

// State is the local view of a rate class.
type State int

const (
	// StateNormal means the average is above every threshold.
	StateNormal State = iota
	// StateWarning means the average fell below the warning threshold.
	StateWarning
	// StateLimited means the peer is expected to drop commands in this class.
	StateLimited
	// StateDisconnect means the average fell below the disconnect threshold.
	StateDisconnect
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarning:
		return "warning"
	case StateLimited:
		return "limited"
	case StateDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// ChangeCode is the reason carried by the peer's rate-change notice.
type ChangeCode uint16

const (
	ChangeParams  ChangeCode = 1
	ChangeWarning ChangeCode = 2
	ChangeLimited ChangeCode = 3
	ChangeCleared ChangeCode = 4
)

// String returns the change code name.
func (c ChangeCode) String() string {
	switch c {
	case ChangeParams:
		return "params"
	case ChangeWarning:
		return "warning"
	case ChangeLimited:
		return "limited"
	case ChangeCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// stateFor classifies avg. Once limited, a class stays limited until the
// average climbs above the clear threshold.
func stateFor(avg uint32, p Params, limited bool) State {
	switch {
	case avg < p.DisconnectAvg:
		return StateDisconnect
	case limited && avg <= p.ClearAvg:
		return StateLimited
	case avg < p.LimitedAvg:
		return StateLimited
	case avg < p.WarnAvg:
		return StateWarning
	default:
		return StateNormal
	}
}
