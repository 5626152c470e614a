package vl53l3cx

// CycleState is where the controller is in a ranging cycle.
type CycleState int

const (
	// Idle means no measurement is in flight; a new cycle may begin.
	Idle CycleState = iota
	// Started means a measurement was issued and readiness is being polled.
	Started
	// Ready means the device signalled data ready and the reading is being processed.
	Ready
)

func (s CycleState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Started:
		return "started"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// transitions lists every legal edge. Ready to Started is the restart after a reading with no
// usable object.
var transitions = map[CycleState][]CycleState{
	Idle:    {Started},
	Started: {Ready},
	Ready:   {Idle, Started},
}

// CanTransition reports whether the controller may move from one state to another.
func CanTransition(from, to CycleState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
