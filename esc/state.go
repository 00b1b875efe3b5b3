package esc

import "fmt"

// State is the application-layer state of a device, as held in its AL control
// and AL status registers. The error flag may be combined with any base state.
type State uint8

// Application-layer states.
const (
	// StateNone indicates that no device responded to a state read.
	StateNone State = 0x00
	// StateInit is the initial state after power-on; only register access works.
	StateInit State = 0x01
	// StatePreOp enables mailbox traffic on top of register access.
	StatePreOp State = 0x02
	// StateBoot enables firmware download via file transfer; reachable only
	// from Init or PreOp.
	StateBoot State = 0x03
	// StateSafeOp enables cyclic input exchange; outputs stay in a safe state.
	StateSafeOp State = 0x04
	// StateOp enables full cyclic input and output exchange.
	StateOp State = 0x08

	// StateErrorFlag marks a device-side transition failure. It is combined
	// with the base state and must be acknowledged by the master.
	StateErrorFlag State = 0x10

	// StateMask extracts the base state from a register value.
	StateMask State = 0x0F
)

// Base returns the state with the error flag stripped.
func (s State) Base() State {
	return s & StateMask
}

// HasError reports whether the error flag is set.
func (s State) HasError() bool {
	return s&StateErrorFlag != 0
}

// String returns a human readable state name, with a "+ERROR" suffix when the
// error flag is set.
func (s State) String() string {
	var name string
	switch s.Base() {
	case StateNone:
		name = "NONE"
	case StateInit:
		name = "INIT"
	case StatePreOp:
		name = "PRE-OP"
	case StateBoot:
		name = "BOOT"
	case StateSafeOp:
		name = "SAFE-OP"
	case StateOp:
		name = "OP"
	default:
		name = fmt.Sprintf("State(%#02x)", uint8(s.Base()))
	}

	if s.HasError() {
		return name + "+ERROR"
	}
	return name
}

// rank orders states from least to most advanced for aggregate reporting.
// Boot sits beside PreOp: it is a maintenance state, not part of the cyclic ladder.
func (s State) rank() int {
	switch s.Base() {
	case StateInit:
		return 1
	case StateBoot, StatePreOp:
		return 2
	case StateSafeOp:
		return 3
	case StateOp:
		return 4
	default:
		return 0
	}
}

// Lower returns the less advanced of the two states. A state with the error
// flag set is considered lower than the same state without it.
func (s State) Lower(o State) State {
	sr, or := s.rank(), o.rank()
	if sr != or {
		if sr < or {
			return s
		}
		return o
	}
	if s.HasError() {
		return s
	}
	return o
}

// validTransitions is the legal forward transition graph. Backward transitions
// (towards Init) are always permitted.
var validTransitions = map[State][]State{
	StateInit:   {StatePreOp, StateBoot},
	StatePreOp:  {StateSafeOp, StateBoot},
	StateBoot:   {},
	StateSafeOp: {StateOp},
	StateOp:     {},
}

// ValidTransition reports whether a request to move from state from to state to
// is allowed by the transition graph. Requesting the current state again and
// any backward transition are always valid.
func ValidTransition(from, to State) bool {
	from, to = from.Base(), to.Base()
	if from == to || to.rank() < from.rank() {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
