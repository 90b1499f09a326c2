package box

import "sync/atomic"

// State is the session worker state.
type State uint32

const (
	StateClosed State = iota
	StateOpening
	StateConnected
	StateClosing
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpening:
		return "Opening"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateExiting:
		return "Exiting"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is Exiting.
func (s State) IsTerminal() bool { return s == StateExiting }

// atomicState holds the worker state. Only the worker writes it.
type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() State {
	return State(st.state.Load())
}

func (st *atomicState) Set(state State) {
	st.state.Store(uint32(state))
}

func (st *atomicState) String() string {
	return st.Get().String()
}
