package state

// Flow names a dialog flow. The empty flow means no session is active.
type Flow string

// State identifies a step inside a flow.
type State string

const (
	// FlowNone indicates there is no active conversation in the chat.
	FlowNone Flow = ""
	// StateIdle is the state paired with FlowNone.
	StateIdle State = "idle"
)

// Session stores the active flow/state pair and typed scratch data for a chat.
type Session[T any] struct {
	Flow  Flow
	State State
	Data  T
}

// Active reports whether a flow is running.
func (s *Session[T]) Active() bool {
	return s != nil && s.Flow != FlowNone
}

// Enter switches the session to flow/state.
func (s *Session[T]) Enter(flow Flow, st State) {
	s.Flow = flow
	s.State = st
}

// End leaves any active flow; Data is kept.
func (s *Session[T]) End() {
	s.Flow = FlowNone
	s.State = StateIdle
}
