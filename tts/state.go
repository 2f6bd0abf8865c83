package tts

// StateType represents the current playback state.
type StateType int

const (
	// StateIdle indicates nothing is queued or the document is finished.
	StateIdle StateType = iota
	// StateSpeaking indicates an utterance is in flight and audible.
	StateSpeaking
	// StatePaused indicates the engine is paused mid-utterance.
	StatePaused
	// StateStopping indicates a cancellation is settling.
	StateStopping
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// State is a snapshot of the controller.
type State struct {
	Current   StateType   // Current playback state
	Cursor    int         // Next or current sentence to speak (0..Total)
	Total     int         // Number of sentences in the table
	Active    int         // Highlighted sentence, or NoSentence
	Params    VoiceParams // Parameters used for the next dispatch
	LastError error       // Last error reported
	Disabled  bool        // Engine unsupported, all controls disabled
}

// IsActive returns true while speaking or paused.
func (s *State) IsActive() bool {
	return s.Current == StateSpeaking || s.Current == StatePaused
}

// CanPause returns true if playback can be paused.
func (s *State) CanPause() bool {
	return !s.Disabled && s.Current == StateSpeaking
}

// CanResume returns true if playback can be resumed.
func (s *State) CanResume() bool {
	return !s.Disabled && s.Current == StatePaused
}

// CanStop returns true if playback can be stopped.
func (s *State) CanStop() bool {
	return !s.Disabled && s.Current != StateIdle
}

// Progress returns the fraction of the document already reached.
func (s *State) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Cursor) / float64(s.Total)
}

// StateMachine manages playback state transitions.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:     {StateSpeaking, StateStopping},
			StateSpeaking: {StatePaused, StateStopping, StateIdle},
			StatePaused:   {StateSpeaking, StateStopping, StateIdle},
			StateStopping: {StateIdle},
		},
		onEnter: make(map[StateType]func()),
		onExit:  make(map[StateType]func()),
	}
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	valid := false
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.move(to)
	return true
}

// Force moves to the given state regardless of the transition table.
func (sm *StateMachine) Force(to StateType) {
	if sm.current == to {
		return
	}
	sm.move(to)
}

func (sm *StateMachine) move(to StateType) {
	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}
