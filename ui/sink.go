package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/lector/tts"
)

type (
	highlightMsg int
	statusMsg    tts.Status
	stateMsg     tts.StateType

	// sinkMsg carries every notification queued since the last delivery.
	sinkMsg []tea.Msg
)

// Sink receives controller notifications and hands them to the program. It
// implements tts.HighlightSink and tts.Reporter.
//
// Notifications are queued rather than sent with Program.Send, which blocks
// until the event loop is free: the controller may notify from inside a
// command the event loop is waiting on.
type Sink struct {
	mu      sync.Mutex
	pending []tea.Msg
	notify  chan struct{}
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{notify: make(chan struct{}, 1)}
}

// SetActive implements tts.HighlightSink.
func (s *Sink) SetActive(index int) {
	s.push(highlightMsg(index))
}

// Report implements tts.Reporter.
func (s *Sink) Report(status tts.Status) {
	s.push(statusMsg(status))
}

// StateChanged is registered with Controller.OnStateChange.
func (s *Sink) StateChanged(state tts.StateType) {
	s.push(stateMsg(state))
}

func (s *Sink) push(msg tea.Msg) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// wait blocks until notifications are queued and returns all of them.
func (s *Sink) wait() tea.Cmd {
	return func() tea.Msg {
		<-s.notify

		s.mu.Lock()
		defer s.mu.Unlock()
		msgs := s.pending
		s.pending = nil
		return sinkMsg(msgs)
	}
}
