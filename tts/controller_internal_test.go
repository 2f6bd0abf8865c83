package tts

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
)

// heldEngine hands out event channels and never writes to them, so tests
// decide exactly which events reach the controller and under which
// generation.
type heldEngine struct {
	mu     sync.Mutex
	spoken []string
}

func (e *heldEngine) Name() string     { return "held" }
func (e *heldEngine) Available() bool  { return true }
func (e *heldEngine) Voices() []Voice  { return nil }
func (e *heldEngine) Pause() error     { return nil }
func (e *heldEngine) Resume() error    { return nil }
func (e *heldEngine) Cancel() error    { return nil }
func (e *heldEngine) IsSpeaking() bool { return false }
func (e *heldEngine) IsPaused() bool   { return false }
func (e *heldEngine) Close() error     { return nil }

func (e *heldEngine) Speak(_ context.Context, text string, _ VoiceParams) (<-chan Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spoken = append(e.spoken, text)
	return make(chan Event), nil
}

func (e *heldEngine) speakCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spoken)
}

type countingMetrics struct {
	nopMetrics
	stale atomic.Int32
}

func (m *countingMetrics) StaleEvent() { m.stale.Add(1) }

func newHeldController(t *testing.T) (*Controller, *heldEngine, *countingMetrics) {
	t.Helper()

	engine := &heldEngine{}
	metrics := &countingMetrics{}
	c := NewController(engine, nil, WithMetrics(metrics), WithLogger(log.New(io.Discard)))
	t.Cleanup(func() { _ = c.Close() })

	err := c.Load([]Sentence{{Index: 0, Text: "One."}, {Index: 1, Text: "Two."}, {Index: 2, Text: "Three."}})
	if err != nil {
		t.Fatal(err)
	}
	return c, engine, metrics
}

func (c *Controller) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func TestHandleEventCurrentGeneration(t *testing.T) {
	c, engine, metrics := newHeldController(t)

	if err := c.Play(); err != nil {
		t.Fatal(err)
	}
	gen := c.currentGeneration()

	c.handleEvent(gen, 0, Started())
	if state := c.State(); state.Current != StateSpeaking || state.Active != 0 {
		t.Fatalf("Unexpected state after started: %+v", state)
	}

	c.handleEvent(gen, 0, Ended())
	if state := c.State(); state.Cursor != 1 {
		t.Errorf("Ended should advance the cursor: %+v", state)
	}
	if got := engine.speakCount(); got != 2 {
		t.Errorf("Ended should dispatch the next sentence, got %d speak calls", got)
	}
	if got := metrics.stale.Load(); got != 0 {
		t.Errorf("Current events counted as stale: %d", got)
	}
}

func TestHandleEventDiscardsStaleGeneration(t *testing.T) {
	tests := []struct {
		name   string
		after  func(c *Controller) error
		state  StateType
		cursor int
	}{
		{"stop", (*Controller).Stop, StateIdle, 0},
		{"seek", func(c *Controller) error { return c.Seek(2) }, StateSpeaking, 2},
		{"restart", (*Controller).RestartCurrent, StateSpeaking, 0},
		{"rate change", func(c *Controller) error { return c.SetRate(1.5) }, StateSpeaking, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, engine, metrics := newHeldController(t)

			if err := c.Play(); err != nil {
				t.Fatal(err)
			}
			old := c.currentGeneration()
			c.handleEvent(old, 0, Started())

			if err := tt.after(c); err != nil {
				t.Fatal(err)
			}
			if c.currentGeneration() == old {
				t.Fatal("Generation did not advance")
			}
			before := c.State()
			speaks := engine.speakCount()

			// The abandoned utterance reports its completion late.
			c.handleEvent(old, 0, Started())
			c.handleEvent(old, 0, Ended())
			c.handleEvent(old, 0, Failed(io.ErrUnexpectedEOF))

			after := c.State()
			if after != before {
				t.Errorf("Stale events changed state: before %+v, after %+v", before, after)
			}
			if after.Current != tt.state || after.Cursor != tt.cursor {
				t.Errorf("State = %+v, want %v at %d", after, tt.state, tt.cursor)
			}
			if got := engine.speakCount(); got != speaks {
				t.Errorf("Stale ended caused a dispatch: %d speak calls, want %d", got, speaks)
			}
			if got := metrics.stale.Load(); got != 3 {
				t.Errorf("Stale events counted = %d, want 3", got)
			}
		})
	}
}
