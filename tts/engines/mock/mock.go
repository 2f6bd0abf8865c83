// Package mock provides a mock speech engine for testing and demos.
package mock

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/sentence"
)

// tickInterval is the granularity of simulated playback.
const tickInterval = 5 * time.Millisecond

// Call records a Speak call.
type Call struct {
	Text   string
	Params tts.VoiceParams
}

// Utterance is a single simulated utterance. In scripted mode, tests drive
// it with Start, End and Fail.
type Utterance struct {
	Text   string
	Params tts.VoiceParams

	mu      sync.Mutex
	events  chan tts.Event
	stop    chan struct{}
	started bool
	done    bool
	paused  bool
}

func newUtterance(text string, params tts.VoiceParams) *Utterance {
	return &Utterance{
		Text:   text,
		Params: params,
		events: make(chan tts.Event, 2),
		stop:   make(chan struct{}),
	}
}

// Start emits the started event. It reports whether the event was sent.
func (u *Utterance) Start() bool {
	return u.send(tts.Started())
}

// End emits the ended event. It reports whether the event was sent.
func (u *Utterance) End() bool {
	return u.send(tts.Ended())
}

// Fail emits a failed event. It reports whether the event was sent.
func (u *Utterance) Fail(err error) bool {
	return u.send(tts.Failed(err))
}

// Done reports whether the utterance has finished or been cancelled.
func (u *Utterance) Done() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.done
}

func (u *Utterance) send(ev tts.Event) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return false
	}
	if ev.Type == tts.EventStarted {
		if u.started {
			return false
		}
		u.started = true
		u.events <- ev
		return true
	}

	u.events <- ev
	u.finish()
	return true
}

func (u *Utterance) close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.done {
		u.finish()
	}
}

func (u *Utterance) finish() {
	u.done = true
	close(u.events)
	close(u.stop)
}

func (u *Utterance) setPaused(paused bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paused = paused
}

func (u *Utterance) isPaused() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paused
}

// Engine implements tts.Engine without producing audio.
type Engine struct {
	mu sync.Mutex

	cfg       tts.MockConfig
	scripted  bool
	available bool
	closed    bool

	failure error
	current *Utterance

	calls      []Call
	utterances []*Utterance
	cancels    int
}

// New creates a mock engine that plays each utterance for its estimated
// duration.
func New(cfg tts.MockConfig) *Engine {
	return &Engine{
		cfg:       cfg,
		available: true,
	}
}

// NewScripted creates a mock engine that emits no events on its own. Tests
// drive each utterance through Current.
func NewScripted() *Engine {
	e := New(tts.DefaultMockConfig())
	e.scripted = true
	return e
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return tts.EngineMock
}

// Available returns the mock availability state.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available && !e.closed
}

// Voices returns available mock voices.
func (e *Engine) Voices() []tts.Voice {
	return []tts.Voice{
		{ID: "mock-voice-1", Name: "Mock Voice 1", Language: "en-US", Gender: "neutral"},
		{ID: "mock-voice-2", Name: "Mock Voice 2", Language: "en-GB", Gender: "female"},
		{ID: "mock-voice-3", Name: "Mock Voice 3", Language: "en-US", Gender: "male"},
	}
}

// Speak starts a simulated utterance.
func (e *Engine) Speak(ctx context.Context, text string, params tts.VoiceParams) (<-chan tts.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, tts.ErrEngineClosed
	}
	if !e.available {
		return nil, tts.ErrUnsupportedEngine
	}
	if e.current != nil && !e.current.Done() {
		return nil, tts.ErrSpeakInProgress
	}

	u := newUtterance(text, params)
	e.current = u
	e.calls = append(e.calls, Call{Text: text, Params: params})
	e.utterances = append(e.utterances, u)

	go func() {
		select {
		case <-ctx.Done():
			u.close()
		case <-u.stop:
		}
	}()

	if !e.scripted {
		go e.play(ctx, u, e.failureFor())
	}

	return u.events, nil
}

// failureFor returns the error the next utterance fails with, if any.
func (e *Engine) failureFor() error {
	if e.failure != nil {
		return e.failure
	}
	if e.cfg.FailureRate > 0 && rand.Float64() < e.cfg.FailureRate {
		return tts.ErrEngineFailure
	}
	return nil
}

// play simulates an utterance: latency, then audio for the estimated
// duration. Pausing freezes the remaining time.
func (e *Engine) play(ctx context.Context, u *Utterance, failure error) {
	if e.cfg.SimulateLatency && e.cfg.GenerationDelay > 0 {
		timer := time.NewTimer(e.cfg.GenerationDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-u.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if failure != nil {
		u.Fail(failure)
		return
	}

	u.Start()

	remaining := e.duration(u.Text, u.Params.Rate)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return
		case <-u.stop:
			return
		case now := <-ticker.C:
			if !u.isPaused() {
				remaining -= now.Sub(last)
			}
			last = now
		}
	}

	u.End()
}

func (e *Engine) duration(text string, rate float64) time.Duration {
	d := sentence.EstimateDuration(text, rate)
	if e.cfg.WordsPerMinute > 0 {
		d = d * 150 / time.Duration(e.cfg.WordsPerMinute)
	}
	return d
}

// Pause freezes the current utterance.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.Done() {
		return tts.ErrNotSpeaking
	}
	e.current.setPaused(true)
	return nil
}

// Resume continues the current utterance.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.Done() {
		return tts.ErrNotSpeaking
	}
	e.current.setPaused(false)
	return nil
}

// Cancel stops the current utterance without emitting a terminal event.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancels++
	if e.current != nil {
		e.current.close()
		e.current = nil
	}
	return nil
}

// IsSpeaking returns true while an utterance is in flight.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && !e.current.Done()
}

// IsPaused returns true while the current utterance is paused.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && !e.current.Done() && e.current.isPaused()
}

// Close simulates engine shutdown.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.current.close()
		e.current = nil
	}
	e.closed = true
	return nil
}

// Test control methods

// SetAvailable sets whether the engine reports itself available.
func (e *Engine) SetAvailable(available bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = available
}

// SetFailure makes every following utterance fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = nil
}

// Current returns the most recent utterance, or nil if none was started.
func (e *Engine) Current() *Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.utterances) == 0 {
		return nil
	}
	return e.utterances[len(e.utterances)-1]
}

// Calls returns every Speak call in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallCount returns the number of Speak calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// CancelCount returns the number of Cancel calls.
func (e *Engine) CancelCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// Reset clears recorded calls.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
	e.utterances = nil
	e.cancels = 0
}
