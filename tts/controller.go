// Package tts provides sentence-by-sentence speech playback for lector.
package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Metrics receives playback counters. A nil Metrics is never passed to the
// controller; use WithMetrics to install one.
type Metrics interface {
	Dispatched()
	Cancelled()
	Failed()
	StaleEvent()
}

type nopMetrics struct{}

func (nopMetrics) Dispatched() {}
func (nopMetrics) Cancelled()  {}
func (nopMetrics) Failed()     {}
func (nopMetrics) StaleEvent() {}

// Option configures a Controller.
type Option func(*Controller)

// WithHighlightSink sets the sink notified of the active sentence.
func WithHighlightSink(sink HighlightSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithReporter sets the receiver of user-visible status messages.
func WithReporter(r Reporter) Option {
	return func(c *Controller) { c.reporter = r }
}

// WithLogger sets the controller logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the playback metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithVoiceParams sets the initial voice parameters.
func WithVoiceParams(p VoiceParams) Option {
	return func(c *Controller) { c.params = p }
}

// notification is a deferred call to an observer.
type notification func()

// Controller drives an Engine through a sentence table one sentence at a
// time, chaining each utterance's completion to the next sentence.
//
// All mutable state is owned by the controller and guarded by mu. Engine
// events reach the controller through one pump goroutine per utterance,
// tagged with the generation the utterance was dispatched under; any event
// whose generation is no longer current is discarded. Observer calls are
// queued while mu is held and delivered in order after it is released, so
// observers may call back into the controller.
type Controller struct {
	engine   Engine
	parser   SentenceParser
	sink     HighlightSink
	reporter Reporter
	logger   *log.Logger
	metrics  Metrics

	mu         sync.Mutex
	machine    *StateMachine
	sentences  []Sentence
	cursor     int
	active     int
	params     VoiceParams
	generation uint64
	release    context.CancelFunc // cancels the in-flight utterance's pump
	lastError  error
	disabled   bool
	closed     bool

	onStateChange []func(StateType)

	notifyMu sync.Mutex
	outbox   []notification
}

// NewController creates a controller over engine. If the engine is not
// available the controller is disabled: the condition is reported once and
// every control returns ErrUnsupportedEngine.
func NewController(engine Engine, parser SentenceParser, opts ...Option) *Controller {
	c := &Controller{
		engine:  engine,
		parser:  parser,
		logger:  log.Default().WithPrefix("tts"),
		metrics: nopMetrics{},
		machine: NewStateMachine(),
		active:  NoSentence,
		params:  DefaultVoiceParams(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.setupStateMachine()

	if engine == nil || !engine.Available() {
		c.mu.Lock()
		c.disabled = true
		c.lastError = ErrUnsupportedEngine
		c.report(statusFor(ErrUnsupportedEngine))
		c.mu.Unlock()
		c.drain()
		if engine != nil {
			c.logger.Warn("Speech engine unavailable, playback disabled", "engine", engine.Name())
		}
	}

	return c
}

// SetContent parses text and loads the resulting sentence table.
func (c *Controller) SetContent(text string) (int, error) {
	if c.parser == nil {
		return 0, fmt.Errorf("%w: no sentence parser", ErrInvalidConfig)
	}
	sentences := c.parser.Parse(text)
	if err := c.Load(sentences); err != nil {
		return 0, err
	}
	return len(sentences), nil
}

// Load replaces the sentence table. Any utterance in flight is cancelled,
// the cursor returns to 0 and the highlight is cleared.
func (c *Controller) Load(sentences []Sentence) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}

	c.halt()
	c.sentences = append([]Sentence(nil), sentences...)
	c.cursor = 0
	c.lastError = nil
	c.logger.Debug("Loaded sentence table", "sentences", len(sentences))
	c.mu.Unlock()
	c.drain()
	return nil
}

// Play starts reading at the cursor. Any in-flight utterance is cancelled
// first without moving the cursor.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}

	if len(c.sentences) == 0 {
		c.lastError = ErrEmptyDocument
		c.report(statusFor(ErrEmptyDocument))
		return ErrEmptyDocument
	}

	c.cancel(false)
	c.dispatch(c.cursor)
	return nil
}

// Pause pauses the current utterance. It does nothing unless speaking.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	if c.machine.Current() != StateSpeaking {
		return nil
	}

	if err := c.engine.Pause(); err != nil {
		c.report(Status{Level: LevelWarning, Message: fmt.Sprintf("Could not pause: %v", err), Err: err})
		return fmt.Errorf("pause: %w", err)
	}
	c.machine.Transition(StatePaused)
	return nil
}

// Resume resumes a paused utterance. It does nothing unless paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	if c.machine.Current() != StatePaused {
		return nil
	}

	if err := c.engine.Resume(); err != nil {
		c.report(Status{Level: LevelWarning, Message: fmt.Sprintf("Could not resume: %v", err), Err: err})
		return fmt.Errorf("resume: %w", err)
	}
	c.machine.Transition(StateSpeaking)
	return nil
}

// Stop cancels playback, clears the highlight and rewinds to the first
// sentence. Calling it repeatedly is equivalent to calling it once.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}

	c.halt()
	c.cursor = 0
	return nil
}

// RestartCurrent re-speaks the current sentence from its beginning with the
// current voice parameters. It does nothing unless speaking or paused.
func (c *Controller) RestartCurrent() error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	c.restart()
	return nil
}

// Seek moves the cursor to index. While speaking or paused, playback
// restarts at the new sentence.
func (c *Controller) Seek(index int) error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	if index < 0 || index >= len(c.sentences) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(c.sentences))
	}

	c.cursor = index
	c.restart()
	return nil
}

// Next moves to the following sentence.
func (c *Controller) Next() error {
	return c.Seek(c.Cursor() + 1)
}

// Previous moves to the preceding sentence.
func (c *Controller) Previous() error {
	return c.Seek(c.Cursor() - 1)
}

// SetVoiceParams replaces all voice parameters. While speaking or paused,
// the current sentence restarts with the new parameters.
func (c *Controller) SetVoiceParams(p VoiceParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.UpdateVoiceParams(func(VoiceParams) VoiceParams { return p })
}

// UpdateVoiceParams derives new voice parameters from the current ones.
// fn runs with the controller locked, so concurrent updates never read the
// same starting value; it must not call back into the controller.
func (c *Controller) UpdateVoiceParams(fn func(VoiceParams) VoiceParams) error {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	p := fn(c.params)
	if err := p.Validate(); err != nil {
		return err
	}
	c.params = p
	c.logger.Debug("Voice parameters changed",
		"voice", p.Voice, "rate", p.Rate, "pitch", p.Pitch, "volume", p.Volume)
	c.restart()
	return nil
}

// SetVoice changes the voice.
func (c *Controller) SetVoice(voice string) error {
	return c.UpdateVoiceParams(func(p VoiceParams) VoiceParams {
		p.Voice = voice
		return p
	})
}

// SetRate changes the speech rate.
func (c *Controller) SetRate(rate float64) error {
	return c.UpdateVoiceParams(func(p VoiceParams) VoiceParams {
		p.Rate = rate
		return p
	})
}

// SetPitch changes the pitch.
func (c *Controller) SetPitch(pitch float64) error {
	return c.UpdateVoiceParams(func(p VoiceParams) VoiceParams {
		p.Pitch = pitch
		return p
	})
}

// SetVolume changes the volume.
func (c *Controller) SetVolume(volume float64) error {
	return c.UpdateVoiceParams(func(p VoiceParams) VoiceParams {
		p.Volume = volume
		return p
	})
}

// VoiceParams returns the parameters used for the next dispatch.
func (c *Controller) VoiceParams() VoiceParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Current:   c.machine.Current(),
		Cursor:    c.cursor,
		Total:     len(c.sentences),
		Active:    c.active,
		Params:    c.params,
		LastError: c.lastError,
		Disabled:  c.disabled,
	}
}

// Cursor returns the index of the next or current sentence.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Total returns the number of sentences loaded.
func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sentences)
}

// Sentences returns a copy of the sentence table.
func (c *Controller) Sentences() []Sentence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sentence(nil), c.sentences...)
}

// Engine returns the engine the controller drives.
func (c *Controller) Engine() Engine {
	return c.engine
}

// OnStateChange registers a callback for state changes.
func (c *Controller) OnStateChange(fn func(StateType)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = append(c.onStateChange, fn)
}

// Close stops playback and releases the engine.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if !c.disabled {
		c.halt()
	}
	c.closed = true
	c.mu.Unlock()
	c.drain()

	if c.engine == nil {
		return nil
	}
	if err := c.engine.Close(); err != nil {
		return fmt.Errorf("engine shutdown failed: %w", err)
	}
	return nil
}

// Private helper methods. Unless noted, they require c.mu to be held.

func (c *Controller) setupStateMachine() {
	for _, state := range []StateType{StateIdle, StateSpeaking, StatePaused, StateStopping} {
		state := state
		c.machine.OnEnter(state, func() {
			c.logger.Debug("State changed", "state", state, "cursor", c.cursor)
			for _, fn := range c.onStateChange {
				fn := fn
				c.enqueue(func() { fn(state) })
			}
		})
	}
}

func (c *Controller) usable() error {
	if c.closed {
		return ErrControllerClosed
	}
	if c.disabled {
		return ErrUnsupportedEngine
	}
	return nil
}

// dispatch speaks sentence i, or finishes the document when i is past the
// end.
func (c *Controller) dispatch(i int) {
	if i >= len(c.sentences) {
		c.finish()
		return
	}

	c.cursor = i
	params := c.params
	c.generation++
	gen := c.generation

	ctx, release := context.WithCancel(context.Background())
	c.release = release

	c.metrics.Dispatched()
	c.logger.Debug("Dispatching sentence", "index", i, "generation", gen, "rate", params.Rate)

	events, err := c.engine.Speak(ctx, c.sentences[i].Text, params)
	if err != nil {
		c.fail(i, err)
		return
	}

	go c.pump(ctx, gen, i, events)
}

// pump forwards events for one utterance until its terminal event, until
// the engine closes the channel, or until the utterance is released. It
// runs without c.mu held.
func (c *Controller) pump(ctx context.Context, gen uint64, index int, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					c.handleEvent(gen, index, Failed(fmt.Errorf("engine closed the event stream")))
				}
				return
			}
			c.handleEvent(gen, index, ev)
			if ev.Type != EventStarted {
				return
			}
		}
	}
}

// handleEvent applies an engine event. It runs without c.mu held.
func (c *Controller) handleEvent(gen uint64, index int, ev Event) {
	c.mu.Lock()
	defer c.drain()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation || c.machine.Current() == StateStopping {
		c.metrics.StaleEvent()
		c.logger.Debug("Discarding stale engine event",
			"event", ev.Type, "index", index, "generation", gen, "current", c.generation)
		return
	}

	switch ev.Type {
	case EventStarted:
		c.machine.Transition(StateSpeaking)
		c.setActive(index)
	case EventEnded:
		c.releaseUtterance()
		c.dispatch(index + 1)
	case EventFailed:
		c.fail(index, ev.Err)
	}
}

// restart re-dispatches the cursor when speaking or paused.
func (c *Controller) restart() {
	switch c.machine.Current() {
	case StateSpeaking, StatePaused:
		c.cancel(false)
		c.dispatch(c.cursor)
	}
}

// cancel invalidates the in-flight utterance and asks the engine to stop.
func (c *Controller) cancel(resetCursor bool) {
	c.generation++
	c.releaseUtterance()
	if err := c.engine.Cancel(); err != nil {
		c.logger.Warn("Engine cancel failed", "error", err)
	}
	c.metrics.Cancelled()
	if resetCursor {
		c.cursor = 0
	}
}

func (c *Controller) releaseUtterance() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

// halt cancels playback and settles in Idle without touching the cursor.
func (c *Controller) halt() {
	if c.machine.Current() != StateIdle {
		c.machine.Transition(StateStopping)
	}
	c.cancel(false)
	c.setActive(NoSentence)
	c.machine.Force(StateIdle)
}

// finish handles reaching the end of the document.
func (c *Controller) finish() {
	c.halt()
	c.cursor = 0
	c.logger.Info("Finished reading", "sentences", len(c.sentences))
	c.report(Status{Level: LevelSuccess, Message: "Finished reading."})
}

// fail surfaces an engine failure and returns to Idle at the start.
func (c *Controller) fail(index int, err error) {
	failure := newEngineFailure(index, err)
	c.lastError = failure
	c.metrics.Failed()
	c.logger.Error("Speech synthesis failed", "index", index, "error", err)
	c.report(Status{Level: LevelDanger, Message: failure.Error(), Err: failure})
	c.halt()
	c.cursor = 0
}

// setActive notifies the sink when the highlighted sentence changes.
func (c *Controller) setActive(index int) {
	if c.active == index {
		return
	}
	c.active = index
	if c.sink == nil {
		return
	}
	sink := c.sink
	c.enqueue(func() { sink.SetActive(index) })
}

func (c *Controller) report(status Status) {
	if c.reporter == nil {
		return
	}
	reporter := c.reporter
	c.enqueue(func() { reporter.Report(status) })
}

func (c *Controller) enqueue(n notification) {
	c.outbox = append(c.outbox, n)
}

// drain delivers queued notifications in order. It must be called without
// c.mu held. If another goroutine is already draining, that goroutine
// delivers the new notifications.
func (c *Controller) drain() {
	for {
		if !c.notifyMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			if len(c.outbox) == 0 {
				c.mu.Unlock()
				break
			}
			n := c.outbox[0]
			c.outbox = c.outbox[1:]
			c.mu.Unlock()
			c.deliver(n)
		}
		c.notifyMu.Unlock()

		c.mu.Lock()
		empty := len(c.outbox) == 0
		c.mu.Unlock()
		if empty {
			return
		}
	}
}

// deliver isolates observer failures from controller state.
func (c *Controller) deliver(n notification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Observer panicked", "panic", r)
		}
	}()
	n()
}
