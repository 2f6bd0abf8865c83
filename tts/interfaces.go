package tts

import (
	"context"
	"fmt"
)

// Engine defines the interface for speech engines.
//
// An engine wraps exactly one speech facility shared by the whole process.
// Speak starts a single utterance and returns the channel its events arrive
// on; the controller always cancels before speaking again, so an engine may
// refuse a second concurrent utterance with ErrSpeakInProgress.
type Engine interface {
	// Name returns the engine identifier (e.g. "espeak", "piper").
	Name() string

	// Available reports whether the engine can produce speech on this host.
	Available() bool

	// Voices returns the list of available voices.
	Voices() []Voice

	// Speak starts speaking text with the given parameters. The returned
	// channel delivers Started followed by Ended or Failed, or Failed alone,
	// and is closed after the terminal event or once ctx is done.
	Speak(ctx context.Context, text string, params VoiceParams) (<-chan Event, error)

	// Pause suspends the current utterance.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error

	// Cancel stops any in-flight utterance. It is idempotent and does not
	// guarantee that a terminal event is delivered for the cancelled
	// utterance.
	Cancel() error

	// IsSpeaking returns true while an utterance is in flight.
	IsSpeaking() bool

	// IsPaused returns true while the current utterance is paused.
	IsPaused() bool

	// Close releases engine resources.
	Close() error
}

// SentenceParser splits raw text into an ordered sentence table.
type SentenceParser interface {
	Parse(text string) []Sentence
}

// NoSentence is passed to HighlightSink.SetActive when no sentence is
// current.
const NoSentence = -1

// HighlightSink is notified whenever the current sentence changes.
type HighlightSink interface {
	SetActive(index int)
}

// Reporter receives user-visible status messages.
type Reporter interface {
	Report(status Status)
}

// HighlightFunc adapts a function to the HighlightSink interface.
type HighlightFunc func(index int)

// SetActive calls f(index).
func (f HighlightFunc) SetActive(index int) { f(index) }

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Status)

// Report calls f(status).
func (f ReporterFunc) Report(status Status) { f(status) }

// Sentence is one segmented, trimmed unit of playback and highlighting.
type Sentence struct {
	Index int    // Position in the sentence table
	Text  string // Trimmed, non-empty text
}

// Voice describes a voice offered by an engine.
type Voice struct {
	ID       string // Voice identifier passed back through VoiceParams.Voice
	Name     string // Human-readable name
	Language string // Language code (e.g., "en-US")
	Gender   string // Voice gender, when the engine reports one
}

// String returns the voice name with its language, if known.
func (v Voice) String() string {
	if v.Language == "" {
		return v.Name
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.Language)
}

// Parameter bounds for VoiceParams.
const (
	MinRate   = 0.1
	MaxRate   = 10.0
	MinPitch  = 0.0
	MaxPitch  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// VoiceParams holds the voice settings applied to each utterance at the
// moment it is dispatched.
type VoiceParams struct {
	Voice  string  // Voice identifier, empty for the engine default
	Rate   float64 // Speech rate multiplier (1.0 = normal)
	Pitch  float64 // Pitch multiplier (1.0 = normal)
	Volume float64 // Volume level (0.0 to 1.0)
}

// DefaultVoiceParams returns the engine default voice at normal rate, pitch
// and full volume.
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{Rate: 1.0, Pitch: 1.0, Volume: 1.0}
}

// Validate checks that every parameter is within its bounds.
func (p VoiceParams) Validate() error {
	if p.Rate < MinRate || p.Rate > MaxRate {
		return fmt.Errorf("%w: rate must be between %.1f and %.1f, got %.2f", ErrInvalidVoiceParams, MinRate, MaxRate, p.Rate)
	}
	if p.Pitch < MinPitch || p.Pitch > MaxPitch {
		return fmt.Errorf("%w: pitch must be between %.1f and %.1f, got %.2f", ErrInvalidVoiceParams, MinPitch, MaxPitch, p.Pitch)
	}
	if p.Volume < MinVolume || p.Volume > MaxVolume {
		return fmt.Errorf("%w: volume must be between %.1f and %.1f, got %.2f", ErrInvalidVoiceParams, MinVolume, MaxVolume, p.Volume)
	}
	return nil
}

// EventType discriminates engine events.
type EventType int

const (
	// EventStarted indicates audio has begun.
	EventStarted EventType = iota
	// EventEnded indicates the utterance completed normally.
	EventEnded
	// EventFailed indicates the engine could not speak the utterance.
	EventFailed
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is delivered by an engine for the utterance it belongs to.
type Event struct {
	Type EventType
	Err  error // Set for EventFailed
}

// Started returns a started event.
func Started() Event { return Event{Type: EventStarted} }

// Ended returns an ended event.
func Ended() Event { return Event{Type: EventEnded} }

// Failed returns a failed event carrying err.
func Failed(err error) Event { return Event{Type: EventFailed, Err: err} }
