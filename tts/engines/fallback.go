package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
)

// FallbackEngine wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently.
type FallbackEngine struct {
	primary       tts.Engine
	fallback      tts.Engine
	failures      int
	maxFailures   int
	usingFallback bool
	mu            sync.RWMutex
}

// NewFallbackEngine creates a new engine with automatic fallback capability.
func NewFallbackEngine(primary, fallback tts.Engine, maxFailures int) *FallbackEngine {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
	}
}

func (f *FallbackEngine) active() tts.Engine {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}

// Name returns the name of the active engine.
func (f *FallbackEngine) Name() string {
	return f.active().Name()
}

// Available reports whether either engine can speak. An unavailable primary
// switches to the fallback.
func (f *FallbackEngine) Available() bool {
	if f.active() == f.primary && !f.primary.Available() && f.fallback.Available() {
		f.mu.Lock()
		f.usingFallback = true
		f.mu.Unlock()
		log.Warn("Primary engine not available, switching to fallback", "fallback", f.fallback.Name())
	}
	return f.active().Available()
}

// Voices returns voices from the active engine.
func (f *FallbackEngine) Voices() []tts.Voice {
	return f.active().Voices()
}

// Speak speaks through the active engine. Failures of the primary, reported
// synchronously or as a failed event, count towards switching.
func (f *FallbackEngine) Speak(ctx context.Context, text string, params tts.VoiceParams) (<-chan tts.Event, error) {
	engine := f.active()

	events, err := engine.Speak(ctx, text, params)
	if err != nil {
		if engine != f.primary || !f.recordFailure(err) {
			return nil, err
		}
		return f.fallback.Speak(ctx, text, params)
	}

	if engine != f.primary {
		return events, nil
	}

	out := make(chan tts.Event, 2)
	go func() {
		defer close(out)
		for ev := range events {
			switch ev.Type {
			case tts.EventFailed:
				f.recordFailure(ev.Err)
			case tts.EventEnded:
				f.recordSuccess()
			}
			out <- ev
		}
	}()
	return out, nil
}

// recordFailure counts a primary failure and reports whether it switched
// to the fallback.
func (f *FallbackEngine) recordFailure(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.usingFallback {
		return false
	}

	f.failures++
	log.Warn("Primary engine failed", "attempt", f.failures, "max", f.maxFailures, "error", err)

	if f.failures < f.maxFailures {
		return false
	}

	log.Warn("Switching to fallback engine", "failures", f.failures, "fallback", f.fallback.Name())
	f.usingFallback = true
	return true
}

func (f *FallbackEngine) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 && !f.usingFallback {
		log.Info("Primary engine recovered", "failures", f.failures)
		f.failures = 0
	}
}

// Pause pauses the active engine.
func (f *FallbackEngine) Pause() error {
	return f.active().Pause()
}

// Resume resumes the active engine.
func (f *FallbackEngine) Resume() error {
	return f.active().Resume()
}

// Cancel cancels both engines; an utterance may still be in flight on the
// primary right after a switch.
func (f *FallbackEngine) Cancel() error {
	return errors.Join(f.primary.Cancel(), f.fallback.Cancel())
}

// IsSpeaking reports whether either engine is speaking.
func (f *FallbackEngine) IsSpeaking() bool {
	return f.primary.IsSpeaking() || f.fallback.IsSpeaking()
}

// IsPaused reports whether the active engine is paused.
func (f *FallbackEngine) IsPaused() bool {
	return f.active().IsPaused()
}

// Close shuts down both engines.
func (f *FallbackEngine) Close() error {
	var errs []error
	if err := f.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary shutdown: %w", err))
	}
	if err := f.fallback.Close(); err != nil {
		errs = append(errs, fmt.Errorf("fallback shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// Reset switches back to the primary engine.
func (f *FallbackEngine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = 0
	f.usingFallback = false
	log.Info("Reset to primary engine")
}

// Status describes which engine is in use.
func (f *FallbackEngine) Status() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.usingFallback {
		return fmt.Sprintf("Using fallback engine (primary failed %d times)", f.failures)
	}
	return fmt.Sprintf("Using primary engine (failures: %d/%d)", f.failures, f.maxFailures)
}
