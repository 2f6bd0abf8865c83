package engines

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines/mock"
)

func drain(t *testing.T, events <-chan tts.Event) []tts.Event {
	t.Helper()
	var got []tts.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

// TestFallbackEngine tests the fallback mechanism
func TestFallbackEngine(t *testing.T) {
	primary := mock.NewScripted()
	fallback := mock.NewScripted()
	engine := NewFallbackEngine(primary, fallback, 2)
	params := tts.DefaultVoiceParams()

	// First failure is reported as an event and counted.
	events, err := engine.Speak(context.Background(), "test 1", params)
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	primary.Current().Fail(errors.New("primary engine failure"))
	if got := drain(t, events); len(got) != 1 || got[0].Type != tts.EventFailed {
		t.Fatalf("events = %v, want failed", got)
	}
	if engine.Status() != "Using primary engine (failures: 1/2)" {
		t.Errorf("Unexpected status: %s", engine.Status())
	}

	// Second failure is synchronous and switches straight to the fallback.
	primary.SetAvailable(false)
	events, err = engine.Speak(context.Background(), "test 2", params)
	if err != nil {
		t.Fatalf("Expected second attempt to succeed with fallback: %v", err)
	}
	if fallback.CallCount() != 1 {
		t.Fatalf("fallback calls = %d, want 1", fallback.CallCount())
	}
	fallback.Current().Start()
	fallback.Current().End()
	if got := drain(t, events); len(got) != 2 {
		t.Errorf("events = %v, want started, ended", got)
	}

	if engine.Status() != "Using fallback engine (primary failed 2 times)" {
		t.Errorf("Unexpected status: %s", engine.Status())
	}

	// Subsequent calls go to the fallback.
	if _, err := engine.Speak(context.Background(), "test 3", params); err != nil {
		t.Errorf("Expected subsequent calls to use fallback: %v", err)
	}
	if fallback.CallCount() != 2 || primary.CallCount() != 1 {
		t.Errorf("calls: primary %d, fallback %d", primary.CallCount(), fallback.CallCount())
	}
}

func TestFallbackRecovery(t *testing.T) {
	primary := mock.NewScripted()
	engine := NewFallbackEngine(primary, mock.NewScripted(), 2)
	params := tts.DefaultVoiceParams()

	events, _ := engine.Speak(context.Background(), "one", params)
	primary.Current().Fail(errors.New("glitch"))
	drain(t, events)

	events, _ = engine.Speak(context.Background(), "two", params)
	primary.Current().Start()
	primary.Current().End()
	drain(t, events)

	if !strings.Contains(engine.Status(), "failures: 0/2") {
		t.Errorf("success should reset failures, status %q", engine.Status())
	}
}

func TestFallbackAvailability(t *testing.T) {
	primary := mock.NewScripted()
	fallback := mock.NewScripted()
	engine := NewFallbackEngine(primary, fallback, 3)

	primary.SetAvailable(false)
	if !engine.Available() {
		t.Fatal("engine should be available through the fallback")
	}
	if !strings.HasPrefix(engine.Status(), "Using fallback") {
		t.Errorf("unavailable primary should switch, status %q", engine.Status())
	}

	engine.Reset()
	if strings.HasPrefix(engine.Status(), "Using fallback") {
		t.Error("Reset should return to the primary")
	}

	fallback.SetAvailable(false)
	if engine.Available() {
		t.Error("engine should be unavailable when both engines are")
	}
}

func TestFallbackControls(t *testing.T) {
	primary := mock.NewScripted()
	fallback := mock.NewScripted()
	engine := NewFallbackEngine(primary, fallback, 1)

	if _, err := engine.Speak(context.Background(), "hello", tts.DefaultVoiceParams()); err != nil {
		t.Fatal(err)
	}
	primary.Current().Start()

	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if !engine.IsPaused() || !engine.IsSpeaking() {
		t.Error("engine should be speaking and paused")
	}
	if err := engine.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if err := engine.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if primary.CancelCount() != 1 || fallback.CancelCount() != 1 {
		t.Errorf("cancels: primary %d, fallback %d", primary.CancelCount(), fallback.CancelCount())
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if engine.Available() {
		t.Error("closed engine should be unavailable")
	}
}
