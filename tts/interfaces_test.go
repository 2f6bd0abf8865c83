package tts_test

import (
	"errors"
	"testing"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines/mock"
	"github.com/dgnsrekt/lector/tts/sentence"
)

// Compile-time interface checks.
var (
	_ tts.Engine         = (*mock.Engine)(nil)
	_ tts.SentenceParser = (*sentence.Parser)(nil)
	_ tts.HighlightSink  = tts.HighlightFunc(nil)
	_ tts.Reporter       = tts.ReporterFunc(nil)
)

// TestVoiceParamsValidate tests parameter bounds.
func TestVoiceParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  tts.VoiceParams
		wantErr bool
	}{
		{"defaults", tts.DefaultVoiceParams(), false},
		{"bounds low", tts.VoiceParams{Rate: tts.MinRate, Pitch: tts.MinPitch, Volume: tts.MinVolume}, false},
		{"bounds high", tts.VoiceParams{Rate: tts.MaxRate, Pitch: tts.MaxPitch, Volume: tts.MaxVolume}, false},
		{"zero rate", tts.VoiceParams{Rate: 0, Pitch: 1, Volume: 1}, true},
		{"rate too high", tts.VoiceParams{Rate: 10.5, Pitch: 1, Volume: 1}, true},
		{"negative pitch", tts.VoiceParams{Rate: 1, Pitch: -0.1, Volume: 1}, true},
		{"volume above one", tts.VoiceParams{Rate: 1, Pitch: 1, Volume: 1.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tts.ErrInvalidVoiceParams) {
				t.Errorf("Expected ErrInvalidVoiceParams, got %v", err)
			}
		})
	}
}

// TestEventConstructors tests the event helpers.
func TestEventConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		event tts.Event
		typ   tts.EventType
		name  string
	}{
		{tts.Started(), tts.EventStarted, "started"},
		{tts.Ended(), tts.EventEnded, "ended"},
		{tts.Failed(cause), tts.EventFailed, "failed"},
	}

	for _, tt := range tests {
		if tt.event.Type != tt.typ {
			t.Errorf("%s: Type = %v, want %v", tt.name, tt.event.Type, tt.typ)
		}
		if tt.event.Type.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.event.Type.String(), tt.name)
		}
	}

	if tts.Failed(cause).Err != cause {
		t.Error("Failed should carry its error")
	}
	if tts.EventType(99).String() != "unknown" {
		t.Error("Unknown event types should stringify as unknown")
	}
}

// TestVoiceString tests voice formatting.
func TestVoiceString(t *testing.T) {
	v := tts.Voice{ID: "en-us", Name: "English", Language: "en-US"}
	if v.String() != "English (en-US)" {
		t.Errorf("String() = %q", v.String())
	}

	v.Language = ""
	if v.String() != "English" {
		t.Errorf("String() = %q", v.String())
	}
}

// TestFuncAdapters tests the function adapters.
func TestFuncAdapters(t *testing.T) {
	var active int
	tts.HighlightFunc(func(i int) { active = i }).SetActive(4)
	if active != 4 {
		t.Errorf("HighlightFunc did not forward, got %d", active)
	}

	var got tts.Status
	tts.ReporterFunc(func(s tts.Status) { got = s }).Report(tts.Status{Message: "hi"})
	if got.Message != "hi" {
		t.Errorf("ReporterFunc did not forward, got %+v", got)
	}
}
