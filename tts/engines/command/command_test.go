package command

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/dgnsrekt/lector/tts"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name   string
		flavor Flavor
		params tts.VoiceParams
		want   []string
	}{
		{
			name:   "espeak defaults",
			flavor: Espeak,
			params: tts.DefaultVoiceParams(),
			want:   []string{"-s", "175", "-p", "50", "-a", "100", "--stdin"},
		},
		{
			name:   "espeak voice and rate",
			flavor: Espeak,
			params: tts.VoiceParams{Voice: "en-us", Rate: 1.5, Pitch: 1.2, Volume: 0.5},
			want:   []string{"-s", "263", "-p", "60", "-a", "50", "-v", "en-us", "--stdin"},
		},
		{
			name:   "espeak clamps",
			flavor: Espeak,
			params: tts.VoiceParams{Rate: 10, Pitch: 2, Volume: 0},
			want:   []string{"-s", "450", "-p", "99", "-a", "0", "--stdin"},
		},
		{
			name:   "espeak slow floor",
			flavor: Espeak,
			params: tts.VoiceParams{Rate: 0.1, Pitch: 0, Volume: 1},
			want:   []string{"-s", "80", "-p", "0", "-a", "100", "--stdin"},
		},
		{
			name:   "say defaults",
			flavor: Say,
			params: tts.DefaultVoiceParams(),
			want:   []string{"-r", "175", "-f", "-"},
		},
		{
			name:   "say voice",
			flavor: Say,
			params: tts.VoiceParams{Voice: "Samantha", Rate: 2, Pitch: 1, Volume: 1},
			want:   []string{"-v", "Samantha", "-r", "350", "-f", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Args(tt.flavor, tt.params)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInput(t *testing.T) {
	full := tts.DefaultVoiceParams()
	quiet := tts.VoiceParams{Rate: 1, Pitch: 1, Volume: 0.25}

	if got := Input(Say, "Hello.", full); got != "Hello." {
		t.Errorf("Input(say, full volume) = %q", got)
	}
	if got := Input(Say, "Hello.", quiet); got != "[[volm 0.25]] Hello." {
		t.Errorf("Input(say, quiet) = %q", got)
	}
	if got := Input(Espeak, "Hello.", quiet); got != "Hello." {
		t.Errorf("Input(espeak, quiet) = %q", got)
	}
}

func TestParseEspeakVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-us           --/F      English_(America)  gmw/en-US            (en 2)
 5  zh              --/-      Chinese            sit/cmn
`
	voices := ParseEspeakVoices(out)
	if len(voices) != 3 {
		t.Fatalf("got %d voices, want 3: %+v", len(voices), voices)
	}

	want := tts.Voice{ID: "en-us", Name: "English (America)", Language: "en-us", Gender: "female"}
	if voices[1] != want {
		t.Errorf("voices[1] = %+v, want %+v", voices[1], want)
	}
	if voices[0].Gender != "male" || voices[2].Gender != "" {
		t.Errorf("unexpected genders: %q, %q", voices[0].Gender, voices[2].Gender)
	}
}

func TestParseSayVoices(t *testing.T) {
	out := `Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
Thomas              fr_FR    # Bonjour, je m'appelle Thomas.
garbage line
`
	voices := ParseSayVoices(out)
	if len(voices) != 3 {
		t.Fatalf("got %d voices, want 3: %+v", len(voices), voices)
	}
	if voices[1].ID != "Bad News" || voices[1].Language != "en-US" {
		t.Errorf("voices[1] = %+v", voices[1])
	}
	if voices[2].Language != "fr-FR" {
		t.Errorf("voices[2] = %+v", voices[2])
	}
}

func TestNew(t *testing.T) {
	if _, err := New("festival", tts.DefaultCommandConfig()); !errors.Is(err, tts.ErrInvalidConfig) {
		t.Errorf("unknown flavor error = %v, want ErrInvalidConfig", err)
	}

	e, err := New(Say, tts.CommandConfig{Binary: "/custom/say"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.Binary() != "/custom/say" || e.Name() != "say" {
		t.Errorf("Binary() = %q, Name() = %q", e.Binary(), e.Name())
	}
	if e.timeout != tts.DefaultCommandConfig().Timeout {
		t.Errorf("timeout = %v, want default", e.timeout)
	}
}

func TestMissingBinary(t *testing.T) {
	e, err := New(Espeak, tts.CommandConfig{Binary: "lector-no-such-synth"})
	if err != nil {
		t.Fatal(err)
	}

	if e.Available() {
		t.Error("Available() should be false for a missing binary")
	}
	if len(e.Voices()) != 0 {
		t.Error("Voices() should be empty for a missing binary")
	}
	if _, err := e.Speak(context.Background(), "Hello.", tts.DefaultVoiceParams()); !errors.Is(err, tts.ErrUnsupportedEngine) {
		t.Errorf("Speak() error = %v, want ErrUnsupportedEngine", err)
	}
}

func TestIdleControls(t *testing.T) {
	e, err := New(Espeak, tts.CommandConfig{Binary: "lector-no-such-synth"})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Pause(); !errors.Is(err, tts.ErrNotSpeaking) {
		t.Errorf("Pause() error = %v, want ErrNotSpeaking", err)
	}
	if err := e.Resume(); !errors.Is(err, tts.ErrNotSpeaking) {
		t.Errorf("Resume() error = %v, want ErrNotSpeaking", err)
	}
	if err := e.Cancel(); err != nil {
		t.Errorf("Cancel() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := e.Speak(context.Background(), "Hello.", tts.DefaultVoiceParams()); !errors.Is(err, tts.ErrEngineClosed) {
		t.Errorf("Speak() after Close error = %v, want ErrEngineClosed", err)
	}
}

func TestSpeakRejectsInvalidParams(t *testing.T) {
	e, err := New(Espeak, tts.CommandConfig{Binary: "lector-no-such-synth"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Speak(context.Background(), "Hello.", tts.VoiceParams{Rate: 0, Pitch: 1, Volume: 1})
	if !errors.Is(err, tts.ErrInvalidVoiceParams) {
		t.Errorf("Speak() error = %v, want ErrInvalidVoiceParams", err)
	}
}
