// Package engines selects and builds speech engines from configuration.
package engines

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/audio"
	"github.com/dgnsrekt/lector/tts/engines/command"
	"github.com/dgnsrekt/lector/tts/engines/mock"
	"github.com/dgnsrekt/lector/tts/engines/piper"
	"github.com/sahilm/fuzzy"
)

// fallbackAfter is how many consecutive piper failures switch auto mode to
// the system synthesizer.
const fallbackAfter = 2

// New builds the engine named by cfg.Engine. An engine that cannot run on
// this host is still returned; the controller reports it as unsupported.
func New(cfg tts.Config) (tts.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case tts.EngineMock:
		return mock.New(cfg.Mock), nil
	case tts.EngineEspeak:
		return command.New(command.Espeak, cfg.Command)
	case tts.EngineSay:
		return command.New(command.Say, cfg.Command)
	case tts.EnginePiper:
		return newPiper(cfg.Piper), nil
	case tts.EngineAuto, "":
		return auto(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", tts.ErrInvalidConfig, cfg.Engine)
	}
}

func newPiper(cfg tts.PiperConfig) *piper.Engine {
	out, err := audio.NewOtoOutput(cfg.SampleRate)
	if err != nil {
		log.Warn("Audio output unavailable", "error", err)
		return piper.New(cfg, nil)
	}
	return piper.New(cfg, out)
}

// auto prefers piper when it is installed and falls back to the platform
// synthesizer.
func auto(cfg tts.Config) (tts.Engine, error) {
	flavor := command.Espeak
	if runtime.GOOS == "darwin" {
		flavor = command.Say
	}
	system, err := command.New(flavor, cfg.Command)
	if err != nil {
		return nil, err
	}

	if p := piper.New(cfg.Piper, nil); p.Installed() {
		primary := newPiper(cfg.Piper)
		if !system.Available() {
			log.Debug("Selected speech engine", "engine", primary.Name())
			return primary, nil
		}
		log.Debug("Selected speech engine", "engine", primary.Name(), "fallback", system.Name())
		return NewFallbackEngine(primary, system, fallbackAfter), nil
	}

	log.Debug("Selected speech engine", "engine", system.Name(), "available", system.Available())
	return system, nil
}

type voiceSource []tts.Voice

func (v voiceSource) String(i int) string { return v[i].ID + " " + v[i].Name }
func (v voiceSource) Len() int            { return len(v) }

// MatchVoice finds the engine voice closest to query. An exact ID match wins;
// otherwise the best fuzzy match on ID and name is used.
func MatchVoice(engine tts.Engine, query string) (tts.Voice, error) {
	voices := engine.Voices()
	for _, v := range voices {
		if strings.EqualFold(v.ID, query) {
			return v, nil
		}
	}

	matches := fuzzy.FindFrom(query, voiceSource(voices))
	if len(matches) == 0 {
		return tts.Voice{}, fmt.Errorf("%w: %q", tts.ErrVoiceNotFound, query)
	}
	return voices[matches[0].Index], nil
}
