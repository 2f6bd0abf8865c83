package tts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads speech configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("tts.engine") {
		cfg.Engine = viper.GetString("tts.engine")
	}

	// Voice settings
	if viper.IsSet("tts.voice") {
		cfg.Voice = viper.GetString("tts.voice")
	}
	if viper.IsSet("tts.rate") {
		cfg.Rate = viper.GetFloat64("tts.rate")
	}
	if viper.IsSet("tts.pitch") {
		cfg.Pitch = viper.GetFloat64("tts.pitch")
	}
	if viper.IsSet("tts.volume") {
		cfg.Volume = viper.GetFloat64("tts.volume")
	}

	if viper.IsSet("tts.auto_play") {
		cfg.AutoPlay = viper.GetBool("tts.auto_play")
	}

	// Visual settings
	if viper.IsSet("tts.highlight_enabled") {
		cfg.HighlightEnabled = viper.GetBool("tts.highlight_enabled")
	}
	if viper.IsSet("tts.highlight_color") {
		cfg.HighlightColor = viper.GetString("tts.highlight_color")
	}

	cfg.Command = loadCommandConfig()
	cfg.Piper = loadPiperConfig()
	cfg.Mock = loadMockConfig()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid speech configuration: %w", err)
	}

	return cfg, nil
}

// loadCommandConfig loads subprocess engine configuration from Viper.
func loadCommandConfig() CommandConfig {
	cfg := DefaultCommandConfig()

	if viper.IsSet("tts.command.binary") {
		cfg.Binary = viper.GetString("tts.command.binary")
	}
	if viper.IsSet("tts.command.timeout") {
		cfg.Timeout = durationOr("tts.command.timeout", cfg.Timeout)
	}

	return cfg
}

// loadPiperConfig loads Piper-specific configuration from Viper.
func loadPiperConfig() PiperConfig {
	cfg := DefaultPiperConfig()

	if viper.IsSet("tts.piper.binary") {
		cfg.Binary = viper.GetString("tts.piper.binary")
	}
	if viper.IsSet("tts.piper.model") {
		cfg.Model = viper.GetString("tts.piper.model")
	}
	if viper.IsSet("tts.piper.model_path") {
		cfg.ModelPath = viper.GetString("tts.piper.model_path")
	}
	if viper.IsSet("tts.piper.data_dir") {
		cfg.DataDir = viper.GetString("tts.piper.data_dir")
	}
	if viper.IsSet("tts.piper.speaker_id") {
		cfg.SpeakerID = viper.GetInt("tts.piper.speaker_id")
	}
	if viper.IsSet("tts.piper.sample_rate") {
		cfg.SampleRate = viper.GetInt("tts.piper.sample_rate")
	}
	if viper.IsSet("tts.piper.noise_scale") {
		cfg.NoiseScale = viper.GetFloat64("tts.piper.noise_scale")
	}
	if viper.IsSet("tts.piper.noise_w") {
		cfg.NoiseW = viper.GetFloat64("tts.piper.noise_w")
	}
	if viper.IsSet("tts.piper.sentence_silence") {
		cfg.SentenceSilence = durationOr("tts.piper.sentence_silence", cfg.SentenceSilence)
	}
	if viper.IsSet("tts.piper.timeout") {
		cfg.Timeout = durationOr("tts.piper.timeout", cfg.Timeout)
	}

	return cfg
}

// loadMockConfig loads Mock engine configuration from Viper.
func loadMockConfig() MockConfig {
	cfg := DefaultMockConfig()

	if viper.IsSet("tts.mock.generation_delay") {
		cfg.GenerationDelay = durationOr("tts.mock.generation_delay", cfg.GenerationDelay)
	}
	if viper.IsSet("tts.mock.words_per_minute") {
		cfg.WordsPerMinute = viper.GetInt("tts.mock.words_per_minute")
	}
	if viper.IsSet("tts.mock.failure_rate") {
		cfg.FailureRate = viper.GetFloat64("tts.mock.failure_rate")
	}
	if viper.IsSet("tts.mock.simulate_latency") {
		cfg.SimulateLatency = viper.GetBool("tts.mock.simulate_latency")
	}

	return cfg
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(viper.GetString(key)); err == nil {
		return d
	}
	return fallback
}

// SetDefaults sets default values in Viper for speech configuration.
func SetDefaults() {
	RegisterDefaults(viper.GetViper())
}

// RegisterDefaults sets the speech defaults on v.
func RegisterDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("tts.engine", defaults.Engine)
	v.SetDefault("tts.voice", defaults.Voice)
	v.SetDefault("tts.rate", defaults.Rate)
	v.SetDefault("tts.pitch", defaults.Pitch)
	v.SetDefault("tts.volume", defaults.Volume)
	v.SetDefault("tts.auto_play", defaults.AutoPlay)

	v.SetDefault("tts.highlight_enabled", defaults.HighlightEnabled)
	v.SetDefault("tts.highlight_color", defaults.HighlightColor)

	v.SetDefault("tts.command.timeout", defaults.Command.Timeout.String())

	v.SetDefault("tts.piper.binary", defaults.Piper.Binary)
	v.SetDefault("tts.piper.model", defaults.Piper.Model)
	v.SetDefault("tts.piper.speaker_id", defaults.Piper.SpeakerID)
	v.SetDefault("tts.piper.sample_rate", defaults.Piper.SampleRate)
	v.SetDefault("tts.piper.noise_scale", defaults.Piper.NoiseScale)
	v.SetDefault("tts.piper.noise_w", defaults.Piper.NoiseW)
	v.SetDefault("tts.piper.sentence_silence", defaults.Piper.SentenceSilence.String())
	v.SetDefault("tts.piper.timeout", defaults.Piper.Timeout.String())

	v.SetDefault("tts.mock.generation_delay", defaults.Mock.GenerationDelay.String())
	v.SetDefault("tts.mock.words_per_minute", defaults.Mock.WordsPerMinute)
	v.SetDefault("tts.mock.failure_rate", defaults.Mock.FailureRate)
	v.SetDefault("tts.mock.simulate_latency", defaults.Mock.SimulateLatency)
}
