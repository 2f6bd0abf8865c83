package tts

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Engine names accepted in Config.Engine.
const (
	EngineAuto   = "auto"
	EngineMock   = "mock"
	EngineEspeak = "espeak"
	EngineSay    = "say"
	EnginePiper  = "piper"
)

// ValidEngines lists the accepted engine names.
var ValidEngines = []string{EngineAuto, EngineMock, EngineEspeak, EngineSay, EnginePiper}

// Config contains all speech configuration options.
type Config struct {
	// Engine selection
	Engine string `yaml:"engine" env:"LECTOR_ENGINE" envDefault:"auto"`

	// Voice settings applied to the first utterance
	Voice  string  `yaml:"voice" env:"LECTOR_VOICE"`
	Rate   float64 `yaml:"rate" env:"LECTOR_RATE" envDefault:"1.0"`
	Pitch  float64 `yaml:"pitch" env:"LECTOR_PITCH" envDefault:"1.0"`
	Volume float64 `yaml:"volume" env:"LECTOR_VOLUME" envDefault:"1.0"`

	// Playback settings
	AutoPlay bool `yaml:"auto_play" env:"LECTOR_AUTO_PLAY" envDefault:"false"`

	// Visual settings
	HighlightEnabled bool   `yaml:"highlight_enabled" env:"LECTOR_HIGHLIGHT_ENABLED" envDefault:"true"`
	HighlightColor   string `yaml:"highlight_color" env:"LECTOR_HIGHLIGHT_COLOR" envDefault:"yellow"`

	// Engine-specific configurations
	Command CommandConfig `yaml:"command"`
	Piper   PiperConfig   `yaml:"piper"`
	Mock    MockConfig    `yaml:"mock"`
}

// CommandConfig contains settings for subprocess speech engines (espeak, say).
type CommandConfig struct {
	Binary  string        `yaml:"binary" env:"LECTOR_COMMAND_BINARY"`
	Timeout time.Duration `yaml:"timeout" env:"LECTOR_COMMAND_TIMEOUT" envDefault:"5m"`
}

// PiperConfig contains Piper TTS engine specific settings.
type PiperConfig struct {
	Binary          string        `yaml:"binary" env:"LECTOR_PIPER_BINARY" envDefault:"piper"`
	Model           string        `yaml:"model" env:"LECTOR_PIPER_MODEL" envDefault:"en_US-lessac-medium"`
	ModelPath       string        `yaml:"model_path" env:"LECTOR_PIPER_MODEL_PATH"`
	DataDir         string        `yaml:"data_dir" env:"LECTOR_PIPER_DATA_DIR"`
	SpeakerID       int           `yaml:"speaker_id" env:"LECTOR_PIPER_SPEAKER_ID" envDefault:"0"`
	SampleRate      int           `yaml:"sample_rate" env:"LECTOR_PIPER_SAMPLE_RATE" envDefault:"22050"`
	NoiseScale      float64       `yaml:"noise_scale" env:"LECTOR_PIPER_NOISE_SCALE" envDefault:"0.667"`
	NoiseW          float64       `yaml:"noise_w" env:"LECTOR_PIPER_NOISE_W" envDefault:"0.8"`
	SentenceSilence time.Duration `yaml:"sentence_silence" env:"LECTOR_PIPER_SENTENCE_SILENCE" envDefault:"200ms"`
	Timeout         time.Duration `yaml:"timeout" env:"LECTOR_PIPER_TIMEOUT" envDefault:"30s"`
}

// MockConfig contains Mock engine settings for testing and demos.
type MockConfig struct {
	GenerationDelay time.Duration `yaml:"generation_delay" env:"LECTOR_MOCK_GENERATION_DELAY" envDefault:"100ms"`
	WordsPerMinute  int           `yaml:"words_per_minute" env:"LECTOR_MOCK_WORDS_PER_MINUTE" envDefault:"150"`
	FailureRate     float64       `yaml:"failure_rate" env:"LECTOR_MOCK_FAILURE_RATE" envDefault:"0.0"`
	SimulateLatency bool          `yaml:"simulate_latency" env:"LECTOR_MOCK_SIMULATE_LATENCY" envDefault:"true"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine: EngineAuto,
		Rate:   1.0,
		Pitch:  1.0,
		Volume: 1.0,

		AutoPlay: false,

		HighlightEnabled: true,
		HighlightColor:   "yellow",

		Command: DefaultCommandConfig(),
		Piper:   DefaultPiperConfig(),
		Mock:    DefaultMockConfig(),
	}
}

// DefaultCommandConfig returns default subprocess engine configuration.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		Timeout: 5 * time.Minute,
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	cfg := PiperConfig{
		Binary:          "piper",
		Model:           "en_US-lessac-medium",
		SpeakerID:       0,
		SampleRate:      22050,
		NoiseScale:      0.667,
		NoiseW:          0.8,
		SentenceSilence: 200 * time.Millisecond,
		Timeout:         30 * time.Second,
	}

	switch runtime.GOOS {
	case "linux":
		cfg.DataDir = filepath.Join("/usr", "share", "piper")
	case "darwin":
		cfg.DataDir = filepath.Join("/usr", "local", "share", "piper")
	}

	return cfg
}

// DefaultMockConfig returns default Mock configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		GenerationDelay: 100 * time.Millisecond,
		WordsPerMinute:  150,
		FailureRate:     0.0,
		SimulateLatency: true,
	}
}

// VoiceParams returns the configured initial voice parameters.
func (c *Config) VoiceParams() VoiceParams {
	return VoiceParams{
		Voice:  c.Voice,
		Rate:   c.Rate,
		Pitch:  c.Pitch,
		Volume: c.Volume,
	}
}

var namedColors = []string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white", "none"}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	engineValid := false
	for _, e := range ValidEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = e
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("%w: engine '%s' must be one of %v", ErrInvalidConfig, c.Engine, ValidEngines)
	}

	if err := c.VoiceParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !validColor(c.HighlightColor) {
		return fmt.Errorf("%w: highlight color '%s' must be one of %v, an ANSI code or a hex color",
			ErrInvalidConfig, c.HighlightColor, namedColors)
	}
	c.HighlightColor = strings.ToLower(c.HighlightColor)

	switch c.Engine {
	case EngineEspeak, EngineSay:
		if err := c.Command.Validate(); err != nil {
			return fmt.Errorf("command config: %w", err)
		}
	case EnginePiper:
		if err := c.Piper.Validate(); err != nil {
			return fmt.Errorf("piper config: %w", err)
		}
	case EngineMock:
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	return nil
}

func validColor(color string) bool {
	for _, name := range namedColors {
		if strings.EqualFold(color, name) {
			return true
		}
	}
	if hexColor.MatchString(color) {
		return true
	}
	n, err := strconv.Atoi(color)
	return err == nil && n >= 0 && n <= 255
}

// Validate checks if the command configuration is valid.
func (c *CommandConfig) Validate() error {
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Validate checks if the Piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("%w: piper binary path cannot be empty", ErrInvalidConfig)
	}

	if c.Model == "" && c.ModelPath == "" {
		return fmt.Errorf("%w: piper model cannot be empty", ErrInvalidConfig)
	}

	switch c.SampleRate {
	case 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("%w: invalid sample rate %d", ErrInvalidConfig, c.SampleRate)
	}

	if c.NoiseScale < 0 || c.NoiseScale > 2.0 {
		return fmt.Errorf("%w: noise_scale must be between 0.0 and 2.0, got %f", ErrInvalidConfig, c.NoiseScale)
	}

	if c.NoiseW < 0 || c.NoiseW > 2.0 {
		return fmt.Errorf("%w: noise_w must be between 0.0 and 2.0, got %f", ErrInvalidConfig, c.NoiseW)
	}

	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}

	return nil
}

// Validate checks if the Mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("%w: words_per_minute must be between 50 and 500, got %d", ErrInvalidConfig, c.WordsPerMinute)
	}

	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("%w: failure_rate must be between 0.0 and 1.0, got %f", ErrInvalidConfig, c.FailureRate)
	}

	if c.GenerationDelay < 0 {
		return fmt.Errorf("%w: generation_delay cannot be negative", ErrInvalidConfig)
	}

	return nil
}
