package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Document to read, empty when content is passed directly
	Path string

	// Initial content when no path is given (e.g. piped stdin)
	Content string

	EnableMouse bool
	Width       uint
	AutoPlay    bool

	HighlightColor string        `env:"LECTOR_HIGHLIGHT_COLOR" envDefault:"yellow"`
	Watch          bool          `env:"LECTOR_WATCH"          envDefault:"true"`
	StatusTimeout  time.Duration `env:"LECTOR_STATUS_TIMEOUT" envDefault:"3s"`
}
