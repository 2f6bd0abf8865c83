package extract

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/spf13/viper"
)

// DefaultMaxUploadBytes is the largest document accepted by the server.
const DefaultMaxUploadBytes = 50 << 20

// ServerConfig configures the extraction server.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst      int           `yaml:"rate_burst"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	CacheDir       string        `yaml:"cache_dir"`
	CacheSize      int64         `yaml:"cache_size"`
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           "127.0.0.1:5000",
		MaxUploadBytes: DefaultMaxUploadBytes,
		RateLimit:      5,
		RateBurst:      10,
		ReadTimeout:    2 * time.Minute,
		CacheSize:      cache.DefaultConfig().DiskCapacity,
	}
}

// Validate checks the configuration.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %v", c.RateLimit)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative, got %d", c.CacheSize)
	}
	return nil
}

// CacheConfig returns the extraction cache settings. The disk level is
// only enabled when CacheDir is set.
func (c *ServerConfig) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.DiskPath = c.CacheDir
	cfg.DiskCapacity = c.CacheSize
	return cfg
}

// LoadServerConfig reads the server section from Viper.
func LoadServerConfig() (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if viper.IsSet("server.addr") {
		cfg.Addr = viper.GetString("server.addr")
	}
	if viper.IsSet("server.max_upload_bytes") {
		cfg.MaxUploadBytes = viper.GetInt64("server.max_upload_bytes")
	}
	if viper.IsSet("server.rate_limit") {
		cfg.RateLimit = viper.GetFloat64("server.rate_limit")
	}
	if viper.IsSet("server.rate_burst") {
		cfg.RateBurst = viper.GetInt("server.rate_burst")
	}
	if viper.IsSet("server.read_timeout") {
		cfg.ReadTimeout = viper.GetDuration("server.read_timeout")
	}
	if viper.IsSet("server.cache_dir") {
		cfg.CacheDir = viper.GetString("server.cache_dir")
	}
	if viper.IsSet("server.cache_size") {
		cfg.CacheSize = viper.GetInt64("server.cache_size")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid server configuration: %w", err)
	}
	return cfg, nil
}

// SetDefaults sets default values in Viper for the server section.
func SetDefaults() {
	RegisterDefaults(viper.GetViper())
}

// RegisterDefaults sets the server defaults on v.
func RegisterDefaults(v *viper.Viper) {
	defaults := DefaultServerConfig()

	v.SetDefault("server.addr", defaults.Addr)
	v.SetDefault("server.max_upload_bytes", defaults.MaxUploadBytes)
	v.SetDefault("server.rate_limit", defaults.RateLimit)
	v.SetDefault("server.rate_burst", defaults.RateBurst)
	v.SetDefault("server.read_timeout", defaults.ReadTimeout.String())
	v.SetDefault("server.cache_size", defaults.CacheSize)
}
