package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned when the cache is used after Close
	ErrCacheClosed = errors.New("cache is closed")
)

// Level represents the cache tier.
type Level int

const (
	// LevelL1 is the in-memory cache
	LevelL1 Level = iota
	// LevelL2 is the disk cache
	LevelL2
)

// String returns the string representation of the cache level.
func (l Level) String() string {
	switch l {
	case LevelL1:
		return "L1"
	case LevelL2:
		return "L2"
	default:
		return "unknown"
	}
}

// Stats contains cache performance counters.
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache
	Hits      int64
	Misses    int64
	Evictions int64
	LastEvict time.Time
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config contains cache configuration.
type Config struct {
	MemoryCapacity   int64  // L1 capacity in bytes
	DiskCapacity     int64  // L2 capacity in bytes; 0 disables the disk cache
	DiskPath         string // L2 directory
	CompressionLevel int    // zstd level; 0 stores uncompressed
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   16 << 20,
		DiskCapacity:     256 << 20,
		CompressionLevel: 3,
	}
}

// Key returns the content address of data.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
