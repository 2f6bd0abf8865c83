package cache

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// Cache layers a memory cache over an optional disk cache. Disk hits are
// promoted to memory.
type Cache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// New creates a cache. The disk level is skipped when cfg.DiskPath is empty
// or cfg.DiskCapacity is zero.
func New(cfg Config) (*Cache, error) {
	c := &Cache{
		memory: NewMemoryCache(cfg.MemoryCapacity),
	}

	if cfg.DiskPath != "" && cfg.DiskCapacity > 0 {
		disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to open disk cache: %w", err)
		}
		c.disk = disk
	}

	return c, nil
}

// Get looks key up in memory, then on disk.
func (c *Cache) Get(key string) ([]byte, Level, bool) {
	if data, ok := c.memory.Get(key); ok {
		return data, LevelL1, true
	}

	if c.disk != nil {
		if data, ok := c.disk.Get(key); ok {
			if err := c.memory.Put(key, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
				log.Debug("Failed to promote cache entry", "key", key, "error", err)
			}
			return data, LevelL2, true
		}
	}

	return nil, 0, false
}

// Put stores value in every level that can hold it.
func (c *Cache) Put(key string, value []byte) error {
	memErr := c.memory.Put(key, value)

	if c.disk == nil {
		return memErr
	}
	if err := c.disk.Put(key, value); err != nil {
		return err
	}
	return nil
}

// Delete removes key from every level.
func (c *Cache) Delete(key string) {
	c.memory.Delete(key)
	if c.disk != nil {
		c.disk.Delete(key)
	}
}

// Clear empties every level.
func (c *Cache) Clear() error {
	c.memory.Clear()
	if c.disk != nil {
		return c.disk.Clear()
	}
	return nil
}

// Stats returns per-level statistics.
func (c *Cache) Stats() map[Level]Stats {
	stats := map[Level]Stats{LevelL1: c.memory.Stats()}
	if c.disk != nil {
		stats[LevelL2] = c.disk.Stats()
	}
	return stats
}

// Close flushes the disk index.
func (c *Cache) Close() error {
	if c.disk != nil {
		return c.disk.Close()
	}
	return nil
}
