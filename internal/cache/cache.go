// Package cache persists computed directory sizes between runs so large
// trees are not walked again every time they are listed.
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stackvity/filer/internal/filesystem"
)

// CacheStatus represents the status of a cache check.
type CacheStatus string

const (
	// StatusHit indicates the directory was found in the cache and is valid.
	StatusHit CacheStatus = "Hit"
	// StatusMiss indicates the directory was not found or the entry is stale.
	StatusMiss CacheStatus = "Miss"
)

// CacheEntry stores the computed size of one directory.
type CacheEntry struct {
	ModTime    time.Time // Directory mtime when the size was computed.
	Size       int64
	ComputedAt time.Time
}

// SizeCache is the cache the size calculator consults before walking a tree.
type SizeCache interface {
	// Check returns the cached size of dir and whether it is still valid.
	Check(dir string) (int64, CacheStatus)
	// Update stores the size computed for dir.
	Update(dir string, entry CacheEntry) error
	// Persist writes the in-memory state to disk.
	Persist() error
	// Clear drops every entry, in memory and on disk.
	Clear() error
}

// fileCache implements SizeCache on top of a gob file.
type fileCache struct {
	filePath string
	fs       filesystem.FileSystem
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]CacheEntry
	isDirty bool
}

// NewFileCache creates a file-backed SizeCache and loads any existing
// state from cacheFilePath. An unreadable or corrupt file is logged and
// replaced by an empty cache. A directory mtime only moves when its direct
// children change, so entries older than ttl are treated as stale; a ttl of
// zero disables the age check.
func NewFileCache(cacheFilePath string, ttl time.Duration, fs filesystem.FileSystem, logger *slog.Logger) SizeCache {
	c := &fileCache{
		filePath: cacheFilePath,
		fs:       fs,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]CacheEntry),
	}
	if err := c.load(); err != nil {
		c.logger.Warn("Failed to load size cache, starting with empty cache", "file", cacheFilePath, "error", err)
		c.entries = make(map[string]CacheEntry)
		c.isDirty = true
	} else {
		c.logger.Debug("Size cache loaded", "file", cacheFilePath, "entries", len(c.entries))
	}
	return c
}

func (c *fileCache) load() error {
	data, err := c.fs.ReadFile(c.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read cache file '%s': %w", c.filePath, err)
	}
	if len(data) == 0 {
		return nil
	}

	loaded := make(map[string]CacheEntry)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&loaded); err != nil {
		return fmt.Errorf("failed to decode cache file '%s': %w", c.filePath, err)
	}
	c.mu.Lock()
	c.entries = loaded
	c.mu.Unlock()
	return nil
}

func (c *fileCache) Check(dir string) (int64, CacheStatus) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, StatusMiss
	}

	c.mu.RLock()
	entry, found := c.entries[abs]
	c.mu.RUnlock()
	if !found {
		return 0, StatusMiss
	}

	info, err := c.fs.Stat(abs)
	if err != nil {
		c.logger.Debug("Size cache miss: stat failed", "dir", abs, "error", err)
		return 0, StatusMiss
	}
	if !info.ModTime().Equal(entry.ModTime) {
		c.logger.Debug("Size cache miss: directory changed", "dir", abs)
		return 0, StatusMiss
	}
	if c.ttl > 0 && c.now().Sub(entry.ComputedAt) > c.ttl {
		c.logger.Debug("Size cache miss: entry expired", "dir", abs, "computed", entry.ComputedAt)
		return 0, StatusMiss
	}
	return entry.Size, StatusHit
}

func (c *fileCache) Update(dir string, entry CacheEntry) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		c.logger.Warn("Skipping size cache update", "dir", dir, "error", err)
		return nil
	}
	if entry.ComputedAt.IsZero() {
		entry.ComputedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[abs] = entry
	c.isDirty = true
	return nil
}

// Persist writes the cache to a temporary file and renames it into place.
func (c *fileCache) Persist() error {
	c.mu.Lock()
	if !c.isDirty {
		c.mu.Unlock()
		return nil
	}
	snapshot := make(map[string]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode size cache: %w", err)
	}

	if err := c.fs.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return fmt.Errorf("failed to ensure cache directory exists '%s': %w", filepath.Dir(c.filePath), err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", c.filePath, time.Now().UnixNano())
	if err := c.fs.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("failed to write temporary cache file '%s': %w", tmp, err)
	}
	if err := c.fs.Rename(tmp, c.filePath); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("failed to rename temporary cache file to '%s': %w", c.filePath, err)
	}

	c.mu.Lock()
	c.isDirty = false
	c.mu.Unlock()
	c.logger.Debug("Size cache persisted", "file", c.filePath, "entries", len(snapshot))
	return nil
}

func (c *fileCache) Clear() error {
	c.logger.Info("Clearing size cache", "file", c.filePath)
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.isDirty = true
	c.mu.Unlock()

	if err := c.fs.Remove(c.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("Failed to delete size cache file", "file", c.filePath, "error", err)
	}
	return nil
}

// noOpCache is used when the size cache is disabled.
type noOpCache struct{}

// NewNoOpCache creates a SizeCache that never hits and stores nothing.
func NewNoOpCache() SizeCache {
	return noOpCache{}
}

func (noOpCache) Check(string) (int64, CacheStatus)  { return 0, StatusMiss }
func (noOpCache) Update(string, CacheEntry) error   { return nil }
func (noOpCache) Persist() error                    { return nil }
func (noOpCache) Clear() error                      { return nil }
