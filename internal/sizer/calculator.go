// Package sizer computes directory sizes in the background so a listing can
// be shown before the sizes of its subdirectories are known.
package sizer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/stackvity/filer/internal/cache"
	"github.com/stackvity/filer/internal/filesystem"
)

// Calculator sums the sizes of regular files below a directory.
type Calculator struct {
	FS     filesystem.FileSystem
	Cache  cache.SizeCache
	Logger *slog.Logger
}

// NewCalculator creates a new Calculator. A nil cache disables caching.
func NewCalculator(fs filesystem.FileSystem, sc cache.SizeCache, logger *slog.Logger) *Calculator {
	if sc == nil {
		sc = cache.NewNoOpCache()
	}
	return &Calculator{FS: fs, Cache: sc, Logger: logger}
}

// DirSize returns the total size in bytes of every regular file below dir,
// from the cache when it holds a valid entry. A cached size can be stale:
// the cache only notices changes to dir itself, not to files deeper in the
// tree. The second return reports a cache hit; callers that need an exact
// figure follow up with Fresh.
func (c *Calculator) DirSize(ctx context.Context, dir string) (int64, bool, error) {
	if size, status := c.Cache.Check(dir); status == cache.StatusHit {
		c.Logger.Debug("Directory size from cache", "dir", dir, "size", size)
		return size, true, nil
	}
	size, err := c.Fresh(ctx, dir)
	return size, false, err
}

// Fresh walks dir and stores the result in the cache. Symbolic links are
// counted as entries but never followed, so link cycles cannot loop.
// Unreadable subdirectories are skipped. The walk stops as soon as ctx is
// cancelled.
func (c *Calculator) Fresh(ctx context.Context, dir string) (int64, error) {
	rootInfo, err := c.FS.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat '%s': %w", dir, err)
	}
	if !rootInfo.IsDir() {
		return rootInfo.Size(), nil
	}

	var total int64
	err = c.FS.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			c.Logger.Debug("Skipping unreadable path during size walk", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// Vanished mid-walk.
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("size walk of '%s' failed: %w", dir, err)
	}

	if err := c.Cache.Update(dir, cache.CacheEntry{ModTime: rootInfo.ModTime(), Size: total}); err != nil {
		c.Logger.Warn("Failed to cache directory size", "dir", dir, "error", err)
	}
	return total, nil
}
