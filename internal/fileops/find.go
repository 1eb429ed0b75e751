package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// ErrBadPattern is returned by Find for a malformed glob pattern.
var ErrBadPattern = errors.New("invalid search pattern")

// isGlob reports whether pattern uses glob syntax rather than a plain substring.
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// Find searches the tree below root. A pattern with glob metacharacters is
// matched with doublestar against the slash-separated path relative to root
// ("**/*.go", "docs/*.md"); any other pattern is a case-insensitive substring
// of the entry name. Symbolic links are not followed. Results are sorted by path.
func (s *Service) Find(ctx context.Context, root, pattern string) ([]Entry, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}
	glob := isGlob(pattern)
	if glob && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: '%s'", ErrBadPattern, pattern)
	}
	needle := strings.ToLower(pattern)
	root = filepath.Clean(root)

	var (
		mu      sync.Mutex
		matches []Entry
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.Logger.Debug("Skipping unreadable path during find", "path", p, "error", err)
			return nil
		}
		if p == root {
			return nil
		}
		if !s.ShowHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		var ok bool
		if glob {
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return nil
			}
			ok, _ = doublestar.Match(pattern, filepath.ToSlash(rel))
		} else {
			ok = strings.Contains(strings.ToLower(d.Name()), needle)
		}
		if !ok {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		mu.Lock()
		matches = append(matches, newEntry(p, info))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find in '%s' failed: %w", root, err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })
	return matches, nil
}

// Info describes a single path. For regular files the MIME type is detected
// from content.
func (s *Service) Info(path string) (Entry, error) {
	fi, err := s.FS.Lstat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat '%s': %w", path, err)
	}
	e := newEntry(path, fi)
	if fi.Mode().IsRegular() {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			s.Logger.Debug("MIME detection failed", "path", path, "error", err)
		} else {
			e.MIME = mt.String()
		}
	} else if fi.IsDir() {
		e.MIME = "inode/directory"
	}
	return e, nil
}
