// Package fileops wraps the filesystem calls behind every file manager action:
// listing, searching, copying, moving, deleting and creating directories.
//
// The service is stateless. The current directory lives in the caller's
// session, never here.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stackvity/filer/internal/filesystem"
)

// Kind distinguishes files from directories in a listing.
type Kind string

const (
	KindFile      Kind = "File"
	KindDirectory Kind = "Directory"
)

// Entry is one row of a directory listing. SizeCached marks a directory
// size taken from the cache and not yet confirmed by a fresh walk.
type Entry struct {
	Name       string    `json:"name" yaml:"name" toml:"name"`
	Path       string    `json:"path" yaml:"path" toml:"path"`
	Size       int64     `json:"size" yaml:"size" toml:"size"`
	SizeKnown  bool      `json:"sizeKnown" yaml:"sizeKnown" toml:"sizeKnown"`
	SizeCached bool      `json:"sizeCached,omitempty" yaml:"sizeCached,omitempty" toml:"sizeCached,omitempty"`
	Kind       Kind      `json:"kind" yaml:"kind" toml:"kind"`
	ModTime    time.Time `json:"modTime" yaml:"modTime" toml:"modTime"`
	MIME       string    `json:"mime,omitempty" yaml:"mime,omitempty" toml:"mime,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Service performs file operations through a FileSystem.
type Service struct {
	FS         filesystem.FileSystem
	Logger     *slog.Logger
	ShowHidden bool
}

// NewService creates a new Service.
func NewService(fs filesystem.FileSystem, logger *slog.Logger, showHidden bool) *Service {
	return &Service{
		FS:         fs,
		Logger:     logger,
		ShowHidden: showHidden,
	}
}

// List returns the immediate children of path sorted by name. A path that
// does not exist or is not a directory yields an empty listing and no error.
func (s *Service) List(path string) ([]Entry, error) {
	info, err := s.FS.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Logger.Debug("Listing of missing path", "path", path)
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to access '%s': %w", path, err)
	}
	if !info.IsDir() {
		s.Logger.Debug("Listing of non-directory path", "path", path)
		return []Entry{}, nil
	}

	dirEntries, err := s.FS.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", path, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		if !s.ShowHidden && strings.HasPrefix(d.Name(), ".") {
			continue
		}
		fi, err := d.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			s.Logger.Debug("Skipping vanished entry", "path", filepath.Join(path, d.Name()), "error", err)
			continue
		}
		entries = append(entries, newEntry(filepath.Join(path, d.Name()), fi))
	}
	return entries, nil
}

func newEntry(path string, fi fs.FileInfo) Entry {
	e := Entry{
		Name:    fi.Name(),
		Path:    path,
		ModTime: fi.ModTime(),
		Kind:    KindFile,
	}
	if fi.IsDir() {
		e.Kind = KindDirectory
		return e
	}
	e.Size = fi.Size()
	e.SizeKnown = true
	return e
}

// Search filters the listing of path by a case-insensitive substring of the
// entry name. An empty query returns the full listing.
func (s *Service) Search(query, path string) ([]Entry, error) {
	entries, err := s.List(path)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return entries, nil
	}
	needle := strings.ToLower(query)
	matched := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// ErrCopyIntoItself is returned when a directory would be copied into its own subtree.
var ErrCopyIntoItself = errors.New("cannot copy a directory into itself")

// Within reports whether path is dir itself or lies below it.
func Within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Copy copies src to the exact path dst, replacing an existing file there.
// Directories are copied recursively. A symbolic link to a file is followed
// and the target's content is copied; a link to a directory is refused.
func (s *Service) Copy(src, dst string) error {
	info, err := s.FS.Lstat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source '%s': %w", src, err)
	}
	if info.IsDir() {
		return s.copyTree(src, dst)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if info, err = s.resolveLink(src); err != nil {
			return err
		}
	}
	return s.copyFile(src, dst, info.Mode().Perm())
}

// resolveLink stats the target of the link at path. Only links to regular
// files can be copied.
func (s *Service) resolveLink(path string) (fs.FileInfo, error) {
	target, err := s.FS.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve symbolic link '%s': %w", path, err)
	}
	if !target.Mode().IsRegular() {
		return nil, fmt.Errorf("cannot copy symbolic link '%s': target is not a regular file", path)
	}
	return target, nil
}

func (s *Service) copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := s.FS.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source '%s': %w", src, err)
	}
	defer in.Close()

	out, err := s.FS.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination '%s': %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close destination '%s': %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy '%s' to '%s': %w", src, dst, err)
	}
	return nil
}

func (s *Service) copyTree(src, dst string) error {
	if Within(src, dst) {
		return fmt.Errorf("%w: '%s' into '%s'", ErrCopyIntoItself, src, dst)
	}
	return s.FS.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("failed to access '%s': %w", path, walkErr)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to resolve '%s' against '%s': %w", path, src, err)
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat '%s': %w", path, err)
		}
		switch {
		case d.IsDir():
			if err := s.FS.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return fmt.Errorf("failed to create directory '%s': %w", target, err)
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			// Links to directories are not descended into.
			linked, err := s.FS.Stat(path)
			if err != nil || !linked.Mode().IsRegular() {
				s.Logger.Warn(fmt.Sprintf("Skipping symbolic link %s during copy", path))
				return nil
			}
			return s.copyFile(path, target, linked.Mode().Perm())
		default:
			return s.copyFile(path, target, info.Mode().Perm())
		}
	})
}

// Move renames src to the exact path dst, replacing an existing file there.
func (s *Service) Move(src, dst string) error {
	if err := s.FS.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move '%s' to '%s': %w", src, dst, err)
	}
	return nil
}

// Delete removes a single file or an empty directory.
func (s *Service) Delete(path string) error {
	if err := s.FS.Remove(path); err != nil {
		return fmt.Errorf("failed to delete '%s': %w", path, err)
	}
	return nil
}

// CreateDirectory creates one directory. It fails if path already exists.
func (s *Service) CreateDirectory(path string) error {
	if err := s.FS.Mkdir(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", path, err)
	}
	return nil
}

// DeleteRecursive removes path and everything below it. The tree is collected
// in pre-order with Lstat, so symbolic links are removed as entries and never
// followed, and a visited set stops any path from being collected twice.
// Entries are then removed deepest-first.
func (s *Service) DeleteRecursive(path string) error {
	root := filepath.Clean(path)
	if _, err := s.FS.Lstat(root); err != nil {
		return fmt.Errorf("failed to delete '%s': %w", root, err)
	}

	var order []string
	visited := make(map[string]struct{})
	var collect func(p string) error
	collect = func(p string) error {
		if _, seen := visited[p]; seen {
			return nil
		}
		visited[p] = struct{}{}
		order = append(order, p)

		info, err := s.FS.Lstat(p)
		if err != nil {
			return fmt.Errorf("failed to stat '%s': %w", p, err)
		}
		if !info.IsDir() {
			return nil
		}
		children, err := s.FS.ReadDir(p)
		if err != nil {
			return fmt.Errorf("failed to read directory '%s': %w", p, err)
		}
		for _, c := range children {
			if err := collect(filepath.Join(p, c.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(root); err != nil {
		return err
	}

	for i := len(order) - 1; i >= 0; i-- {
		if err := s.FS.Remove(order[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete '%s': %w", order[i], err)
		}
	}
	s.Logger.Debug("Recursive delete finished", "path", root, "entries", len(order))
	return nil
}

// ChangeDirectory resolves path to an absolute path and reports whether it
// names an existing directory.
func (s *Service) ChangeDirectory(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := s.FS.Stat(abs)
	if err != nil || !info.IsDir() {
		return abs, false
	}
	return abs, true
}

// Exists reports whether path exists, without following a final symlink.
func (s *Service) Exists(path string) (bool, error) {
	_, err := s.FS.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// EnsureDirectory creates path and any missing parents.
func (s *Service) EnsureDirectory(path string) error {
	if err := s.FS.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", path, err)
	}
	return nil
}
