package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/stackvity/filer/internal/fileops"
)

var (
	// ErrSourceNotFound is returned when the source of a copy or move does not exist.
	ErrSourceNotFound = errors.New("source does not exist")
	// ErrAlreadyExists is returned when a folder to create is already present.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNothingToPaste is returned by Paste when no cut is pending.
	ErrNothingToPaste = errors.New("no file to paste")
	// ErrInvalidName is returned for empty or path-like folder names.
	ErrInvalidName = errors.New("invalid name")
	// ErrNotDirectory is returned when navigating to something that is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)

// Controller adds conflict-avoiding copy, cut/paste and navigation on top of
// the file operations service. All state lives in the Session passed in.
type Controller struct {
	Service *fileops.Service
	Logger  *slog.Logger
}

// NewController creates a new Controller.
func NewController(svc *fileops.Service, logger *slog.Logger) *Controller {
	return &Controller{Service: svc, Logger: logger}
}

func (c *Controller) log(s *Session) *slog.Logger {
	return c.Logger.With("session", s.ID)
}

// List returns the listing of the session's current directory.
func (c *Controller) List(s *Session) ([]fileops.Entry, error) {
	return c.Service.List(s.Dir())
}

// Search filters the current directory by a case-insensitive name substring.
func (c *Controller) Search(s *Session, query string) ([]fileops.Entry, error) {
	return c.Service.Search(strings.TrimSpace(query), s.Dir())
}

// Navigate makes path the current directory. Relative paths resolve against
// the current directory.
func (c *Controller) Navigate(s *Session, path string) error {
	abs, ok := c.Service.ChangeDirectory(s.Resolve(path))
	if !ok {
		return fmt.Errorf("cannot open '%s': %w", path, ErrNotDirectory)
	}
	s.dir = abs
	c.log(s).Debug("Changed directory", "dir", abs)
	return nil
}

// OpenFolder enters the subfolder name of the current directory. It reports
// whether the directory changed; anything that is not an existing directory
// leaves the session untouched.
func (c *Controller) OpenFolder(s *Session, name string) bool {
	abs, ok := c.Service.ChangeDirectory(filepath.Join(s.Dir(), name))
	if !ok {
		return false
	}
	s.dir = abs
	return true
}

// Back moves to the parent directory. It reports false at the filesystem root.
func (c *Controller) Back(s *Session) bool {
	parent := filepath.Dir(s.Dir())
	if parent == s.Dir() {
		return false
	}
	s.dir = parent
	return true
}

// CreateFolder creates name inside the current directory.
func (c *Controller) CreateFolder(s *Session, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("folder name '%s': %w", name, ErrInvalidName)
	}
	target := filepath.Join(s.Dir(), name)
	exists, err := c.Service.Exists(target)
	if err != nil {
		return "", fmt.Errorf("failed to check '%s': %w", target, err)
	}
	if exists {
		return "", fmt.Errorf("cannot create '%s': %w", target, ErrAlreadyExists)
	}
	if err := c.Service.CreateDirectory(target); err != nil {
		c.log(s).Error("Create folder failed", "path", target, "error", err)
		return "", err
	}
	c.log(s).Info(fmt.Sprintf("Created folder %s", target))
	return target, nil
}

// requireSource resolves src and fails with ErrSourceNotFound when it is missing.
func (c *Controller) requireSource(s *Session, src string) (string, error) {
	path := s.Resolve(src)
	exists, err := c.Service.Exists(path)
	if err != nil {
		return "", fmt.Errorf("failed to check source '%s': %w", path, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	return path, nil
}

// Copy copies src into destDir. destDir is created when absent. When a file
// of the same name already exists there, the copy gets the smallest free
// numeric suffix before the extension ("a.txt" -> "a1.txt", "a2.txt", ...).
// It returns the path written.
func (c *Controller) Copy(s *Session, src, destDir string) (string, error) {
	source, err := c.requireSource(s, src)
	if err != nil {
		return "", err
	}
	dir := s.Resolve(destDir)
	if _, isDir := c.Service.ChangeDirectory(source); isDir && fileops.Within(source, dir) {
		return "", fmt.Errorf("%w: '%s' into '%s'", fileops.ErrCopyIntoItself, source, dir)
	}
	if err := c.Service.EnsureDirectory(dir); err != nil {
		return "", err
	}

	target, err := freeName(dir, filepath.Base(source), c.Service.Exists)
	if err != nil {
		return "", fmt.Errorf("failed to choose destination name in '%s': %w", dir, err)
	}
	if err := c.Service.Copy(source, target); err != nil {
		c.log(s).Error("Copy failed", "from", source, "to", target, "error", err)
		return "", err
	}
	c.log(s).Info(fmt.Sprintf("Copied file from %s to %s", source, target))
	return target, nil
}

// Move moves src into destDir, replacing a same-named file there. destDir is
// created when absent. It returns the new path.
func (c *Controller) Move(s *Session, src, destDir string) (string, error) {
	source, err := c.requireSource(s, src)
	if err != nil {
		return "", err
	}
	return c.moveInto(s, source, s.Resolve(destDir))
}

func (c *Controller) moveInto(s *Session, source, dir string) (string, error) {
	if err := c.Service.EnsureDirectory(dir); err != nil {
		return "", err
	}
	target := filepath.Join(dir, filepath.Base(source))
	if err := c.Service.Move(source, target); err != nil {
		c.log(s).Error("Move failed", "from", source, "to", target, "error", err)
		return "", err
	}
	c.log(s).Info(fmt.Sprintf("Moved file from %s to %s", source, target))
	return target, nil
}

// Delete removes path. Without recursive, a non-empty directory fails.
func (c *Controller) Delete(s *Session, path string, recursive bool) error {
	target := s.Resolve(path)
	var err error
	if recursive {
		err = c.Service.DeleteRecursive(target)
	} else {
		err = c.Service.Delete(target)
	}
	if err != nil {
		c.log(s).Error("Delete failed", "path", target, "recursive", recursive, "error", err)
		return err
	}
	c.log(s).Info(fmt.Sprintf("Deleted file: %s", target))
	return nil
}

// Cut marks path for a later Paste, replacing any previous cut.
func (c *Controller) Cut(s *Session, path string) string {
	s.cut = s.Resolve(path)
	c.log(s).Debug("Cut", "path", s.cut)
	return s.cut
}

// Paste moves the cut file into destDir (the current directory when empty)
// and clears the buffer. With nothing cut it fails with ErrNothingToPaste and
// touches nothing. On failure the buffer is kept so the user can retry.
func (c *Controller) Paste(s *Session, destDir string) (string, error) {
	source, ok := s.CutPath()
	if !ok {
		return "", ErrNothingToPaste
	}
	dir := s.Dir()
	if destDir != "" {
		dir = s.Resolve(destDir)
	}
	target, err := c.moveInto(s, source, dir)
	if err != nil {
		return "", err
	}
	s.cut = ""
	c.log(s).Info(fmt.Sprintf("Pasted file from %s to %s", source, target))
	return target, nil
}
