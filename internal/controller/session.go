package controller

import (
	"path/filepath"

	"github.com/google/uuid"
)

// Session is the per-user state every controller operation works against:
// the current directory and a single-slot cut buffer. It is not safe for
// concurrent use; the shell owns it on one goroutine.
type Session struct {
	ID  string
	dir string
	cut string
}

// NewSession starts a session in dir, which is made absolute.
func NewSession(dir string) *Session {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Session{
		ID:  uuid.NewString(),
		dir: dir,
	}
}

// Dir returns the current directory.
func (s *Session) Dir() string {
	return s.dir
}

// CutPath returns the pending cut path and whether one is set.
func (s *Session) CutPath() (string, bool) {
	return s.cut, s.cut != ""
}

// Resolve joins name onto the current directory unless it is already absolute.
func (s *Session) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(s.dir, name)
}
