package filesystem

import (
	"io/fs"
	"os"
)

// FileSystem defines an interface for interacting with the filesystem.
// This allows for decoupling the file operations service from the os package,
// facilitating testing with injected failures.
type FileSystem interface {
	// ReadFile reads the named file and returns the contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Stat returns a FileInfo describing the named file, following symlinks.
	Stat(name string) (fs.FileInfo, error)

	// Lstat returns a FileInfo describing the named file without following symlinks.
	Lstat(name string) (fs.FileInfo, error)

	// ReadDir reads the named directory and returns its entries sorted by filename.
	ReadDir(name string) ([]fs.DirEntry, error)

	// Mkdir creates a single directory. It fails if the path already exists.
	Mkdir(path string, perm fs.FileMode) error

	// MkdirAll creates a directory named path, along with any necessary parents.
	MkdirAll(path string, perm fs.FileMode) error

	// WalkDir walks the file tree rooted at root, calling fn for each file or
	// directory in the tree, including root. Symlinks are not followed.
	WalkDir(root string, fn fs.WalkDirFunc) error

	// Open opens the named file for reading.
	Open(name string) (*os.File, error)

	// OpenFile is the generalized open call.
	OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error)

	// Remove removes the named file or (empty) directory.
	Remove(name string) error

	// Rename renames (moves) oldpath to newpath.
	// If newpath already exists and is not a directory, Rename replaces it.
	Rename(oldpath, newpath string) error
}
