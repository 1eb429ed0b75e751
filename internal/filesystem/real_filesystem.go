package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

// RealFileSystem implements the FileSystem interface using the standard os package.
type RealFileSystem struct{}

// NewRealFileSystem creates a new instance of RealFileSystem.
func NewRealFileSystem() *RealFileSystem {
	return &RealFileSystem{}
}

func (rfs *RealFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (rfs *RealFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (rfs *RealFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (rfs *RealFileSystem) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

func (rfs *RealFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (rfs *RealFileSystem) Mkdir(path string, perm fs.FileMode) error {
	return os.Mkdir(path, perm)
}

func (rfs *RealFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WalkDir walks the file tree using filepath.WalkDir, which never follows symlinks.
func (rfs *RealFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

func (rfs *RealFileSystem) Open(name string) (*os.File, error) {
	return os.Open(name)
}

func (rfs *RealFileSystem) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (rfs *RealFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (rfs *RealFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

