package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
)

// Operation names accepted by MockFileSystem.SimulateError. They match the
// method names recorded by testify/mock.
const (
	OpReadFile  = "ReadFile"
	OpWriteFile = "WriteFile"
	OpStat      = "Stat"
	OpLstat     = "Lstat"
	OpReadDir   = "ReadDir"
	OpMkdir     = "Mkdir"
	OpMkdirAll  = "MkdirAll"
	OpWalkDir   = "WalkDir"
	OpOpen      = "Open"
	OpOpenFile  = "OpenFile"
	OpRemove    = "Remove"
	OpRename    = "Rename"
)

var (
	readOps     = []string{OpReadFile, OpStat, OpLstat, OpReadDir, OpWalkDir, OpOpen}
	mutatingOps = []string{OpWriteFile, OpMkdir, OpMkdirAll, OpOpenFile, OpRemove}
)

// MockFileSystem implements FileSystem for tests on top of testify/mock.
// Every call is recorded with Called using the absolute path as argument
// (Rename records old and new path). By default calls pass through to a
// RealFileSystem, so tests point it at t.TempDir(); SimulateError registers
// an expectation that fails the op for one path instead.
type MockFileSystem struct {
	mock.Mock
	real FileSystem

	mu        sync.RWMutex
	failing   map[string]map[string]bool // op -> abs path
	simulated map[string]*mock.Call      // op + abs path
}

// NewMockFileSystem creates a new instance of MockFileSystem, ready for use.
func NewMockFileSystem() *MockFileSystem {
	mfs := &MockFileSystem{
		real:      NewRealFileSystem(),
		failing:   make(map[string]map[string]bool),
		simulated: make(map[string]*mock.Call),
	}
	for _, op := range append(append([]string{}, readOps...), mutatingOps...) {
		mfs.On(op, mock.MatchedBy(mfs.passes(op))).Return(nil).Maybe()
	}
	mfs.On(OpRename, mock.MatchedBy(mfs.passes(OpRename)), mock.Anything).Return(nil).Maybe()
	return mfs
}

// passes matches the paths with no simulated failure for op.
func (mfs *MockFileSystem) passes(op string) func(string) bool {
	return func(path string) bool {
		mfs.mu.RLock()
		defer mfs.mu.RUnlock()
		return !mfs.failing[op][path]
	}
}

// SimulateError makes every subsequent op on path fail with err. Rename
// failures are keyed by the old path.
func (mfs *MockFileSystem) SimulateError(op, path string, err error) {
	abs := absPath(path)
	key := op + "\x00" + abs
	if prev, ok := mfs.simulated[key]; ok {
		prev.Unset()
	}
	mfs.mu.Lock()
	if mfs.failing[op] == nil {
		mfs.failing[op] = make(map[string]bool)
	}
	mfs.failing[op][abs] = true
	mfs.mu.Unlock()

	var call *mock.Call
	if op == OpRename {
		call = mfs.On(op, abs, mock.Anything)
	} else {
		call = mfs.On(op, abs)
	}
	mfs.simulated[key] = call.Return(err).Maybe()
}

// ClearErrors removes all simulated failures.
func (mfs *MockFileSystem) ClearErrors() {
	for _, call := range mfs.simulated {
		call.Unset()
	}
	mfs.simulated = make(map[string]*mock.Call)
	mfs.mu.Lock()
	mfs.failing = make(map[string]map[string]bool)
	mfs.mu.Unlock()
}

// CallCount returns how many times op was invoked for path.
func (mfs *MockFileSystem) CallCount(op, path string) int {
	abs := absPath(path)
	n := 0
	for _, c := range mfs.Mock.Calls {
		if c.Method == op && len(c.Arguments) > 0 && c.Arguments[0] == abs {
			n++
		}
	}
	return n
}

// MutationCount sums the calls of every mutating operation.
func (mfs *MockFileSystem) MutationCount() int {
	n := 0
	for _, c := range mfs.Mock.Calls {
		if c.Method == OpRename || contains(mutatingOps, c.Method) {
			n++
		}
	}
	return n
}

// AssertNoMutations asserts that no mutating operation was called.
func (mfs *MockFileSystem) AssertNoMutations(t *testing.T) bool {
	t.Helper()
	ok := true
	for _, op := range append([]string{OpRename}, mutatingOps...) {
		ok = mfs.AssertNumberOfCalls(t, op, 0) && ok
	}
	return ok
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// --- FileSystem implementation ---

func (mfs *MockFileSystem) ReadFile(name string) ([]byte, error) {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return nil, err
	}
	return mfs.real.ReadFile(name)
}

func (mfs *MockFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return err
	}
	return mfs.real.WriteFile(name, data, perm)
}

func (mfs *MockFileSystem) Stat(name string) (fs.FileInfo, error) {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return nil, err
	}
	return mfs.real.Stat(name)
}

func (mfs *MockFileSystem) Lstat(name string) (fs.FileInfo, error) {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return nil, err
	}
	return mfs.real.Lstat(name)
}

func (mfs *MockFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return nil, err
	}
	return mfs.real.ReadDir(name)
}

func (mfs *MockFileSystem) Mkdir(path string, perm fs.FileMode) error {
	if err := mfs.Called(absPath(path)).Error(0); err != nil {
		return err
	}
	return mfs.real.Mkdir(path, perm)
}

func (mfs *MockFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	if err := mfs.Called(absPath(path)).Error(0); err != nil {
		return err
	}
	return mfs.real.MkdirAll(path, perm)
}

// WalkDir records only root; simulated ReadDir failures are not consulted
// for directories below it.
func (mfs *MockFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	if err := mfs.Called(absPath(root)).Error(0); err != nil {
		return err
	}
	return mfs.real.WalkDir(root, fn)
}

func (mfs *MockFileSystem) Open(name string) (*os.File, error) {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return nil, err
	}
	return mfs.real.Open(name)
}

func (mfs *MockFileSystem) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return nil, err
	}
	return mfs.real.OpenFile(name, flag, perm)
}

func (mfs *MockFileSystem) Remove(name string) error {
	if err := mfs.Called(absPath(name)).Error(0); err != nil {
		return err
	}
	return mfs.real.Remove(name)
}

func (mfs *MockFileSystem) Rename(oldpath, newpath string) error {
	if err := mfs.Called(absPath(oldpath), absPath(newpath)).Error(0); err != nil {
		return err
	}
	return mfs.real.Rename(oldpath, newpath)
}
