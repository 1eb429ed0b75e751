package sizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/filer/internal/cache"
	"github.com/stackvity/filer/internal/filesystem"
	"github.com/stackvity/filer/internal/logging"
)

// MockSizeCache is a testify mock of cache.SizeCache.
type MockSizeCache struct {
	mock.Mock
}

func (m *MockSizeCache) Check(dir string) (int64, cache.CacheStatus) {
	args := m.Called(dir)
	return args.Get(0).(int64), args.Get(1).(cache.CacheStatus)
}

func (m *MockSizeCache) Update(dir string, entry cache.CacheEntry) error {
	return m.Called(dir, entry).Error(0)
}

func (m *MockSizeCache) Persist() error { return m.Called().Error(0) }
func (m *MockSizeCache) Clear() error   { return m.Called().Error(0) }

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func newCalculator(sc cache.SizeCache) (*Calculator, *filesystem.MockFileSystem) {
	mfs := filesystem.NewMockFileSystem()
	return NewCalculator(mfs, sc, logging.Discard()), mfs
}

func TestCalculator_DirSize(t *testing.T) {
	calc, _ := newCalculator(nil)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 100)
	writeFile(t, filepath.Join(dir, "sub", "b"), 200)
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c"), 300)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0755))

	size, cached, err := calc.DirSize(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(600), size)
}

func TestCalculator_DirSize_SymlinksNotFollowed(t *testing.T) {
	calc, _ := newCalculator(nil)
	dir := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "big"), 5000)
	writeFile(t, filepath.Join(dir, "small"), 10)
	if err := os.Symlink(outside, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "self")))

	size, _, err := calc.DirSize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestCalculator_DirSize_Cancelled(t *testing.T) {
	calc, _ := newCalculator(nil)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := calc.DirSize(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculator_DirSize_Missing(t *testing.T) {
	calc, _ := newCalculator(nil)
	_, _, err := calc.DirSize(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCalculator_DirSize_UsesCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 50)

	t.Run("Hit", func(t *testing.T) {
		sc := new(MockSizeCache)
		sc.On("Check", dir).Return(int64(999), cache.StatusHit).Once()
		calc, mfs := newCalculator(sc)

		size, cached, err := calc.DirSize(context.Background(), dir)
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, int64(999), size)
		mfs.AssertNotCalled(t, "WalkDir", dir)
		sc.AssertExpectations(t)
		sc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("MissStoresResult", func(t *testing.T) {
		sc := new(MockSizeCache)
		sc.On("Check", dir).Return(int64(0), cache.StatusMiss).Once()
		sc.On("Update", dir, mock.MatchedBy(func(e cache.CacheEntry) bool {
			return e.Size == 50 && !e.ModTime.IsZero()
		})).Return(nil).Once()
		calc, _ := newCalculator(sc)

		size, cached, err := calc.DirSize(context.Background(), dir)
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, int64(50), size)
		sc.AssertExpectations(t)
	})
}

func collect(t *testing.T, p *Pool, want int) []Result {
	t.Helper()
	var got []Result
	timeout := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case r := <-p.Results():
			got = append(got, r)
		case <-timeout:
			t.Fatalf("timed out with %d of %d results", len(got), want)
		}
	}
	return got
}

func TestPool_DeliversResults(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	writeFile(t, filepath.Join(a, "f"), 10)
	writeFile(t, filepath.Join(b, "f"), 20)

	calc, _ := newCalculator(nil)
	p := NewPool(context.Background(), calc, 2, logging.Discard())
	defer p.Close()

	p.Submit(1, []string{a, b})
	sizes := make(map[string]int64)
	for _, r := range collect(t, p, 2) {
		require.NoError(t, r.Err)
		assert.Equal(t, uint64(1), r.Gen)
		sizes[r.Path] = r.Size
	}
	assert.Equal(t, map[string]int64{a: 10, b: 20}, sizes)
	assert.Equal(t, uint64(1), p.Generation())
}

func TestPool_ErrorsAreReported(t *testing.T) {
	calc, _ := newCalculator(nil)
	p := NewPool(context.Background(), calc, 1, logging.Discard())
	defer p.Close()

	missing := filepath.Join(t.TempDir(), "missing")
	p.Submit(3, []string{missing})
	r := collect(t, p, 1)[0]
	assert.Equal(t, missing, r.Path)
	assert.Error(t, r.Err)
}

func TestPool_NewGenerationSupersedesOld(t *testing.T) {
	root := t.TempDir()
	var old []string
	for i := 0; i < 50; i++ {
		d := filepath.Join(root, "old", string(rune('a'+i%26))+string(rune('a'+i/26)))
		writeFile(t, filepath.Join(d, "f"), 1)
		old = append(old, d)
	}
	fresh := filepath.Join(root, "fresh")
	writeFile(t, filepath.Join(fresh, "f"), 7)

	calc, _ := newCalculator(nil)
	p := NewPool(context.Background(), calc, 1, logging.Discard())
	defer p.Close()

	p.Submit(1, old)
	p.Submit(2, []string{fresh})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-p.Results():
			if r.Gen == 2 {
				assert.Equal(t, fresh, r.Path)
				assert.Equal(t, int64(7), r.Size)
				return
			}
			assert.Equal(t, uint64(1), r.Gen)
		case <-deadline:
			t.Fatal("result for the new generation never arrived")
		}
	}
}

func TestPool_CloseStopsAndPersists(t *testing.T) {
	sc := new(MockSizeCache)
	sc.On("Check", mock.Anything).Return(int64(0), cache.StatusMiss)
	sc.On("Update", mock.Anything, mock.Anything).Return(nil)
	sc.On("Persist").Return(nil).Once()
	calc, _ := newCalculator(sc)

	p := NewPool(context.Background(), calc, 2, logging.Discard())
	p.Submit(1, []string{t.TempDir()})
	p.Close()
	p.Close()

	for range p.Results() {
	}
	sc.AssertCalled(t, "Persist")
	sc.AssertNumberOfCalls(t, "Persist", 1)

	p.Submit(2, []string{t.TempDir()})
	_, open := <-p.Results()
	assert.False(t, open, "submitting after close is a no-op")
}

func TestCalculator_Fresh_BypassesCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 50)
	sc := new(MockSizeCache)
	sc.On("Update", dir, mock.Anything).Return(nil).Once()
	calc, _ := newCalculator(sc)

	size, err := calc.Fresh(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(50), size)
	sc.AssertNotCalled(t, "Check", mock.Anything)
	sc.AssertExpectations(t)
}

func TestPool_RecalculatesCachedSizes(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub", "f")
	writeFile(t, nested, 10)

	sc := cache.NewFileCache(filepath.Join(t.TempDir(), "sizes.cache"), 0, filesystem.NewRealFileSystem(), logging.Discard())
	calc, _ := newCalculator(sc)
	size, cached, err := calc.DirSize(context.Background(), dir)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, int64(10), size)

	// Rewriting a nested file leaves the mtime of dir untouched.
	writeFile(t, nested, 5000)

	p := NewPool(context.Background(), calc, 1, logging.Discard())
	defer p.Close()
	p.Submit(1, []string{dir})

	got := collect(t, p, 2)
	assert.True(t, got[0].Cached)
	assert.Equal(t, int64(10), got[0].Size, "the cached size is delivered first")
	assert.False(t, got[1].Cached)
	require.NoError(t, got[1].Err)
	assert.Equal(t, int64(5000), got[1].Size, "the recalculated size replaces it")

	size, _, err = calc.DirSize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), size, "the cache holds the recalculated size")
}

func TestResolveWorkers(t *testing.T) {
	assert.Equal(t, 3, ResolveWorkers(3, logging.Discard()))
	assert.GreaterOrEqual(t, ResolveWorkers(0, logging.Discard()), 1)
}
