package fileops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/filer/internal/filesystem"
	"github.com/stackvity/filer/internal/logging"
)

func newTestService(showHidden bool) (*Service, *filesystem.MockFileSystem) {
	mfs := filesystem.NewMockFileSystem()
	return NewService(mfs, logging.Discard(), showHidden), mfs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "bb")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "deep.txt"), "deep")
	writeFile(t, filepath.Join(dir, ".hidden"), "h")

	entries, err := svc.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden", "a.txt", "b.txt", "sub"}, names(entries), "immediate children only, sorted")

	byName := make(map[string]Entry)
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, KindFile, byName["b.txt"].Kind)
	assert.Equal(t, int64(2), byName["b.txt"].Size)
	assert.True(t, byName["b.txt"].SizeKnown)
	assert.Equal(t, KindDirectory, byName["sub"].Kind)
	assert.False(t, byName["sub"].SizeKnown, "directory size is unknown until computed")
	assert.Equal(t, filepath.Join(dir, "sub"), byName["sub"].Path)

	t.Run("RepeatedCallsAgree", func(t *testing.T) {
		again, err := svc.List(dir)
		require.NoError(t, err)
		assert.Equal(t, names(entries), names(again))
	})
}

func TestService_List_HidesDotEntries(t *testing.T) {
	svc, _ := newTestService(false)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hidden"), "h")
	writeFile(t, filepath.Join(dir, "shown"), "s")

	entries, err := svc.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"shown"}, names(entries))
}

func TestService_List_InvalidPath(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	for _, p := range []string{filepath.Join(dir, "missing"), file} {
		entries, err := svc.List(p)
		assert.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestService_List_ReadError(t *testing.T) {
	svc, mfs := newTestService(true)
	dir := t.TempDir()
	denied := errors.New("permission denied")
	mfs.SimulateError(filesystem.OpReadDir, dir, denied)

	_, err := svc.List(dir)
	assert.ErrorIs(t, err, denied)
}

func TestService_Search(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Report.PDF"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	writeFile(t, filepath.Join(dir, "report-draft.txt"), "")

	t.Run("EmptyQueryReturnsAll", func(t *testing.T) {
		all, err := svc.List(dir)
		require.NoError(t, err)
		got, err := svc.Search("", dir)
		require.NoError(t, err)
		assert.Equal(t, names(all), names(got))
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		got, err := svc.Search("REPORT", dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"Report.PDF", "report-draft.txt"}, names(got))
	})

	t.Run("NoMatch", func(t *testing.T) {
		got, err := svc.Search("zzz", dir)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestService_Copy(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	require.NoError(t, svc.Copy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data), "copy replaces the destination")
	assert.FileExists(t, src)
}

func TestService_Copy_Directory(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	src := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "b")
	dst := filepath.Join(dir, "copy")

	require.NoError(t, svc.Copy(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	assert.FileExists(t, filepath.Join(dst, "a.txt"))
}

func TestService_Copy_DirectoryIntoItself(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	src := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(src, "a.txt"), "a")

	err := svc.Copy(src, filepath.Join(src, "inner"))
	assert.ErrorIs(t, err, ErrCopyIntoItself)
	assert.NoDirExists(t, filepath.Join(src, "inner"))
}

func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
}

func TestService_Copy_SymlinkToFile(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	real := filepath.Join(dir, "real.txt")
	writeFile(t, real, "content")
	link := filepath.Join(dir, "link.txt")
	symlinkOrSkip(t, real, link)
	dst := filepath.Join(dir, "out", "link.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, svc.Copy(link, dst))

	info, err := os.Lstat(dst)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular(), "the copy holds the target's content, not a link")
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestService_Copy_SymlinkNotCopyable(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	t.Run("dangling", func(t *testing.T) {
		link := filepath.Join(dir, "dangling")
		symlinkOrSkip(t, filepath.Join(dir, "gone"), link)
		err := svc.Copy(link, filepath.Join(dir, "dangling-copy"))
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.NoFileExists(t, filepath.Join(dir, "dangling-copy"))
	})

	t.Run("directory target", func(t *testing.T) {
		link := filepath.Join(dir, "dirlink")
		symlinkOrSkip(t, sub, link)
		err := svc.Copy(link, filepath.Join(dir, "dirlink-copy"))
		assert.ErrorContains(t, err, "not a regular file")
		assert.NoFileExists(t, filepath.Join(dir, "dirlink-copy"))
	})
}

func TestService_Copy_DirectoryWithFileLink(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside.txt")
	writeFile(t, outside, "linked")
	src := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	symlinkOrSkip(t, outside, filepath.Join(src, "link.txt"))
	symlinkOrSkip(t, src, filepath.Join(src, "loop"))

	require.NoError(t, svc.Copy(src, filepath.Join(dir, "copy")))

	data, err := os.ReadFile(filepath.Join(dir, "copy", "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "linked", string(data))
	_, err = os.Lstat(filepath.Join(dir, "copy", "loop"))
	assert.ErrorIs(t, err, fs.ErrNotExist, "links to directories are not copied")
}

func TestWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "tree")
	assert.True(t, Within(root, root))
	assert.True(t, Within(root, filepath.Join(root, "a", "b")))
	assert.False(t, Within(root, filepath.Join(root+"2", "a")))
	assert.False(t, Within(root, filepath.Dir(root)))
}

func TestService_Copy_MissingSource(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	err := svc.Copy(filepath.Join(dir, "ghost"), filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestService_Move(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	writeFile(t, src, "moved")
	writeFile(t, dst, "overwritten")

	require.NoError(t, svc.Move(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "moved", string(data))
}

func TestService_Delete(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	writeFile(t, filepath.Join(full, "child"), "c")

	assert.Error(t, svc.Delete(full), "non-empty directory needs the recursive variant")
	assert.DirExists(t, full)

	require.NoError(t, svc.Delete(filepath.Join(full, "child")))
	require.NoError(t, svc.Delete(full))
	assert.NoDirExists(t, full)
}

func TestService_CreateDirectory(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	target := filepath.Join(dir, "new")

	require.NoError(t, svc.CreateDirectory(target))
	assert.DirExists(t, target)

	err := svc.CreateDirectory(target)
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestService_DeleteRecursive(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim")
	writeFile(t, filepath.Join(victim, "a.txt"), "a")
	writeFile(t, filepath.Join(victim, "x", "y", "z.txt"), "z")
	writeFile(t, filepath.Join(dir, "keep.txt"), "k")

	require.NoError(t, svc.DeleteRecursive(victim))

	entries, err := svc.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, names(entries), "no residual entries remain")
}

func TestService_DeleteRecursive_DoesNotFollowSymlinks(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside")
	writeFile(t, filepath.Join(outside, "precious.txt"), "p")
	victim := filepath.Join(dir, "victim")
	require.NoError(t, os.MkdirAll(victim, 0755))
	if err := os.Symlink(outside, filepath.Join(victim, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	// A link back to its own parent would loop forever if followed.
	require.NoError(t, os.Symlink(victim, filepath.Join(victim, "loop")))

	require.NoError(t, svc.DeleteRecursive(victim))

	assert.NoDirExists(t, victim)
	assert.FileExists(t, filepath.Join(outside, "precious.txt"), "link target must survive")
}

func TestService_DeleteRecursive_StopsOnError(t *testing.T) {
	svc, mfs := newTestService(true)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim")
	locked := filepath.Join(victim, "locked.txt")
	writeFile(t, locked, "l")
	denied := errors.New("permission denied")
	mfs.SimulateError(filesystem.OpRemove, locked, denied)

	err := svc.DeleteRecursive(victim)
	assert.ErrorIs(t, err, denied)
	assert.DirExists(t, victim)
}

func TestService_ChangeDirectory(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	writeFile(t, file, "")

	abs, ok := svc.ChangeDirectory(dir)
	assert.True(t, ok)
	assert.True(t, filepath.IsAbs(abs))

	_, ok = svc.ChangeDirectory(file)
	assert.False(t, ok)
	_, ok = svc.ChangeDirectory(filepath.Join(dir, "missing"))
	assert.False(t, ok)
}

func TestService_Find(t *testing.T) {
	svc, _ := newTestService(false)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "")
	writeFile(t, filepath.Join(dir, "pkg", "util.go"), "")
	writeFile(t, filepath.Join(dir, "pkg", "README.md"), "")
	writeFile(t, filepath.Join(dir, ".git", "config.go"), "")

	t.Run("Glob", func(t *testing.T) {
		got, err := svc.Find(context.Background(), dir, "**/*.go")
		require.NoError(t, err)
		assert.Equal(t, []string{"main.go", "util.go"}, names(got), "hidden directories are skipped")
	})

	t.Run("Substring", func(t *testing.T) {
		got, err := svc.Find(context.Background(), dir, "readme")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, filepath.Join(dir, "pkg", "README.md"), got[0].Path)
	})

	t.Run("BadPattern", func(t *testing.T) {
		_, err := svc.Find(context.Background(), dir, "[")
		assert.ErrorIs(t, err, ErrBadPattern)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Find(ctx, dir, "*.go")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestService_Info(t *testing.T) {
	svc, _ := newTestService(true)
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.txt")
	writeFile(t, file, "hello world\n")

	e, err := svc.Info(file)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", e.Name)
	assert.Contains(t, e.MIME, "text/plain")

	e, err = svc.Info(dir)
	require.NoError(t, err)
	assert.True(t, e.IsDir())
	assert.Equal(t, "inode/directory", e.MIME)
}
