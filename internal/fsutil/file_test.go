package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriterCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "doc.pdf")

	w, err := NewAtomicWriter(path, PermPublicFile)
	require.NoError(t, err)
	_, err = w.Write([]byte("%PDF-1.7"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "destination must not exist before commit")

	require.NoError(t, w.Commit())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	_, err = os.Stat(w.TempPath())
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, w.Commit(), ErrClosed)
}

func TestAtomicWriterAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	w, err := NewAtomicWriter(path, PermPublicFile)
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	w.Abort()
	w.Abort()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriteFileAndCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.bin")
	dst := filepath.Join(dir, "b.bin")
	require.NoError(t, WriteFile(src, []byte{1, 2, 3}, PermPrivateFile))
	require.NoError(t, CopyFile(src, dst, PermPrivateFile))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestCleanPath(t *testing.T) {
	_, err := CleanPath("")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = CleanPath("a\x00b")
	assert.ErrorIs(t, err, ErrNullByte)

	p, err := CleanPath("some/../dir/./file.pdf")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))
	assert.Equal(t, "file.pdf", filepath.Base(p))
}

func TestCommitRefusesLockedDestination(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mandatory locks prevent opening the file on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	holder, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, LockFile(holder))

	assert.ErrorIs(t, CheckUnlocked(path), ErrLocked)

	w, err := NewAtomicWriter(path, PermPublicFile)
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Commit(), ErrLocked)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	_, err = os.Stat(w.TempPath())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, UnlockFile(holder))
	assert.NoError(t, CheckUnlocked(path))
}

func TestCheckUnlockedMissingFile(t *testing.T) {
	assert.NoError(t, CheckUnlocked(filepath.Join(t.TempDir(), "nope")))
}
