// Package fsutil writes files atomically and probes advisory locks.
package fsutil

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File permission constants
const (
	// PermPrivateFile is the permission for files only the owner may read.
	PermPrivateFile os.FileMode = 0600

	// PermPrivateDir is the permission for directories only the owner may list.
	PermPrivateDir os.FileMode = 0700

	// PermPublicFile is the permission for exported documents.
	PermPublicFile os.FileMode = 0644

	// PermPublicDir is the permission for output directories.
	PermPublicDir os.FileMode = 0755
)

// MaxPathLength bounds accepted paths.
const MaxPathLength = 4096

// File operation errors
var (
	ErrInvalidPath       = errors.New("fsutil: invalid path")
	ErrNullByte          = errors.New("fsutil: null byte in path")
	ErrAtomicWriteFailed = errors.New("fsutil: atomic write failed")
	ErrTempFileFailed    = errors.New("fsutil: temporary file creation failed")
	ErrLocked            = errors.New("fsutil: file is locked by another process")
	ErrClosed            = errors.New("fsutil: writer already committed or aborted")
)

// CleanPath validates path and returns it cleaned and absolute.
func CleanPath(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	if strings.Contains(path, "\x00") {
		return "", ErrNullByte
	}
	if len(path) > MaxPathLength {
		return "", fmt.Errorf("%w: length %d exceeds maximum %d", ErrInvalidPath, len(path), MaxPathLength)
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}

// AtomicWriter writes to a temporary file next to the destination and
// renames it into place on Commit. Until then the destination is untouched.
type AtomicWriter struct {
	path     string
	tempFile *os.File
	tempPath string
	done     bool
}

// NewAtomicWriter creates the temporary file for path. The parent directory
// is created if needed.
func NewAtomicWriter(path string, perm os.FileMode) (*AtomicWriter, error) {
	cleanPath, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, PermPublicDir); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	// Same directory, so the rename stays on one file system.
	tempPath := filepath.Join(dir, "."+filepath.Base(cleanPath)+".tmp."+randomSuffix())
	tempFile, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempFileFailed, err)
	}

	return &AtomicWriter{
		path:     cleanPath,
		tempFile: tempFile,
		tempPath: tempPath,
	}, nil
}

// Path returns the destination path.
func (w *AtomicWriter) Path() string {
	return w.path
}

// TempPath returns the temporary file path.
func (w *AtomicWriter) TempPath() string {
	return w.tempPath
}

// Write writes data to the temporary file.
func (w *AtomicWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrClosed
	}
	return w.tempFile.Write(p)
}

// Commit flushes the temporary file and renames it over the destination.
// The destination must not be locked by another process.
func (w *AtomicWriter) Commit() error {
	if w.done {
		return ErrClosed
	}
	if err := w.tempFile.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.tempFile.Close(); err != nil {
		w.done = true
		os.Remove(w.tempPath)
		return fmt.Errorf("close: %w", err)
	}
	w.done = true

	if err := CheckUnlocked(w.path); err != nil {
		os.Remove(w.tempPath)
		return err
	}
	if err := os.Rename(w.tempPath, w.path); err != nil {
		os.Remove(w.tempPath)
		return fmt.Errorf("%w: %v", ErrAtomicWriteFailed, err)
	}
	return nil
}

// Abort removes the temporary file. It is safe to call after Commit.
func (w *AtomicWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.tempFile.Close()
	os.Remove(w.tempPath)
}

func randomSuffix() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// WriteFile writes data to path atomically.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	w, err := NewAtomicWriter(path, perm)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}

// CopyFile copies src to dst atomically.
func CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := NewAtomicWriter(dst, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}

// CheckUnlocked returns ErrLocked when another process holds an advisory
// lock on path. A missing file is not locked.
func CheckUnlocked(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := tryLockFile(f); err != nil {
		return fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return unlockFile(f)
}

// LockFile acquires an exclusive advisory lock, blocking until it is free.
func LockFile(f *os.File) error {
	return lockFile(f)
}

// TryLockFile acquires an exclusive advisory lock or fails immediately.
func TryLockFile(f *os.File) error {
	if err := tryLockFile(f); err != nil {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	return nil
}

// UnlockFile releases a lock taken by LockFile or TryLockFile.
func UnlockFile(f *os.File) error {
	return unlockFile(f)
}
