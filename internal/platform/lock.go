package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrLocked is returned by AcquireLock when another process holds the lock.
var ErrLocked = errors.New("another instance is already running")

// Lock is an exclusive per-user instance lock backed by flock(2). The
// kernel drops the lock when the owning process exits, so a crash never
// leaves a stale lock behind.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the lock, creating the file if needed. The holder's
// PID is written into the file so other invocations can signal it.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	// The PID is informational; the flock is the actual guard.
	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Sync()

	return &Lock{file: f, path: path}, nil
}

// Release drops the lock and removes the file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	os.Remove(l.path)
	return err
}

// LockHolder reads the PID of the process currently holding the lock. It
// returns an error when no instance is running: the file is missing, or it
// exists but nobody holds the flock anymore.
func LockHolder(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("no running instance: %w", err)
	}
	defer f.Close()

	// If we can take the lock ourselves, the process that wrote the PID
	// is gone.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return 0, errors.New("no running instance: lock is free")
	}

	var pid int
	if _, err := fmt.Fscanf(f, "%d", &pid); err != nil {
		return 0, fmt.Errorf("failed to read holder pid: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid holder pid %d", pid)
	}
	return pid, nil
}
