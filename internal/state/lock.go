package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaleLockAge is how old a lock file may get before it is taken over.
const StaleLockAge = 10 * time.Minute

// Lock acquires a file lock next to the record.
func (m *Manager) Lock(_ context.Context) error {
	lockPath := m.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) <= StaleLockAge {
			return &LockedError{Holder: lockPath}
		}
		os.Remove(lockPath)
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return &LockedError{Holder: lockPath}
	}
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Unlock releases the lock.
func (m *Manager) Unlock(_ context.Context) error {
	if err := os.Remove(m.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *Manager) lockPath() string {
	return m.path + ".lock"
}

// LockedError means another process holds the record lock.
type LockedError struct {
	Holder string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("record is locked by another process (%s); remove the lock manually if this is an error", e.Holder)
}
