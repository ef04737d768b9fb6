// Package lock keeps two processes from driving the same backend at once.
//
// The lock is an advisory flock(2)/LockFileEx lock on <dir>/<name>.lock,
// so it disappears with the process that held it and never goes stale.
// The holder describes itself in a JSON sidecar for error messages.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Ning0612/fsbridge/internal/domain"
)

const (
	lockSuffix = ".lock"
	infoSuffix = ".lock.json"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// LockInfo contains metadata about the lock holder
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Operation string    `json:"operation,omitempty"`
}

// FileLock is an exclusive per-backend lock
type FileLock struct {
	mu       sync.Mutex
	lockPath string
	infoPath string
	fl       *flock.Flock
	info     *LockInfo
}

// NewFileLock creates the lock for backend name under lockDir
func NewFileLock(lockDir, name string) (*FileLock, error) {
	if lockDir == "" {
		// Default to user config directory
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		lockDir = filepath.Join(configDir, "fsbridge", "locks")
	}
	if name == "" {
		name = "default"
	}

	// Ensure lock directory exists
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	base := filepath.Join(lockDir, unsafeName.ReplaceAllString(name, "_"))
	return &FileLock{
		lockPath: base + lockSuffix,
		infoPath: base + infoSuffix,
		fl:       flock.New(base + lockSuffix),
	}, nil
}

// Path returns the lock file path
func (l *FileLock) Path() string { return l.lockPath }

// Acquire takes the lock without blocking.
// Re-acquiring a lock this instance holds only updates the operation.
func (l *FileLock) Acquire(operation string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.info != nil {
		l.info.Operation = operation
		return l.writeLockInfo(l.info)
	}

	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		holder, _ := l.readLockInfo()
		return &LockError{Holder: holder, Reason: "lock is held by another process"}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Operation: operation,
	}
	if err := l.writeLockInfo(info); err != nil {
		l.fl.Unlock()
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// Release releases the lock. Releasing an unheld lock is a no-op.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.info == nil {
		return nil
	}
	l.info = nil

	if err := os.Remove(l.infoPath); err != nil && !os.IsNotExist(err) {
		l.fl.Unlock()
		return fmt.Errorf("failed to remove lock info: %w", err)
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Held reports whether this instance holds the lock
func (l *FileLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info != nil
}

// IsLocked reports whether anyone holds the lock
func (l *FileLock) IsLocked() bool {
	if l.Held() {
		return true
	}
	other := flock.New(l.lockPath)
	locked, err := other.TryLock()
	if err != nil {
		return false
	}
	if locked {
		other.Unlock()
		return false
	}
	return true
}

// GetHolder returns information about the current lock holder
func (l *FileLock) GetHolder() (*LockInfo, error) {
	if !l.IsLocked() {
		return nil, fmt.Errorf("lock is not held")
	}
	return l.readLockInfo()
}

// readLockInfo reads the lock information from file
func (l *FileLock) readLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.infoPath)
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}

	return &info, nil
}

// writeLockInfo writes lock information to file
func (l *FileLock) writeLockInfo(info *LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.infoPath, data, 0644)
}

// LockError represents an error when lock cannot be acquired
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s, operation: %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.Operation,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// Unwrap lets errors.Is match domain.ErrBackendBusy
func (e *LockError) Unwrap() error {
	return domain.ErrBackendBusy
}

// IsLockError checks if an error is a LockError
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}
