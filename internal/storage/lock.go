package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ReleaseLock is the lock file written while a release is being built, so
// that two runs never name against the same parent release.
type ReleaseLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	LoopType  string    `json:"loop_type"`
}

// ErrLocked is returned when another live process holds the release lock.
type ErrLocked struct {
	Lock ReleaseLock
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("another release run is in progress (PID %d on %s, %s, started %s)",
		e.Lock.PID, e.Lock.Hostname, e.Lock.LoopType, e.Lock.StartedAt.Format(time.RFC3339))
}

// LockPath returns the release lock file for dbPath: .atlas/.release-lock
// inside a project, otherwise a sibling of the database file. An in-memory
// database has no lock.
func LockPath(dbPath string) (string, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return "", nil
	}
	if root, err := GetProjectRoot(dbPath); err == nil {
		return filepath.Join(root, AtlasDir, ".release-lock"), nil
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("invalid database path: %w", err)
	}
	return abs + ".release-lock", nil
}

// AcquireReleaseLock creates the lock file at lockPath. A lock left by a
// process that no longer exists is overwritten. An empty lockPath is a
// no-op.
func AcquireReleaseLock(lockPath, loopType string) error {
	if lockPath == "" {
		return nil
	}

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing ReleaseLock
		if json.Unmarshal(data, &existing) == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return &ErrLocked{Lock: existing}
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}
	lock := ReleaseLock{
		Holder:    "motifatlas",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		LoopType:  loopType,
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return fmt.Errorf("failed to create release lock: %w", err)
	}
	return nil
}

// ReleaseReleaseLock removes the lock file.
func ReleaseReleaseLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove release lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given hostname.
// Returns true if the process is alive, false otherwise.
func isProcessAlive(pid int, hostname string) bool {
	// Check if this is localhost
	currentHost, err := os.Hostname()
	if err != nil {
		// Can't check hostname, assume remote/alive
		return true
	}

	if !strings.EqualFold(hostname, currentHost) {
		// Remote host - can't check, assume alive
		return true
	}

	// Check if PID exists on localhost (Unix: kill -0)
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true // Process exists
	}

	// Check for EPERM (process exists but we don't have permission)
	// This is a fail-safe: if we can't verify, assume alive
	if err == syscall.EPERM {
		return true
	}

	return false // Process doesn't exist
}
