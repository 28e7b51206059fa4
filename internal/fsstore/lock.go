package fsstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// DefaultStaleThreshold is the age (spec.md §9's single config value,
// unifying the two different hard-coded 120s constants the source used)
// past which a lock or heartbeat is considered stale even if its pid is
// still alive.
const DefaultStaleThreshold = 120 * time.Second

// Lock is the JSON shape of a SessionLock/ExecutionLock file:
// {pid, timestamp, session_id, version}.
type Lock struct {
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Version   string    `json:"version"`
}

// IsProcessAlive reports whether pid identifies a running process, using
// the same FindProcess+Signal(0) technique the teacher's internal/loop.
// IsRunning and re-cinq-detergent's engine.IsProcessAlive both use.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// AcquireLock writes a lock file at path if no live lock already holds it.
// It returns (true, nil) on success, (false, nil) if a live peer holds the
// lock, and a non-nil error only on I/O failure. Acquisition is
// non-blocking, per spec.md §5.
func AcquireLock(path string, sessionID, version string) (bool, error) {
	var existing Lock
	err := ReadJSON(path, &existing)
	if err == nil && !lockIsStale(existing, DefaultStaleThreshold) {
		return false, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	lock := Lock{
		PID:       os.Getpid(),
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Version:   version,
	}
	if err := WriteJSON(path, lock); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseLock deletes the lock file at path if it is owned by our pid.
func ReleaseLock(path string) error {
	var lock Lock
	if err := ReadJSON(path, &lock); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if lock.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrIo, path, err)
	}
	return nil
}

// Heartbeat refreshes a lock file's timestamp in place, preserving the
// other fields. Called on a fixed cadence (default 30s) by long-running
// owners (Execution snapshots, Session locks).
func Heartbeat(path string) error {
	var lock Lock
	if err := ReadJSON(path, &lock); err != nil {
		return err
	}
	lock.Timestamp = time.Now().UTC()
	return WriteJSON(path, lock)
}

// lockIsStale reports whether a lock is stale: its pid is not running, or
// its timestamp is older than threshold.
func lockIsStale(lock Lock, threshold time.Duration) bool {
	if !IsProcessAlive(lock.PID) {
		return true
	}
	return time.Since(lock.Timestamp) > threshold
}

// LockInfo describes a stale lock found by FindStaleLocks.
type LockInfo struct {
	Path string
	Lock Lock
}

// FindStaleLocks scans dir (non-recursively) for *.lock files and returns
// the ones whose pid is not running or whose timestamp exceeds threshold.
func FindStaleLocks(dir string, threshold time.Duration) ([]LockInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrIo, dir, err)
	}

	var stale []LockInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lock" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		var lock Lock
		if err := ReadJSON(path, &lock); err != nil {
			continue
		}
		if lockIsStale(lock, threshold) {
			stale = append(stale, LockInfo{Path: path, Lock: lock})
		}
	}
	return stale, nil
}
