package ptyreg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionClosing is returned by Reconnect when the target session has
// been marked Closing and refuses further reconnects, per spec.md §4.2.
var ErrSessionClosing = errors.New("ptyreg: session is closing")

// ErrSessionNotFound is returned by Get/Reconnect/Resize/Write when no
// session matches the given ID.
var ErrSessionNotFound = errors.New("ptyreg: session not found")

// Registry allocates, drives, and tracks PtySessions. It is safe for
// concurrent creation, lookup, and removal.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by session ID

	idleTimeout time.Duration
	stopSweep   chan struct{}
	sweepOnce   sync.Once
}

// NewRegistry returns a Registry whose idle sweeper removes sessions that
// have been Disconnected for longer than idleTimeout.
func NewRegistry(idleTimeout time.Duration) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		stopSweep:   make(chan struct{}),
	}
}

// shellCommand resolves the interactive shell to spawn: $SHELL on Unix,
// cmd.exe on Windows, per spec.md §4.2.
func shellCommand(cwd string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd.exe")
	} else {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		cmd = exec.Command(shell)
	}
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = os.Environ()
	return cmd
}

// Create spawns a new PTY-hosted shell for terminalID and registers it.
// Returns the session, whose ID is what clients use to reconnect.
func (r *Registry) Create(terminalID string, cols, rows int, cwd string) (*Session, error) {
	cmd := shellCommand(cwd)
	s, err := newSession(terminalID, cols, rows, cwd, cmd)
	if err != nil {
		return nil, fmt.Errorf("ptyreg: spawn %s: %w", terminalID, err)
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Reconnect verifies the session exists and isn't Closing, then returns it
// so the caller can flush its ring buffer as a replay frame before
// resuming live streaming, per spec.md §4.2.
func (r *Registry) Reconnect(sessionID string) (*Session, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.State() == StateClosing {
		return nil, ErrSessionClosing
	}
	return s, nil
}

// Resize applies a new terminal size to a session.
func (r *Registry) Resize(sessionID string, cols, rows int) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	return s.Resize(cols, rows)
}

// HandleRawFrame dispatches a parsed client frame, or raw bytes if the
// frame wasn't recognized — per spec.md §4.2, unrecognized frames are
// written straight to the PTY to keep escape sequences transparent.
func (r *Registry) HandleRawFrame(sessionID string, raw []byte) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	frame, ok := ParseClientFrame(raw)
	if !ok {
		_, err := s.Write(raw)
		return err
	}
	switch frame.Type {
	case FrameResize:
		return s.Resize(frame.Cols, frame.Rows)
	case FrameInput:
		_, err := s.Write([]byte(frame.Data))
		return err
	default:
		_, err := s.Write(raw)
		return err
	}
}

// Remove deletes a session from the registry without touching the child
// process (callers should Close it first).
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Close terminates a session's child process and removes it from the
// registry.
func (r *Registry) Close(sessionID string) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	err = s.Close()
	r.Remove(sessionID)
	return err
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweepGracePeriod is how long Shutdown waits after SIGTERM before
// force-killing a still-running child.
const sweepGracePeriod = 3 * time.Second

// StartSweeper launches the background goroutine that removes sessions
// Disconnected for longer than the registry's idle timeout. Call the
// returned stop func to halt it.
func (r *Registry) StartSweeper(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweepIdle()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (r *Registry) sweepIdle() {
	now := time.Now().UTC()
	r.mu.Lock()
	var stale []string
	for id, s := range r.sessions {
		if s.State() == StateDisconnected && now.Sub(s.IdleSince()) > r.idleTimeout {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.Close(id)
	}
}

// Shutdown sends SIGTERM to every live child, waits up to
// sweepGracePeriod, then SIGKILLs anything still running, per spec.md
// §4.2's "on shutdown, every live child is sent SIGTERM."
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	deadline := time.Now().Add(sweepGracePeriod)
	for _, s := range sessions {
		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-s.done:
			timer.Stop()
		case <-timer.C:
			s.Kill()
		}
	}
}

// NewTerminalID generates a fresh terminal identifier for first-time
// upgrades that don't name one explicitly.
func NewTerminalID() string {
	return uuid.NewString()
}
