package ptyreg

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// ConnectionState is a PtySession's current relationship to a subscribing
// client.
type ConnectionState string

const (
	StateConnected    ConnectionState = "Connected"
	StateDisconnected ConnectionState = "Disconnected"
	StateClosing      ConnectionState = "Closing"
)

// DefaultRingBufferSize is the default ring buffer capacity (1 MiB), per
// spec.md §4.2.
const DefaultRingBufferSize = 1 << 20

// readChunkSize is the size of each blocking PTY read, per spec.md §4.2.
const readChunkSize = 4096

// Session is a live, PTY-hosted terminal whose lifetime is decoupled from
// any single WebSocket connection.
type Session struct {
	ID         string
	TerminalID string
	Cols       int
	Rows       int
	Cwd        string

	cmd  *exec.Cmd
	ptmx *os.File

	ring *RingBuffer

	mu          sync.Mutex
	state       ConnectionState
	subscribers map[chan []byte]struct{}
	lastActive  time.Time

	exited   bool
	exitErr  error
	exitOnce sync.Once
	done     chan struct{}
}

// subscriberBuffer bounds each subscriber's channel. While a slow
// subscriber's buffer is full, new chunks are dropped for it rather than
// blocking the PTY reader; the subscriber itself stays registered.
const subscriberBuffer = 256

// newSession spawns shellCmd inside a PTY of the given size and starts its
// reader goroutine. The caller supplies the command so Registry controls
// the shell/cwd resolution.
func newSession(terminalID string, cols, rows int, cwd string, cmd *exec.Cmd) (*Session, error) {
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          uuid.NewString(),
		TerminalID:  terminalID,
		Cols:        cols,
		Rows:        rows,
		Cwd:         cwd,
		cmd:         cmd,
		ptmx:        ptmx,
		ring:        NewRingBuffer(DefaultRingBufferSize),
		state:       StateConnected,
		subscribers: make(map[chan []byte]struct{}),
		lastActive:  time.Now().UTC(),
		done:        make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// readLoop is the session's single dedicated reader goroutine: it
// consumes PTY output in readChunkSize chunks, appends each chunk to the
// ring buffer, and publishes it to every live subscriber.
func (s *Session) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.ring.Write(chunk)
			s.publish(chunk)
		}
		if err != nil {
			s.finish(err)
			return
		}
	}
}

// publish fans a chunk out to every subscriber, dropping it for any whose
// buffer is full rather than blocking the reader.
func (s *Session) publish(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- chunk:
		default:
		}
	}
}

func (s *Session) finish(err error) {
	s.exitOnce.Do(func() {
		s.mu.Lock()
		s.exited = true
		s.exitErr = err
		for ch := range s.subscribers {
			close(ch)
		}
		s.subscribers = make(map[chan []byte]struct{})
		s.mu.Unlock()
		close(s.done)
	})
}

// Subscribe registers a new output receiver and transitions the session
// to Connected. The returned cancel func must be called to release it.
func (s *Session) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.state = StateConnected
	s.lastActive = time.Now().UTC()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		if len(s.subscribers) == 0 && s.state != StateClosing {
			s.state = StateDisconnected
			s.lastActive = time.Now().UTC()
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Replay returns the full ring buffer contents, for the reconnect-replay
// frame.
func (s *Session) Replay() []byte {
	return s.ring.Bytes()
}

// Write sends input bytes to the PTY. Guarded by a mutex since multiple
// subscribers may write concurrently (spec.md §4.2).
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ptmx.Write(p)
}

// Resize calls the PTY's size API. Output order relative to in-flight
// reads is preserved because the reader goroutine never blocks on this
// call.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	s.Cols, s.Rows = cols, rows
	s.mu.Unlock()
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// State reports the session's current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkClosing flags the session as refusing further reconnects.
func (s *Session) MarkClosing() {
	s.mu.Lock()
	s.state = StateClosing
	s.mu.Unlock()
}

// IdleSince reports the time of the session's last subscribe or
// unsubscribe; while the session is Disconnected, that is when its last
// subscriber left.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SubscriberCount reports the number of currently attached subscribers.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Close terminates the child process: SIGTERM, and lets readLoop's EOF
// drive cleanup. Safe to call more than once.
func (s *Session) Close() error {
	s.MarkClosing()
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill force-terminates the child process (SIGKILL).
func (s *Session) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}

// Wait blocks until the child process has exited and the reader has
// observed EOF.
func (s *Session) Wait() error {
	<-s.done
	return s.exitErr
}
