// Package ptyreg is the PTY Session Registry: durable PTY-backed terminal
// sessions that survive WebSocket disconnects, buffer recent output in a
// ring buffer for replay on reconnect, and multiplex output to multiple
// subscribers. Grounded on the creack/pty usage in
// other_examples/ac741188_johnfelixespinosa-agent-tui__pty.go.go
// (pty.StartWithSize, pty.Setsize, buffered reads), generalized from a
// TUI-embedded agent launcher into a standalone, reconnectable registry.
package ptyreg

import "sync"

// RingBuffer is a fixed-capacity byte buffer that overwrites its oldest
// content when full, preserving the logical write order on Bytes.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	pos  int
	full bool
}

// NewRingBuffer returns a ring buffer that holds at most capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Write appends p, overwriting the oldest bytes once the buffer fills.
func (r *RingBuffer) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := len(r.buf)
	if size == 0 {
		return
	}
	if len(p) >= size {
		copy(r.buf, p[len(p)-size:])
		r.pos = 0
		r.full = true
		return
	}
	for _, b := range p {
		r.buf[r.pos] = b
		r.pos++
		if r.pos == size {
			r.pos = 0
			r.full = true
		}
	}
}

// Bytes returns the buffered content in original write order.
func (r *RingBuffer) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]byte, r.pos)
		copy(out, r.buf[:r.pos])
		return out
	}
	size := len(r.buf)
	out := make([]byte, size)
	copy(out, r.buf[r.pos:])
	copy(out[size-r.pos:], r.buf[:r.pos])
	return out
}

// Len reports how many bytes are currently buffered.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.pos
}
