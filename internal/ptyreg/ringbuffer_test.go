package ptyreg

import (
	"bytes"
	"testing"
)

func TestRingBufferUnderCapacity(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Write([]byte("hello"))
	if got := rb.Bytes(); !bytes.Equal(got, []byte("hello")) {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if rb.Len() != 5 {
		t.Errorf("Len() = %d, want 5", rb.Len())
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte("abcd"))
	rb.Write([]byte("ef"))
	// capacity 4, wrote "abcdef" total -> last 4 bytes "cdef" in order
	if got := rb.Bytes(); !bytes.Equal(got, []byte("cdef")) {
		t.Errorf("got %q, want %q", got, "cdef")
	}
}

func TestRingBufferWriteLargerThanCapacity(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte("abcdefgh"))
	if got := rb.Bytes(); !bytes.Equal(got, []byte("efgh")) {
		t.Errorf("got %q, want %q", got, "efgh")
	}
}

func TestRingBufferPreservesOrderAcrossWrapping(t *testing.T) {
	rb := NewRingBuffer(5)
	for _, chunk := range []string{"12", "34", "56", "78"} {
		rb.Write([]byte(chunk))
	}
	// total written "12345678", capacity 5 -> last 5 bytes "45678"
	if got := rb.Bytes(); !bytes.Equal(got, []byte("45678")) {
		t.Errorf("got %q, want %q", got, "45678")
	}
}
