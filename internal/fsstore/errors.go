package fsstore

import "errors"

// Sentinel error kinds, checked with errors.Is. These are the semantic
// kinds of spec.md's error table: NotFound, Corrupt, Locked, Io, Serialize.
var (
	ErrNotFound  = errors.New("fsstore: not found")
	ErrCorrupt   = errors.New("fsstore: corrupt json")
	ErrLocked    = errors.New("fsstore: locked by another process")
	ErrIo        = errors.New("fsstore: io error")
	ErrSerialize = errors.New("fsstore: serialize error")
)
