// Package buffer provides the byte ring buffer that accumulates raw modem
// reads between run ticks.
//
// The buffer is the only object in the library shared between threads: the
// host may feed bytes from its reader thread while the run loop peeks and
// flushes from another.  All operations serialise on an internal lock.
package buffer

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrFull indicates an enqueue would exceed the buffer capacity.
	// The caller must discard the chunk.
	ErrFull = errors.New("buffer full")
	// ErrEmpty indicates the buffer holds no data.
	ErrEmpty = errors.New("buffer empty")
	// ErrShort indicates fewer bytes are buffered than requested.
	ErrShort = errors.New("not enough buffered data")
)

// Ring is a fixed-capacity byte FIFO.
type Ring struct {
	mu     sync.Mutex
	data   []byte
	rindex int
	windex int
	size   int
}

// New creates a Ring with the given capacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		panic("buffer: capacity must be positive")
	}
	return &Ring{data: make([]byte, capacity)}
}

// Capacity returns the fixed capacity of the ring.
func (r *Ring) Capacity() int {
	return len(r.data)
}

// Size returns the number of bytes currently buffered.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Enqueue appends data to the ring, wrapping as required.
// The ring is unchanged and ErrFull returned if the data does not fit.
func (r *Ring) Enqueue(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size+len(data) > len(r.data) {
		return ErrFull
	}
	n := copy(r.data[r.windex:], data)
	if n < len(data) {
		copy(r.data, data[n:])
	}
	r.windex = (r.windex + len(data)) % len(r.data)
	r.size += len(data)
	return nil
}

// Peek copies the entire logical content into dst in FIFO order without
// consuming it, and returns the number of bytes copied.  dst must be at
// least Size() bytes long; a dst of Capacity() bytes always suffices.
func (r *Ring) Peek(dst []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return 0, ErrEmpty
	}
	if len(dst) < r.size {
		return 0, ErrShort
	}
	n := copy(dst, r.data[r.rindex:min(r.rindex+r.size, len(r.data))])
	if n < r.size {
		copy(dst[n:], r.data[:r.size-n])
	}
	return r.size, nil
}

// Dequeue copies exactly len(dst) bytes out of the ring and consumes them.
func (r *Ring) Dequeue(dst []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(dst) {
		return ErrShort
	}
	n := copy(dst, r.data[r.rindex:min(r.rindex+len(dst), len(r.data))])
	if n < len(dst) {
		copy(dst[n:], r.data[:len(dst)-n])
	}
	r.rindex = (r.rindex + len(dst)) % len(r.data)
	r.size -= len(dst)
	return nil
}

// Flush consumes n bytes without copying them out.
func (r *Ring) Flush(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < n {
		return ErrShort
	}
	r.rindex = (r.rindex + n) % len(r.data)
	r.size -= n
	return nil
}

// Reset discards all buffered data.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rindex = 0
	r.windex = 0
	r.size = 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
