// ABOUTME: Thread-safe byte ring buffer between a writer and an audio callback
// ABOUTME: Signals freed space so writers can block without polling
package output

import "sync"

// RingBuffer provides thread-safe circular buffer for interleaved frames
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int // bytes currently in buffer
	mu       sync.Mutex
	space    chan struct{}
}

// NewRingBuffer creates a ring buffer with given capacity (in bytes)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
		space:  make(chan struct{}, 1),
	}
}

// Write adds as much of p as fits and returns the number of bytes taken
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(p), rb.size-rb.count)
	first := min(n, rb.size-rb.writePos)
	copy(rb.buffer[rb.writePos:], p[:first])
	copy(rb.buffer, p[first:n])
	rb.writePos = (rb.writePos + n) % rb.size
	rb.count += n
	return n
}

// Read fills p from the buffer and zero-fills whatever is missing.
// It returns the number of real bytes read.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	n := min(len(p), rb.count)
	first := min(n, rb.size-rb.readPos)
	copy(p, rb.buffer[rb.readPos:rb.readPos+first])
	copy(p[first:n], rb.buffer)
	rb.readPos = (rb.readPos + n) % rb.size
	rb.count -= n
	rb.mu.Unlock()

	// Zero-fill remaining if underrun
	clear(p[n:])

	if n > 0 {
		select {
		case rb.space <- struct{}{}:
		default:
		}
	}
	return n
}

// Len returns the number of bytes waiting to be read
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free bytes
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// Space is signalled after a read frees room
func (rb *RingBuffer) Space() <-chan struct{} {
	return rb.space
}
