package audio

import "sync"

// Ring is a bounded FIFO of PCM bytes. Writes never block: whatever does not
// fit is discarded from the tail of the write (newest-overflow discard), so a
// full ring keeps the oldest queued audio intact.
type Ring struct {
	mu        sync.Mutex
	buf       []byte
	head      int
	size      int
	align     int
	discarded int64
}

// NewRing creates a ring holding at most capacity bytes. Accepted writes are
// truncated to a multiple of align so a sample is never split.
func NewRing(capacity, align int) *Ring {
	if align <= 0 {
		align = 1
	}
	capacity -= capacity % align
	return &Ring{buf: make([]byte, capacity), align: align}
}

// Write queues as much of p as fits and returns the number of bytes accepted.
func (r *Ring) Write(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	free := len(r.buf) - r.size
	n := len(p)
	if n > free {
		n = free - free%r.align
	}
	r.discarded += int64(len(p) - n)
	if n == 0 {
		return 0
	}

	tail := (r.head + r.size) % len(r.buf)
	first := copy(r.buf[tail:], p[:n])
	copy(r.buf, p[first:n])
	r.size += n
	return n
}

// Skip drains up to n bytes without copying them anywhere.
func (r *Ring) Skip(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return 0
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return n
}

// Clear drops everything queued.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.head = 0
	r.size = 0
	r.mu.Unlock()
}

// Len is the number of queued bytes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap is the ring capacity in bytes.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Discarded is the total number of bytes rejected because the ring was full.
func (r *Ring) Discarded() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discarded
}
