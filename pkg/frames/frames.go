// Package frames hands converted video frames from the decode worker to the
// render thread without ever blocking the worker.
package frames

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is a packed RGBA picture. Frames taken from a Queue belong to the
// receiver until Release is called; the worker never touches Pix in the
// meantime.
type Frame struct {
	Width  int
	Height int
	PTS    time.Duration
	// Epoch is the id of the last seek applied before this frame was decoded,
	// or of the session start when there was none. It never decreases across
	// sessions of one player.
	Epoch uint64
	Pix   []byte

	pool *Queue
}

// Stride is the number of bytes per row.
func (f *Frame) Stride() int { return f.Width * 4 }

// Release hands the buffer back to its queue. It is a no-op for frames that
// do not come from a queue (e.g. grabbed frames).
func (f *Frame) Release() {
	if f == nil || f.pool == nil {
		return
	}
	f.pool.recycle(f)
}

// Image wraps the pixels without copying.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride(),
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

func (f *Frame) size(w, h int) {
	f.Width = w
	f.Height = h
	n := w * h * 4
	if cap(f.Pix) < n {
		f.Pix = make([]byte, n)
	}
	f.Pix = f.Pix[:n]
}

// Stats counts frames through a Queue.
type Stats struct {
	Published uint64
	// Dropped counts frames that could not be delivered: either no buffer was
	// free (the render side still holds them) or the channel was full.
	Dropped uint64
}

// Queue is a bounded frame channel backed by a fixed pool of depth+1
// buffers. Both Acquire and Publish are non-blocking; under backpressure the
// newest frame is dropped.
type Queue struct {
	out  chan *Frame
	free chan *Frame

	published atomic.Uint64
	dropped   atomic.Uint64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewQueue creates a queue delivering at most depth undelivered frames.
func NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	q := &Queue{
		out:  make(chan *Frame, depth),
		free: make(chan *Frame, depth+1),
	}
	for i := 0; i < depth+1; i++ {
		q.free <- &Frame{pool: q}
	}
	return q
}

// C is the receive side for the render thread.
func (q *Queue) C() <-chan *Frame { return q.out }

// Acquire returns a free buffer sized for w x h, or nil when every buffer is
// still owned by the render side.
func (q *Queue) Acquire(w, h int) *Frame {
	select {
	case f := <-q.free:
		f.size(w, h)
		return f
	default:
		q.dropped.Add(1)
		return nil
	}
}

// Publish delivers f. When the channel is full f is recycled and false is
// returned.
func (q *Queue) Publish(f *Frame) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.recycle(f)
		return false
	}
	select {
	case q.out <- f:
		q.published.Add(1)
		return true
	default:
		q.dropped.Add(1)
		q.recycle(f)
		return false
	}
}

// Discard recycles a frame that was acquired but will not be published.
func (q *Queue) Discard(f *Frame) {
	q.recycle(f)
}

func (q *Queue) recycle(f *Frame) {
	select {
	case q.free <- f:
	default:
	}
}

// Stats returns delivery counters.
func (q *Queue) Stats() Stats {
	return Stats{Published: q.published.Load(), Dropped: q.dropped.Load()}
}

// Close closes the receive channel. Pending frames can still be drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.out)
		q.mu.Unlock()
	})
}
