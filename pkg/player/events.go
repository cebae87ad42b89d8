package player

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies a telemetry event.
type EventKind int

const (
	EventPositionChanged EventKind = iota
	EventEndReached
	EventStopped
	EventSeeked
	EventSeekRejected
	EventPaused
	EventPlaying
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPositionChanged:
		return "position_changed"
	case EventEndReached:
		return "end_reached"
	case EventStopped:
		return "stopped"
	case EventSeeked:
		return "seeked"
	case EventSeekRejected:
		return "seek_rejected"
	case EventPaused:
		return "paused"
	case EventPlaying:
		return "playing"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is published by the session worker. Position is the clock value at
// the time of the event; SeekID is set for Seeked and SeekRejected; Err only
// for EventError. Epoch is the epoch stamped on frames the session delivers
// from now on.
type Event struct {
	Kind     EventKind
	Session  string
	Position time.Duration
	SeekID   uint64
	Epoch    uint64
	Err      error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%s: %v)", e.Kind, e.Session, e.Err)
	}
	return fmt.Sprintf("%s(%s @%s)", e.Kind, e.Session, e.Position)
}

// eventBus is a bounded, never-blocking event channel. Events that do not fit
// are dropped and counted.
type eventBus struct {
	ch      chan Event
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func newEventBus(size int) *eventBus {
	return &eventBus{ch: make(chan Event, size)}
}

func (b *eventBus) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
