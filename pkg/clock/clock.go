// Package clock implements the audio-master media clock.
package clock

import (
	"sync"
	"time"
)

// Cursor reports how much audio a device has actually played.
type Cursor interface {
	Played() time.Duration
	Playing() bool
}

// Clock answers "what time is it in the media". It is
//
//	Now = anchor + (cursor.Played() - base)
//
// where anchor and base are captured by Reset. Between two Resets Now never
// decreases; while the cursor is not playing it returns the last value.
type Clock struct {
	mu     sync.Mutex
	cursor Cursor
	anchor time.Duration
	base   time.Duration
	last   time.Duration
}

// New creates a clock anchored at zero. cursor may be nil, in which case the
// clock only moves on Reset.
func New(cursor Cursor) *Clock {
	c := &Clock{cursor: cursor}
	c.Reset(0)
	return c
}

// Reset re-anchors the clock. It may move the clock backwards (seek) or to
// zero (stop).
func (c *Clock) Reset(anchor time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.anchor = anchor
	c.last = anchor
	c.base = 0
	if c.cursor != nil {
		c.base = c.cursor.Played()
	}
}

// Now advances the clock from the cursor and returns it.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cursor == nil || !c.cursor.Playing() {
		return c.last
	}
	if v := c.anchor + c.cursor.Played() - c.base; v > c.last {
		c.last = v
	}
	return c.last
}

// Last returns the most recent value without consulting the cursor.
func (c *Clock) Last() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
