package audio

import (
	"sync"
	"time"
)

// Device is a playback sink that drains queued PCM in real time. Played is
// the authoritative cursor for the audio-master clock: the total playback
// time the device has actually consumed since it was opened. Clearing or
// stopping the device never moves Played backwards.
//
// Write must never block; it returns how many bytes were accepted.
type Device interface {
	Format() Format
	Write(p []byte) int
	Buffered() time.Duration
	Capacity() time.Duration
	Played() time.Duration
	Playing() bool
	Play()
	Pause()
	// Stop pauses the device and drops everything queued.
	Stop()
	Close() error
}

// Opener opens a device for the given format that can hold about buffer worth
// of queued audio. The engine opens one device per session.
type Opener func(f Format, buffer time.Duration) (Device, error)

// NullDevice discards audio at real-time rate. It is used when no audio
// hardware is available and in tests, where the time source can be replaced.
type NullDevice struct {
	mu      sync.Mutex
	format  Format
	ring    *Ring
	playing bool
	last    time.Time
	carry   time.Duration
	played  int64
	closed  bool
	now     func() time.Time
}

// NewNullDevice creates a stopped device that can hold capacity worth of audio.
func NewNullDevice(f Format, capacity time.Duration) *NullDevice {
	return &NullDevice{
		format: f,
		ring:   NewRing(f.Bytes(capacity), f.FrameSize()),
		now:    time.Now,
	}
}

// NullOpener returns an Opener producing NullDevices.
func NullOpener() Opener {
	return func(f Format, buffer time.Duration) (Device, error) {
		return NewNullDevice(f, buffer), nil
	}
}

// SetTimeSource replaces the wall clock. Intended for tests.
func (d *NullDevice) SetTimeSource(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.last = now()
	d.mu.Unlock()
}

func (d *NullDevice) drainLocked() {
	if !d.playing {
		return
	}
	t := d.now()
	elapsed := t.Sub(d.last) + d.carry
	d.last = t
	if elapsed <= 0 {
		d.carry = 0
		return
	}
	want := d.format.Bytes(elapsed)
	d.carry = elapsed - d.format.Duration(int64(want))
	got := d.ring.Skip(want)
	d.played += int64(got)
	if got < want {
		// underrun: the time without data is not played time
		d.carry = 0
	}
}

func (d *NullDevice) Format() Format { return d.format }

func (d *NullDevice) Write(p []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	d.drainLocked()
	return d.ring.Write(p)
}

func (d *NullDevice) Buffered() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainLocked()
	return d.format.Duration(int64(d.ring.Len()))
}

func (d *NullDevice) Capacity() time.Duration {
	return d.format.Duration(int64(d.ring.Cap()))
}

func (d *NullDevice) Played() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainLocked()
	return d.format.Duration(d.played)
}

func (d *NullDevice) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *NullDevice) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing || d.closed {
		return
	}
	d.playing = true
	d.last = d.now()
	d.carry = 0
}

func (d *NullDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainLocked()
	d.playing = false
}

func (d *NullDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainLocked()
	d.playing = false
	d.ring.Clear()
}

// Discarded reports the overflow bytes rejected so far.
func (d *NullDevice) Discarded() int64 {
	return d.ring.Discarded()
}

func (d *NullDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	d.closed = true
	d.ring.Clear()
	return nil
}

// SilentDevice has no audio at all; its cursor is wall time while playing.
// Sessions without an audio stream use it so the clock still advances.
type SilentDevice struct {
	mu      sync.Mutex
	playing bool
	since   time.Time
	acc     time.Duration
	now     func() time.Time
}

func NewSilentDevice() *SilentDevice {
	return &SilentDevice{now: time.Now}
}

// SetTimeSource replaces the wall clock. Intended for tests.
func (d *SilentDevice) SetTimeSource(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

func (d *SilentDevice) Format() Format          { return Format{} }
func (d *SilentDevice) Write(p []byte) int      { return 0 }
func (d *SilentDevice) Buffered() time.Duration { return 0 }
func (d *SilentDevice) Capacity() time.Duration { return 0 }

func (d *SilentDevice) Played() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		return d.acc + d.now().Sub(d.since)
	}
	return d.acc
}

func (d *SilentDevice) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *SilentDevice) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		d.playing = true
		d.since = d.now()
	}
}

func (d *SilentDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		d.acc += d.now().Sub(d.since)
		d.playing = false
	}
}

func (d *SilentDevice) Stop()        { d.Pause() }
func (d *SilentDevice) Close() error { d.Pause(); return nil }
