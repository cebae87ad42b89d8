// Package sdlout connects the playback engine to SDL: an audio device built
// on SDL's queue API and a texture presenter for decoded frames.
package sdlout

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/veandco/go-sdl2/sdl"

	"flow-player/pkg/audio"
)

// Device queues PCM on an SDL audio device. The played cursor is derived from
// the bytes handed to SDL minus what is still queued or was cleared.
type Device struct {
	mu       sync.Mutex
	id       sdl.AudioDeviceID
	format   audio.Format
	capacity int
	queued   int64
	cleared  int64
	played   int64
	playing  bool
	closed   bool
	log      zerolog.Logger
}

// Opener opens the named output ("" selects the default device).
func Opener(name string, log zerolog.Logger) audio.Opener {
	return func(f audio.Format, buffer time.Duration) (audio.Device, error) {
		return OpenDevice(name, f, buffer, log)
	}
}

// OpenDevice opens a paused S16 device. SDL must already be initialised with
// INIT_AUDIO.
func OpenDevice(name string, f audio.Format, buffer time.Duration, log zerolog.Logger) (*Device, error) {
	want := &sdl.AudioSpec{
		Freq:     int32(f.SampleRate),
		Format:   sdl.AUDIO_S16LSB,
		Channels: uint8(f.Channels),
		Samples:  1024,
	}
	var got sdl.AudioSpec
	id, err := sdl.OpenAudioDevice(name, false, want, &got, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device %q: %w", name, err)
	}

	d := &Device{
		id:       id,
		format:   f,
		capacity: f.Bytes(buffer),
		log:      log.With().Str("component", "sdl-audio").Logger(),
	}
	d.log.Info().
		Int32("freq", got.Freq).
		Uint8("channels", got.Channels).
		Uint16("samples", got.Samples).
		Dur("buffer", buffer).
		Msg("Audio device opened")
	return d, nil
}

func (d *Device) Format() audio.Format { return d.format }

// updateLocked refreshes the played counter; it never moves backwards.
func (d *Device) updateLocked() int {
	q := int(sdl.GetQueuedAudioSize(d.id))
	if p := d.queued - d.cleared - int64(q); p > d.played {
		d.played = p
	}
	return q
}

func (d *Device) Write(p []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	free := d.capacity - d.updateLocked()
	n := min(len(p), free)
	n -= n % d.format.FrameSize()
	if n <= 0 {
		return 0
	}
	if err := sdl.QueueAudio(d.id, p[:n]); err != nil {
		d.log.Warn().Err(err).Msg("QueueAudio failed")
		return 0
	}
	d.queued += int64(n)
	return n
}

func (d *Device) Buffered() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return d.format.Duration(int64(d.updateLocked()))
}

func (d *Device) Capacity() time.Duration {
	return d.format.Duration(int64(d.capacity))
}

func (d *Device) Played() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.updateLocked()
	}
	return d.format.Duration(d.played)
}

func (d *Device) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *Device) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.playing {
		return
	}
	sdl.PauseAudioDevice(d.id, false)
	d.playing = true
}

func (d *Device) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.playing {
		return
	}
	sdl.PauseAudioDevice(d.id, true)
	d.playing = false
}

func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	sdl.PauseAudioDevice(d.id, true)
	d.playing = false
	// paused, so the queue can no longer shrink underneath us
	q := d.updateLocked()
	sdl.ClearQueuedAudio(d.id)
	d.cleared += int64(q)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.updateLocked()
	d.closed = true
	d.playing = false
	sdl.CloseAudioDevice(d.id)
	d.log.Debug().Dur("played", d.format.Duration(d.played)).Msg("Audio device closed")
	return nil
}
