// Package audio holds the playback-side half of the audio pipeline: the fixed
// output format, the bounded sample buffer and the Device contract that the
// audio-master clock reads its cursor from.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Format is always interleaved signed 16-bit little endian.
type Format struct {
	SampleRate int
	Channels   int
}

// S16Stereo is the output format produced by every audio decoder.
func S16Stereo(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 2}
}

// FrameSize is the size in bytes of one sample for all channels.
func (f Format) FrameSize() int {
	return 2 * f.Channels
}

// BytesPerSecond is the device consumption rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration converts a byte count into playback time.
func (f Format) Duration(n int64) time.Duration {
	bps := int64(f.BytesPerSecond())
	if bps <= 0 {
		return 0
	}
	return time.Duration(n * int64(time.Second) / bps)
}

// Bytes converts playback time into a frame-aligned byte count.
func (f Format) Bytes(d time.Duration) int {
	fs := f.FrameSize()
	if fs <= 0 {
		return 0
	}
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * fs
}

// ApplyGain scales S16 samples in place. A gain of 1 leaves p untouched and a
// gain of 0 produces silence.
func ApplyGain(p []byte, gain float64) {
	if gain >= 1 {
		return
	}
	if gain <= 0 {
		clear(p)
		return
	}
	for i := 0; i+1 < len(p); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(p[i:])))
		v := math.Round(s * gain)
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(v)))
	}
}
