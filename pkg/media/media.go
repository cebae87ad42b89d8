// Package media defines the backend-neutral contract between the playback
// engine and a native demux/decode implementation.
//
// Every value obtained from a Container (packets, decoders, pictures) must be
// used from the goroutine that opened the container. The engine guarantees
// this by running exactly one worker per session.
package media

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNeedMore is returned by ReceiveFrame/ReceiveChunk when the decoder
	// needs another packet before it can produce output.
	ErrNeedMore = errors.New("media: decoder needs more input")
	// ErrNoStreams is returned when a container has neither a video nor an
	// audio stream that can be decoded.
	ErrNoStreams = errors.New("media: no decodable stream")
	// ErrNotSeekable is returned by Seek on live or otherwise unseekable input.
	ErrNotSeekable = errors.New("media: stream is not seekable")
)

// StreamKind identifies which pipeline a packet belongs to.
type StreamKind int

const (
	KindOther StreamKind = iota
	KindVideo
	KindAudio
)

func (k StreamKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// VideoInfo describes the selected video stream.
type VideoInfo struct {
	Index    int
	Width    int
	Height   int
	FPS      float64
	Codec    string
	Decoder  string
	Hardware bool
}

// AudioInfo describes the selected audio stream.
type AudioInfo struct {
	Index      int
	SampleRate int
	Channels   int
	Codec      string
}

// Info is fixed for the lifetime of an open container.
type Info struct {
	URL      string
	Format   string
	Duration time.Duration // zero when unknown (live input)
	Seekable bool
	Video    *VideoInfo
	Audio    *AudioInfo
}

func (i Info) String() string {
	s := fmt.Sprintf("%s [%s] duration=%s seekable=%t", i.URL, i.Format, i.Duration, i.Seekable)
	if i.Video != nil {
		s += fmt.Sprintf(" video=%s/%s %dx%d@%.2f", i.Video.Codec, i.Video.Decoder, i.Video.Width, i.Video.Height, i.Video.FPS)
	}
	if i.Audio != nil {
		s += fmt.Sprintf(" audio=%s %dHz/%dch", i.Audio.Codec, i.Audio.SampleRate, i.Audio.Channels)
	}
	return s
}

// Locator is a resolved input ready to be handed to a Backend.
type Locator struct {
	URL     string
	Network bool
	// Options are passed verbatim to the demuxer (e.g. rw_timeout, reconnect).
	Options map[string]string
}

// Backend opens containers.
type Backend interface {
	Open(loc Locator) (Container, error)
}

// Container is an open demuxer with at most one selected video and one
// selected audio stream.
type Container interface {
	Info() Info
	// ReadPacket returns the next packet of a selected stream. It returns
	// io.EOF at the end of input.
	ReadPacket() (Packet, error)
	// Seek moves to the nearest keyframe at or before target.
	Seek(target time.Duration) error
	OpenVideo() (VideoDecoder, error)
	// OpenAudio opens the audio decoder together with a resampler producing
	// interleaved signed 16-bit stereo at the source sample rate.
	OpenAudio() (AudioDecoder, error)
	Close() error
}

// Packet is a compressed unit of one stream. Release must be called exactly
// once.
type Packet interface {
	Kind() StreamKind
	Release()
}

// Picture is a decoded video frame owned by its decoder. It stays valid until
// the next ReceiveFrame, Flush or Close call on that decoder.
type Picture interface {
	PTS() time.Duration
	Size() (width, height int)
	// Convert writes the picture as packed RGBA into dst, which must hold
	// at least Width*Height*4 bytes.
	Convert(dst []byte) error
}

// VideoDecoder decodes packets of the selected video stream. SendPacket(nil)
// signals the end of input: ReceiveFrame then returns the frames still held
// for reordering, followed by io.EOF.
type VideoDecoder interface {
	SendPacket(Packet) error
	ReceiveFrame() (Picture, error)
	Flush()
	Close() error
}

// AudioChunk is resampled PCM. Data is only valid until the next
// ReceiveChunk call.
type AudioChunk struct {
	PTS      time.Duration
	Duration time.Duration
	Data     []byte
}

// AudioDecoder decodes and resamples packets of the selected audio stream.
// SendPacket(nil) drains it like VideoDecoder, including the resampler tail.
type AudioDecoder interface {
	SendPacket(Packet) error
	ReceiveChunk() (AudioChunk, error)
	Flush()
	Close() error
}
