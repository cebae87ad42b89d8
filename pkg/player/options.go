package player

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"flow-player/pkg/media"
	"flow-player/pkg/video"
)

// Options tune a Player. Zero fields are replaced by DefaultOptions values.
type Options struct {
	// Pacing is the render/sleep/drop table applied to every video frame.
	Pacing video.Thresholds

	// EndEpsilon is how close to the duration the clock must get while
	// running before the session is considered finished.
	EndEpsilon time.Duration
	// PositionInterval is the smallest clock movement that republishes
	// Position (100ms is about 10 updates per second).
	PositionInterval time.Duration

	// AudioBuffer is the capacity requested from the audio device.
	AudioBuffer time.Duration
	// HighWater is the device fill ratio above which the worker waits for
	// the device to drain before reading more input.
	HighWater float64

	// FrameQueue is the number of undelivered frames the render side may
	// fall behind by before frames are dropped.
	FrameQueue  int
	EventBuffer int

	// PausePoll bounds how long a paused worker parks before re-checking
	// its intents.
	PausePoll   time.Duration
	JoinTimeout time.Duration
	GrabTimeout time.Duration

	// MaxDecodeErrors consecutive decode failures in one pipeline end the
	// session with ErrDecodeStalled.
	MaxDecodeErrors int

	// Resolve turns the path given to Play into something the backend can
	// open. It runs on the session worker. The default treats the path as a
	// local file.
	Resolve func(ctx context.Context, path string) (media.Locator, error)

	Logger zerolog.Logger
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Pacing:           video.DefaultThresholds(),
		EndEpsilon:       2 * time.Second,
		PositionInterval: 100 * time.Millisecond,
		AudioBuffer:      300 * time.Millisecond,
		HighWater:        0.75,
		FrameQueue:       2,
		EventBuffer:      64,
		PausePoll:        50 * time.Millisecond,
		JoinTimeout:      500 * time.Millisecond,
		GrabTimeout:      5 * time.Second,
		MaxDecodeErrors:  50,
		Resolve:          resolveLocal,
		Logger:           zerolog.Nop(),
	}
}

func resolveLocal(_ context.Context, path string) (media.Locator, error) {
	return media.Locator{URL: path}, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Pacing == (video.Thresholds{}) {
		o.Pacing = d.Pacing
	}
	if o.EndEpsilon <= 0 {
		o.EndEpsilon = d.EndEpsilon
	}
	if o.PositionInterval <= 0 {
		o.PositionInterval = d.PositionInterval
	}
	if o.AudioBuffer <= 0 {
		o.AudioBuffer = d.AudioBuffer
	}
	if o.HighWater <= 0 || o.HighWater > 1 {
		o.HighWater = d.HighWater
	}
	if o.FrameQueue <= 0 {
		o.FrameQueue = d.FrameQueue
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = d.EventBuffer
	}
	if o.PausePoll <= 0 {
		o.PausePoll = d.PausePoll
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = d.JoinTimeout
	}
	if o.GrabTimeout <= 0 {
		o.GrabTimeout = d.GrabTimeout
	}
	if o.MaxDecodeErrors <= 0 {
		o.MaxDecodeErrors = d.MaxDecodeErrors
	}
	if o.Resolve == nil {
		o.Resolve = d.Resolve
	}
	return o
}
