package player

import (
	"errors"
)

// State is the playback state of a session. Only the session worker changes
// it; readers see the last published value.
type State int32

const (
	Idle State = iota
	Opening
	Running
	Paused
	Seeking
	Stopping
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	case Stopping:
		return "stopping"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen wraps every failure to open a session: resolving the path,
	// opening the container or opening a decoder or the audio device.
	ErrOpen = errors.New("player: open failed")
	// ErrDecodeStalled ends a session whose decoder keeps rejecting packets.
	ErrDecodeStalled = errors.New("player: decoder stalled")
	// ErrGrabTimeout is returned when a frame grab does not finish in time.
	ErrGrabTimeout = errors.New("player: frame grab timed out")
	ErrClosed      = errors.New("player: closed")
	ErrNoSession   = errors.New("player: no media loaded")
	ErrNoVideo     = errors.New("player: media has no video stream")

	// errEndOfStream is how the worker loop reports a normal end.
	errEndOfStream = errors.New("end of stream")
)
