// Package player is the playback engine: one decode worker per session
// driving an audio-master clock, paced video delivery and a transport API
// that is safe to call from the UI thread at any time.
package player

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"flow-player/pkg/audio"
	"flow-player/pkg/frames"
	"flow-player/pkg/media"
	"flow-player/pkg/performance"
	"flow-player/pkg/video"
)

// Player owns at most one live session. Control calls record intents that
// the session worker applies at its next checkpoint; reads never wait for the
// worker.
type Player struct {
	opts    Options
	backend media.Backend
	opener  audio.Opener
	log     zerolog.Logger

	frames *frames.Queue
	events *eventBus

	// mu serializes session replacement. The worker never takes it.
	mu       sync.Mutex
	sess     *session
	lastPath string

	current atomic.Pointer[session]
	closed  atomic.Bool
	seekSeq atomic.Uint64
	volume  atomic.Uint64 // math.Float64bits
	muted   atomic.Bool

	closeOnce sync.Once
}

// New creates an idle player. opener is used for sessions with an audio
// stream; video-only sessions run on a silent wall-clock device.
func New(backend media.Backend, opener audio.Opener, opts Options) *Player {
	opts = opts.withDefaults()
	p := &Player{
		opts:    opts,
		backend: backend,
		opener:  opener,
		log:     opts.Logger.With().Str("component", "player").Logger(),
		frames:  frames.NewQueue(opts.FrameQueue),
		events:  newEventBus(opts.EventBuffer),
	}
	p.volume.Store(math.Float64bits(1))
	return p
}

// Frames delivers rendered frames. The receiver must Release each frame.
func (p *Player) Frames() <-chan *frames.Frame { return p.frames.C() }

// Events delivers telemetry. Both channels close on Close.
func (p *Player) Events() <-chan Event { return p.events.ch }

// Play tears down the current session, if any, and starts a new one for
// path. Opening happens on the worker; failures arrive as an EventError.
func (p *Player) Play(path string) error {
	if path == "" {
		return errors.New("player: empty path")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	p.stopLocked()

	s := newSession(p, path)
	p.sess = s
	p.lastPath = path
	p.current.Store(s)
	p.log.Info().Str("session", s.id).Str("path", path).Msg("Play: starting session")

	go s.run()
	return nil
}

// Stop ends the current session and waits for the worker at most
// JoinTimeout. Stopping twice is a no-op.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	s := p.sess
	if s == nil {
		return
	}
	s.requestStop()
	if !s.join(p.opts.JoinTimeout) {
		p.log.Warn().Str("session", s.id).Dur("timeout", p.opts.JoinTimeout).
			Msg("Stop: worker did not exit in time, continuing")
	}
}

// Pause asks the worker to pause. The clock freezes once it has.
func (p *Player) Pause() {
	if s := p.live(); s != nil {
		s.pauseReq.Store(true)
		s.wake()
	}
}

// Resume undoes Pause.
func (p *Player) Resume() {
	if s := p.live(); s != nil {
		s.pauseReq.Store(false)
		s.wake()
	}
}

// TogglePlayPause pauses a playing session, resumes a paused one, and
// restarts the last media when nothing is loaded.
func (p *Player) TogglePlayPause() {
	s := p.live()
	if s == nil {
		p.mu.Lock()
		last := p.lastPath
		p.mu.Unlock()
		if last != "" {
			if err := p.Play(last); err != nil {
				p.log.Debug().Err(err).Msg("TogglePlayPause: restart failed")
			}
		}
		return
	}
	if s.pauseReq.Load() {
		p.Resume()
	} else {
		p.Pause()
	}
}

// Seek requests a jump to d. It returns false when there is no session or
// the media cannot seek; in that case nothing changes and an
// EventSeekRejected is published.
func (p *Player) Seek(d time.Duration) bool {
	s := p.live()
	if s == nil {
		p.events.publish(Event{Kind: EventSeekRejected, Position: p.Position()})
		return false
	}
	info := s.info.Load()
	if info != nil && !info.Seekable {
		s.log.Debug().Dur("target", d).Msg("Seek: rejected, stream is not seekable")
		p.events.publish(Event{Kind: EventSeekRejected, Session: s.id, Position: p.Position()})
		return false
	}
	if info != nil && info.Duration > 0 {
		d = lo.Clamp(d, 0, info.Duration)
	} else if d < 0 {
		d = 0
	}

	req := &SeekRequest{Target: d, ID: p.seekSeq.Add(1)}
	if prev := s.seekReq.Swap(req); prev != nil {
		s.log.Debug().Uint64("superseded", prev.ID).Uint64("seek_id", req.ID).Msg("Seek: superseding pending request")
	}
	s.wake()
	return true
}

// SeekBy seeks relative to the current position.
func (p *Player) SeekBy(delta time.Duration) bool {
	return p.Seek(p.Position() + delta)
}

// SetVolume sets the output gain, clamped to [0, 1].
func (p *Player) SetVolume(v float64) {
	p.volume.Store(math.Float64bits(lo.Clamp(v, 0, 1)))
}

// Volume returns the output gain, ignoring mute.
func (p *Player) Volume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Mute silences output without touching the volume.
func (p *Player) Mute() { p.muted.Store(true) }

// Unmute restores output at the current volume.
func (p *Player) Unmute() { p.muted.Store(false) }

// IsMuted reports whether output is silenced.
func (p *Player) IsMuted() bool { return p.muted.Load() }

// ToggleMute flips the mute flag.
func (p *Player) ToggleMute() {
	for {
		m := p.muted.Load()
		if p.muted.CompareAndSwap(m, !m) {
			return
		}
	}
}

// SetPacing replaces the frame pacing thresholds. The running session picks
// them up on its next frame; later sessions start with them.
func (p *Player) SetPacing(th video.Thresholds) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Pacing = th
	if s := p.current.Load(); s != nil {
		s.pacer.SetThresholds(th)
	}
}

// Pacing returns the thresholds in effect.
func (p *Player) Pacing() video.Thresholds {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.current.Load(); s != nil {
		return s.pacer.Thresholds()
	}
	return p.opts.Pacing
}

func (p *Player) gain() float64 {
	if p.muted.Load() {
		return 0
	}
	return p.Volume()
}

// Position is the last published clock value of the current session.
func (p *Player) Position() time.Duration {
	if s := p.current.Load(); s != nil {
		return time.Duration(s.position.Load())
	}
	return 0
}

// Duration of the current media, zero when unknown or not yet open.
func (p *Player) Duration() time.Duration {
	if info := p.Info(); info != nil {
		return info.Duration
	}
	return 0
}

// Info describes the current media once its session has opened it.
func (p *Player) Info() *media.Info {
	if s := p.current.Load(); s != nil {
		return s.info.Load()
	}
	return nil
}

// State of the current session; Idle before the first Play.
func (p *Player) State() State {
	if s := p.current.Load(); s != nil {
		return s.State()
	}
	if p.closed.Load() {
		return Closed
	}
	return Idle
}

// IsPlaying is true while frames advance, including a seek issued from play.
func (p *Player) IsPlaying() bool {
	switch p.State() {
	case Running:
		return true
	case Seeking:
		s := p.current.Load()
		return s != nil && !s.pauseReq.Load()
	}
	return false
}

// IsPaused is true while the session holds at the current position.
func (p *Player) IsPaused() bool { return p.State() == Paused }

// IsStopped is true when no session is producing output.
func (p *Player) IsStopped() bool {
	switch p.State() {
	case Idle, Stopping, Closed:
		return true
	}
	return false
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Session       string
	State         State
	Position      time.Duration
	Performance   performance.Report
	Pacer         video.PacerStats
	Frames        frames.Stats
	EventsDropped uint64
}

func (p *Player) Stats() Stats {
	st := Stats{
		State:         p.State(),
		Position:      p.Position(),
		Frames:        p.frames.Stats(),
		EventsDropped: p.events.dropped.Load(),
	}
	if s := p.current.Load(); s != nil {
		st.Session = s.id
		st.Performance = s.monitor.GetReport()
		st.Pacer = s.pacer.Stats()
	}
	return st
}

// Close stops the session and closes the frame and event channels. It never
// waits for the worker longer than JoinTimeout and is safe to call again.
func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed.Store(true)
		p.stopLocked()
		p.mu.Unlock()

		p.frames.Close()
		p.events.close()
		p.log.Debug().Msg("Close: player closed")
	})
	return nil
}

// live returns the current session unless it has already finished.
func (p *Player) live() *session {
	s := p.current.Load()
	if s == nil || s.finished() {
		return nil
	}
	return s
}
