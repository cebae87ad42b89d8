package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flow-player/pkg/audio"
	"flow-player/pkg/clock"
	"flow-player/pkg/media"
	"flow-player/pkg/performance"
	"flow-player/pkg/video"
)

// errStopped ends a session that was asked to stop while still opening.
var errStopped = errors.New("stopped")

// releaseStack closes native handles in reverse acquisition order, once.
type releaseStack struct {
	items []release
	once  sync.Once
}

type release struct {
	name  string
	close func() error
}

func (r *releaseStack) push(name string, close func() error) {
	r.items = append(r.items, release{name: name, close: close})
}

func (r *releaseStack) unwind(log zerolog.Logger) {
	r.once.Do(func() {
		for i := len(r.items) - 1; i >= 0; i-- {
			it := r.items[i]
			if err := it.close(); err != nil {
				log.Warn().Err(err).Str("handle", it.name).Msg("unwind: close failed")
			} else {
				log.Debug().Str("handle", it.name).Msg("unwind: closed")
			}
		}
		r.items = nil
	})
}

// session is one opened media. Everything below the "worker" marker is only
// touched by the worker goroutine.
type session struct {
	id   string
	path string
	p    *Player
	opts Options
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wakeCh chan struct{}

	stopReq  atomic.Bool
	pauseReq atomic.Bool
	seekReq  atomic.Pointer[SeekRequest]

	state    atomic.Int32
	position atomic.Int64
	info     atomic.Pointer[media.Info]

	monitor *performance.Monitor
	pacer   *video.Pacer

	// worker
	container media.Container
	vdec      media.VideoDecoder
	adec      media.AudioDecoder
	device    audio.Device
	format    audio.Format
	clock     *clock.Clock
	releases  releaseStack

	published     time.Duration
	delivered     bool
	epoch         uint64
	seekTarget    time.Duration
	suppressVideo bool
	suppressAudio bool
	videoErrors   int
	audioErrors   int
}

func newSession(p *Player, path string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	log := p.opts.Logger.With().Str("component", "session").Str("session", id).Logger()

	s := &session{
		id:      id,
		path:    path,
		p:       p,
		opts:    p.opts,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		wakeCh:  make(chan struct{}, 1),
		monitor: performance.NewMonitor(50),
		pacer:   video.NewPacer(p.opts.Pacing, log),
		// sessions and seeks share one sequence, so a new session's frames
		// always outrank anything a previous session left in the queue
		epoch: p.seekSeq.Add(1),
	}
	s.state.Store(int32(Opening))
	return s
}

func (s *session) State() State { return State(s.state.Load()) }

func (s *session) setState(st State) {
	if old := State(s.state.Swap(int32(st))); old != st {
		s.log.Debug().Stringer("from", old).Stringer("to", st).Msg("state changed")
	}
}

func (s *session) finished() bool {
	st := s.State()
	return st == Stopping || st == Closed
}

func (s *session) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *session) requestStop() {
	s.stopReq.Store(true)
	s.cancel()
	s.wake()
}

func (s *session) join(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}

func (s *session) emit(kind EventKind) {
	s.p.events.publish(Event{Kind: kind, Session: s.id, Position: time.Duration(s.position.Load()), Epoch: s.epoch})
}

func (s *session) run() {
	defer close(s.done)
	defer s.cancel()

	err := s.open()
	if err == nil {
		err = s.loop()
	}
	s.finish(err)
}

func (s *session) open() error {
	loc, err := s.opts.Resolve(s.ctx, s.path)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %w", ErrOpen, s.path, err)
	}
	if s.stopReq.Load() {
		return errStopped
	}

	c, err := s.p.backend.Open(loc)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrOpen, s.path, err)
	}
	s.container = c
	s.releases.push("container", c.Close)

	info := c.Info()
	if info.Video == nil && info.Audio == nil {
		return fmt.Errorf("%w: %q: %w", ErrOpen, s.path, media.ErrNoStreams)
	}

	if info.Video != nil {
		vd, err := c.OpenVideo()
		if err != nil {
			return fmt.Errorf("%w: video decoder: %w", ErrOpen, err)
		}
		s.vdec = vd
		s.releases.push("video decoder", vd.Close)
	}

	if info.Audio != nil {
		ad, err := c.OpenAudio()
		if err != nil {
			return fmt.Errorf("%w: audio decoder: %w", ErrOpen, err)
		}
		s.adec = ad
		s.releases.push("audio decoder", ad.Close)

		s.format = audio.S16Stereo(info.Audio.SampleRate)
		opener := s.p.opener
		if opener == nil {
			opener = audio.NullOpener()
		}
		dev, err := opener(s.format, s.opts.AudioBuffer)
		if err != nil {
			return fmt.Errorf("%w: audio device: %w", ErrOpen, err)
		}
		s.device = dev
	} else {
		s.device = audio.NewSilentDevice()
	}
	s.releases.push("audio device", s.device.Close)

	s.clock = clock.New(s.device)
	// refreshed: the chosen decoder is only known once it is open
	info = c.Info()
	s.info.Store(&info)
	s.log.Info().Stringer("info", info).Msg("open: media ready")
	performance.LogMemorySnapshot(s.log)
	return nil
}

func (s *session) loop() error {
	for {
		if s.checkpoint() {
			return nil
		}
		if s.reachedEnd() {
			return errEndOfStream
		}

		pkt, err := s.container.ReadPacket()
		if err != nil {
			return s.readFailed(err)
		}
		err = s.route(pkt)
		pkt.Release()
		if err != nil {
			return err
		}
		s.publishPosition(false)
	}
}

// checkpoint applies pending intents in priority order Stop > Seek > Pause.
// It parks while paused and reports whether the session must stop.
func (s *session) checkpoint() bool {
	for {
		if s.stopReq.Load() || s.ctx.Err() != nil {
			return true
		}
		if req := s.seekReq.Swap(nil); req != nil {
			s.applySeek(req)
			continue
		}
		if s.pauseReq.Load() {
			if s.State() != Paused {
				s.device.Pause()
				s.setState(Paused)
				s.publishPosition(true)
				s.emit(EventPaused)
			}
			s.park()
			continue
		}
		if s.State() != Running {
			s.device.Play()
			s.setState(Running)
			s.emit(EventPlaying)
		}
		return false
	}
}

func (s *session) park() {
	t := time.NewTimer(s.opts.PausePoll)
	defer t.Stop()
	select {
	case <-s.wakeCh:
	case <-t.C:
	case <-s.ctx.Done():
	}
}

// sleep waits for d unless an intent arrives first. It reports whether the
// full duration elapsed.
func (s *session) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.wakeCh:
		return false
	case <-s.ctx.Done():
		return false
	}
}

// preempted reports an intent that invalidates the packet in hand.
func (s *session) preempted() bool {
	return s.stopReq.Load() || s.seekReq.Load() != nil || s.ctx.Err() != nil
}

func (s *session) reachedEnd() bool {
	info := s.info.Load()
	if info == nil || info.Duration <= s.opts.EndEpsilon || s.State() != Running {
		return false
	}
	return s.clock.Now() >= info.Duration-s.opts.EndEpsilon
}

func (s *session) readFailed(err error) error {
	if errors.Is(err, io.EOF) || s.delivered {
		s.log.Debug().Err(err).Msg("loop: input ended")
		s.flushDecoders()
		s.drainTail()
		return errEndOfStream
	}
	return fmt.Errorf("read %q: %w", s.path, err)
}

// drainTail lets queued audio finish after the last packet, bounded by the
// device capacity.
func (s *session) drainTail() {
	limit := time.Now().Add(s.device.Capacity() + s.opts.PausePoll)
	for time.Now().Before(limit) {
		b := s.device.Buffered()
		if b <= 0 || s.preempted() {
			return
		}
		s.sleep(min(b, s.opts.PausePoll))
	}
}

func (s *session) publishPosition(force bool) {
	now := s.clock.Now()
	moved := now - s.published
	if moved < 0 {
		moved = -moved
	}
	if !force && moved < s.opts.PositionInterval {
		return
	}
	s.published = now
	s.position.Store(int64(now))
	s.emit(EventPositionChanged)
}

func (s *session) finish(err error) {
	switch {
	case err == nil, errors.Is(err, errStopped):
		s.log.Info().Msg("finish: stopped")
	case errors.Is(err, errEndOfStream):
		s.log.Info().Dur("position", time.Duration(s.position.Load())).Msg("finish: end of stream")
		s.emit(EventEndReached)
	default:
		s.log.Error().Err(err).Msg("finish: session failed")
		s.p.events.publish(Event{Kind: EventError, Session: s.id, Err: err, Position: time.Duration(s.position.Load())})
	}

	s.setState(Stopping)
	if s.device != nil {
		s.device.Stop()
	}
	s.releases.unwind(s.log)
	if s.clock != nil {
		s.clock.Reset(0)
	}
	s.position.Store(0)
	s.monitor.LogReport(s.log)

	s.emit(EventStopped)
	s.setState(Closed)
}
