package player

import (
	"time"
)

// SeekRequest is a pending jump. Only the newest request is applied. IDs
// come from the same per-player sequence as session epochs.
type SeekRequest struct {
	Target time.Duration
	ID     uint64
}

func (s *session) emitSeek(kind EventKind, req *SeekRequest) {
	s.p.events.publish(Event{
		Kind:     kind,
		Session:  s.id,
		Position: time.Duration(s.position.Load()),
		SeekID:   req.ID,
		Epoch:    s.epoch,
	})
}

// applySeek moves the container, decoders and clock to req.Target and
// returns the session to the state it was in before.
func (s *session) applySeek(req *SeekRequest) {
	log := s.log.With().Uint64("seek_id", req.ID).Dur("target", req.Target).Logger()

	if info := s.info.Load(); info == nil || !info.Seekable {
		log.Debug().Msg("applySeek: stream is not seekable")
		s.emitSeek(EventSeekRejected, req)
		return
	}

	prev := s.State()
	s.setState(Seeking)
	s.device.Stop()

	if err := s.container.Seek(req.Target); err != nil {
		log.Warn().Err(err).Msg("applySeek: container seek failed")
		if prev == Running && !s.pauseReq.Load() {
			s.device.Play()
		}
		s.setState(prev)
		s.emitSeek(EventSeekRejected, req)
		return
	}

	if s.vdec != nil {
		s.vdec.Flush()
	}
	if s.adec != nil {
		s.adec.Flush()
	}
	s.clock.Reset(req.Target)
	s.pacer.Reset()

	s.seekTarget = req.Target
	s.suppressVideo = s.vdec != nil
	s.suppressAudio = s.adec != nil
	s.epoch = req.ID
	s.publishPosition(true)

	if prev == Running && !s.pauseReq.Load() {
		s.device.Play()
	}
	s.setState(prev)

	log.Debug().Msg("applySeek: done")
	s.emitSeek(EventSeeked, req)
}
