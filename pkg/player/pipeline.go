package player

import (
	"errors"
	"fmt"
	"io"
	"time"

	"flow-player/pkg/audio"
	"flow-player/pkg/media"
	"flow-player/pkg/video"
)

func (s *session) route(pkt media.Packet) error {
	switch pkt.Kind() {
	case media.KindVideo:
		if s.vdec != nil {
			return s.decodeVideo(pkt)
		}
	case media.KindAudio:
		if s.adec != nil {
			return s.decodeAudio(pkt)
		}
	}
	return nil
}

// decodeFailed counts a rejected packet and escalates once a pipeline has
// failed MaxDecodeErrors times in a row.
func (s *session) decodeFailed(stream string, streak *int, err error) error {
	*streak++
	s.monitor.RecordPacketError()
	s.log.Debug().Err(err).Str("stream", stream).Int("streak", *streak).Msg("decode: packet skipped")
	if *streak >= s.opts.MaxDecodeErrors {
		return fmt.Errorf("%w: %s failed %d times in a row: %w", ErrDecodeStalled, stream, *streak, err)
	}
	return nil
}

func drained(err error) bool {
	return errors.Is(err, media.ErrNeedMore) || errors.Is(err, io.EOF)
}

func (s *session) decodeVideo(pkt media.Packet) error {
	start := time.Now()
	if err := s.vdec.SendPacket(pkt); err != nil {
		return s.decodeFailed("video", &s.videoErrors, err)
	}
	s.videoErrors = 0
	return s.receiveVideo(start)
}

func (s *session) receiveVideo(start time.Time) error {
	for {
		pic, err := s.vdec.ReceiveFrame()
		if drained(err) {
			return nil
		}
		if err != nil {
			return s.decodeFailed("video", &s.videoErrors, err)
		}
		s.monitor.RecordDecode(time.Since(start))
		if !s.present(pic) {
			return nil
		}
		start = time.Now()
	}
}

// present runs one picture through post-seek suppression and the pacing
// table. It returns false when an intent arrived while waiting and the rest
// of the packet should be abandoned.
func (s *session) present(pic media.Picture) bool {
	pts := pic.PTS()
	if s.suppressVideo {
		if pts < s.seekTarget {
			s.monitor.RecordStale()
			return true
		}
		s.suppressVideo = false
	}

	d := s.pacer.Decide(pts, s.clock.Now())
	switch d.Action {
	case video.ActionDrop:
		s.monitor.RecordLate()
		return true
	case video.ActionSleep:
		if !s.sleep(d.Sleep) && s.preempted() {
			return false
		}
	}
	s.render(pic, pts)
	return true
}

func (s *session) render(pic media.Picture, pts time.Duration) {
	w, h := pic.Size()
	f := s.p.frames.Acquire(w, h)
	if f == nil {
		s.monitor.RecordBusy()
		return
	}

	start := time.Now()
	if err := pic.Convert(f.Pix); err != nil {
		s.p.frames.Discard(f)
		s.monitor.RecordPacketError()
		s.log.Debug().Err(err).Dur("pts", pts).Msg("render: convert failed")
		return
	}
	f.PTS = pts
	f.Epoch = s.epoch
	elapsed := time.Since(start)

	if !s.p.frames.Publish(f) {
		s.monitor.RecordBusy()
		return
	}
	s.monitor.RecordRender(elapsed)
	s.delivered = true
}

func (s *session) decodeAudio(pkt media.Packet) error {
	if err := s.adec.SendPacket(pkt); err != nil {
		return s.decodeFailed("audio", &s.audioErrors, err)
	}
	s.audioErrors = 0

	if err := s.receiveAudio(); err != nil {
		return err
	}
	s.throttleAudio()
	return nil
}

func (s *session) receiveAudio() error {
	for {
		chunk, err := s.adec.ReceiveChunk()
		if drained(err) {
			return nil
		}
		if err != nil {
			return s.decodeFailed("audio", &s.audioErrors, err)
		}
		s.queueAudio(chunk)
	}
}

// flushDecoders tells both decoders the input ended and delivers what they
// still hold: reordered video frames and the resampler tail. Audio goes
// first because video delivery waits on the clock.
func (s *session) flushDecoders() {
	if s.adec != nil {
		if err := s.adec.SendPacket(nil); err != nil {
			s.log.Debug().Err(err).Msg("flush: audio decoder")
		} else if err := s.receiveAudio(); err != nil {
			s.log.Debug().Err(err).Msg("flush: audio tail dropped")
		}
	}
	if s.vdec != nil && !s.preempted() {
		if err := s.vdec.SendPacket(nil); err != nil {
			s.log.Debug().Err(err).Msg("flush: video decoder")
		} else if err := s.receiveVideo(time.Now()); err != nil {
			s.log.Debug().Err(err).Msg("flush: video tail dropped")
		}
	}
}

func (s *session) queueAudio(chunk media.AudioChunk) {
	data := chunk.Data
	if s.suppressAudio {
		end := chunk.PTS + s.format.Duration(int64(len(data)))
		if end <= s.seekTarget {
			return
		}
		if chunk.PTS < s.seekTarget {
			data = data[min(s.format.Bytes(s.seekTarget-chunk.PTS), len(data)):]
		}
		s.suppressAudio = false
		s.clock.Reset(s.seekTarget)
		s.log.Debug().Dur("anchor", s.seekTarget).Dur("chunk_pts", chunk.PTS).Msg("audio: clock re-anchored after seek")
	}
	if len(data) == 0 {
		return
	}

	audio.ApplyGain(data, s.p.gain())
	n := s.device.Write(data)
	s.monitor.RecordAudio(len(data) - n)
	s.delivered = true
}

// throttleAudio waits for the device to drain below the high-water mark so
// that audio-only input does not run ahead and overflow.
func (s *session) throttleAudio() {
	capacity := s.device.Capacity()
	if capacity <= 0 || !s.device.Playing() {
		return
	}
	high := time.Duration(float64(capacity) * s.opts.HighWater)
	if b := s.device.Buffered(); b > high {
		s.sleep(b - high)
	}
}
