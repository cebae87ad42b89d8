package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"flow-player/pkg/frames"
	"flow-player/pkg/media"
)

// GrabFrame decodes the first frame at or after at from the current media,
// on its own container, without touching the live session. It waits at most
// timeout (GrabTimeout when zero).
func (p *Player) GrabFrame(at, timeout time.Duration) (*frames.Frame, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	p.mu.Lock()
	path := p.lastPath
	p.mu.Unlock()
	if path == "" {
		return nil, ErrNoSession
	}
	if timeout <= 0 {
		timeout = p.opts.GrabTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Grab(ctx, p.backend, p.opts.Resolve, path, at, p.log)
}

// Grab opens path on a short-lived goroutine, seeks to at and returns an
// owned copy of the first frame whose PTS is at or after at. When ctx
// expires first ErrGrabTimeout is returned and the goroutine releases its
// resources on its own.
func Grab(ctx context.Context, backend media.Backend, resolve func(context.Context, string) (media.Locator, error),
	path string, at time.Duration, log zerolog.Logger) (*frames.Frame, error) {
	if resolve == nil {
		resolve = resolveLocal
	}

	type result struct {
		frame *frames.Frame
		err   error
	}
	done := make(chan result, 1)
	go func() {
		f, err := grab(ctx, backend, resolve, path, at)
		done <- result{frame: f, err: err}
	}()

	select {
	case r := <-done:
		return r.frame, r.err
	case <-ctx.Done():
		log.Warn().Str("path", path).Dur("at", at).Msg("Grab: timed out")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q at %s", ErrGrabTimeout, path, at)
		}
		return nil, ctx.Err()
	}
}

func grab(ctx context.Context, backend media.Backend, resolve func(context.Context, string) (media.Locator, error),
	path string, at time.Duration) (*frames.Frame, error) {
	loc, err := resolve(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %w", ErrOpen, path, err)
	}
	c, err := backend.Open(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrOpen, path, err)
	}
	defer c.Close()

	info := c.Info()
	if info.Video == nil {
		return nil, ErrNoVideo
	}
	dec, err := c.OpenVideo()
	if err != nil {
		return nil, fmt.Errorf("%w: video decoder: %w", ErrOpen, err)
	}
	defer dec.Close()

	if at > 0 && info.Seekable {
		if err := c.Seek(at); err != nil {
			return nil, fmt.Errorf("grab: seek to %s: %w", at, err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkt, err := c.ReadPacket()
		if err != nil {
			// frames held back for reordering only come out once the
			// decoder is told the input ended
			if errors.Is(err, io.EOF) && dec.SendPacket(nil) == nil {
				if f, ferr := receiveAt(dec, at); f != nil || ferr != nil {
					return f, ferr
				}
			}
			return nil, fmt.Errorf("grab: no frame at or after %s: %w", at, err)
		}
		if pkt.Kind() != media.KindVideo {
			pkt.Release()
			continue
		}
		err = dec.SendPacket(pkt)
		pkt.Release()
		if err != nil {
			continue
		}

		if f, err := receiveAt(dec, at); f != nil || err != nil {
			return f, err
		}
	}
}

// receiveAt drains dec and copies out the first picture at or after at. It
// returns nil, nil when the decoder needs more input.
func receiveAt(dec media.VideoDecoder, at time.Duration) (*frames.Frame, error) {
	for {
		pic, err := dec.ReceiveFrame()
		if err != nil {
			return nil, nil
		}
		if pic.PTS() < at {
			continue
		}
		w, h := pic.Size()
		f := &frames.Frame{Width: w, Height: h, PTS: pic.PTS(), Pix: make([]byte, w*h*4)}
		if err := pic.Convert(f.Pix); err != nil {
			return nil, fmt.Errorf("grab: convert: %w", err)
		}
		return f, nil
	}
}
