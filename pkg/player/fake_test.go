package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"flow-player/pkg/media"
)

var errFakeRead = errors.New("fake: connection reset")

// fakeMedia describes synthetic media for the in-memory backend.
type fakeMedia struct {
	duration     time.Duration
	hideDuration bool
	fps          int
	sampleRate   int
	chunk        int // samples per audio packet
	keyEvery     time.Duration
	seekable     bool
	width        int
	height       int
	// audioLead muxes audio packets this far ahead of video, like real files.
	audioLead time.Duration

	openDelay     time.Duration
	openErr       error
	failReadsFrom int64 // ReadPacket fails from this call on; 0 never
	videoFails    bool
	// reorder is how many frames the video decoder holds back until it is
	// drained, like a B-frame decoder.
	reorder int
}

func scenarioMedia() fakeMedia {
	return fakeMedia{
		duration:   30 * time.Second,
		fps:        25,
		sampleRate: 44100,
		chunk:      1024,
		keyEvery:   1500 * time.Millisecond,
		seekable:   true,
		width:      64,
		height:     36,
		audioLead:  100 * time.Millisecond,
	}
}

type fakePacket struct {
	kind  media.StreamKind
	pts   time.Duration
	key   bool
	order time.Duration
	c     *fakeContainer
}

func (p *fakePacket) Kind() media.StreamKind { return p.kind }
func (p *fakePacket) Release()               { p.c.released.Add(1) }

func (f fakeMedia) packets(c *fakeContainer) []*fakePacket {
	var out []*fakePacket
	if f.fps > 0 {
		n := int(f.duration * time.Duration(f.fps) / time.Second)
		keyFrames := int(f.keyEvery * time.Duration(f.fps) / time.Second)
		for i := 0; i < n; i++ {
			pts := time.Duration(i) * time.Second / time.Duration(f.fps)
			out = append(out, &fakePacket{
				kind:  media.KindVideo,
				pts:   pts,
				key:   keyFrames <= 1 || i%keyFrames == 0,
				order: pts,
				c:     c,
			})
		}
	}
	if f.sampleRate > 0 {
		for s := 0; ; s += f.chunk {
			pts := time.Duration(s) * time.Second / time.Duration(f.sampleRate)
			if pts >= f.duration {
				break
			}
			out = append(out, &fakePacket{kind: media.KindAudio, pts: pts, key: true, order: pts - f.audioLead, c: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].kind == media.KindAudio && out[j].kind != media.KindAudio
	})
	return out
}

type fakeBackend struct {
	desc fakeMedia

	mu     sync.Mutex
	opened []*fakeContainer
}

func (b *fakeBackend) Open(loc media.Locator) (media.Container, error) {
	if b.desc.openDelay > 0 {
		time.Sleep(b.desc.openDelay)
	}
	if b.desc.openErr != nil {
		return nil, b.desc.openErr
	}
	c := &fakeContainer{desc: b.desc, url: loc.URL}
	c.pkts = b.desc.packets(c)

	b.mu.Lock()
	b.opened = append(b.opened, c)
	b.mu.Unlock()
	return c, nil
}

func (b *fakeBackend) containers() []*fakeContainer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeContainer(nil), b.opened...)
}

func (b *fakeBackend) first() *fakeContainer {
	cs := b.containers()
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

type fakeContainer struct {
	desc fakeMedia
	url  string
	pkts []*fakePacket
	pos  int

	reads    atomic.Int64
	released atomic.Int64
	closed   atomic.Int32
	seeks    atomic.Int32

	vdec *fakeVideoDecoder
	adec *fakeAudioDecoder
}

func (c *fakeContainer) Info() media.Info {
	info := media.Info{URL: c.url, Format: "fake", Seekable: c.desc.seekable}
	if !c.desc.hideDuration {
		info.Duration = c.desc.duration
	}
	if c.desc.fps > 0 {
		info.Video = &media.VideoInfo{Width: c.desc.width, Height: c.desc.height, FPS: float64(c.desc.fps), Codec: "h264", Decoder: "h264"}
	}
	if c.desc.sampleRate > 0 {
		info.Audio = &media.AudioInfo{Index: 1, SampleRate: c.desc.sampleRate, Channels: 2, Codec: "aac"}
	}
	return info
}

func (c *fakeContainer) ReadPacket() (media.Packet, error) {
	n := c.reads.Add(1)
	if c.desc.failReadsFrom > 0 && n >= c.desc.failReadsFrom {
		return nil, errFakeRead
	}
	if c.pos >= len(c.pkts) {
		return nil, io.EOF
	}
	p := c.pkts[c.pos]
	c.pos++
	return p, nil
}

func (c *fakeContainer) Seek(target time.Duration) error {
	if !c.desc.seekable {
		return media.ErrNotSeekable
	}
	c.seeks.Add(1)
	kf := target
	if c.desc.keyEvery > 0 {
		kf = target / c.desc.keyEvery * c.desc.keyEvery
	}
	from := kf - c.desc.audioLead
	c.pos = sort.Search(len(c.pkts), func(i int) bool { return c.pkts[i].order >= from })
	return nil
}

func (c *fakeContainer) OpenVideo() (media.VideoDecoder, error) {
	c.vdec = &fakeVideoDecoder{desc: c.desc, needKey: true}
	return c.vdec, nil
}

func (c *fakeContainer) OpenAudio() (media.AudioDecoder, error) {
	c.adec = &fakeAudioDecoder{desc: c.desc}
	return c.adec, nil
}

func (c *fakeContainer) Close() error {
	c.closed.Add(1)
	return nil
}

type fakePicture struct {
	pts  time.Duration
	w, h int
}

func (p *fakePicture) PTS() time.Duration { return p.pts }
func (p *fakePicture) Size() (int, int)   { return p.w, p.h }

func (p *fakePicture) Convert(dst []byte) error {
	if len(dst) < p.w*p.h*4 {
		return fmt.Errorf("fake: short buffer %d", len(dst))
	}
	v := byte(p.pts / time.Millisecond)
	for i := range dst {
		dst[i] = v
	}
	return nil
}

type fakeVideoDecoder struct {
	desc     fakeMedia
	needKey  bool
	pending  []time.Duration
	draining bool
	closed   atomic.Int32
}

func (d *fakeVideoDecoder) SendPacket(p media.Packet) error {
	if p == nil {
		d.draining = true
		return nil
	}
	fp := p.(*fakePacket)
	if d.desc.videoFails {
		return errors.New("fake: corrupt packet")
	}
	if d.needKey && !fp.key {
		return nil
	}
	d.needKey = false
	d.pending = append(d.pending, fp.pts)
	return nil
}

func (d *fakeVideoDecoder) ReceiveFrame() (media.Picture, error) {
	if d.draining && len(d.pending) == 0 {
		return nil, io.EOF
	}
	if !d.draining && len(d.pending) <= d.desc.reorder {
		return nil, media.ErrNeedMore
	}
	pts := d.pending[0]
	d.pending = d.pending[1:]
	return &fakePicture{pts: pts, w: d.desc.width, h: d.desc.height}, nil
}

func (d *fakeVideoDecoder) Flush() {
	d.pending = nil
	d.needKey = true
	d.draining = false
}

func (d *fakeVideoDecoder) Close() error {
	d.closed.Add(1)
	return nil
}

type fakeAudioDecoder struct {
	desc     fakeMedia
	pending  []time.Duration
	draining bool
	closed   atomic.Int32
}

func (d *fakeAudioDecoder) SendPacket(p media.Packet) error {
	if p == nil {
		d.draining = true
		return nil
	}
	d.pending = append(d.pending, p.(*fakePacket).pts)
	return nil
}

func (d *fakeAudioDecoder) ReceiveChunk() (media.AudioChunk, error) {
	if len(d.pending) == 0 {
		if d.draining {
			return media.AudioChunk{}, io.EOF
		}
		return media.AudioChunk{}, media.ErrNeedMore
	}
	pts := d.pending[0]
	d.pending = d.pending[1:]

	data := make([]byte, d.desc.chunk*4)
	for i := 0; i+1 < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], uint16(1000))
	}
	return media.AudioChunk{
		PTS:      pts,
		Duration: time.Duration(d.desc.chunk) * time.Second / time.Duration(d.desc.sampleRate),
		Data:     data,
	}, nil
}

func (d *fakeAudioDecoder) Flush() {
	d.pending = nil
	d.draining = false
}

func (d *fakeAudioDecoder) Close() error {
	d.closed.Add(1)
	return nil
}
