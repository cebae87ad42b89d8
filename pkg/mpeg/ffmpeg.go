package mpeg

/*
#cgo pkg-config: libavformat libavcodec libavutil libswscale libswresample

#include <stdlib.h>
#include <stdint.h>
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libavutil/imgutils.h>
#include <libavutil/channel_layout.h>
#include <libavutil/hwcontext.h>
#include <libavutil/log.h>
#include <libswscale/swscale.h>
#include <libswresample/swresample.h>

// ---------------------- C structures ----------------------------

typedef struct {
    AVFormatContext *fmt;
    int videoStream;
    int audioStream;
} Demuxer;

typedef struct {
    SwrContext *swr;
    uint8_t    *buf;
    int         bufSamples;
} Resampler;

static int fp_eagain(void) { return AVERROR(EAGAIN); }
static int fp_eof(void)    { return AVERROR_EOF; }

// Opens the input and selects the first video and first audio stream.
// Every other stream is discarded by the demuxer.
static int fp_open(Demuxer *d, const char *url, AVDictionary **opts) {
    d->fmt = NULL;
    d->videoStream = -1;
    d->audioStream = -1;

    int ret = avformat_open_input(&d->fmt, url, NULL, opts);
    if (ret < 0) {
        return ret;
    }
    ret = avformat_find_stream_info(d->fmt, NULL);
    if (ret < 0) {
        avformat_close_input(&d->fmt);
        return ret;
    }

    for (unsigned int i = 0; i < d->fmt->nb_streams; i++) {
        AVStream *st = d->fmt->streams[i];
        enum AVMediaType t = st->codecpar->codec_type;
        if (t == AVMEDIA_TYPE_VIDEO && d->videoStream < 0 && !(st->disposition & AV_DISPOSITION_ATTACHED_PIC)) {
            d->videoStream = (int)i;
        } else if (t == AVMEDIA_TYPE_AUDIO && d->audioStream < 0) {
            d->audioStream = (int)i;
        } else {
            st->discard = AVDISCARD_ALL;
        }
    }
    return 0;
}

static void fp_close(Demuxer *d) {
    if (d->fmt) {
        avformat_close_input(&d->fmt);
    }
}

static int64_t fp_duration_us(Demuxer *d) {
    return d->fmt->duration == AV_NOPTS_VALUE ? 0 : d->fmt->duration;
}

static int64_t fp_start_us(Demuxer *d) {
    return d->fmt->start_time == AV_NOPTS_VALUE ? 0 : d->fmt->start_time;
}

static int fp_seekable(Demuxer *d) {
    return d->fmt->pb != NULL && (d->fmt->pb->seekable & AVIO_SEEKABLE_NORMAL) && fp_duration_us(d) > 0;
}

static const char *fp_format_name(Demuxer *d) {
    return d->fmt->iformat ? d->fmt->iformat->name : "";
}

static AVCodecParameters *fp_params(Demuxer *d, int idx) {
    return d->fmt->streams[idx]->codecpar;
}

static AVRational fp_time_base(Demuxer *d, int idx) {
    return d->fmt->streams[idx]->time_base;
}

static double fp_fps(Demuxer *d) {
    if (d->videoStream < 0) {
        return 0;
    }
    AVRational r = av_guess_frame_rate(d->fmt, d->fmt->streams[d->videoStream], NULL);
    return r.den ? av_q2d(r) : 0;
}

static int fp_channels(AVCodecParameters *p) {
    return p->ch_layout.nb_channels;
}

// Returns 1 for a video packet, 2 for audio, 0 for anything else, <0 on error.
static int fp_read(Demuxer *d, AVPacket *pkt) {
    int ret = av_read_frame(d->fmt, pkt);
    if (ret < 0) {
        return ret;
    }
    if (pkt->stream_index == d->videoStream) return 1;
    if (pkt->stream_index == d->audioStream) return 2;
    av_packet_unref(pkt);
    return 0;
}

static int fp_seek(Demuxer *d, int64_t us) {
    return av_seek_frame(d->fmt, -1, us + fp_start_us(d), AVSEEK_FLAG_BACKWARD);
}

// Opens a decoder for stream idx. name NULL selects FFmpeg's default decoder.
// Returns NULL when the decoder is missing, does not match the stream codec
// or fails to open (e.g. hardware not present).
static AVCodecContext *fp_open_decoder(Demuxer *d, int idx, const char *name, int threads) {
    AVStream *st = d->fmt->streams[idx];
    AVCodecParameters *par = st->codecpar;
    const AVCodec *codec = name ? avcodec_find_decoder_by_name(name) : avcodec_find_decoder(par->codec_id);
    if (!codec || codec->id != par->codec_id) {
        return NULL;
    }
    AVCodecContext *ctx = avcodec_alloc_context3(codec);
    if (!ctx) {
        return NULL;
    }
    if (avcodec_parameters_to_context(ctx, par) < 0) {
        avcodec_free_context(&ctx);
        return NULL;
    }
    ctx->pkt_timebase = st->time_base;
    ctx->thread_type = FF_THREAD_FRAME;
    ctx->thread_count = threads;
    if (avcodec_open2(ctx, codec, NULL) < 0) {
        avcodec_free_context(&ctx);
        return NULL;
    }
    return ctx;
}

static const char *fp_decoder_name(AVCodecContext *ctx) {
    return ctx->codec ? ctx->codec->name : "";
}

static int fp_send(AVCodecContext *ctx, AVPacket *pkt) {
    return avcodec_send_packet(ctx, pkt);
}

static int fp_receive(AVCodecContext *ctx, AVFrame *f) {
    return avcodec_receive_frame(ctx, f);
}

// Container timestamp first, decoder best-effort estimate when missing.
static int64_t fp_frame_ns(AVFrame *f, AVRational tb) {
    int64_t ts = f->pts;
    if (ts == AV_NOPTS_VALUE) {
        ts = f->best_effort_timestamp;
    }
    if (ts == AV_NOPTS_VALUE) {
        return INT64_MIN;
    }
    return av_rescale_q(ts, tb, (AVRational){1, 1000000000});
}

// Copies a hardware frame into system memory. Returns 0 for software frames,
// 1 when sw now holds the picture, <0 on error.
static int fp_download(AVFrame *f, AVFrame *sw) {
    if (!f->hw_frames_ctx) {
        return 0;
    }
    av_frame_unref(sw);
    int ret = av_hwframe_transfer_data(sw, f, 0);
    return ret < 0 ? ret : 1;
}

// Converts f into packed RGBA at dst (w*h*4 bytes).
static int fp_convert(struct SwsContext **sws, AVFrame *f, uint8_t *dst, int w, int h) {
    *sws = sws_getCachedContext(*sws, f->width, f->height, f->format,
                                w, h, AV_PIX_FMT_RGBA,
                                SWS_BILINEAR, NULL, NULL, NULL);
    if (!*sws) {
        return -1;
    }
    uint8_t *data[4] = {dst, NULL, NULL, NULL};
    int linesize[4] = {w * 4, 0, 0, 0};
    return sws_scale(*sws, (const uint8_t * const *)f->data, f->linesize, 0, f->height, data, linesize);
}

// Resampler to interleaved S16 stereo at the source rate.
static int fp_resampler_init(Resampler *r, AVCodecContext *ctx) {
    AVChannelLayout out = AV_CHANNEL_LAYOUT_STEREO;
    AVChannelLayout in;
    int ret;

    r->swr = NULL;
    r->buf = NULL;
    r->bufSamples = 0;

    if (ctx->ch_layout.order == AV_CHANNEL_ORDER_UNSPEC || ctx->ch_layout.nb_channels == 0) {
        av_channel_layout_default(&in, ctx->ch_layout.nb_channels > 0 ? ctx->ch_layout.nb_channels : 2);
    } else if ((ret = av_channel_layout_copy(&in, &ctx->ch_layout)) < 0) {
        return ret;
    }

    ret = swr_alloc_set_opts2(&r->swr, &out, AV_SAMPLE_FMT_S16, ctx->sample_rate,
                              &in, ctx->sample_fmt, ctx->sample_rate, 0, NULL);
    av_channel_layout_uninit(&in);
    if (ret < 0) {
        return ret;
    }
    return swr_init(r->swr);
}

// Returns the number of samples per channel now in r->buf.
static int fp_resample(Resampler *r, AVFrame *f) {
    int want = swr_get_out_samples(r->swr, f->nb_samples);
    if (want > r->bufSamples) {
        av_freep(&r->buf);
        r->bufSamples = 0;
        if (av_samples_alloc(&r->buf, NULL, 2, want, AV_SAMPLE_FMT_S16, 0) < 0) {
            return AVERROR(ENOMEM);
        }
        r->bufSamples = want;
    }
    return swr_convert(r->swr, &r->buf, want, (const uint8_t **)f->extended_data, f->nb_samples);
}

// Drains samples swr still buffers once the decoder is out of frames.
static int fp_resample_tail(Resampler *r) {
    int want = swr_get_out_samples(r->swr, 0);
    if (want <= 0) {
        return 0;
    }
    if (want > r->bufSamples) {
        av_freep(&r->buf);
        r->bufSamples = 0;
        if (av_samples_alloc(&r->buf, NULL, 2, want, AV_SAMPLE_FMT_S16, 0) < 0) {
            return AVERROR(ENOMEM);
        }
        r->bufSamples = want;
    }
    return swr_convert(r->swr, &r->buf, want, NULL, 0);
}

static void fp_resampler_free(Resampler *r) {
    swr_free(&r->swr);
    av_freep(&r->buf);
    r->bufSamples = 0;
}

// n-th registered decoder, NULL past the end.
static const AVCodec *fp_decoder_at(int n) {
    void *iter = NULL;
    const AVCodec *c = NULL;
    while ((c = av_codec_iterate(&iter))) {
        if (av_codec_is_decoder(c) && n-- == 0) {
            return c;
        }
    }
    return NULL;
}
*/
import "C"

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"flow-player/pkg/media"
	"flow-player/pkg/video"
)

var initOnce sync.Once

func averror(op string, code C.int) error {
	var buf [256]C.char
	C.av_strerror(code, &buf[0], C.size_t(len(buf)))
	return fmt.Errorf("%s: %s (code=%d)", op, C.GoString(&buf[0]), int(code))
}

func nsToDuration(ns C.int64_t, startNs int64) (time.Duration, bool) {
	if int64(ns) == math.MinInt64 {
		return 0, false
	}
	return time.Duration(int64(ns) - startNs), true
}

// Backend opens containers with libavformat.
type Backend struct {
	opts Options
	log  zerolog.Logger
}

// NewBackend initializes FFmpeg (network layer, log level) once per process.
func NewBackend(opts Options, log zerolog.Logger) *Backend {
	initOnce.Do(func() {
		// Suppress non-critical warnings such as the colourspace-conversion notice.
		C.av_log_set_level(C.AV_LOG_ERROR)
		C.avformat_network_init()
	})
	return &Backend{opts: opts, log: log.With().Str("component", "mpeg").Logger()}
}

// Open implements media.Backend.
func (b *Backend) Open(loc media.Locator) (media.Container, error) {
	cURL := C.CString(loc.URL)
	defer C.free(unsafe.Pointer(cURL))

	var dict *C.AVDictionary
	for k, v := range loc.Options {
		ck, cv := C.CString(k), C.CString(v)
		C.av_dict_set(&dict, ck, cv, 0)
		C.free(unsafe.Pointer(ck))
		C.free(unsafe.Pointer(cv))
	}
	defer C.av_dict_free(&dict)

	c := &container{opts: b.opts, log: b.log.With().Str("url", loc.URL).Logger()}
	if ret := C.fp_open(&c.demux, cURL, &dict); ret < 0 {
		return nil, averror("open "+loc.URL, ret)
	}

	c.startNs = int64(C.fp_start_us(&c.demux)) * 1000
	c.info = media.Info{
		URL:      loc.URL,
		Format:   C.GoString(C.fp_format_name(&c.demux)),
		Duration: time.Duration(C.fp_duration_us(&c.demux)) * time.Microsecond,
		Seekable: C.fp_seekable(&c.demux) != 0,
	}
	if idx := int(c.demux.videoStream); idx >= 0 {
		par := C.fp_params(&c.demux, C.int(idx))
		c.info.Video = &media.VideoInfo{
			Index:  idx,
			Width:  int(par.width),
			Height: int(par.height),
			FPS:    float64(C.fp_fps(&c.demux)),
			Codec:  C.GoString(C.avcodec_get_name(par.codec_id)),
		}
	}
	if idx := int(c.demux.audioStream); idx >= 0 {
		par := C.fp_params(&c.demux, C.int(idx))
		c.info.Audio = &media.AudioInfo{
			Index:      idx,
			SampleRate: int(par.sample_rate),
			Channels:   int(C.fp_channels(par)),
			Codec:      C.GoString(C.avcodec_get_name(par.codec_id)),
		}
	}
	if loc.Network {
		c.log.Debug().Interface("options", loc.Options).Msg("Open: network input")
	}
	c.log.Info().Stringer("info", c.info).Msg("Open: container ready")
	return c, nil
}

// Decoders lists every decoder compiled into the linked FFmpeg.
func Decoders() []string {
	var out []string
	for i := 0; ; i++ {
		c := C.fp_decoder_at(C.int(i))
		if c == nil {
			return out
		}
		out = append(out, C.GoString(c.name))
	}
}

// ------------------- container -------------------

type container struct {
	demux   C.Demuxer
	info    media.Info
	startNs int64
	opts    Options
	log     zerolog.Logger

	closeOnce sync.Once
}

func (c *container) Info() media.Info { return c.info }

func (c *container) ReadPacket() (media.Packet, error) {
	for {
		pkt := C.av_packet_alloc()
		if pkt == nil {
			return nil, fmt.Errorf("read: out of memory")
		}
		ret := C.fp_read(&c.demux, pkt)
		switch {
		case ret == 1:
			return &packet{pkt: pkt, kind: media.KindVideo}, nil
		case ret == 2:
			return &packet{pkt: pkt, kind: media.KindAudio}, nil
		}
		C.av_packet_free(&pkt)
		if ret == C.fp_eof() {
			return nil, io.EOF
		}
		if ret < 0 {
			return nil, averror("read", ret)
		}
	}
}

func (c *container) Seek(target time.Duration) error {
	if !c.info.Seekable {
		return media.ErrNotSeekable
	}
	if ret := C.fp_seek(&c.demux, C.int64_t(target.Microseconds())); ret < 0 {
		return averror(fmt.Sprintf("seek %s", target), ret)
	}
	return nil
}

func (c *container) OpenVideo() (media.VideoDecoder, error) {
	if c.info.Video == nil {
		return nil, media.ErrNoStreams
	}
	idx := C.int(c.info.Video.Index)

	var ctx *C.AVCodecContext
	for _, name := range video.DecoderCandidates(c.info.Video.Codec, c.opts.VideoDecoder, c.opts.ForceSoftware) {
		cName := C.CString(name)
		ctx = C.fp_open_decoder(&c.demux, idx, cName, C.int(c.opts.Threads))
		C.free(unsafe.Pointer(cName))
		if ctx != nil {
			break
		}
		c.log.Debug().Str("decoder", name).Msg("OpenVideo: decoder not available")
	}
	if ctx == nil {
		c.log.Debug().Str("codec", c.info.Video.Codec).Msg("OpenVideo: no priority decoder worked, trying default")
		ctx = C.fp_open_decoder(&c.demux, idx, nil, C.int(c.opts.Threads))
	}
	if ctx == nil {
		return nil, fmt.Errorf("no working decoder for codec %s", c.info.Video.Codec)
	}

	name := C.GoString(C.fp_decoder_name(ctx))
	c.info.Video.Decoder = name
	c.info.Video.Hardware = video.IsHardwareDecoder(name)
	c.log.Info().Str("decoder", name).Bool("hardware", c.info.Video.Hardware).
		Int("width", c.info.Video.Width).Int("height", c.info.Video.Height).
		Msg("OpenVideo: decoder ready")

	return &videoDecoder{
		ctx:     ctx,
		frame:   C.av_frame_alloc(),
		sw:      C.av_frame_alloc(),
		tb:      C.fp_time_base(&c.demux, idx),
		startNs: c.startNs,
	}, nil
}

func (c *container) OpenAudio() (media.AudioDecoder, error) {
	if c.info.Audio == nil {
		return nil, media.ErrNoStreams
	}
	idx := C.int(c.info.Audio.Index)

	ctx := C.fp_open_decoder(&c.demux, idx, nil, C.int(c.opts.Threads))
	if ctx == nil {
		return nil, fmt.Errorf("no working decoder for codec %s", c.info.Audio.Codec)
	}
	d := &audioDecoder{
		ctx:     ctx,
		frame:   C.av_frame_alloc(),
		tb:      C.fp_time_base(&c.demux, idx),
		startNs: c.startNs,
		rate:    c.info.Audio.SampleRate,
	}
	if ret := C.fp_resampler_init(&d.rs, ctx); ret < 0 {
		d.Close()
		return nil, averror("resampler", ret)
	}
	c.log.Info().Str("decoder", C.GoString(C.fp_decoder_name(ctx))).Int("rate", d.rate).
		Int("channels", c.info.Audio.Channels).Msg("OpenAudio: decoder ready")
	return d, nil
}

func (c *container) Close() error {
	c.closeOnce.Do(func() {
		C.fp_close(&c.demux)
	})
	return nil
}

// ------------------- packets -------------------

type packet struct {
	pkt  *C.AVPacket
	kind media.StreamKind
}

func (p *packet) Kind() media.StreamKind { return p.kind }

// packetOf maps the end-of-input marker nil to a NULL AVPacket.
func packetOf(p media.Packet) *C.AVPacket {
	if p == nil {
		return nil
	}
	return p.(*packet).pkt
}

func (p *packet) Release() {
	if p.pkt != nil {
		C.av_packet_free(&p.pkt)
	}
}

// ------------------- video -------------------

type videoDecoder struct {
	ctx     *C.AVCodecContext
	frame   *C.AVFrame
	sw      *C.AVFrame
	sws     *C.struct_SwsContext
	tb      C.AVRational
	startNs int64
	last    time.Duration
	pic     picture

	closeOnce sync.Once
}

// SendPacket with a nil packet enters draining mode.
func (d *videoDecoder) SendPacket(p media.Packet) error {
	ret := C.fp_send(d.ctx, packetOf(p))
	if ret < 0 && ret != C.fp_eagain() && ret != C.fp_eof() {
		return averror("send video packet", ret)
	}
	return nil
}

func (d *videoDecoder) ReceiveFrame() (media.Picture, error) {
	ret := C.fp_receive(d.ctx, d.frame)
	switch {
	case ret == C.fp_eagain():
		return nil, media.ErrNeedMore
	case ret == C.fp_eof():
		return nil, io.EOF
	case ret < 0:
		return nil, averror("decode video", ret)
	}

	src := d.frame
	switch r := C.fp_download(d.frame, d.sw); {
	case r < 0:
		return nil, averror("download hardware frame", r)
	case r > 0:
		src = d.sw
	}

	if pts, ok := nsToDuration(C.fp_frame_ns(d.frame, d.tb), d.startNs); ok {
		d.last = pts
	}
	d.pic = picture{d: d, src: src, pts: d.last}
	return &d.pic, nil
}

func (d *videoDecoder) Flush() {
	C.avcodec_flush_buffers(d.ctx)
}

func (d *videoDecoder) Close() error {
	d.closeOnce.Do(func() {
		if d.sws != nil {
			C.sws_freeContext(d.sws)
			d.sws = nil
		}
		C.av_frame_free(&d.sw)
		C.av_frame_free(&d.frame)
		C.avcodec_free_context(&d.ctx)
	})
	return nil
}

type picture struct {
	d   *videoDecoder
	src *C.AVFrame
	pts time.Duration
}

func (p *picture) PTS() time.Duration { return p.pts }

func (p *picture) Size() (int, int) {
	return int(p.src.width), int(p.src.height)
}

func (p *picture) Convert(dst []byte) error {
	w, h := p.Size()
	if w <= 0 || h <= 0 || len(dst) < w*h*4 {
		return fmt.Errorf("convert: buffer %d too small for %dx%d", len(dst), w, h)
	}
	ret := C.fp_convert(&p.d.sws, p.src, (*C.uint8_t)(unsafe.Pointer(&dst[0])), C.int(w), C.int(h))
	if ret < 0 {
		return averror("convert", ret)
	}
	return nil
}

// ------------------- audio -------------------

type audioDecoder struct {
	ctx     *C.AVCodecContext
	frame   *C.AVFrame
	rs      C.Resampler
	tb      C.AVRational
	startNs int64
	rate    int
	last    time.Duration
	// tailDone is set once the resampler was drained after end of input.
	tailDone bool

	closeOnce sync.Once
}

func (d *audioDecoder) SendPacket(p media.Packet) error {
	ret := C.fp_send(d.ctx, packetOf(p))
	if ret < 0 && ret != C.fp_eagain() && ret != C.fp_eof() {
		return averror("send audio packet", ret)
	}
	return nil
}

func (d *audioDecoder) ReceiveChunk() (media.AudioChunk, error) {
	ret := C.fp_receive(d.ctx, d.frame)
	switch {
	case ret == C.fp_eagain():
		return media.AudioChunk{}, media.ErrNeedMore
	case ret == C.fp_eof():
		if d.tailDone {
			return media.AudioChunk{}, io.EOF
		}
		d.tailDone = true
		n := C.fp_resample_tail(&d.rs)
		if n <= 0 {
			return media.AudioChunk{}, io.EOF
		}
		return d.chunk(n), nil
	case ret < 0:
		return media.AudioChunk{}, averror("decode audio", ret)
	}

	n := C.fp_resample(&d.rs, d.frame)
	if n < 0 {
		return media.AudioChunk{}, averror("resample", n)
	}
	if pts, ok := nsToDuration(C.fp_frame_ns(d.frame, d.tb), d.startNs); ok {
		d.last = pts
	}
	return d.chunk(n), nil
}

// chunk wraps the n samples per channel now in the resampler buffer.
func (d *audioDecoder) chunk(n C.int) media.AudioChunk {
	dur := time.Duration(int64(n)) * time.Second / time.Duration(d.rate)
	chunk := media.AudioChunk{PTS: d.last, Duration: dur}
	if n > 0 {
		chunk.Data = unsafe.Slice((*byte)(unsafe.Pointer(d.rs.buf)), int(n)*4)
	}
	d.last += dur
	return chunk
}

func (d *audioDecoder) Flush() {
	C.avcodec_flush_buffers(d.ctx)
	d.tailDone = false
}

func (d *audioDecoder) Close() error {
	d.closeOnce.Do(func() {
		C.fp_resampler_free(&d.rs)
		C.av_frame_free(&d.frame)
		C.avcodec_free_context(&d.ctx)
	})
	return nil
}
