// Package source turns user supplied paths into locators the demuxer can open.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"flow-player/pkg/media"
)

// Kind classifies a path.
type Kind int

const (
	Local Kind = iota
	Network
	S3
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case S3:
		return "s3"
	default:
		return "local"
	}
}

var networkSchemes = []string{"http", "https", "rtsp", "rtmp", "udp", "tcp"}

// ErrUnsupportedScheme is returned for URLs with a scheme we cannot open.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Options configure network inputs and the s3 cache.
type Options struct {
	// ReadTimeout aborts a blocked network read (rw_timeout).
	ReadTimeout time.Duration
	// BufferSize is the socket receive buffer for udp/tcp inputs; 0 keeps
	// the FFmpeg default.
	BufferSize int
	// Reconnect enables HTTP reconnects on dropped connections.
	Reconnect bool
	// CacheDir receives downloaded s3 objects.
	CacheDir string
	S3       S3Options
}

func DefaultOptions() Options {
	return Options{
		ReadTimeout: 10 * time.Second,
		Reconnect:   true,
		CacheDir:    "assets/videos",
	}
}

// Classify reports the kind of path and its scheme ("" for plain paths).
func Classify(path string) (Kind, string, error) {
	i := strings.Index(path, "://")
	if i <= 0 {
		return Local, "", nil
	}
	scheme := strings.ToLower(path[:i])
	switch {
	case scheme == "file":
		return Local, scheme, nil
	case scheme == "s3":
		return S3, scheme, nil
	case lo.Contains(networkSchemes, scheme):
		return Network, scheme, nil
	}
	return Local, scheme, fmt.Errorf("%w %q", ErrUnsupportedScheme, scheme)
}

// Resolver implements player.Options.Resolve.
type Resolver struct {
	opts  Options
	log   zerolog.Logger
	store *S3Store
}

func NewResolver(opts Options, log zerolog.Logger) *Resolver {
	return &Resolver{opts: opts, log: log.With().Str("component", "source").Logger()}
}

// WithStore overrides the s3 store, mainly for tests.
func (r *Resolver) WithStore(store *S3Store) *Resolver {
	r.store = store
	return r
}

func (r *Resolver) Resolve(ctx context.Context, path string) (media.Locator, error) {
	if path == "" {
		return media.Locator{}, errors.New("empty path")
	}
	kind, scheme, err := Classify(path)
	if err != nil {
		return media.Locator{}, err
	}

	switch kind {
	case Network:
		loc := media.Locator{URL: path, Network: true, Options: r.networkOptions(scheme)}
		r.log.Debug().Str("url", path).Str("scheme", scheme).Msg("Resolve: network input")
		return loc, nil

	case S3:
		if r.store == nil {
			store, err := NewS3Store(r.opts.S3, r.opts.CacheDir, r.log)
			if err != nil {
				return media.Locator{}, err
			}
			r.store = store
		}
		bucket, key, err := ParseS3(path)
		if err != nil {
			return media.Locator{}, err
		}
		local, err := r.store.Fetch(ctx, bucket, key)
		if err != nil {
			return media.Locator{}, err
		}
		return media.Locator{URL: local}, nil
	}

	local := path
	if scheme == "file" {
		u, err := url.Parse(path)
		if err != nil {
			return media.Locator{}, fmt.Errorf("bad file url %q: %w", path, err)
		}
		local = u.Path
	}
	if _, err := os.Stat(local); err != nil {
		return media.Locator{}, err
	}
	return media.Locator{URL: local}, nil
}

func (r *Resolver) networkOptions(scheme string) map[string]string {
	opts := map[string]string{}
	if r.opts.ReadTimeout > 0 {
		us := strconv.FormatInt(r.opts.ReadTimeout.Microseconds(), 10)
		opts["rw_timeout"] = us
		if scheme == "rtsp" {
			opts["timeout"] = us
		}
	}
	if r.opts.BufferSize > 0 && (scheme == "udp" || scheme == "tcp") {
		opts["buffer_size"] = strconv.Itoa(r.opts.BufferSize)
	}
	if r.opts.Reconnect && (scheme == "http" || scheme == "https") {
		opts["reconnect"] = "1"
		opts["reconnect_streamed"] = "1"
		opts["reconnect_delay_max"] = "5"
	}
	if scheme == "rtsp" {
		opts["rtsp_transport"] = "tcp"
	}
	return opts
}
