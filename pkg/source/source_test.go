package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	gets    atomic.Int32
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	body, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.gets.Add(1)
	body, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestClassify(t *testing.T) {
	Convey("Classify", t, func() {
		cases := map[string]Kind{
			"movie.mp4":                Local,
			"/videos/movie.mkv":        Local,
			"file:///videos/movie.mkv": Local,
			"http://host/a.m3u8":       Network,
			"HTTPS://host/a.mp4":       Network,
			"rtsp://cam/stream":        Network,
			"rtmp://live/app":          Network,
			"udp://239.0.0.1:1234":     Network,
			"tcp://host:9000":          Network,
			"s3://bucket/key.mp4":      S3,
		}
		for path, want := range cases {
			kind, _, err := Classify(path)
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, want)
		}

		_, scheme, err := Classify("gopher://x/y")
		So(errors.Is(err, ErrUnsupportedScheme), ShouldBeTrue)
		So(scheme, ShouldEqual, "gopher")
	})
}

func TestResolve(t *testing.T) {
	Convey("Given a resolver", t, func() {
		dir := t.TempDir()
		opts := DefaultOptions()
		opts.ReadTimeout = 3 * time.Second
		opts.BufferSize = 1 << 20
		opts.CacheDir = dir
		r := NewResolver(opts, zerolog.Nop())
		ctx := context.Background()

		Convey("Local files must exist", func() {
			path := filepath.Join(dir, "clip.mp4")
			So(os.WriteFile(path, []byte("x"), 0o644), ShouldBeNil)

			loc, err := r.Resolve(ctx, path)
			So(err, ShouldBeNil)
			So(loc.URL, ShouldEqual, path)
			So(loc.Network, ShouldBeFalse)

			loc, err = r.Resolve(ctx, "file://"+path)
			So(err, ShouldBeNil)
			So(loc.URL, ShouldEqual, path)

			_, err = r.Resolve(ctx, filepath.Join(dir, "missing.mp4"))
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)

			_, err = r.Resolve(ctx, "")
			So(err, ShouldNotBeNil)
		})

		Convey("HTTP inputs get timeout and reconnect options", func() {
			loc, err := r.Resolve(ctx, "https://cdn/video.mp4")
			So(err, ShouldBeNil)
			So(loc.Network, ShouldBeTrue)
			So(loc.Options["rw_timeout"], ShouldEqual, "3000000")
			So(loc.Options["reconnect"], ShouldEqual, "1")
			So(loc.Options, ShouldNotContainKey, "buffer_size")
		})

		Convey("UDP inputs get a receive buffer", func() {
			loc, err := r.Resolve(ctx, "udp://239.0.0.1:1234")
			So(err, ShouldBeNil)
			So(loc.Options["buffer_size"], ShouldEqual, "1048576")
			So(loc.Options, ShouldNotContainKey, "reconnect")
		})

		Convey("RTSP uses TCP transport", func() {
			loc, err := r.Resolve(ctx, "rtsp://cam/stream")
			So(err, ShouldBeNil)
			So(loc.Options["rtsp_transport"], ShouldEqual, "tcp")
			So(loc.Options["timeout"], ShouldEqual, "3000000")
		})

		Convey("S3 objects are downloaded once into the cache", func() {
			client := &fakeS3{objects: map[string]string{"media/show/ep1.mp4": "payload"}}
			r.WithStore(NewS3StoreWithClient(client, dir, zerolog.Nop()))

			loc, err := r.Resolve(ctx, "s3://media/show/ep1.mp4")
			So(err, ShouldBeNil)
			So(loc.URL, ShouldEqual, filepath.Join(dir, "media", "show", "ep1.mp4"))
			data, err := os.ReadFile(loc.URL)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "payload")

			_, err = r.Resolve(ctx, "s3://media/show/ep1.mp4")
			So(err, ShouldBeNil)
			So(client.gets.Load(), ShouldEqual, 1)

			_, err = r.Resolve(ctx, "s3://media/show/missing.mp4")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseS3(t *testing.T) {
	Convey("ParseS3", t, func() {
		bucket, key, err := ParseS3("s3://b/dir/file.mp4")
		So(err, ShouldBeNil)
		So(bucket, ShouldEqual, "b")
		So(key, ShouldEqual, "dir/file.mp4")

		for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3://bucket/dir/", "http://b/k"} {
			_, _, err := ParseS3(bad)
			So(err, ShouldNotBeNil)
		}
	})
}
