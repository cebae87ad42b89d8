package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	Convey("Given no config file", t, func() {
		cfg, err := Load("")
		So(err, ShouldBeNil)
		So(cfg.File, ShouldBeEmpty)

		Convey("Defaults match the stock engine tuning", func() {
			opts := cfg.PlayerOptions()
			So(opts.Pacing.SleepMin, ShouldEqual, 10*time.Millisecond)
			So(opts.Pacing.SleepMax, ShouldEqual, 500*time.Millisecond)
			So(opts.Pacing.DropBelow, ShouldEqual, -50*time.Millisecond)
			So(opts.Pacing.Discontinuity, ShouldEqual, time.Second)
			So(opts.EndEpsilon, ShouldEqual, 2*time.Second)
			So(opts.HighWater, ShouldEqual, 0.75)
			So(opts.MaxDecodeErrors, ShouldEqual, 50)
			So(cfg.Source.CacheDir, ShouldEqual, "assets/videos")
			So(cfg.Audio.Volume, ShouldEqual, 1.0)
		})
	})

	Convey("Given a YAML file", t, func() {
		path := filepath.Join(t.TempDir(), "player.yaml")
		So(os.WriteFile(path, []byte(`
log:
  level: debug
pacing:
  sleep_min: 5ms
player:
  end_epsilon: 500ms
  frame_queue: 3
source:
  read_timeout: 2s
`), 0o644), ShouldBeNil)

		cfg, err := Load(path)
		So(err, ShouldBeNil)
		So(cfg.File, ShouldEqual, path)
		So(cfg.Log.Level, ShouldEqual, "debug")
		So(cfg.Pacing.SleepMin, ShouldEqual, 5*time.Millisecond)
		So(cfg.Pacing.SleepMax, ShouldEqual, 500*time.Millisecond)
		So(cfg.Player.EndEpsilon, ShouldEqual, 500*time.Millisecond)
		So(cfg.Player.FrameQueue, ShouldEqual, 3)
		So(cfg.SourceOptions().ReadTimeout, ShouldEqual, 2*time.Second)

		Convey("The environment wins over the file", func() {
			t.Setenv("FLOWPLAY_PLAYER_END_EPSILON", "1s")
			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.Player.EndEpsilon, ShouldEqual, time.Second)
		})
	})

	Convey("A missing explicit file is an error", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("Legacy environment variables are honoured", t, func() {
		t.Setenv("VIDEO_DECODER", "h264_v4l2m2m")
		t.Setenv("FORCE_SOFTWARE_DECODER", "1")
		t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
		t.Setenv("AWS_ACCESS_KEY_ID", "id")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

		cfg, err := Load("")
		So(err, ShouldBeNil)
		So(cfg.Decoder.Video, ShouldEqual, "h264_v4l2m2m")
		So(cfg.Decoder.ForceSoftware, ShouldBeTrue)

		s3 := cfg.SourceOptions().S3
		So(s3.Region, ShouldEqual, "eu-west-1")
		So(s3.AccessKey, ShouldEqual, "id")
		So(s3.SecretKey, ShouldEqual, "secret")

		Convey("The prefixed name takes precedence", func() {
			t.Setenv("FLOWPLAY_DECODER_VIDEO", "h264")
			cfg, err := Load("")
			So(err, ShouldBeNil)
			So(cfg.Decoder.Video, ShouldEqual, "h264")
		})
	})

	Convey("Invalid values are rejected", t, func() {
		t.Setenv("FLOWPLAY_PACING_SLEEP_MAX", "5ms")
		t.Setenv("FLOWPLAY_PLAYER_HIGH_WATER", "1.5")
		_, err := Load("")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "sleep_max")
		So(err.Error(), ShouldContainSubstring, "high_water")
	})
}

func TestWatch(t *testing.T) {
	Convey("Watching a config file", t, func() {
		path := filepath.Join(t.TempDir(), "player.yaml")
		So(os.WriteFile(path, []byte("pacing:\n  sleep_max: 400ms\n"), 0o644), ShouldBeNil)

		type reload struct {
			cfg *Config
			err error
		}
		got := make(chan reload, 8)
		So(Watch(path, func(c *Config, err error) { got <- reload{c, err} }), ShouldBeNil)

		next := func() (reload, bool) {
			select {
			case r := <-got:
				return r, true
			case <-time.After(3 * time.Second):
				return reload{}, false
			}
		}

		Convey("delivers the new pacing after an edit", func() {
			So(os.WriteFile(path, []byte("pacing:\n  sleep_max: 300ms\n"), 0o644), ShouldBeNil)
			r, ok := next()
			So(ok, ShouldBeTrue)
			So(r.err, ShouldBeNil)
			So(r.cfg.PlayerOptions().Pacing.SleepMax, ShouldEqual, 300*time.Millisecond)
			So(r.cfg.File, ShouldEqual, path)
		})

		Convey("reports an edit that fails validation", func() {
			So(os.WriteFile(path, []byte("pacing:\n  sleep_max: 1ms\n"), 0o644), ShouldBeNil)
			r, ok := next()
			So(ok, ShouldBeTrue)
			So(r.err, ShouldNotBeNil)
			So(r.err.Error(), ShouldContainSubstring, "sleep_max")
		})
	})

	Convey("Watch without a file is a no-op", t, func() {
		So(Watch("", func(*Config, error) { panic("unexpected reload") }), ShouldBeNil)
	})
}

func TestFields(t *testing.T) {
	Convey("Fields", t, func() {
		So(len(Fields), ShouldBeGreaterThan, 20)

		f := Field{Key: "player.end_epsilon"}
		So(f.Env(), ShouldEqual, "FLOWPLAY_PLAYER_END_EPSILON")
		So(EnvKeyReplacer.Replace("a.b.c"), ShouldEqual, "a_b_c")

		v := New()
		for _, f := range Fields {
			So(v.IsSet(f.Key), ShouldBeTrue)
		}
	})
}
