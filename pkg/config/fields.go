package config

import "strings"

// Field is one configuration key with its default.
type Field struct {
	Key         string
	Value       any
	Description string
	// Aliases are extra environment variables honoured for the key.
	Aliases []string
}

// Env returns the prefixed environment variable name.
func (f Field) Env() string {
	return EnvPrefix + "_" + strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
}

// Fields lists every key in registration order.
var Fields []Field

func register(key string, value any, desc string, aliases ...string) {
	for _, f := range Fields {
		if f.Key == key {
			panic("duplicate config key: " + key)
		}
	}
	Fields = append(Fields, Field{Key: key, Value: value, Description: desc, Aliases: aliases})
}

func init() {
	register("log.level", "info", "panic, fatal, error, warn, info, debug, trace")
	register("log.pretty", true, "Human readable console output instead of JSON")

	register("pacing.sleep_min", "10ms", "Frames further ahead than this are waited for")
	register("pacing.sleep_max", "500ms", "Frames further ahead than this are rendered at once")
	register("pacing.drop_below", "-50ms", "Frames later than this are dropped")
	register("pacing.discontinuity", "1s", "Larger gaps are timestamp jumps and render at once")

	register("player.end_epsilon", "2s", "Distance from the duration that counts as end of stream")
	register("player.position_interval", "100ms", "Minimum clock movement between position updates")
	register("player.audio_buffer", "300ms", "Audio device queue capacity")
	register("player.high_water", 0.75, "Device fill ratio above which reading pauses")
	register("player.frame_queue", 0, "Undelivered frames kept for the renderer; 0 sizes from memory")
	register("player.event_buffer", 64, "Event channel capacity")
	register("player.pause_poll", "50ms", "How often a paused worker re-checks its intents")
	register("player.join_timeout", "500ms", "How long Stop waits for the worker")
	register("player.grab_timeout", "5s", "Default thumbnail grab timeout")
	register("player.max_decode_errors", 50, "Consecutive decode failures before giving up")

	register("decoder.video", "", "Preferred video decoder name", "VIDEO_DECODER")
	register("decoder.force_software", false, "Never try hardware decoders", "FORCE_SOFTWARE_DECODER")
	register("decoder.threads", 0, "Decoder threads, 0 for automatic")

	register("source.read_timeout", "10s", "Network read timeout")
	register("source.buffer_size", 0, "Socket receive buffer for udp/tcp inputs")
	register("source.reconnect", true, "Reconnect dropped HTTP inputs")
	register("source.cache_dir", "assets/videos", "Where s3:// objects are downloaded")

	register("s3.region", "", "AWS region", "AWS_DEFAULT_REGION", "AWS_REGION")
	register("s3.access_key", "", "AWS access key id", "AWS_ACCESS_KEY_ID")
	register("s3.secret_key", "", "AWS secret access key", "AWS_SECRET_ACCESS_KEY")
	register("s3.endpoint", "", "S3 compatible endpoint URL")

	register("audio.device", "", "SDL output device name, empty for the default")
	register("audio.disabled", false, "Discard audio instead of opening a device")
	register("audio.volume", 1.0, "Initial volume in [0,1]")

	register("ui.width", 1280, "Window width")
	register("ui.height", 720, "Window height")
	register("ui.fullscreen", false, "Open a borderless fullscreen window")
	register("ui.fps", 60, "Render loop rate")
	register("ui.seek_step", "10s", "Arrow key seek distance")
	register("ui.volume_step", 0.1, "Up/down volume step")
	register("ui.font", "", "TrueType font for the overlay; system fonts are tried after it")
	register("ui.osd_timeout", "3s", "How long the overlay stays up after input")
}
