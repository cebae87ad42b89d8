// Package config loads player settings from defaults, an optional YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"flow-player/pkg/player"
	"flow-player/pkg/source"
	"flow-player/pkg/video"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "FLOWPLAY"

// EnvKeyReplacer maps config keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Pacing struct {
	SleepMin      time.Duration `mapstructure:"sleep_min"`
	SleepMax      time.Duration `mapstructure:"sleep_max"`
	DropBelow     time.Duration `mapstructure:"drop_below"`
	Discontinuity time.Duration `mapstructure:"discontinuity"`
}

type Player struct {
	EndEpsilon       time.Duration `mapstructure:"end_epsilon"`
	PositionInterval time.Duration `mapstructure:"position_interval"`
	AudioBuffer      time.Duration `mapstructure:"audio_buffer"`
	HighWater        float64       `mapstructure:"high_water"`
	// FrameQueue 0 sizes the queue from available memory.
	FrameQueue      int           `mapstructure:"frame_queue"`
	EventBuffer     int           `mapstructure:"event_buffer"`
	PausePoll       time.Duration `mapstructure:"pause_poll"`
	JoinTimeout     time.Duration `mapstructure:"join_timeout"`
	GrabTimeout     time.Duration `mapstructure:"grab_timeout"`
	MaxDecodeErrors int           `mapstructure:"max_decode_errors"`
}

type Decoder struct {
	Video         string `mapstructure:"video"`
	ForceSoftware bool   `mapstructure:"force_software"`
	Threads       int    `mapstructure:"threads"`
}

type Source struct {
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	BufferSize  int           `mapstructure:"buffer_size"`
	Reconnect   bool          `mapstructure:"reconnect"`
	CacheDir    string        `mapstructure:"cache_dir"`
}

type S3 struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
}

type Audio struct {
	Device   string  `mapstructure:"device"`
	Disabled bool    `mapstructure:"disabled"`
	Volume   float64 `mapstructure:"volume"`
}

type UI struct {
	Width      int           `mapstructure:"width"`
	Height     int           `mapstructure:"height"`
	Fullscreen bool          `mapstructure:"fullscreen"`
	FPS        int           `mapstructure:"fps"`
	SeekStep   time.Duration `mapstructure:"seek_step"`
	VolumeStep float64       `mapstructure:"volume_step"`
	Font       string        `mapstructure:"font"`
	OSDTimeout time.Duration `mapstructure:"osd_timeout"`
}

// Config is the fully resolved configuration.
type Config struct {
	Log     Log     `mapstructure:"log"`
	Pacing  Pacing  `mapstructure:"pacing"`
	Player  Player  `mapstructure:"player"`
	Decoder Decoder `mapstructure:"decoder"`
	Source  Source  `mapstructure:"source"`
	S3      S3      `mapstructure:"s3"`
	Audio   Audio   `mapstructure:"audio"`
	UI      UI      `mapstructure:"ui"`

	// File is the config file that was read, empty when none.
	File string `mapstructure:"-"`
}

// Load reads .env (when present), then the config file, then the
// environment. An empty path searches ./flow-player.yaml and
// $HOME/.config/flow-player/.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flow-player")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/flow-player")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, cfg.Validate()
}

// Watch re-reads file whenever it changes and hands the result to onChange.
// A reload that fails to decode or validate arrives with a non-nil error and
// should be ignored. Watch does nothing for an empty file.
func Watch(file string, onChange func(*Config, error)) error {
	if file == "" {
		return nil
	}
	v := New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		onChange(decode(v))
	})
	v.WatchConfig()
	return nil
}

// New returns a viper instance with every default and environment binding
// registered.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	v.SetTypeByDefaultValue(true)

	for _, f := range Fields {
		v.SetDefault(f.Key, f.Value)
		names := append([]string{f.Env()}, f.Aliases...)
		_ = v.BindEnv(append([]string{f.Key}, names...)...)
	}
	return v
}

// Validate rejects values the engine cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Pacing.SleepMin < 0 || c.Pacing.SleepMax <= c.Pacing.SleepMin {
		errs = append(errs, fmt.Errorf("pacing: sleep_max (%s) must exceed sleep_min (%s)", c.Pacing.SleepMax, c.Pacing.SleepMin))
	}
	if c.Pacing.DropBelow > 0 {
		errs = append(errs, fmt.Errorf("pacing: drop_below must not be positive, got %s", c.Pacing.DropBelow))
	}
	if c.Pacing.Discontinuity <= c.Pacing.SleepMax {
		errs = append(errs, fmt.Errorf("pacing: discontinuity (%s) must exceed sleep_max (%s)", c.Pacing.Discontinuity, c.Pacing.SleepMax))
	}
	if c.Player.HighWater <= 0 || c.Player.HighWater > 1 {
		errs = append(errs, fmt.Errorf("player: high_water must be in (0,1], got %v", c.Player.HighWater))
	}
	if c.Player.FrameQueue < 0 {
		errs = append(errs, fmt.Errorf("player: frame_queue must not be negative"))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio: volume must be in [0,1], got %v", c.Audio.Volume))
	}
	return errors.Join(errs...)
}

// PlayerOptions converts the engine settings. Resolve and Logger are left for
// the caller.
func (c *Config) PlayerOptions() player.Options {
	return player.Options{
		Pacing: video.Thresholds{
			SleepMin:      c.Pacing.SleepMin,
			SleepMax:      c.Pacing.SleepMax,
			DropBelow:     c.Pacing.DropBelow,
			Discontinuity: c.Pacing.Discontinuity,
		},
		EndEpsilon:       c.Player.EndEpsilon,
		PositionInterval: c.Player.PositionInterval,
		AudioBuffer:      c.Player.AudioBuffer,
		HighWater:        c.Player.HighWater,
		FrameQueue:       c.Player.FrameQueue,
		EventBuffer:      c.Player.EventBuffer,
		PausePoll:        c.Player.PausePoll,
		JoinTimeout:      c.Player.JoinTimeout,
		GrabTimeout:      c.Player.GrabTimeout,
		MaxDecodeErrors:  c.Player.MaxDecodeErrors,
	}
}

func (c *Config) SourceOptions() source.Options {
	return source.Options{
		ReadTimeout: c.Source.ReadTimeout,
		BufferSize:  c.Source.BufferSize,
		Reconnect:   c.Source.Reconnect,
		CacheDir:    c.Source.CacheDir,
		S3: source.S3Options{
			Region:    c.S3.Region,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Endpoint:  c.S3.Endpoint,
		},
	}
}
