package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/veandco/go-sdl2/sdl"

	"flow-player/pkg/audio"
	"flow-player/pkg/config"
	"flow-player/pkg/input"
	"flow-player/pkg/performance"
	"flow-player/pkg/player"
	"flow-player/pkg/sdlout"
	"flow-player/pkg/settings"
	"flow-player/ui"
)

var (
	playStart      time.Duration
	playLoop       bool
	playFullscreen bool
	playNoAudio    bool
	playResume     bool
	playState      string
)

var playCmd = &cobra.Command{
	Use:   "play <path>",
	Short: "Play a file, URL or s3:// object in an SDL window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(args[0])
	},
}

func init() {
	playCmd.Flags().DurationVar(&playStart, "start", 0, "Seek to this position once playback starts")
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "Restart at the end instead of exiting")
	playCmd.Flags().BoolVar(&playFullscreen, "fullscreen", false, "Override ui.fullscreen")
	playCmd.Flags().BoolVar(&playNoAudio, "no-audio", false, "Override audio.disabled")
	playCmd.Flags().BoolVar(&playResume, "resume", true, "Continue where this path was left last time")
	playCmd.Flags().StringVar(&playState, "state", settings.DefaultPath(), "File keeping volume and resume positions")
}

func runPlay(path string) error {
	if err := initializeSDL(); err != nil {
		return err
	}
	defer sdl.Quit()

	window, err := createWindow(filepath.Base(path), int32(cfg.UI.Width), int32(cfg.UI.Height), cfg.UI.Fullscreen || playFullscreen)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer window.Destroy()

	renderer, err := createRenderer(window)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer renderer.Destroy()

	opts := cfg.PlayerOptions()
	opts.Logger = logger
	opts.Resolve = newResolver().Resolve
	if opts.FrameQueue == 0 {
		w, h, _ := renderer.GetOutputSize()
		opts.FrameQueue = performance.FrameQueueDepth(performance.GetSystemMemory().AvailableMB, int(w), int(h))
		logger.Debug().Int("depth", opts.FrameQueue).Msg("Frame queue sized from available memory")
	}

	opener := sdlout.Opener(cfg.Audio.Device, logger)
	if cfg.Audio.Disabled || playNoAudio || !audioAvailable() {
		logger.Info().Msg("Audio output disabled, using null device")
		opener = audio.NullOpener()
	}

	p := player.New(newBackend(), opener, opts)
	defer p.Close()

	err = config.Watch(cfg.File, func(c *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("Config reload rejected")
			return
		}
		p.SetPacing(c.PlayerOptions().Pacing)
		logger.Info().Str("file", c.File).Msg("Pacing reloaded")
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Not watching config file")
	}

	state := settings.Load(playState)
	p.SetVolume(cfg.Audio.Volume)
	if _, err := os.Stat(playState); err == nil {
		p.SetVolume(state.Volume)
		if state.Muted {
			p.Mute()
		}
	}
	if pos, ok := state.Resume[path]; ok && playResume && playStart == 0 {
		logger.Info().Dur("position", pos).Msg("Resuming")
		playStart = pos
	}

	presenter := sdlout.NewPresenter(renderer, p.Frames())
	defer presenter.Close()

	fonts, err := ui.LoadFonts(cfg.UI.Font)
	if err != nil {
		logger.Warn().Err(err).Msg("Overlay text disabled")
		fonts = nil
	} else {
		defer fonts.Close()
	}
	osd := ui.NewOSD(fonts, cfg.UI.OSDTimeout)

	if err := p.Play(path); err != nil {
		return err
	}
	err = runLoop(p, presenter, osd, renderer, path)

	state.Volume = p.Volume()
	state.Muted = p.IsMuted()
	state.Remember(path, p.Position(), p.Duration())
	if serr := settings.Save(playState, state); serr != nil {
		logger.Warn().Err(serr).Str("file", playState).Msg("Failed to save playback state")
	}
	return err
}

func runLoop(p *player.Player, presenter *sdlout.Presenter, osd *ui.OSD, renderer *sdl.Renderer, path string) error {
	controls := input.NewControls(input.DefaultBindings())
	steps := input.Steps{Seek: cfg.UI.SeekStep, Volume: cfg.UI.VolumeStep}
	frameTime := time.Second / time.Duration(max(cfg.UI.FPS, 1))
	lastTime := time.Now()
	lastReport := time.Now()
	startPending := playStart > 0
	ended := false

	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			if _, ok := event.(*sdl.QuitEvent); ok {
				return nil
			}
		}

		_, _, mouse := sdl.GetMouseState()
		for _, c := range controls.Poll(sdl.GetKeyboardState(), mouse) {
			logger.Debug().Stringer("command", c).Msg("Input")
			osd.Poke()
			if !input.Apply(p, c, steps) {
				return nil
			}
		}

	drain:
		for {
			select {
			case ev, ok := <-p.Events():
				if !ok {
					return nil
				}
				switch ev.Kind {
				case player.EventPaused:
					osd.SetSticky(true)
				case player.EventPlaying:
					presenter.SetMinEpoch(ev.Epoch)
					osd.SetSticky(false)
					if startPending {
						startPending = false
						p.Seek(playStart)
					}
				case player.EventSeeked:
					presenter.SetMinEpoch(ev.Epoch)
				case player.EventEndReached:
					ended = true
				case player.EventError:
					if errors.Is(ev.Err, player.ErrOpen) || errors.Is(ev.Err, player.ErrDecodeStalled) {
						return ev.Err
					}
					logger.Error().Err(ev.Err).Msg("Playback error")
				case player.EventStopped:
					presenter.Clear()
					osd.SetSticky(true)
					if ended {
						if !playLoop {
							return nil
						}
						ended = false
						if err := p.Play(path); err != nil {
							return err
						}
					}
				}
			default:
				break drain
			}
		}

		if _, err := presenter.Update(); err != nil {
			return err
		}

		w, h, err := renderer.GetOutputSize()
		if err != nil {
			return err
		}
		renderer.SetDrawColor(0, 0, 0, 255)
		renderer.Clear()
		if err := presenter.Draw(w, h); err != nil {
			return err
		}
		if err := osd.Draw(renderer, w, h, ui.Status{
			Position: p.Position(),
			Duration: p.Duration(),
			State:    p.State().String(),
			Volume:   p.Volume(),
			Muted:    p.IsMuted(),
		}); err != nil {
			logger.Debug().Err(err).Msg("Overlay draw failed")
		}
		renderer.Present()

		if time.Since(lastReport) >= 10*time.Second {
			lastReport = time.Now()
			st := p.Stats()
			ev := logger.Debug()
			if st.Performance.DropRate > 10 {
				ev = logger.Warn()
			}
			ev.Str("state", st.State.String()).
				Dur("position", st.Position).
				Uint64("shown", presenter.Shown()).
				Float64("drop_rate", st.Performance.DropRate).
				Msg("Playback stats")
		}

		elapsed := time.Since(lastTime)
		if elapsed < frameTime {
			time.Sleep(frameTime - elapsed)
		}
		lastTime = time.Now()
	}
}
