package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"
)

// initializeSDL initializes SDL2 with fallback video drivers. Audio is
// optional; playback falls back to a null device without it.
func initializeSDL() error {
	var videoDrivers []string
	if envDriver := os.Getenv("SDL_VIDEODRIVER"); envDriver != "" {
		logger.Info().Str("driver", envDriver).Msg("Using environment SDL_VIDEODRIVER")
		videoDrivers = []string{envDriver, "fbcon", "software", "dummy"}
	} else if runtime.GOOS == "darwin" {
		videoDrivers = []string{"cocoa", "software", "dummy"}
	} else {
		// kmsdrm first: direct GPU access on single-board computers
		videoDrivers = []string{"kmsdrm", "drm", "fbcon", "wayland", "x11", "software", "dummy"}
	}

	if model, err := os.ReadFile("/proc/device-tree/model"); err == nil {
		logger.Info().Str("device", string(model)).Msg("System information")
	}

	for _, driver := range videoDrivers {
		logger.Debug().Str("driver", driver).Msg("Attempting SDL2 initialization")
		os.Setenv("SDL_VIDEODRIVER", driver)

		if err := trySDLInitialization(driver); err != nil {
			logger.Debug().Err(err).Str("driver", driver).Msg("SDL2 initialization failed")
			continue
		}

		logger.Info().Str("driver", driver).Msg("SDL2 initialized")
		return nil
	}

	return fmt.Errorf("all SDL2 video drivers failed")
}

func trySDLInitialization(driver string) error {
	sdl.Quit()

	sdl.SetHint(sdl.HINT_VIDEODRIVER, driver)
	switch driver {
	case "kmsdrm":
		sdl.SetHint("SDL_KMSDRM_REQUIRE_DRM_MASTER", "1")
		sdl.SetHint("SDL_VIDEO_KMSDRM_DEVINDEX", "0")
		// Prevent async flips that cause VC4 errors
		sdl.SetHint("SDL_RENDER_VSYNC", "1")
	case "fbcon":
		sdl.SetHint("SDL_FBDEV", "/dev/fb0")
	case "wayland":
		sdl.SetHint("SDL_VIDEO_WAYLAND_WMCLASS", "flow-player")
	case "software":
		sdl.SetHint("SDL_FRAMEBUFFER_ACCELERATION", "0")
	}

	sdl.SetHint(sdl.HINT_RENDER_BATCHING, "1")
	switch driver {
	case "kmsdrm", "drm":
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, "opengles2")
	case "cocoa":
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, "opengl")
	case "x11", "wayland":
	default:
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, "software")
	}
	sdl.SetHint(sdl.HINT_VIDEO_MINIMIZE_ON_FOCUS_LOSS, "0")

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("SDL_INIT_VIDEO failed: %v", err)
	}
	if _, err := sdl.GetCurrentVideoDriver(); err != nil {
		return fmt.Errorf("failed to get video driver: %v", err)
	}

	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		logger.Warn().Err(err).Msg("Audio initialization failed, continuing without audio")
	}
	return nil
}

func audioAvailable() bool {
	return sdl.WasInit(sdl.INIT_AUDIO)&sdl.INIT_AUDIO != 0
}

func createWindow(title string, width, height int32, fullscreen bool) (*sdl.Window, error) {
	var flags uint32 = sdl.WINDOW_SHOWN | sdl.WINDOW_RESIZABLE
	x, y := int32(sdl.WINDOWPOS_CENTERED), int32(sdl.WINDOWPOS_CENTERED)
	if fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
		if mode, err := sdl.GetCurrentDisplayMode(0); err == nil {
			width, height = mode.W, mode.H
		}
		x, y = 0, 0
	}
	return sdl.CreateWindow(title, x, y, width, height, flags)
}

// createRenderer tries hardware acceleration first and falls back to the
// software renderer.
func createRenderer(window *sdl.Window) (*sdl.Renderer, error) {
	currentDriver, err := sdl.GetCurrentVideoDriver()
	if err != nil {
		currentDriver = "unknown"
	}

	var renderer *sdl.Renderer
	if currentDriver != "dummy" && currentDriver != "software" && currentDriver != "fbcon" {
		var flags uint32 = sdl.RENDERER_ACCELERATED
		// Skip VSync for kmsdrm to avoid VC4 async flip errors
		if currentDriver != "kmsdrm" {
			flags |= sdl.RENDERER_PRESENTVSYNC
		}
		renderer, err = sdl.CreateRenderer(window, -1, flags)
		if err != nil {
			logger.Warn().Err(err).Str("driver", currentDriver).Msg("Hardware acceleration failed, trying software")
		}
	}

	if renderer == nil {
		logger.Info().Str("driver", currentDriver).Msg("Using software renderer")
		renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_SOFTWARE)
		if err != nil {
			return nil, err
		}
	}
	return renderer, nil
}
