package input

import (
	"time"

	"github.com/samber/lo"
	"github.com/veandco/go-sdl2/sdl"
)

// Command is a transport action triggered from the keyboard or mouse.
type Command int

const (
	None Command = iota
	TogglePause
	SeekForward
	SeekBack
	ToggleMute
	VolumeUp
	VolumeDown
	Stop
	Quit
)

func (c Command) String() string {
	switch c {
	case TogglePause:
		return "toggle_pause"
	case SeekForward:
		return "seek_forward"
	case SeekBack:
		return "seek_back"
	case ToggleMute:
		return "toggle_mute"
	case VolumeUp:
		return "volume_up"
	case VolumeDown:
		return "volume_down"
	case Stop:
		return "stop"
	case Quit:
		return "quit"
	default:
		return "none"
	}
}

// Binding maps one key to a command.
type Binding struct {
	Key     sdl.Scancode
	Command Command
}

func DefaultBindings() []Binding {
	return []Binding{
		{sdl.SCANCODE_SPACE, TogglePause},
		{sdl.SCANCODE_RIGHT, SeekForward},
		{sdl.SCANCODE_LEFT, SeekBack},
		{sdl.SCANCODE_M, ToggleMute},
		{sdl.SCANCODE_UP, VolumeUp},
		{sdl.SCANCODE_DOWN, VolumeDown},
		{sdl.SCANCODE_S, Stop},
		{sdl.SCANCODE_ESCAPE, Quit},
		{sdl.SCANCODE_Q, Quit},
	}
}

// Controls turns raw key and mouse state into commands, once per press.
type Controls struct {
	keys     KeyPressTracker
	mouse    MousePressTracker
	bindings []Binding
}

func NewControls(bindings []Binding) *Controls {
	return &Controls{
		keys:     NewKeyPressTracker(),
		mouse:    NewMousePressTracker(),
		bindings: bindings,
	}
}

// Poll returns the commands whose key went down since the last call. A left
// click toggles pause.
func (c *Controls) Poll(keyState []uint8, mouseState uint32) []Command {
	var out []Command
	for _, b := range c.bindings {
		if c.keys.IsPressed(keyState, b.Key) {
			out = append(out, b.Command)
		}
	}
	if c.mouse.IsPressed(mouseState, sdl.ButtonLMask()) {
		out = append(out, TogglePause)
	}
	return lo.Uniq(out)
}

// Transport is the part of the player that commands drive.
type Transport interface {
	TogglePlayPause()
	SeekBy(delta time.Duration) bool
	ToggleMute()
	Volume() float64
	SetVolume(v float64)
	Stop()
}

// Steps size the relative commands.
type Steps struct {
	Seek   time.Duration
	Volume float64
}

func DefaultSteps() Steps {
	return Steps{Seek: 10 * time.Second, Volume: 0.1}
}

// Apply runs cmd against t. It reports false for Quit.
func Apply(t Transport, cmd Command, steps Steps) bool {
	switch cmd {
	case TogglePause:
		t.TogglePlayPause()
	case SeekForward:
		t.SeekBy(steps.Seek)
	case SeekBack:
		t.SeekBy(-steps.Seek)
	case ToggleMute:
		t.ToggleMute()
	case VolumeUp:
		t.SetVolume(t.Volume() + steps.Volume)
	case VolumeDown:
		t.SetVolume(t.Volume() - steps.Volume)
	case Stop:
		t.Stop()
	case Quit:
		return false
	}
	return true
}
