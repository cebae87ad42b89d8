package input

import "github.com/veandco/go-sdl2/sdl"

// edges reports the up-to-down transition of each input it has seen.
type edges[K comparable] map[K]bool

func (e edges[K]) rising(k K, down bool) bool {
	was := e[k]
	e[k] = down
	return down && !was
}

// KeyPressTracker turns the SDL keyboard snapshot into single presses, so a
// held key fires once.
type KeyPressTracker struct {
	down edges[sdl.Scancode]
}

func NewKeyPressTracker() KeyPressTracker {
	return KeyPressTracker{down: edges[sdl.Scancode]{}}
}

// IsPressed is true on the first poll that sees scancode held. Scancodes
// outside keyState count as released.
func (t *KeyPressTracker) IsPressed(keyState []uint8, scancode sdl.Scancode) bool {
	held := int(scancode) < len(keyState) && keyState[scancode] != 0
	return t.down.rising(scancode, held)
}

// MousePressTracker does the same for mouse buttons, keyed by SDL button
// mask (e.g. sdl.ButtonLMask()).
type MousePressTracker struct {
	down edges[uint32]
}

func NewMousePressTracker() MousePressTracker {
	return MousePressTracker{down: edges[uint32]{}}
}

func (t *MousePressTracker) IsPressed(mouseState, buttonMask uint32) bool {
	return t.down.rising(buttonMask, mouseState&buttonMask != 0)
}
