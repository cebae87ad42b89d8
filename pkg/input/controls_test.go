package input

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/veandco/go-sdl2/sdl"
)

type fakeTransport struct {
	toggles int
	seeks   []time.Duration
	muted   bool
	volume  float64
	stopped bool
}

func (f *fakeTransport) TogglePlayPause() { f.toggles++ }
func (f *fakeTransport) SeekBy(d time.Duration) bool {
	f.seeks = append(f.seeks, d)
	return true
}
func (f *fakeTransport) ToggleMute()         { f.muted = !f.muted }
func (f *fakeTransport) Volume() float64     { return f.volume }
func (f *fakeTransport) SetVolume(v float64) { f.volume = v }
func (f *fakeTransport) Stop()               { f.stopped = true }

func keys(pressed ...sdl.Scancode) []uint8 {
	state := make([]uint8, sdl.NUM_SCANCODES)
	for _, k := range pressed {
		state[k] = 1
	}
	return state
}

func TestControls(t *testing.T) {
	Convey("Given the default bindings", t, func() {
		c := NewControls(DefaultBindings())

		Convey("A held key fires once", func() {
			So(c.Poll(keys(sdl.SCANCODE_SPACE), 0), ShouldResemble, []Command{TogglePause})
			So(c.Poll(keys(sdl.SCANCODE_SPACE), 0), ShouldBeEmpty)
			So(c.Poll(keys(), 0), ShouldBeEmpty)
			So(c.Poll(keys(sdl.SCANCODE_SPACE), 0), ShouldResemble, []Command{TogglePause})
		})

		Convey("Space and a click in the same poll toggle once", func() {
			So(c.Poll(keys(sdl.SCANCODE_SPACE), sdl.ButtonLMask()), ShouldResemble, []Command{TogglePause})
		})

		Convey("Escape and q both quit", func() {
			So(c.Poll(keys(sdl.SCANCODE_ESCAPE, sdl.SCANCODE_Q), 0), ShouldResemble, []Command{Quit})
		})

		Convey("A short key state is ignored", func() {
			So(c.Poll(nil, 0), ShouldBeEmpty)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Apply drives the transport", t, func() {
		tr := &fakeTransport{volume: 0.5}
		steps := DefaultSteps()

		So(Apply(tr, TogglePause, steps), ShouldBeTrue)
		So(Apply(tr, SeekForward, steps), ShouldBeTrue)
		So(Apply(tr, SeekBack, steps), ShouldBeTrue)
		So(Apply(tr, ToggleMute, steps), ShouldBeTrue)
		So(Apply(tr, VolumeUp, steps), ShouldBeTrue)
		So(Apply(tr, Stop, steps), ShouldBeTrue)

		So(tr.toggles, ShouldEqual, 1)
		So(tr.seeks, ShouldResemble, []time.Duration{10 * time.Second, -10 * time.Second})
		So(tr.muted, ShouldBeTrue)
		So(tr.volume, ShouldAlmostEqual, 0.6, 1e-9)
		So(tr.stopped, ShouldBeTrue)

		So(Apply(tr, Quit, steps), ShouldBeFalse)
	})
}
