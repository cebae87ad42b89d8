package sdlout

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/veandco/go-sdl2/sdl"

	"flow-player/pkg/frames"
)

func TestLetterbox(t *testing.T) {
	Convey("Given a 1920x1080 screen", t, func() {
		Convey("A 16:9 video fills it", func() {
			So(Letterbox(1280, 720, 1920, 1080), ShouldResemble, sdl.Rect{X: 0, Y: 0, W: 1920, H: 1080})
		})

		Convey("A 4:3 video is pillarboxed", func() {
			So(Letterbox(640, 480, 1920, 1080), ShouldResemble, sdl.Rect{X: 240, Y: 0, W: 1440, H: 1080})
		})

		Convey("A wide video is letterboxed", func() {
			So(Letterbox(2000, 500, 1920, 1080), ShouldResemble, sdl.Rect{X: 0, Y: 300, W: 1920, H: 480})
		})

		Convey("An unknown size covers the screen", func() {
			So(Letterbox(0, 0, 1920, 1080), ShouldResemble, sdl.Rect{W: 1920, H: 1080})
		})
	})
}

func TestPresenterEpochs(t *testing.T) {
	Convey("Given a presenter behind a two-frame queue", t, func() {
		q := frames.NewQueue(2)
		p := NewPresenter(nil, q.C())

		publish := func(epoch uint64) {
			f := q.Acquire(2, 2)
			So(f, ShouldNotBeNil)
			f.Epoch = epoch
			So(q.Publish(f), ShouldBeTrue)
		}

		Convey("The minimum epoch never moves back", func() {
			p.SetMinEpoch(5)
			p.SetMinEpoch(3)
			So(p.minEpoch, ShouldEqual, 5)
		})

		Convey("Frames from earlier epochs are released without being shown", func() {
			p.SetMinEpoch(7)
			publish(4)
			publish(6)

			changed, err := p.Update()
			So(err, ShouldBeNil)
			So(changed, ShouldBeFalse)
			So(p.Shown(), ShouldEqual, 0)

			// every buffer is back in the pool
			for i := 0; i < 3; i++ {
				So(q.Acquire(2, 2), ShouldNotBeNil)
			}
		})
	})
}
