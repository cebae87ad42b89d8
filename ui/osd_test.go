package ui

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOSD(t *testing.T) {
	Convey("Given an overlay", t, func() {
		now := time.Unix(1000, 0)
		o := NewOSD(nil, 3*time.Second)
		o.now = func() time.Time { return now }

		Convey("It is hidden until poked", func() {
			So(o.Visible(), ShouldBeFalse)
			o.Poke()
			So(o.Visible(), ShouldBeTrue)
			now = now.Add(3 * time.Second)
			So(o.Visible(), ShouldBeFalse)
		})

		Convey("Sticky keeps it up", func() {
			o.SetSticky(true)
			now = now.Add(time.Hour)
			So(o.Visible(), ShouldBeTrue)
			o.SetSticky(false)
			So(o.Visible(), ShouldBeFalse)
		})
	})
}

func TestFormatting(t *testing.T) {
	Convey("FormatTime", t, func() {
		So(FormatTime(0), ShouldEqual, "0:00")
		So(FormatTime(-time.Second), ShouldEqual, "0:00")
		So(FormatTime(65*time.Second+900*time.Millisecond), ShouldEqual, "1:05")
		So(FormatTime(time.Hour+2*time.Minute+3*time.Second), ShouldEqual, "1:02:03")
	})

	Convey("Progress", t, func() {
		So(Progress(5*time.Second, 10*time.Second), ShouldEqual, 0.5)
		So(Progress(20*time.Second, 10*time.Second), ShouldEqual, 1)
		So(Progress(5*time.Second, 0), ShouldEqual, 0)
	})

	Convey("StatusLine", t, func() {
		So(StatusLine(Status{State: "running", Volume: 0.8}), ShouldEqual, "running  vol 80%")
		So(StatusLine(Status{State: "paused", Volume: 0.8, Muted: true}), ShouldEqual, "paused  muted")
	})
}
