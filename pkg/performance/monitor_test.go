package performance

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRollingAverage(t *testing.T) {
	Convey("RollingAverage", t, func() {
		r := NewRollingAverage(3)
		So(r.Average(), ShouldEqual, 0)

		r.Add(10 * time.Millisecond)
		r.Add(20 * time.Millisecond)
		So(r.Average(), ShouldEqual, 15*time.Millisecond)
		So(r.Count(), ShouldEqual, 2)

		Convey("evicts the oldest sample once full", func() {
			r.Add(30 * time.Millisecond)
			r.Add(40 * time.Millisecond)
			So(r.Count(), ShouldEqual, 3)
			So(r.Average(), ShouldEqual, 30*time.Millisecond)
		})

		Convey("reset clears the window", func() {
			r.Reset()
			So(r.Count(), ShouldEqual, 0)
			So(r.Average(), ShouldEqual, 0)
		})
	})
}

func TestMonitor(t *testing.T) {
	Convey("Monitor", t, func() {
		m := NewMonitor(10)
		for i := 0; i < 10; i++ {
			m.RecordDecode(5 * time.Millisecond)
		}
		for i := 0; i < 8; i++ {
			m.RecordRender(time.Millisecond)
		}
		m.RecordLate()
		m.RecordBusy()
		m.RecordStale()
		m.RecordAudio(64)
		m.RecordAudio(0)

		r := m.GetReport()
		So(r.FramesDecoded, ShouldEqual, 10)
		So(r.FramesRendered, ShouldEqual, 8)
		So(r.DropRate, ShouldAlmostEqual, 20.0)
		So(r.AvgDecodeMs, ShouldAlmostEqual, 5.0)
		So(r.AudioChunks, ShouldEqual, 2)
		So(r.AudioOverflow, ShouldEqual, 64)
		So(r.IsHealthy, ShouldBeFalse)
		So(m.IsPerformanceDegrading(), ShouldBeTrue)

		m.Reset()
		So(m.GetReport().FramesDecoded, ShouldEqual, 0)
		So(m.IsPerformanceDegrading(), ShouldBeFalse)
	})
}

func TestFrameQueueDepth(t *testing.T) {
	Convey("FrameQueueDepth", t, func() {
		// 1080p RGBA is ~8MB per frame
		So(FrameQueueDepth(4096, 1920, 1080), ShouldEqual, 4)
		So(FrameQueueDepth(64, 1920, 1080), ShouldEqual, 1)
		So(FrameQueueDepth(0, 1920, 1080), ShouldEqual, 2)
		So(FrameQueueDepth(1024, 0, 0), ShouldEqual, 2)
	})
}
