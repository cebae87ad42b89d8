package clock

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type stubCursor struct {
	played  time.Duration
	playing bool
}

func (s *stubCursor) Played() time.Duration { return s.played }
func (s *stubCursor) Playing() bool         { return s.playing }

func TestClock(t *testing.T) {
	Convey("Clock", t, func() {
		cur := &stubCursor{playing: true}
		c := New(cur)

		Convey("follows the cursor from the anchor", func() {
			cur.played = 1500 * time.Millisecond
			So(c.Now(), ShouldEqual, 1500*time.Millisecond)

			c.Reset(10 * time.Second)
			So(c.Now(), ShouldEqual, 10*time.Second)
			cur.played += 250 * time.Millisecond
			So(c.Now(), ShouldEqual, 10*time.Second+250*time.Millisecond)
		})

		Convey("freezes while the cursor is not playing", func() {
			cur.played = time.Second
			So(c.Now(), ShouldEqual, time.Second)
			cur.playing = false
			cur.played = 3 * time.Second
			So(c.Now(), ShouldEqual, time.Second)
		})

		Convey("is non-decreasing between resets even if the cursor jitters", func() {
			rng := rand.New(rand.NewSource(7))
			prev := c.Now()
			for i := 0; i < 1000; i++ {
				cur.played += time.Duration(rng.Intn(20)-5) * time.Millisecond
				cur.playing = rng.Intn(10) != 0
				now := c.Now()
				So(now >= prev, ShouldBeTrue)
				prev = now
			}
		})

		Convey("may move backwards on reset", func() {
			cur.played = 20 * time.Second
			So(c.Now(), ShouldEqual, 20*time.Second)
			c.Reset(5 * time.Second)
			So(c.Now(), ShouldEqual, 5*time.Second)
			c.Reset(0)
			So(c.Last(), ShouldEqual, 0)
			So(c.anchor, ShouldEqual, 0)
		})

		Convey("without a cursor only Reset moves it", func() {
			nc := New(nil)
			So(nc.Now(), ShouldEqual, 0)
			nc.Reset(3 * time.Second)
			So(nc.Now(), ShouldEqual, 3*time.Second)
		})
	})
}
