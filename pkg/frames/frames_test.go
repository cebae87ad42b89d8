package frames

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQueue(t *testing.T) {
	Convey("Queue", t, func() {
		q := NewQueue(2)

		Convey("delivers frames in order", func() {
			for i := 1; i <= 2; i++ {
				f := q.Acquire(2, 2)
				So(f, ShouldNotBeNil)
				f.PTS = time.Duration(i) * time.Second
				So(q.Publish(f), ShouldBeTrue)
			}
			So((<-q.C()).PTS, ShouldEqual, time.Second)
			So((<-q.C()).PTS, ShouldEqual, 2*time.Second)
		})

		Convey("drops the newest frame when the channel is full", func() {
			So(q.Publish(q.Acquire(1, 1)), ShouldBeTrue)
			So(q.Publish(q.Acquire(1, 1)), ShouldBeTrue)
			third := q.Acquire(1, 1)
			So(third, ShouldNotBeNil)
			So(q.Publish(third), ShouldBeFalse)
			So(q.Stats().Dropped, ShouldEqual, 1)
			So(q.Stats().Published, ShouldEqual, 2)
		})

		Convey("never hands out a buffer the render side still owns", func() {
			a := q.Acquire(1, 1)
			q.Publish(a)
			held := <-q.C()
			b := q.Acquire(1, 1)
			c := q.Acquire(1, 1)
			So(b, ShouldNotBeNil)
			So(c, ShouldNotBeNil)
			So(q.Acquire(1, 1), ShouldBeNil)

			held.Release()
			d := q.Acquire(1, 1)
			So(d, ShouldEqual, held)
		})

		Convey("resizes recycled buffers", func() {
			f := q.Acquire(4, 2)
			So(len(f.Pix), ShouldEqual, 32)
			So(f.Stride(), ShouldEqual, 16)
			img := f.Image()
			So(img.Bounds().Dx(), ShouldEqual, 4)
			So(img.Bounds().Dy(), ShouldEqual, 2)
		})

		Convey("publishing after close recycles instead of panicking", func() {
			f := q.Acquire(1, 1)
			q.Close()
			q.Close()
			So(q.Publish(f), ShouldBeFalse)
			_, ok := <-q.C()
			So(ok, ShouldBeFalse)
		})
	})
}
