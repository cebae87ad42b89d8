package audio

import (
	"encoding/binary"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time          { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

// read drains up to len(p) bytes the way the device callback does.
func (r *Ring) read(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	if n > r.size {
		n = r.size
	}
	if n == 0 {
		return 0
	}
	first := copy(p[:n], r.buf[r.head:])
	copy(p[first:n], r.buf)
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return n
}

func TestRing(t *testing.T) {
	Convey("Ring", t, func() {
		r := NewRing(10, 4)

		Convey("capacity is aligned to the frame size", func() {
			So(r.Cap(), ShouldEqual, 8)
		})

		Convey("overflow discards the newest bytes and keeps the oldest", func() {
			So(r.Write([]byte{1, 2, 3, 4, 5, 6}), ShouldEqual, 6)
			So(r.Write([]byte{7, 8, 9, 10, 11, 12}), ShouldEqual, 0)
			So(r.Discarded(), ShouldEqual, 6)

			out := make([]byte, 8)
			So(r.read(out), ShouldEqual, 6)
			So(out[:6], ShouldResemble, []byte{1, 2, 3, 4, 5, 6})
		})

		Convey("a partial fit is truncated to whole frames", func() {
			So(r.Write([]byte{1, 2, 3, 4, 5, 6}), ShouldEqual, 6)
			So(r.read(make([]byte, 4)), ShouldEqual, 4)
			// 6 bytes free, only one whole frame fits after alignment
			So(r.Write([]byte{9, 9, 9, 9, 9, 9, 9, 9}), ShouldEqual, 4)
			So(r.Len(), ShouldEqual, 6)
		})

		Convey("data wraps around the end of the buffer", func() {
			r.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
			r.Skip(4)
			So(r.Write([]byte{9, 10, 11, 12}), ShouldEqual, 4)
			out := make([]byte, 8)
			So(r.read(out), ShouldEqual, 8)
			So(out, ShouldResemble, []byte{5, 6, 7, 8, 9, 10, 11, 12})
		})

		Convey("writes never block when the ring stays full", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 10000; i++ {
					r.Write([]byte{1, 2, 3, 4})
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Write blocked on a full ring")
			}
			So(r.Len(), ShouldEqual, 8)
		})
	})
}

func TestNullDevice(t *testing.T) {
	Convey("NullDevice", t, func() {
		clock := &fakeTime{t: time.Unix(100, 0)}
		f := S16Stereo(1000) // 4000 bytes per second
		d := NewNullDevice(f, 500*time.Millisecond)
		d.SetTimeSource(clock.now)

		Convey("drains in real time only while playing", func() {
			So(d.Write(make([]byte, 2000)), ShouldEqual, 2000)
			clock.advance(100 * time.Millisecond)
			So(d.Played(), ShouldEqual, 0)

			d.Play()
			clock.advance(100 * time.Millisecond)
			So(d.Played(), ShouldEqual, 100*time.Millisecond)
			So(d.Buffered(), ShouldEqual, 400*time.Millisecond)

			d.Pause()
			clock.advance(time.Second)
			So(d.Played(), ShouldEqual, 100*time.Millisecond)
		})

		Convey("an underrun does not count as played time", func() {
			d.Write(make([]byte, 400)) // 100ms
			d.Play()
			clock.advance(300 * time.Millisecond)
			So(d.Played(), ShouldEqual, 100*time.Millisecond)
			So(d.Buffered(), ShouldEqual, 0)
		})

		Convey("overflow beyond capacity is discarded", func() {
			So(d.Write(make([]byte, 3000)), ShouldEqual, 2000)
			So(d.Discarded(), ShouldEqual, 1000)
		})

		Convey("stop clears the queue but keeps the cursor", func() {
			d.Write(make([]byte, 2000))
			d.Play()
			clock.advance(50 * time.Millisecond)
			d.Stop()
			So(d.Buffered(), ShouldEqual, 0)
			So(d.Played(), ShouldEqual, 50*time.Millisecond)
			So(d.Playing(), ShouldBeFalse)
		})
	})
}

func TestSilentDevice(t *testing.T) {
	Convey("SilentDevice follows wall time while playing", t, func() {
		clock := &fakeTime{t: time.Unix(100, 0)}
		d := NewSilentDevice()
		d.SetTimeSource(clock.now)

		d.Play()
		clock.advance(2 * time.Second)
		d.Pause()
		clock.advance(5 * time.Second)
		So(d.Played(), ShouldEqual, 2*time.Second)
		So(d.Write([]byte{1, 2}), ShouldEqual, 0)
	})
}

func TestApplyGain(t *testing.T) {
	Convey("ApplyGain", t, func() {
		p := make([]byte, 4)
		binary.LittleEndian.PutUint16(p, uint16(int16(1000)))
		neg := int16(-1000)
		binary.LittleEndian.PutUint16(p[2:], uint16(neg))

		Convey("halves samples at 0.5", func() {
			ApplyGain(p, 0.5)
			So(int16(binary.LittleEndian.Uint16(p)), ShouldEqual, 500)
			So(int16(binary.LittleEndian.Uint16(p[2:])), ShouldEqual, -500)
		})

		Convey("silences at 0", func() {
			ApplyGain(p, 0)
			So(p, ShouldResemble, []byte{0, 0, 0, 0})
		})

		Convey("leaves samples untouched at 1", func() {
			ApplyGain(p, 1)
			So(int16(binary.LittleEndian.Uint16(p)), ShouldEqual, 1000)
		})
	})
}
