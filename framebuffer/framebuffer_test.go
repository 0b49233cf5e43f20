package framebuffer

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"mariorl/shader"
)

// numberedFrame tags a 1x1 frame with a sequence number in its red channel.
func numberedFrame(n int) *shader.Frame {
	f := shader.NewFrame(1, 1)
	f.Pix[0] = uint8(n)
	return f
}

func TestBoundedBufferInvariant(t *testing.T) {
	Convey("Given a buffer of capacity 50", t, func() {
		buf := New(50, nil)

		Convey("When 60 numbered frames are pushed", func() {
			for i := 1; i <= 60; i++ {
				buf.Push(numberedFrame(i))
			}

			Convey("The buffer holds exactly the 50 most recent, in push order", func() {
				So(buf.Len(), ShouldEqual, 50)
				So(buf.Dropped(), ShouldEqual, uint64(10))
				for i := 11; i <= 60; i++ {
					frame, ok := buf.Pop(time.Millisecond)
					So(ok, ShouldBeTrue)
					So(frame.Pix[0], ShouldEqual, uint8(i))
				}
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestPushNeverBlocks(t *testing.T) {
	Convey("Given a full buffer with no consumer", t, func() {
		buf := New(4, nil)
		for i := 0; i < 4; i++ {
			buf.Push(numberedFrame(i))
		}

		Convey("Pushes return promptly regardless of consumer activity", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 1000; i++ {
					buf.Push(numberedFrame(i))
				}
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("push blocked on a full buffer")
			}
			So(buf.Len(), ShouldEqual, 4)
		})
	})
}

func TestPopTimeout(t *testing.T) {
	Convey("Given an empty buffer", t, func() {
		buf := New(8, nil)

		Convey("Pop signals empty after the timeout", func() {
			start := time.Now()
			frame, ok := buf.Pop(20 * time.Millisecond)
			So(ok, ShouldBeFalse)
			So(frame, ShouldBeNil)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 20*time.Millisecond)
		})

		Convey("Pop wakes when a producer arrives before the timeout", func() {
			go func() {
				time.Sleep(10 * time.Millisecond)
				buf.Push(numberedFrame(7))
			}()
			frame, ok := buf.Pop(500 * time.Millisecond)
			So(ok, ShouldBeTrue)
			So(frame.Pix[0], ShouldEqual, uint8(7))
		})
	})
}

func TestClear(t *testing.T) {
	Convey("Given a buffer with frames", t, func() {
		buf := New(8, nil)
		for i := 0; i < 5; i++ {
			buf.Push(numberedFrame(i))
		}

		Convey("Clear drains everything and reports the count", func() {
			So(buf.Clear(), ShouldEqual, 5)
			So(buf.Len(), ShouldEqual, 0)
			_, ok := buf.Pop(time.Millisecond)
			So(ok, ShouldBeFalse)
		})
	})
}

// sequencedFrame spreads a 16-bit sequence number across the red and green
// channels so ordering checks never wrap.
func sequencedFrame(n int) *shader.Frame {
	f := shader.NewFrame(1, 1)
	f.Pix[0] = uint8(n >> 8)
	f.Pix[1] = uint8(n)
	return f
}

func sequenceOf(f *shader.Frame) int {
	return int(f.Pix[0])<<8 | int(f.Pix[1])
}

func TestConcurrentProducerConsumer(t *testing.T) {
	Convey("Given a producer and consumer running concurrently", t, func() {
		buf := New(16, nil)
		const total = 500

		var consumed []int
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				frame, ok := buf.Pop(100 * time.Millisecond)
				if !ok {
					return
				}
				consumed = append(consumed, sequenceOf(frame))
			}
		}()

		for i := 0; i < total; i++ {
			buf.Push(sequencedFrame(i))
			if i%50 == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		wg.Wait()

		Convey("Consumed frames preserve push order modulo dropped ones", func() {
			So(len(consumed), ShouldBeGreaterThan, 0)
			So(len(consumed), ShouldBeLessThanOrEqualTo, total)

			// Drop-oldest may skip sequence numbers, but what survives must
			// still come out strictly ascending.
			for i := 1; i < len(consumed); i++ {
				So(consumed[i], ShouldBeGreaterThan, consumed[i-1])
			}
		})
	})
}
