package shader

import (
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// A small frame with non-uniform pixel values, so stage effects are visible.
func testFrame(w, h int) *Frame {
	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, uint8(40+x*13), uint8(80+y*11), uint8(120+(x+y)*7))
		}
	}
	return f
}

func TestPipelineNoOp(t *testing.T) {
	Convey("Given a frame and all stages disabled", t, func() {
		in := testFrame(8, 6)
		settings := NewSettings()
		p := NewPipeline()

		Convey("Apply returns the input unchanged after the dtype round trip", func() {
			out := p.Apply(in, time.Now(), settings)
			So(out.W, ShouldEqual, in.W)
			So(out.H, ShouldEqual, in.H)
			So(out.Pix, ShouldResemble, in.Pix)
		})
	})
}

func TestScanlineStage(t *testing.T) {
	Convey("Given only the scanline stage enabled", t, func() {
		in := testFrame(6, 6)
		settings := NewSettings()
		So(settings.Set(StageScanlines, true), ShouldBeNil)
		p := NewPipeline()

		out := p.Apply(in, time.Now(), settings)

		Convey("Alternating rows are darkened by the fixed factor, others untouched", func() {
			for y := 0; y < in.H; y++ {
				for x := 0; x < in.W; x++ {
					r0, g0, b0 := in.At(x, y)
					r1, g1, b1 := out.At(x, y)
					if y%2 == 0 {
						So(r1, ShouldEqual, uint8(float64(r0)/255.0*0.9*255.0+0.5))
						So(g1, ShouldEqual, uint8(float64(g0)/255.0*0.9*255.0+0.5))
						So(b1, ShouldEqual, uint8(float64(b0)/255.0*0.9*255.0+0.5))
					} else {
						So(r1, ShouldEqual, r0)
						So(g1, ShouldEqual, g0)
						So(b1, ShouldEqual, b0)
					}
				}
			}
		})
	})
}

func TestDotMaskStage(t *testing.T) {
	Convey("Given only the dot-mask stage enabled", t, func() {
		in := testFrame(9, 3)
		settings := NewSettings()
		So(settings.Set(StageDotMask, true), ShouldBeNil)
		p := NewPipeline()

		out := p.Apply(in, time.Now(), settings)

		Convey("Each column boosts its mod-3 channel and dampens the others", func() {
			for y := 0; y < in.H; y++ {
				for x := 0; x < in.W; x++ {
					var in3, out3 [3]uint8
					in3[0], in3[1], in3[2] = in.At(x, y)
					out3[0], out3[1], out3[2] = out.At(x, y)
					for c := 0; c < 3; c++ {
						factor := 0.8
						if c == x%3 {
							factor = 1.05
						}
						want := float64(in3[c]) / 255.0 * factor
						if want > 1 {
							want = 1
						}
						So(out3[c], ShouldEqual, uint8(want*255.0+0.5))
					}
				}
			}
		})
	})
}

func TestGammaStage(t *testing.T) {
	Convey("Given only gamma correction enabled", t, func() {
		in := testFrame(4, 4)
		settings := NewSettings()
		So(settings.Set(StageGammaCorrection, true), ShouldBeNil)
		p := NewPipeline()

		out := p.Apply(in, time.Now(), settings)

		Convey("Values follow the power curve with the fixed constants", func() {
			r0, _, _ := in.At(2, 2)
			r1, _, _ := out.At(2, 2)
			// input gamma 2.2, output gamma 2.5
			norm := float64(r0) / 255.0
			want := uint8(math.Pow(norm, 2.2/2.5)*255.0 + 0.5)
			So(r1, ShouldEqual, want)
		})
	})
}


func TestLerpBoundaries(t *testing.T) {
	Convey("Given two distinct 2x2 frames", t, func() {
		a := NewFrame(2, 2)
		b := NewFrame(2, 2)
		for i := range a.Pix {
			a.Pix[i] = uint8(10 * i)
			b.Pix[i] = uint8(200 - 10*i)
		}

		Convey("Alpha 0 yields the first frame", func() {
			So(Lerp(a, b, 0).Pix, ShouldResemble, a.Pix)
		})
		Convey("Alpha 1 yields the second frame", func() {
			So(Lerp(a, b, 1).Pix, ShouldResemble, b.Pix)
		})
		Convey("Out-of-range alphas clamp to the boundaries", func() {
			So(Lerp(a, b, -0.5).Pix, ShouldResemble, a.Pix)
			So(Lerp(a, b, 1.5).Pix, ShouldResemble, b.Pix)
		})
		Convey("Intermediate alphas are a pixel-wise linear blend", func() {
			out := Lerp(a, b, 0.25)
			for i := range a.Pix {
				want := 0.75*float64(a.Pix[i]) + 0.25*float64(b.Pix[i])
				So(out.Pix[i], ShouldEqual, uint8(want+0.5))
			}
		})
	})
}

func TestSettings(t *testing.T) {
	Convey("Given fresh settings", t, func() {
		settings := NewSettings()

		Convey("All stages begin disabled", func() {
			for name, enabled := range settings.Snapshot() {
				So(enabled, ShouldBeFalse)
				So(settings.Enabled(name), ShouldBeFalse)
			}
		})

		Convey("Toggling flips and reports the new state", func() {
			on, err := settings.Toggle(StageScanlines)
			So(err, ShouldBeNil)
			So(on, ShouldBeTrue)
			So(settings.Enabled(StageScanlines), ShouldBeTrue)

			off, err := settings.Toggle(StageScanlines)
			So(err, ShouldBeNil)
			So(off, ShouldBeFalse)
		})

		Convey("SetAll flips every stage", func() {
			settings.SetAll(true)
			for _, enabled := range settings.Snapshot() {
				So(enabled, ShouldBeTrue)
			}
		})

		Convey("An unknown stage name is an error, not a panic", func() {
			err := settings.Set("vignette", true)
			So(err, ShouldNotBeNil)
			_, err = settings.Toggle("bloom")
			So(err, ShouldNotBeNil)
		})
	})
}
