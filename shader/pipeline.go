package shader

import (
	"math"
	"time"
)

// CRT emulation constants. Stages operate on normalized [0,1] channel
// values; conversion to and from 8-bit happens only at the pipeline
// boundary.
const (
	distortionCoeff = 0.2
	scanlineFactor  = 0.9
	dotMaskBoost    = 1.05
	dotMaskDampen   = 0.8
	inputGamma      = 2.2
	outputGamma     = 2.5

	rollingAmplitude = 0.15
	// Bar travel speed in screen-heights per second.
	rollingSpeed = 0.75

	// DefaultRollInterval gates how often the rolling bar is re-applied,
	// so the bar appears to roll down the screen rather than oscillate
	// on every rendered frame.
	DefaultRollInterval = 100 * time.Millisecond
)

// Pipeline applies the post-processing stages to frames in a fixed order:
// distortion, scanlines, dot mask, rolling bars, gamma correction. A stage
// disabled in the settings is a pass-through. The pipeline carries only the
// rolling-bar gate as state and is driven from a single render goroutine.
type Pipeline struct {
	rollInterval time.Duration
	lastRoll     time.Time
}

// NewPipeline returns a pipeline with the default rolling-bar interval.
func NewPipeline() *Pipeline {
	return &Pipeline{rollInterval: DefaultRollInterval}
}

// NewPipelineWithRollInterval overrides the rolling-bar gate interval.
func NewPipelineWithRollInterval(interval time.Duration) *Pipeline {
	return &Pipeline{rollInterval: interval}
}

// Apply transforms a raw frame into a display frame per the current
// settings. With every stage disabled the result is byte-identical to the
// input after the float round trip.
func (p *Pipeline) Apply(frame *Frame, now time.Time, settings *Settings) *Frame {
	w, h := frame.W, frame.H

	// Normalize to [0,1].
	buf := make([]float64, len(frame.Pix))
	for i, v := range frame.Pix {
		buf[i] = float64(v) / 255.0
	}

	if settings.Enabled(StageRadialDistortion) {
		buf = radialDistort(buf, w, h)
	}
	if settings.Enabled(StageScanlines) {
		applyScanlines(buf, w, h)
	}
	if settings.Enabled(StageDotMask) {
		applyDotMask(buf, w, h)
	}
	if settings.Enabled(StageRollingLines) {
		if p.lastRoll.IsZero() || now.Sub(p.lastRoll) >= p.rollInterval {
			applyRollingBars(buf, w, h, now)
			p.lastRoll = now
		}
	}
	if settings.Enabled(StageGammaCorrection) {
		applyGamma(buf)
	}

	// Back to 8-bit.
	out := NewFrame(w, h)
	for i, v := range buf {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out.Pix[i] = uint8(v*255.0 + 0.5)
	}
	return out
}

// radialDistort remaps each pixel by a function of its squared distance
// from image center, bilinearly sampling the source. Samples that land
// outside the source read as black.
func radialDistort(src []float64, w, h int) []float64 {
	dst := make([]float64, len(src))
	for y := 0; y < h; y++ {
		yc := float64(y)/float64(h-1) - 0.5
		for x := 0; x < w; x++ {
			xc := float64(x)/float64(w-1) - 0.5
			radial := xc*xc + yc*yc
			factor := 1 + radial*distortionCoeff
			sx := (xc*factor + 0.5) * float64(w)
			sy := (yc*factor + 0.5) * float64(h)
			for c := 0; c < 3; c++ {
				dst[(y*w+x)*3+c] = sampleBilinear(src, w, h, sx, sy, c)
			}
		}
	}
	return dst
}

func sampleBilinear(src []float64, w, h int, x, y float64, c int) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	read := func(xi, yi int) float64 {
		if xi < 0 || xi >= w || yi < 0 || yi >= h {
			return 0
		}
		return src[(yi*w+xi)*3+c]
	}

	top := read(x0, y0)*(1-fx) + read(x0+1, y0)*fx
	bot := read(x0, y0+1)*(1-fx) + read(x0+1, y0+1)*fx
	return top*(1-fy) + bot*fy
}

// applyScanlines darkens every other row by the fixed factor.
func applyScanlines(buf []float64, w, h int) {
	for y := 0; y < h; y += 2 {
		row := y * w * 3
		for i := row; i < row+w*3; i++ {
			buf[i] *= scanlineFactor
		}
	}
}

// applyDotMask partitions columns into 3 groups by column mod 3, boosting
// the corresponding RGB channel in each group and dampening the others,
// approximating a subpixel-mask display artifact.
func applyDotMask(buf []float64, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			boosted := x % 3
			i := (y*w + x) * 3
			for c := 0; c < 3; c++ {
				if c == boosted {
					buf[i+c] *= dotMaskBoost
				} else {
					buf[i+c] *= dotMaskDampen
				}
			}
		}
	}
}

// applyRollingBars modulates row luminance with a traveling sinusoid whose
// phase is driven by wall-clock time.
func applyRollingBars(buf []float64, w, h int, now time.Time) {
	t := float64(now.UnixNano()) / float64(time.Second)
	for y := 0; y < h; y++ {
		pos := float64(y) / float64(h)
		factor := 1 - rollingAmplitude*(0.5+0.5*math.Sin(2*math.Pi*(pos+t*rollingSpeed)))
		row := y * w * 3
		for i := row; i < row+w*3; i++ {
			buf[i] *= factor
		}
	}
}

// applyGamma raises normalized values to input/output gamma and clips.
func applyGamma(buf []float64) {
	exp := inputGamma / outputGamma
	for i, v := range buf {
		v = math.Pow(v, exp)
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		buf[i] = v
	}
}
