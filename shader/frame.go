package shader

import "image"

// Frame is a height x width x 3 RGB raster with 8-bit channel depth.
// Frames are treated as immutable once handed to the frame buffer;
// producers must Clone before mutating a published frame.
type Frame struct {
	W, H int
	// Pix is row-major RGB, len H*W*3.
	Pix []uint8
}

// NewFrame returns a zeroed (black) frame of the given dimensions.
func NewFrame(w, h int) *Frame {
	return &Frame{
		W:   w,
		H:   h,
		Pix: make([]uint8, w*h*3),
	}
}

// At returns the RGB triple at (x, y). No bounds checking beyond the slice's own.
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.W + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the RGB triple at (x, y).
func (f *Frame) Set(x, y int, r, g, b uint8) {
	i := (y*f.W + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Clone returns an independent copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		W:   f.W,
		H:   f.H,
		Pix: make([]uint8, len(f.Pix)),
	}
	copy(out.Pix, f.Pix)
	return out
}

// ToRGBA copies the frame into a stdlib image for encoding, alpha opaque.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	for y := 0; y < f.H; y++ {
		src := y * f.W * 3
		dst := y * img.Stride
		for x := 0; x < f.W; x++ {
			img.Pix[dst] = f.Pix[src]
			img.Pix[dst+1] = f.Pix[src+1]
			img.Pix[dst+2] = f.Pix[src+2]
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return img
}

// Lerp returns the linear cross-fade (1-alpha)*a + alpha*b as a new frame.
// Alpha is clamped to [0,1]. The inputs must share dimensions; at alpha 0
// the result equals a, at alpha 1 it equals b.
func Lerp(a, b *Frame, alpha float64) *Frame {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	out := NewFrame(a.W, a.H)
	for i := range a.Pix {
		v := (1-alpha)*float64(a.Pix[i]) + alpha*float64(b.Pix[i])
		out.Pix[i] = uint8(v + 0.5)
	}
	return out
}
