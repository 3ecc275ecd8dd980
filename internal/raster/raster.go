// Package raster provides the float32 image representation shared by the
// mosaic, tiling, restoration, and metric code. Samples are interleaved
// row-major (y, x, channel) and live on the [0,1] scale once decoded.
package raster

// Image is a dense float32 raster with H rows, W columns, and C interleaved
// channels per pixel.
type Image struct {
	H, W, C int
	Pix     []float32
}

// New allocates a zero-filled image.
func New(h, w, c int) *Image {
	return &Image{H: h, W: w, C: c, Pix: make([]float32, h*w*c)}
}

// At returns the sample at (y, x, ch).
func (im *Image) At(y, x, ch int) float32 {
	return im.Pix[(y*im.W+x)*im.C+ch]
}

// Set stores a sample at (y, x, ch).
func (im *Image) Set(y, x, ch int, v float32) {
	im.Pix[(y*im.W+x)*im.C+ch] = v
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := &Image{H: im.H, W: im.W, C: im.C, Pix: make([]float32, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// Crop returns a copy of the rectangle [y0,y1) x [x0,x1) across all channels.
func (im *Image) Crop(y0, x0, y1, x1 int) *Image {
	out := New(y1-y0, x1-x0, im.C)
	rowLen := out.W * out.C
	for y := y0; y < y1; y++ {
		src := (y*im.W + x0) * im.C
		dst := (y - y0) * rowLen
		copy(out.Pix[dst:dst+rowLen], im.Pix[src:src+rowLen])
	}
	return out
}

// Clamp01 clips every sample into [0,1] in place.
func (im *Image) Clamp01() {
	for i, v := range im.Pix {
		if v < 0 {
			im.Pix[i] = 0
		} else if v > 1 {
			im.Pix[i] = 1
		}
	}
}
