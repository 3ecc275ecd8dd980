package tile

import (
	"sync"

	"demosaic/internal/raster"
)

// StitchBuffer reassembles cropped tile outputs onto a canvas of the padded
// image shape. Writes may come from concurrent workers; the buffer
// serializes them, and overlapping regions resolve last-writer-wins.
type StitchBuffer struct {
	mu     sync.Mutex
	canvas *raster.Image
	margin int
}

// NewStitchBuffer allocates a zeroed canvas for an h x w x c padded image
// whose tiles were scheduled with the given operator margin.
func NewStitchBuffer(h, w, c, margin int) *StitchBuffer {
	return &StitchBuffer{canvas: raster.New(h, w, c), margin: margin}
}

// Write places a cropped operator output at the interior origin of its
// window, (Y0+margin, X0+margin).
func (b *StitchBuffer) Write(win Window, cropped *raster.Image) {
	b.mu.Lock()
	defer b.mu.Unlock()
	y0 := win.Y0 + b.margin
	x0 := win.X0 + b.margin
	rowLen := cropped.W * cropped.C
	for y := 0; y < cropped.H; y++ {
		dst := ((y0+y)*b.canvas.W + x0) * b.canvas.C
		copy(b.canvas.Pix[dst:dst+rowLen], cropped.Pix[y*rowLen:(y+1)*rowLen])
	}
}

// Finalize clamps every sample to [0,1] and returns the canvas. The buffer
// must not be written to afterwards.
func (b *StitchBuffer) Finalize() *raster.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canvas.Clamp01()
	return b.canvas
}
