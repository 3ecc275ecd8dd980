// Package montage builds the labeled side-by-side comparison strip saved
// for ground-truth runs.
package montage

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"demosaic/internal/raster"
)

// ErrPanelShape is returned when panels cannot be composed or diffed.
var ErrPanelShape = errors.New("montage panels must share one three-channel shape")

// Panel pairs an image with the label drawn onto it.
type Panel struct {
	Label string
	Image *raster.Image
}

// Compose lays the panels out in one horizontal strip at 8 bits per sample
// and draws each label centered near the panel's top edge.
func Compose(panels []Panel) (*image.RGBA, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("%w: no panels", ErrPanelShape)
	}
	h, w := panels[0].Image.H, panels[0].Image.W
	for _, p := range panels {
		if p.Image.H != h || p.Image.W != w || p.Image.C != 3 {
			return nil, fmt.Errorf("%w: %q is %dx%dx%d, want %dx%dx3",
				ErrPanelShape, p.Label, p.Image.H, p.Image.W, p.Image.C, h, w)
		}
	}

	strip := image.NewRGBA(image.Rect(0, 0, w*len(panels), h))
	face := basicfont.Face7x13
	for i, p := range panels {
		renderPanel(strip, p.Image, i*w)
		drawCenteredLabel(strip, face, p.Label, i*w+w/2, 16)
	}
	return strip, nil
}

// AbsDiff returns the per-pixel absolute difference clamped to [0,1], the
// content of the difference panel.
func AbsDiff(a, b *raster.Image) (*raster.Image, error) {
	if a.H != b.H || a.W != b.W || a.C != b.C {
		return nil, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d",
			ErrPanelShape, a.H, a.W, a.C, b.H, b.W, b.C)
	}
	out := raster.New(a.H, a.W, a.C)
	for i := range a.Pix {
		d := a.Pix[i] - b.Pix[i]
		if d < 0 {
			d = -d
		}
		if d > 1 {
			d = 1
		}
		out.Pix[i] = d
	}
	return out, nil
}

func renderPanel(dst *image.RGBA, src *raster.Image, xoff int) {
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			dst.SetRGBA(xoff+x, y, color.RGBA{
				R: toByte(src.At(y, x, 0)),
				G: toByte(src.At(y, x, 1)),
				B: toByte(src.At(y, x, 2)),
				A: 255,
			})
		}
	}
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// drawCenteredLabel draws white text with a one-pixel dark shadow so labels
// stay readable on any panel content.
func drawCenteredLabel(img *image.RGBA, face font.Face, s string, cx, y int) {
	advance := font.MeasureString(face, s)
	x := cx - advance.Round()/2
	drawText(img, face, s, x+1, y+1, color.RGBA{0, 0, 0, 255})
	drawText(img, face, s, x, y, color.RGBA{255, 255, 255, 255})
}

func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
