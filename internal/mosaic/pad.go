package mosaic

import (
	"errors"
	"fmt"

	"demosaic/internal/raster"
)

// ErrInvalidMargin is returned for negative pad or crop margins.
var ErrInvalidMargin = errors.New("invalid border margin")

// EffectiveMargin rounds the requested crop margin up to the next multiple
// of the pattern period, so that interior pixels keep their CFA phase after
// padding and the later unpad crop.
func EffectiveMargin(c int, spec PatternSpec) (int, error) {
	if c < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMargin, c)
	}
	if rem := c % spec.Period; rem != 0 {
		return c + spec.Period - rem, nil
	}
	return c, nil
}

// Pad grows the image by margin pixels on all four sides using symmetric
// reflection (the edge row itself is mirrored first). A zero margin returns
// the input unchanged.
func Pad(img *raster.Image, margin int) (*raster.Image, error) {
	if margin < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMargin, margin)
	}
	if margin == 0 {
		return img, nil
	}
	out := raster.New(img.H+2*margin, img.W+2*margin, img.C)
	for y := 0; y < out.H; y++ {
		sy := reflect(y-margin, img.H)
		for x := 0; x < out.W; x++ {
			sx := reflect(x-margin, img.W)
			for ch := 0; ch < img.C; ch++ {
				out.Set(y, x, ch, img.At(sy, sx, ch))
			}
		}
	}
	return out, nil
}

// reflect maps an out-of-range coordinate back into [0, n): -1 mirrors to 0,
// -2 to 1, n to n-1, n+1 to n-2.
func reflect(i, n int) int {
	if i < 0 {
		return -i - 1
	}
	if i >= n {
		return 2*n - i - 1
	}
	return i
}
