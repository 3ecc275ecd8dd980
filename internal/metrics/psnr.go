// Package metrics computes reconstruction quality figures for restored
// images.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"demosaic/internal/raster"
)

// ErrShapeMismatch is returned when two images cannot be compared.
var ErrShapeMismatch = errors.New("image shapes differ")

// PSNR returns the peak signal-to-noise ratio in dB between two images on
// the [0,1] scale. Identical images yield +Inf; callers treat that as an
// exact reconstruction, not an error.
func PSNR(a, b *raster.Image) (float64, error) {
	if a.H != b.H || a.W != b.W || a.C != b.C {
		return 0, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d",
			ErrShapeMismatch, a.H, a.W, a.C, b.H, b.W, b.C)
	}
	var sum float64
	for i := range a.Pix {
		d := float64(a.Pix[i]) - float64(b.Pix[i])
		sum += d * d
	}
	mse := sum / float64(len(a.Pix))
	if mse == 0 {
		return math.Inf(1), nil
	}
	return -10 * math.Log10(mse), nil
}

// Average accumulates the running mean of finite PSNR samples. Infinite
// samples are counted separately so exact reconstructions do not distort
// the mean.
type Average struct {
	sum    float64
	finite int
	exact  int
}

// Add folds one PSNR sample into the average.
func (a *Average) Add(psnr float64) {
	if math.IsInf(psnr, 1) {
		a.exact++
		return
	}
	a.sum += psnr
	a.finite++
}

// Mean returns the average over finite samples along with the finite and
// exact-match counts. With no finite samples the mean is zero.
func (a *Average) Mean() (mean float64, finite, exact int) {
	if a.finite == 0 {
		return 0, 0, a.exact
	}
	return a.sum / float64(a.finite), a.finite, a.exact
}
