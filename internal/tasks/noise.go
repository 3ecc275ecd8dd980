package tasks

import (
	"math/rand"

	"demosaic/internal/raster"
)

// AddGaussianNoise returns a copy of img with zero-mean Gaussian noise of
// standard deviation sigma added to every sample, clamped back into [0,1].
// The seed fixes the noise field so identical configs degrade identically.
func AddGaussianNoise(img *raster.Image, sigma float64, seed int64) *raster.Image {
	out := img.Clone()
	if sigma <= 0 {
		return out
	}
	rng := rand.New(rand.NewSource(seed))
	for i, v := range out.Pix {
		out.Pix[i] = v + float32(rng.NormFloat64()*sigma)
	}
	out.Clamp01()
	return out
}
