package metrics

import (
	"errors"
	"math"
	"testing"

	"demosaic/internal/raster"
)

func TestPSNRIdenticalImagesIsInfinite(t *testing.T) {
	a := raster.New(8, 8, 3)
	for i := range a.Pix {
		a.Pix[i] = float32(i) / float32(len(a.Pix))
	}
	got, err := PSNR(a, a.Clone())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf for identical images, got %v", got)
	}
}

func TestPSNRKnownDistortion(t *testing.T) {
	a := raster.New(4, 4, 1)
	b := raster.New(4, 4, 1)
	for i := range b.Pix {
		b.Pix[i] = 0.1
	}
	// MSE = 0.01, so PSNR = -10*log10(0.01) = 20 dB.
	got, err := PSNR(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-20) > 1e-4 {
		t.Fatalf("expected 20 dB, got %v", got)
	}
}

func TestPSNRShapeMismatch(t *testing.T) {
	a := raster.New(4, 4, 3)
	b := raster.New(4, 5, 3)
	if _, err := PSNR(a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestAverageSkipsInfiniteSamples(t *testing.T) {
	var avg Average
	avg.Add(30)
	avg.Add(math.Inf(1))
	avg.Add(40)
	avg.Add(math.Inf(1))

	mean, finite, exact := avg.Mean()
	if mean != 35 {
		t.Fatalf("expected mean 35, got %v", mean)
	}
	if finite != 2 {
		t.Fatalf("expected 2 finite samples, got %d", finite)
	}
	if exact != 2 {
		t.Fatalf("expected 2 exact matches, got %d", exact)
	}
}

func TestAverageEmpty(t *testing.T) {
	var avg Average
	mean, finite, exact := avg.Mean()
	if mean != 0 || finite != 0 || exact != 0 {
		t.Fatalf("expected zero state, got mean=%v finite=%d exact=%d", mean, finite, exact)
	}

	avg.Add(math.Inf(1))
	mean, finite, exact = avg.Mean()
	if mean != 0 || finite != 0 || exact != 1 {
		t.Fatalf("expected only an exact match, got mean=%v finite=%d exact=%d", mean, finite, exact)
	}
}
