package montage

import (
	"errors"
	"image/color"
	"testing"

	"demosaic/internal/raster"
)

func uniform(h, w int, r, g, b float32) *raster.Image {
	im := raster.New(h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(y, x, 0, r)
			im.Set(y, x, 1, g)
			im.Set(y, x, 2, b)
		}
	}
	return im
}

func TestComposeLaysPanelsLeftToRight(t *testing.T) {
	const h, w = 40, 64
	panels := []Panel{
		{Label: "reference", Image: uniform(h, w, 1, 0, 0)},
		{Label: "noisy", Image: uniform(h, w, 0, 1, 0)},
		{Label: "restored", Image: uniform(h, w, 0, 0, 1)},
	}

	strip, err := Compose(panels)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	b := strip.Bounds()
	if b.Dx() != 3*w || b.Dy() != h {
		t.Fatalf("unexpected strip size %dx%d", b.Dx(), b.Dy())
	}

	// Sample below the label band, one pixel inside each panel.
	wantColors := []color.RGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
	}
	for i, want := range wantColors {
		got := strip.RGBAAt(i*w+w/4, h-4)
		if got != want {
			t.Fatalf("panel %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestComposeDrawsLabels(t *testing.T) {
	const h, w = 48, 96
	panels := []Panel{
		{Label: "mosaic", Image: uniform(h, w, 0, 0, 0)},
		{Label: "difference", Image: uniform(h, w, 0, 0, 0)},
	}

	strip, err := Compose(panels)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	white := color.RGBA{255, 255, 255, 255}
	for i := range panels {
		found := false
		for y := 0; y < 20 && !found; y++ {
			for x := i * w; x < (i+1)*w; x++ {
				if strip.RGBAAt(x, y) == white {
					found = true
					break
				}
			}
		}
		if !found {
			t.Fatalf("panel %d: no label pixels in the top band", i)
		}
	}
}

func TestComposeRejectsMixedShapes(t *testing.T) {
	panels := []Panel{
		{Label: "a", Image: uniform(16, 16, 0, 0, 0)},
		{Label: "b", Image: uniform(16, 20, 0, 0, 0)},
	}
	if _, err := Compose(panels); !errors.Is(err, ErrPanelShape) {
		t.Fatalf("expected ErrPanelShape, got %v", err)
	}
	if _, err := Compose(nil); !errors.Is(err, ErrPanelShape) {
		t.Fatalf("expected ErrPanelShape for empty input, got %v", err)
	}
}

func TestAbsDiff(t *testing.T) {
	a := raster.New(2, 2, 1)
	b := raster.New(2, 2, 1)
	a.Set(0, 0, 0, 0.75)
	b.Set(0, 0, 0, 0.25)
	a.Set(0, 1, 0, 0.1)
	b.Set(0, 1, 0, 0.9)

	got, err := AbsDiff(a, b)
	if err != nil {
		t.Fatalf("absdiff failed: %v", err)
	}
	if got.At(0, 0, 0) != 0.5 {
		t.Fatalf("expected 0.5, got %v", got.At(0, 0, 0))
	}
	if d := got.At(0, 1, 0); d < 0.79 || d > 0.81 {
		t.Fatalf("expected 0.8, got %v", d)
	}
	if got.At(1, 1, 0) != 0 {
		t.Fatalf("expected 0 for equal samples, got %v", got.At(1, 1, 0))
	}

	if _, err := AbsDiff(a, raster.New(2, 3, 1)); !errors.Is(err, ErrPanelShape) {
		t.Fatalf("expected ErrPanelShape, got %v", err)
	}
}
