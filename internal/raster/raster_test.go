package raster

import "testing"

func TestIndexingRoundTrip(t *testing.T) {
	im := New(3, 4, 3)
	im.Set(1, 2, 0, 0.25)
	im.Set(1, 2, 2, 0.75)
	if got := im.At(1, 2, 0); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	if got := im.At(1, 2, 1); got != 0 {
		t.Fatalf("expected untouched channel to stay zero, got %v", got)
	}
	if got := im.At(1, 2, 2); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	if len(im.Pix) != 3*4*3 {
		t.Fatalf("unexpected buffer length %d", len(im.Pix))
	}
}

func TestCloneIsIndependent(t *testing.T) {
	im := New(2, 2, 1)
	im.Set(0, 0, 0, 0.5)
	cp := im.Clone()
	cp.Set(0, 0, 0, 0.9)
	if im.At(0, 0, 0) != 0.5 {
		t.Fatalf("clone write leaked into the source")
	}
	if cp.At(0, 0, 0) != 0.9 {
		t.Fatalf("clone did not keep its own write")
	}
}

func TestCropCopiesRectangle(t *testing.T) {
	im := New(4, 4, 2)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			im.Set(y, x, 0, float32(y*4+x))
			im.Set(y, x, 1, float32(y*4+x)+100)
		}
	}

	got := im.Crop(1, 1, 3, 4)
	if got.H != 2 || got.W != 3 || got.C != 2 {
		t.Fatalf("unexpected crop shape %dx%dx%d", got.H, got.W, got.C)
	}
	for y := 0; y < got.H; y++ {
		for x := 0; x < got.W; x++ {
			want := float32((y+1)*4 + (x + 1))
			if got.At(y, x, 0) != want {
				t.Fatalf("crop (%d,%d) channel 0: expected %v, got %v", y, x, want, got.At(y, x, 0))
			}
			if got.At(y, x, 1) != want+100 {
				t.Fatalf("crop (%d,%d) channel 1: expected %v, got %v", y, x, want+100, got.At(y, x, 1))
			}
		}
	}

	// Crop copies, so writes must not reach the source.
	got.Set(0, 0, 0, -1)
	if im.At(1, 1, 0) == -1 {
		t.Fatalf("crop write leaked into the source")
	}
}

func TestClamp01(t *testing.T) {
	im := New(1, 3, 1)
	im.Set(0, 0, 0, -0.5)
	im.Set(0, 1, 0, 0.5)
	im.Set(0, 2, 0, 1.5)
	im.Clamp01()
	for i, want := range []float32{0, 0.5, 1} {
		if got := im.At(0, i, 0); got != want {
			t.Fatalf("sample %d: expected %v, got %v", i, want, got)
		}
	}
}
