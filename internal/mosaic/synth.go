package mosaic

import "demosaic/internal/raster"

// Mosaic masks a full-color image down to its CFA samples. Each output pixel
// keeps the one source channel the pattern selects at that position; the
// other two are zero. The result stays three-channel because that is the
// layout the restoration operator consumes.
func Mosaic(img *raster.Image, spec PatternSpec) *raster.Image {
	out := raster.New(img.H, img.W, img.C)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			ch := spec.Channel(y, x)
			out.Set(y, x, ch, img.At(y, x, ch))
		}
	}
	return out
}

// Embed lifts a single-channel raw mosaic into the three-channel masked
// representation, routing each sample to the channel the pattern assigns to
// its position.
func Embed(plane *raster.Image, spec PatternSpec) *raster.Image {
	out := raster.New(plane.H, plane.W, 3)
	for y := 0; y < plane.H; y++ {
		for x := 0; x < plane.W; x++ {
			out.Set(y, x, spec.Channel(y, x), plane.At(y, x, 0))
		}
	}
	return out
}
