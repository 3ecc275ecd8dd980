// Package imgio bridges ImageMagick decode/encode to the float32 raster
// type. All pixel traffic goes through ImageMagick's normalized float
// interface, so samples are on the [0,1] scale on both sides.
package imgio

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"gopkg.in/gographics/imagick.v3/imagick"

	"demosaic/internal/raster"
)

var (
	// ErrUnsupportedDepth is returned for inputs that are not 8- or
	// 16-bit unsigned.
	ErrUnsupportedDepth = errors.New("unsupported sample depth")
	// ErrUnsupportedFormat is returned for paths outside the PNG/TIFF
	// surface.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Decoded carries the pixel data and source properties of a decoded image.
type Decoded struct {
	Image *raster.Image
	Depth uint // 8 or 16
	Gray  bool // single-channel source
}

// Decode reads a PNG or TIFF into float32 samples in [0,1]. Grayscale
// sources come back single-channel; everything else is three-channel RGB.
func Decode(path string) (*Decoded, error) {
	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(path); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// ImageMagick reports the smallest depth the samples fit in; PNG and
	// TIFF store unsigned 8- or 16-bit, so round up and reject the rest
	// (float TIFFs report 32).
	depth := mw.GetImageDepth()
	switch {
	case depth <= 8:
		depth = 8
	case depth <= 16:
		depth = 16
	default:
		return nil, fmt.Errorf("%w: %d bits in %s", ErrUnsupportedDepth, depth, path)
	}

	width := mw.GetImageWidth()
	height := mw.GetImageHeight()
	gray := mw.GetImageColorspace() == imagick.COLORSPACE_GRAY

	pmap, channels := "RGB", 3
	if gray {
		pmap, channels = "I", 1
	}
	pixels, err := mw.ExportImagePixels(0, 0, width, height, pmap, imagick.PIXEL_FLOAT)
	if err != nil {
		return nil, fmt.Errorf("failed to export pixels from %s: %w", path, err)
	}

	img := raster.New(int(height), int(width), channels)
	switch v := pixels.(type) {
	case []float32:
		copy(img.Pix, v)
	case []float64:
		for i, val := range v {
			img.Pix[i] = float32(val)
		}
	default:
		return nil, fmt.Errorf("unexpected pixel type %T from %s", pixels, path)
	}

	return &Decoded{Image: img, Depth: depth, Gray: gray}, nil
}

// Encode writes a three-channel raster to path at the given sample depth.
// The container format follows the file extension.
func Encode(path string, img *raster.Image, depth uint) error {
	format, err := formatFor(path)
	if err != nil {
		return err
	}

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ConstituteImage(uint(img.W), uint(img.H), "RGB", imagick.PIXEL_FLOAT, img.Pix); err != nil {
		return fmt.Errorf("failed to constitute %s: %w", path, err)
	}
	if err := mw.SetImageFormat(format); err != nil {
		return fmt.Errorf("failed to set format for %s: %w", path, err)
	}
	if err := mw.SetImageDepth(depth); err != nil {
		return fmt.Errorf("failed to set depth for %s: %w", path, err)
	}
	if err := mw.WriteImage(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EncodeRGBA writes an 8-bit RGBA image, the montage output format.
func EncodeRGBA(path string, img *image.RGBA) error {
	format, err := formatFor(path)
	if err != nil {
		return err
	}

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	b := img.Bounds()
	if err := mw.ConstituteImage(uint(b.Dx()), uint(b.Dy()), "RGBA", imagick.PIXEL_CHAR, img.Pix); err != nil {
		return fmt.Errorf("failed to constitute %s: %w", path, err)
	}
	if err := mw.SetImageFormat(format); err != nil {
		return fmt.Errorf("failed to set format for %s: %w", path, err)
	}
	if err := mw.SetImageDepth(8); err != nil {
		return fmt.Errorf("failed to set depth for %s: %w", path, err)
	}
	if err := mw.WriteImage(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG", nil
	case ".tif", ".tiff":
		return "TIFF", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}
