//go:build !purego && !js

package restore

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"demosaic/internal/raster"
)

// probeSize is the side of the blank tile used to measure the network's
// crop. A multiple of both supported pattern periods, and large enough for
// the receptive field of the shipped networks.
const probeSize = 192

// Input names the artifact contract requires. Networks take the masked
// mosaic on "mosaic"; noise-aware networks additionally take the sigma on
// "noise". A directory whose base name contains "noise" declares the
// noise input.
const (
	inputMosaic = "mosaic"
	inputNoise  = "noise"
)

// DNN runs a convolutional restoration network through the OpenCV DNN
// module. An artifact directory holds either model.onnx or the pair
// deploy.prototxt + weights.caffemodel. The per-tile crop margin is not
// configured anywhere; it is measured from the artifact itself by one
// probe forward pass at load time.
//
// OpenCV networks are not safe for concurrent forward passes, so Restore
// serializes on an internal mutex.
type DNN struct {
	mu     sync.Mutex
	net    gocv.Net
	margin int
	noise  bool
}

func loadDNN(dir string) (Operator, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBadArtifact, dir)
	}

	var net gocv.Net
	onnx := filepath.Join(dir, "model.onnx")
	proto := filepath.Join(dir, "deploy.prototxt")
	weights := filepath.Join(dir, "weights.caffemodel")
	switch {
	case fileExists(onnx):
		net = gocv.ReadNetFromONNX(onnx)
	case fileExists(proto) && fileExists(weights):
		net = gocv.ReadNet(weights, proto)
	default:
		return nil, fmt.Errorf("%w: %s holds neither model.onnx nor deploy.prototxt+weights.caffemodel", ErrBadArtifact, dir)
	}
	if net.Empty() {
		return nil, fmt.Errorf("%w: could not load network from %s", ErrBadArtifact, dir)
	}

	op := &DNN{net: net, noise: strings.Contains(filepath.Base(dir), "noise")}
	margin, err := op.probeMargin()
	if err != nil {
		_ = net.Close()
		return nil, err
	}
	op.margin = margin
	return op, nil
}

func (d *DNN) Margin() int { return d.margin }

func (d *DNN) UsesNoise() bool { return d.noise }

func (d *DNN) Restore(ctx context.Context, tile *raster.Image, noise float64) (*raster.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.forward(tile, noise)
}

// Close releases the network.
func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// probeMargin measures how many border pixels the network discards per
// tile edge by comparing the output of a blank forward pass to its input.
func (d *DNN) probeMargin() (int, error) {
	out, err := d.forward(raster.New(probeSize, probeSize, 3), 0)
	if err != nil {
		return 0, fmt.Errorf("margin probe: %w", err)
	}
	if out.H != out.W || out.H <= 0 || out.H > probeSize || (probeSize-out.H)%2 != 0 {
		return 0, fmt.Errorf("%w: %dx%d probe yielded %dx%d output", ErrBadArtifact, probeSize, probeSize, out.H, out.W)
	}
	return (probeSize - out.H) / 2, nil
}

func (d *DNN) forward(tile *raster.Image, noise float64) (*raster.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	input := gocv.NewMatWithSize(tile.H, tile.W, gocv.MatTypeCV32FC3)
	defer input.Close()
	data, err := input.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("dnn input buffer: %w", err)
	}
	copy(data, tile.Pix)

	blob := gocv.BlobFromImage(input, 1.0, image.Pt(tile.W, tile.H), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()
	d.net.SetInput(blob, inputMosaic)

	if d.noise {
		level := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV32F)
		defer level.Close()
		level.SetFloatAt(0, 0, float32(noise))
		noiseBlob := gocv.BlobFromImage(level, 1.0, image.Pt(1, 1), gocv.NewScalar(0, 0, 0, 0), false, false)
		defer noiseBlob.Close()
		d.net.SetInput(noiseBlob, inputNoise)
	}

	out := d.net.Forward("")
	defer out.Close()

	size := gocv.GetBlobSize(out)
	channels, h, w := int(size.Val2), int(size.Val3), int(size.Val4)
	if channels != 3 {
		return nil, fmt.Errorf("%w: network produced %d channels", ErrBadArtifact, channels)
	}

	res := raster.New(h, w, 3)
	for ch := 0; ch < 3; ch++ {
		plane := gocv.GetBlobChannel(out, 0, ch)
		vals, err := plane.DataPtrFloat32()
		if err != nil {
			plane.Close()
			return nil, fmt.Errorf("dnn output buffer: %w", err)
		}
		for y := 0; y < h; y++ {
			row := vals[y*w : (y+1)*w]
			for x, v := range row {
				res.Set(y, x, ch, v)
			}
		}
		plane.Close()
	}
	return res, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
