// Package restore defines the restoration operator contract and its
// backends: a pass-through identity operator and an OpenCV DNN operator
// loaded from a model artifact directory.
package restore

import (
	"context"
	"errors"

	"demosaic/internal/raster"
)

var (
	// ErrBackendUnavailable is returned when a model needs the native
	// OpenCV build and the binary was compiled without it.
	ErrBackendUnavailable = errors.New("dnn backend unavailable in this build")
	// ErrBadArtifact is returned for model directories that cannot be
	// loaded or probed.
	ErrBadArtifact = errors.New("invalid model artifact")
	// ErrShapeMismatch is returned when an operator output does not have
	// the shape its margin promises.
	ErrShapeMismatch = errors.New("operator output shape mismatch")
)

// Operator restores a full-color tile from a masked mosaic tile.
//
// Margin is the number of border pixels the operator discards per tile
// edge: a psize input yields a psize-2*Margin output. UsesNoise reports
// whether the operator consumes the degradation sigma; the pipeline passes
// the configured value either way and the operator ignores it if it has no
// noise input.
type Operator interface {
	Margin() int
	UsesNoise() bool
	Restore(ctx context.Context, tile *raster.Image, noise float64) (*raster.Image, error)
}

// Load resolves a model reference from configuration. The literal
// "identity" selects the pass-through backend; anything else is treated as
// a model artifact directory for the DNN backend.
func Load(model string) (Operator, error) {
	if model == "identity" {
		return NewIdentity(0), nil
	}
	return loadDNN(model)
}
