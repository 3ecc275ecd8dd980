// Package tile turns a padded canvas into a deterministic list of
// overlapping tile windows and reassembles cropped operator outputs.
package tile

import (
	"errors"
	"fmt"
)

// ErrDegenerateTile is returned when the tile size leaves no interior after
// the operator's crop.
var ErrDegenerateTile = errors.New("tile size leaves no interior after cropping")

// Window is one tile placement, [Y0,Y1) x [X0,X1), on the canvas being tiled.
type Window struct {
	Y0, X0, Y1, X1 int
}

// Plan is the complete tiling of one canvas. Windows are ordered rows outer,
// columns inner, and the order is stable: identical inputs produce an
// identical plan.
type Plan struct {
	Psize   int
	Step    int
	Windows []Window
}

// Count returns the number of tiles, used for progress reporting.
func (p Plan) Count() int { return len(p.Windows) }

// Schedule computes the tile plan for an h x w canvas. psize is the
// requested tile side, margin the border the operator discards per tile
// edge, and snap the pattern period boundary tiles are aligned to.
//
// The effective tile side is clipped to the canvas and forced even. Tiles
// advance by psize - 2*margin so their cropped interiors abut exactly; only
// a final tile that would overrun the canvas is pulled back, with its end
// snapped to a multiple of snap so it stays on the pattern phase.
func Schedule(h, w, psize, margin, snap int) (Plan, error) {
	if psize > h {
		psize = h
	}
	if psize > w {
		psize = w
	}
	if psize%2 != 0 {
		psize--
	}
	step := psize - 2*margin
	if step <= 0 {
		return Plan{}, fmt.Errorf("%w: tile %d, margin %d", ErrDegenerateTile, psize, margin)
	}

	ys := axisStarts(h, psize, step, margin, snap)
	xs := axisStarts(w, psize, step, margin, snap)
	windows := make([]Window, 0, len(ys)*len(xs))
	for _, y := range ys {
		for _, x := range xs {
			windows = append(windows, Window{Y0: y, X0: x, Y1: y + psize, X1: x + psize})
		}
	}
	return Plan{Psize: psize, Step: step, Windows: windows}, nil
}

func axisStarts(dim, psize, step, margin, snap int) []int {
	var starts []int
	for s := 0; s < dim-2*margin; s += step {
		start := s
		if start+psize > dim {
			end := (dim / snap) * snap
			start = end - psize
		}
		starts = append(starts, start)
	}
	return starts
}
