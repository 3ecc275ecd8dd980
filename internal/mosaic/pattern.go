// Package mosaic implements color filter array geometry: the supported
// sensor patterns, the mosaic synthesizer that masks full-color images down
// to CFA samples, and the phase-preserving border padder.
package mosaic

import (
	"errors"
	"fmt"
)

// ErrUnknownPattern is returned when a pattern name is not recognized.
var ErrUnknownPattern = errors.New("unknown mosaic pattern")

// Channel indices of the masked representation.
const (
	chanR = 0
	chanG = 1
	chanB = 2
)

// PatternSpec describes a CFA layout: its repeat period and which channel
// survives at each position within one period. Specs are immutable; build
// one with Lookup and share it freely.
type PatternSpec struct {
	Name   string
	Period int
	grid   [][]int
}

// Channel returns the retained channel index (0=R, 1=G, 2=B) at (row, col).
// Only the position modulo the period matters.
func (p PatternSpec) Channel(row, col int) int {
	return p.grid[row%p.Period][col%p.Period]
}

// GRBG motif: green and red on even rows, blue and green on odd rows.
var bayerGrid = [][]int{
	{chanG, chanR},
	{chanB, chanG},
}

// Fujifilm 6x6 motif with 20 green, 8 red, and 8 blue sites per period.
var xtransGrid = [][]int{
	{chanG, chanB, chanG, chanG, chanR, chanG},
	{chanR, chanG, chanR, chanB, chanG, chanB},
	{chanG, chanB, chanG, chanG, chanR, chanG},
	{chanG, chanR, chanG, chanG, chanB, chanG},
	{chanB, chanG, chanB, chanR, chanG, chanR},
	{chanG, chanR, chanG, chanG, chanB, chanG},
}

// Lookup resolves a pattern name to its spec.
func Lookup(name string) (PatternSpec, error) {
	switch name {
	case "bayer":
		return PatternSpec{Name: "bayer", Period: 2, grid: bayerGrid}, nil
	case "xtrans":
		return PatternSpec{Name: "xtrans", Period: 6, grid: xtransGrid}, nil
	default:
		return PatternSpec{}, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}
}
