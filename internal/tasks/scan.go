package tasks

import (
	"context"
	"path/filepath"
	"strings"

	"demosaic/internal/fsutil"
)

// ScanSummary describes the eligible inputs found under a directory.
type ScanSummary struct {
	Images int
	Dirs   map[string]int // images per directory
	ByExt  map[string]int // images per extension
}

// Scan walks root and counts the images a restoration run would pick up,
// grouped by directory and extension.
func Scan(ctx context.Context, root string) (ScanSummary, error) {
	files, err := fsutil.ListImages(root)
	if err != nil {
		return ScanSummary{}, err
	}

	summary := ScanSummary{
		Dirs:  map[string]int{},
		ByExt: map[string]int{},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return ScanSummary{}, err
		}
		summary.Images++
		summary.Dirs[filepath.Dir(f)]++
		summary.ByExt[strings.ToLower(filepath.Ext(f))]++
	}
	return summary, nil
}
