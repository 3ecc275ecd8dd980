package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]struct{}{
	".png":  {},
	".tif":  {},
	".tiff": {},
}

// ListImages returns all eligible image files under root, sorted so batch
// order is stable across runs.
func ListImages(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsImageFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// IsImageFile checks if a file has one of the supported input extensions.
// Staged outputs are excluded so a scan never picks up a half-written file.
func IsImageFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.Contains(name, ".partial.") {
		return false
	}
	_, isImage := imageExts[filepath.Ext(name)]
	return isImage
}

// StagingPath returns the temporary name a file is written under before it
// is committed. The marker sits before the extension so format detection
// still works on the staged file.
func StagingPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".partial" + ext
}

// Commit renames a staged file into its final place. Rename is atomic on
// the same filesystem, so readers never observe a half-written output.
func Commit(staging, final string) error {
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("failed to commit %s: %w", final, err)
	}
	return nil
}

// Discard removes a staged file. Best effort: a leftover staging file is
// harmless and never committed.
func Discard(staging string) {
	_ = os.Remove(staging)
}
