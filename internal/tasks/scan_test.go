package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestScanCountsByDirAndExtension(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "session")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"a.png", "b.PNG", "c.tif", "notes.txt", "session/d.png"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	summary, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if summary.Images != 4 {
		t.Fatalf("expected 4 images, got %d", summary.Images)
	}
	if summary.Dirs[root] != 3 || summary.Dirs[sub] != 1 {
		t.Fatalf("unexpected per-directory counts: %v", summary.Dirs)
	}
	if summary.ByExt[".png"] != 3 || summary.ByExt[".tif"] != 1 {
		t.Fatalf("unexpected per-extension counts: %v", summary.ByExt)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for a missing root")
	}
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, root); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
