package fsutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"frame.png", true},
		{"frame.PNG", true},
		{"scan.tif", true},
		{"scan.tiff", true},
		{"photo.jpg", false},
		{"raw.dng", false},
		{"notes.txt", false},
		{"noext", false},
		{"out.partial.png", false},
		{"OUT.PARTIAL.TIF", false},
	}
	for _, tc := range cases {
		if got := IsImageFile(tc.path); got != tc.want {
			t.Fatalf("IsImageFile(%q): expected %v, got %v", tc.path, tc.want, got)
		}
	}
}

func TestListImagesSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	for _, name := range []string{"b.png", "a.tif", "skip.jpg", "nested/c.png"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	got, err := ListImages(root)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.tif"),
		filepath.Join(root, "b.png"),
		filepath.Join(root, "nested/c.png"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestStagingCommitDiscard(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.png")
	staging := StagingPath(final)
	if staging != filepath.Join(dir, "out.partial.png") {
		t.Fatalf("unexpected staging path %q", staging)
	}

	if err := os.WriteFile(staging, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := Commit(staging, final); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Fatalf("staging file still present after commit")
	}
	body, err := os.ReadFile(final)
	if err != nil || string(body) != "pixels" {
		t.Fatalf("final file wrong: %v %q", err, body)
	}

	// Discard tolerates both present and missing staging files.
	if err := os.WriteFile(staging, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	Discard(staging)
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Fatalf("staging file still present after discard")
	}
	Discard(staging)
}
