package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"demosaic/internal/storage"
	"demosaic/internal/tasks"
)

func TestRouterRestoreBuildsRequest(t *testing.T) {
	stub := &stubRestorer{
		summary: tasks.RestoreSummary{
			Outcomes: []tasks.ImageOutcome{
				{Source: "a.png", Output: "out/a.png", PSNR: 31.2, HasPSNR: true, Tiles: 4},
				{Source: "b.png", Output: "out/b.png", Exact: true, HasPSNR: true, Tiles: 4},
			},
			MeanPSNR: 31.2,
			Finite:   1,
			Exact:    1,
		},
	}
	r := &router{log: slog.Default(), restorer: stub, scanFn: tasks.Scan}

	job := Job{
		ID:        "restore-1",
		Type:      JobRestore,
		InputPath: "in",
		Output:    "out",
		Options: map[string]any{
			"noise":   0.02,
			"offsetX": 3,
			"offsetY": float64(5),
		},
	}

	res := r.handleRestore(context.Background(), job)
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if stub.lastReq.RunID != "restore-1" || stub.lastReq.Source != "in" || stub.lastReq.OutputDir != "out" {
		t.Fatalf("request not built from job: %+v", stub.lastReq)
	}
	if stub.lastReq.Noise != 0.02 {
		t.Fatalf("expected noise 0.02, got %v", stub.lastReq.Noise)
	}
	if stub.lastReq.OffsetX != 3 || stub.lastReq.OffsetY != 5 {
		t.Fatalf("unexpected offsets: %d,%d", stub.lastReq.OffsetX, stub.lastReq.OffsetY)
	}
	if res.Meta["images"] != 2 || res.Meta["failed"] != 0 {
		t.Fatalf("unexpected counts meta: %v", res.Meta)
	}
	if res.Meta["meanPsnr"] != 31.2 || res.Meta["finite"] != 1 || res.Meta["exact"] != 1 {
		t.Fatalf("unexpected quality meta: %v", res.Meta)
	}
}

func TestRouterRestoreRecordsImages(t *testing.T) {
	st, err := storage.New(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	stub := &stubRestorer{
		summary: tasks.RestoreSummary{
			Outcomes: []tasks.ImageOutcome{
				{Source: "ok.png", Output: "out/ok.png", PSNR: 28.4, HasPSNR: true, Tiles: 9, Duration: 1500 * time.Millisecond},
				{Source: "bad.png", Err: errors.New("decode failed")},
			},
			MeanPSNR: 28.4,
			Finite:   1,
		},
	}
	r := &router{log: slog.Default(), store: st, restorer: stub, scanFn: tasks.Scan}

	res := r.handleRestore(context.Background(), Job{ID: "restore-2", Type: JobRestore, InputPath: "in", Output: "out"})
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if res.Meta["failed"] != 1 {
		t.Fatalf("expected one failed image, got %v", res.Meta["failed"])
	}

	imgs, err := st.RunImages("restore-2")
	if err != nil {
		t.Fatalf("RunImages: %v", err)
	}
	if len(imgs) != 2 {
		t.Fatalf("expected 2 image records, got %d", len(imgs))
	}
	if imgs[0].Status != "completed" || !imgs[0].HasPSNR || math.Abs(imgs[0].PSNR-28.4) > 1e-9 {
		t.Fatalf("unexpected first record: %+v", imgs[0])
	}
	if imgs[0].DurationMS != 1500 {
		t.Fatalf("expected 1500ms duration, got %d", imgs[0].DurationMS)
	}
	if imgs[1].Status != "failed" || imgs[1].Error != "decode failed" {
		t.Fatalf("unexpected second record: %+v", imgs[1])
	}
}

func TestRouterRestoreErrorPropagates(t *testing.T) {
	stub := &stubRestorer{err: errors.New("no images found")}
	r := &router{log: slog.Default(), restorer: stub, scanFn: tasks.Scan}

	res := r.handleRestore(context.Background(), Job{ID: "restore-3", Type: JobRestore, InputPath: "missing"})
	if res.Error == nil || res.Error.Error() != "no images found" {
		t.Fatalf("expected restorer error, got %v", res.Error)
	}
}

func TestRouterScanMeta(t *testing.T) {
	r := &router{
		log: slog.Default(),
		scanFn: func(ctx context.Context, root string) (tasks.ScanSummary, error) {
			if root != "/library" {
				t.Fatalf("unexpected scan root %q", root)
			}
			return tasks.ScanSummary{
				Images: 7,
				Dirs:   map[string]int{"/library": 4, "/library/sub": 3},
				ByExt:  map[string]int{".png": 5, ".tif": 2},
			}, nil
		},
	}

	res := r.handleScan(context.Background(), Job{ID: "scan-1", Type: JobScan, InputPath: "/library"})
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if res.Meta["images"] != 7 || res.Meta["dirs"] != 2 {
		t.Fatalf("unexpected scan meta: %v", res.Meta)
	}
}

func TestRouterUnknownJobType(t *testing.T) {
	r := &router{log: slog.Default()}
	res := r.Process(context.Background(), Job{ID: "x", Type: JobType("transmute")})
	if res.Error == nil {
		t.Fatalf("expected error for unknown job type")
	}
}

// Stubs

type stubRestorer struct {
	lastReq tasks.RestoreRequest
	summary tasks.RestoreSummary
	err     error
}

func (s *stubRestorer) Run(ctx context.Context, req tasks.RestoreRequest) (tasks.RestoreSummary, error) {
	s.lastReq = req
	return s.summary, s.err
}
