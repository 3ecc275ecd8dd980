package tasks

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"demosaic/internal/config"
	"demosaic/internal/fsutil"
	"demosaic/internal/imgio"
	"demosaic/internal/logging"
	"demosaic/internal/metrics"
	"demosaic/internal/montage"
	"demosaic/internal/mosaic"
	"demosaic/internal/raster"
	"demosaic/internal/restore"
	"demosaic/internal/tile"
)

// Pipeline stage names, published to the progress sink and the debug log as
// an image moves from padding to its saved output.
const (
	StagePadded    = "padded"
	StageMosaicked = "mosaicked"
	StageTiling    = "tiling"
	StageStitched  = "stitched"
	StageUnpadded  = "unpadded"
	StageMetric    = "metric_computed"
	StageSaved     = "saved"
)

// progressInterval is how often the tile counter is sampled while tiling.
const progressInterval = 200 * time.Millisecond

// ProgressUpdate is one progress sample for one image of a run.
type ProgressUpdate struct {
	RunID  string `json:"run_id"`
	Source string `json:"source"`
	Stage  string `json:"stage"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Image  int    `json:"image"`
	Images int    `json:"images"`
}

// ProgressFunc receives progress samples. Implementations must not block;
// the restorer calls it from the image worker goroutine.
type ProgressFunc func(ProgressUpdate)

// RestoreRequest describes one restoration run over a file or directory.
type RestoreRequest struct {
	RunID     string
	Source    string
	OutputDir string
	Noise     float64
	OffsetX   int
	OffsetY   int
}

// ImageOutcome is the per-image result of a run.
type ImageOutcome struct {
	Source   string
	Output   string
	PSNR     float64
	HasPSNR  bool
	Exact    bool
	Tiles    int
	Duration time.Duration
	Err      error
}

// RestoreSummary aggregates a run: every image outcome plus the batch PSNR
// average over the ground-truth inputs.
type RestoreSummary struct {
	Outcomes []ImageOutcome
	MeanPSNR float64
	Finite   int
	Exact    int
}

// Restorer drives images through the degrade/mosaic/tile/stitch pipeline
// with a single restoration operator.
type Restorer struct {
	cfg      *config.Config
	op       restore.Operator
	log      *slog.Logger
	progress ProgressFunc

	decode      func(path string) (*imgio.Decoded, error)
	encode      func(path string, img *raster.Image, depth uint) error
	encodeStrip func(path string, img *image.RGBA) error
}

// NewRestorer builds a Restorer around the given operator. progress may be
// nil when nobody listens.
func NewRestorer(cfg *config.Config, op restore.Operator, logger *slog.Logger, progress ProgressFunc) *Restorer {
	return &Restorer{
		cfg:         cfg,
		op:          op,
		log:         logger,
		progress:    progress,
		decode:      imgio.Decode,
		encode:      imgio.Encode,
		encodeStrip: imgio.EncodeRGBA,
	}
}

// Run restores every eligible image under req.Source. Per-image failures are
// recorded in the summary and the batch continues; Run itself fails only
// when the input is unusable, the run is cancelled, or every image failed.
func (r *Restorer) Run(ctx context.Context, req RestoreRequest) (RestoreSummary, error) {
	paths, err := expandInput(req.Source)
	if err != nil {
		return RestoreSummary{}, err
	}
	if len(paths) == 0 {
		return RestoreSummary{}, fmt.Errorf("no images found in %s", req.Source)
	}
	if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
			return RestoreSummary{}, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	spec, err := mosaic.Lookup(r.cfg.MosaicType)
	if err != nil {
		return RestoreSummary{}, err
	}

	var summary RestoreSummary
	var avg metrics.Average
	failed := 0
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		start := time.Now()
		out, err := r.restoreOne(ctx, req, spec, path, i+1, len(paths))
		out.Source = path
		out.Duration = time.Since(start)
		if err != nil {
			failed++
			out.Err = err
			r.log.Error("image failed", "source", path, "error", err.Error())
		} else if out.HasPSNR {
			avg.Add(out.PSNR)
		}
		summary.Outcomes = append(summary.Outcomes, out)
	}
	summary.MeanPSNR, summary.Finite, summary.Exact = avg.Mean()

	if summary.Finite > 0 || summary.Exact > 0 {
		r.log.Info("batch PSNR",
			"mean", summary.MeanPSNR,
			"finite", summary.Finite,
			"exact", summary.Exact,
		)
	}
	if failed == len(paths) {
		return summary, fmt.Errorf("all %d images failed", len(paths))
	}
	return summary, nil
}

func (r *Restorer) restoreOne(ctx context.Context, req RestoreRequest, spec mosaic.PatternSpec, path string, pos, count int) (ImageOutcome, error) {
	dec, err := r.decode(path)
	if err != nil {
		return ImageOutcome{}, err
	}
	if dec.Gray {
		return r.runRaw(ctx, req, spec, path, dec, pos, count)
	}
	return r.runReference(ctx, req, spec, path, dec, pos, count)
}

// runReference handles a full-color input: degrade, mosaic, restore, score
// against the original, and save the five-panel comparison strip.
func (r *Restorer) runReference(ctx context.Context, req RestoreRequest, spec mosaic.PatternSpec, path string, dec *imgio.Decoded, pos, count int) (ImageOutcome, error) {
	ref, err := trimToPeriod(dec.Image, spec.Period)
	if err != nil {
		return ImageOutcome{}, fmt.Errorf("%s: %w", path, err)
	}
	noisy := AddGaussianNoise(ref, req.Noise, r.cfg.Seed)

	cPrime, err := mosaic.EffectiveMargin(r.op.Margin(), spec)
	if err != nil {
		return ImageOutcome{}, err
	}
	padded, err := mosaic.Pad(noisy, cPrime)
	if err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StagePadded, pos, count)

	mosaicked := mosaic.Mosaic(padded, spec)
	r.stage(req, path, StageMosaicked, pos, count)

	restored, tiles, err := r.runTiles(ctx, req, spec, path, mosaicked, pos, count)
	if err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StageStitched, pos, count)

	restored = unpad(restored, cPrime)
	r.stage(req, path, StageUnpadded, pos, count)

	psnr, err := metrics.PSNR(restored, ref)
	if err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StageMetric, pos, count)

	diff, err := montage.AbsDiff(restored, ref)
	if err != nil {
		return ImageOutcome{}, err
	}
	strip, err := montage.Compose([]montage.Panel{
		{Label: "reference", Image: ref},
		{Label: "noisy", Image: noisy},
		{Label: "mosaic", Image: unpad(mosaicked, cPrime)},
		{Label: "restored", Image: restored},
		{Label: "difference", Image: diff},
	})
	if err != nil {
		return ImageOutcome{}, err
	}

	outPath := outputName(req.OutputDir, path)
	if err := writeStaged(outPath, func(staging string) error {
		return r.encodeStrip(staging, strip)
	}); err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StageSaved, pos, count)

	return ImageOutcome{
		Output:  outPath,
		PSNR:    psnr,
		HasPSNR: true,
		Exact:   math.IsInf(psnr, 1),
		Tiles:   tiles,
	}, nil
}

// runRaw handles a single-channel mosaic input: align phase with the
// configured offsets, embed into the masked representation, restore, and
// save the restored image alone at the source depth.
func (r *Restorer) runRaw(ctx context.Context, req RestoreRequest, spec mosaic.PatternSpec, path string, dec *imgio.Decoded, pos, count int) (ImageOutcome, error) {
	plane := dec.Image
	if req.OffsetY > 0 || req.OffsetX > 0 {
		if req.OffsetY >= plane.H || req.OffsetX >= plane.W {
			return ImageOutcome{}, fmt.Errorf("offsets (%d, %d) exceed %dx%d image %s", req.OffsetX, req.OffsetY, plane.W, plane.H, path)
		}
		plane = plane.Crop(req.OffsetY, req.OffsetX, plane.H, plane.W)
	}
	plane, err := trimToPeriod(plane, spec.Period)
	if err != nil {
		return ImageOutcome{}, fmt.Errorf("%s: %w", path, err)
	}

	cPrime, err := mosaic.EffectiveMargin(r.op.Margin(), spec)
	if err != nil {
		return ImageOutcome{}, err
	}
	padded, err := mosaic.Pad(plane, cPrime)
	if err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StagePadded, pos, count)

	masked := mosaic.Embed(padded, spec)
	r.stage(req, path, StageMosaicked, pos, count)

	restored, tiles, err := r.runTiles(ctx, req, spec, path, masked, pos, count)
	if err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StageStitched, pos, count)

	restored = unpad(restored, cPrime)
	r.stage(req, path, StageUnpadded, pos, count)

	outPath := outputName(req.OutputDir, path)
	if err := writeStaged(outPath, func(staging string) error {
		return r.encode(staging, restored, dec.Depth)
	}); err != nil {
		return ImageOutcome{}, err
	}
	r.stage(req, path, StageSaved, pos, count)

	return ImageOutcome{Output: outPath, Tiles: tiles}, nil
}

// runTiles schedules the masked canvas, restores every tile across the
// bounded worker pool, and stitches the cropped outputs. The returned canvas
// has the padded shape; callers still crop the pad margin.
func (r *Restorer) runTiles(ctx context.Context, req RestoreRequest, spec mosaic.PatternSpec, path string, canvas *raster.Image, pos, count int) (*raster.Image, int, error) {
	margin := r.op.Margin()
	plan, err := tile.Schedule(canvas.H, canvas.W, r.cfg.TileSize, margin, spec.Period)
	if err != nil {
		return nil, 0, err
	}

	buf := tile.NewStitchBuffer(canvas.H, canvas.W, canvas.C, margin)
	var done atomic.Int64

	stop := make(chan struct{})
	var sampler sync.WaitGroup
	if r.progress != nil {
		sampler.Add(1)
		go func() {
			defer sampler.Done()
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					r.publish(req, path, StageTiling, int(done.Load()), plan.Count(), pos, count)
				}
			}
		}()
	}

	workers := r.cfg.TileWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	timeout := time.Duration(r.cfg.TileTimeoutSec) * time.Second

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, win := range plan.Windows {
		win := win
		g.Go(func() error {
			tctx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			out, err := r.op.Restore(tctx, canvas.Crop(win.Y0, win.X0, win.Y1, win.X1), req.Noise)
			if err != nil {
				return fmt.Errorf("tile (%d,%d): %w", win.Y0, win.X0, err)
			}
			wantH := win.Y1 - win.Y0 - 2*margin
			wantW := win.X1 - win.X0 - 2*margin
			if out.H != wantH || out.W != wantW || out.C != canvas.C {
				return fmt.Errorf("%w: tile (%d,%d) returned %dx%dx%d, want %dx%dx%d",
					restore.ErrShapeMismatch, win.Y0, win.X0, out.H, out.W, out.C, wantH, wantW, canvas.C)
			}
			buf.Write(win, out)
			done.Add(1)
			return nil
		})
	}
	err = g.Wait()
	close(stop)
	sampler.Wait()
	if err != nil {
		return nil, 0, err
	}

	r.publish(req, path, StageTiling, plan.Count(), plan.Count(), pos, count)
	return buf.Finalize(), plan.Count(), nil
}

// stage records a state transition in the debug log and the progress sink.
func (r *Restorer) stage(req RestoreRequest, source, stage string, pos, count int) {
	logging.LogStage(r.log, req.RunID, stage, map[string]any{"source": source})
	r.publish(req, source, stage, 0, 0, pos, count)
}

func (r *Restorer) publish(req RestoreRequest, source, stage string, done, total, pos, count int) {
	if r.progress == nil {
		return
	}
	r.progress(ProgressUpdate{
		RunID:  req.RunID,
		Source: source,
		Stage:  stage,
		Done:   done,
		Total:  total,
		Image:  pos,
		Images: count,
	})
}

// trimToPeriod crops trailing rows and columns so both dimensions are
// multiples of the pattern period, keeping boundary tiles on phase.
func trimToPeriod(img *raster.Image, period int) (*raster.Image, error) {
	h := (img.H / period) * period
	w := (img.W / period) * period
	if h == 0 || w == 0 {
		return nil, fmt.Errorf("image %dx%d smaller than the %d-pixel pattern period", img.W, img.H, period)
	}
	if h == img.H && w == img.W {
		return img, nil
	}
	return img.Crop(0, 0, h, w), nil
}

// unpad undoes Pad by cropping the effective margin from all four sides.
func unpad(img *raster.Image, margin int) *raster.Image {
	if margin == 0 {
		return img
	}
	return img.Crop(margin, margin, img.H-margin, img.W-margin)
}

// writeStaged writes through a staging name and renames on success, so a
// failed encode never leaves a partial output behind.
func writeStaged(path string, write func(staging string) error) error {
	staging := fsutil.StagingPath(path)
	if err := write(staging); err != nil {
		fsutil.Discard(staging)
		return err
	}
	if err := fsutil.Commit(staging, path); err != nil {
		fsutil.Discard(staging)
		return err
	}
	return nil
}

// expandInput resolves a source argument to the list of images to process.
func expandInput(source string) ([]string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read input %s: %w", source, err)
	}
	if info.IsDir() {
		return fsutil.ListImages(source)
	}
	if !fsutil.IsImageFile(source) {
		return nil, fmt.Errorf("unsupported input file %s", source)
	}
	return []string{source}, nil
}

func outputName(dir, source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"_restored"+ext)
}
