package pipeline

import (
	"context"
	"fmt"

	"log/slog"

	"demosaic/internal/config"
	"demosaic/internal/restore"
	"demosaic/internal/storage"
	"demosaic/internal/tasks"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log      *slog.Logger
	store    *storage.Store
	restorer imageRestorer
	scanFn   scanFunc
}

type imageRestorer interface {
	Run(ctx context.Context, req tasks.RestoreRequest) (tasks.RestoreSummary, error)
}

type scanFunc func(ctx context.Context, root string) (tasks.ScanSummary, error)

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Config, op restore.Operator, progress tasks.ProgressFunc) Processor {
	return &router{
		log:      logger,
		store:    store,
		restorer: tasks.NewRestorer(cfg, op, logger, progress),
		scanFn:   tasks.Scan,
	}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobRestore:
		return r.handleRestore(ctx, job)
	case JobScan:
		return r.handleScan(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleRestore(ctx context.Context, job Job) Result {
	req := tasks.RestoreRequest{
		RunID:     job.ID,
		Source:    job.InputPath,
		OutputDir: job.Output,
		Noise:     getFloat64Option(job.Options, "noise", 0),
		OffsetX:   getIntOption(job.Options, "offsetX", 0),
		OffsetY:   getIntOption(job.Options, "offsetY", 0),
	}

	summary, err := r.restorer.Run(ctx, req)

	failed := 0
	for _, out := range summary.Outcomes {
		rec := storage.ImageRecord{
			RunID:      job.ID,
			SourcePath: out.Source,
			OutputPath: out.Output,
			Status:     "completed",
			PSNR:       out.PSNR,
			HasPSNR:    out.HasPSNR,
			Exact:      out.Exact,
			Tiles:      out.Tiles,
			DurationMS: out.Duration.Milliseconds(),
		}
		if out.Err != nil {
			failed++
			rec.Status = "failed"
			rec.Error = out.Err.Error()
		}
		_ = r.store.RecordImage(rec)
	}

	if err != nil {
		return Result{Job: job, Error: err}
	}

	meta := map[string]any{
		"images": len(summary.Outcomes),
		"failed": failed,
	}
	if summary.Finite > 0 {
		meta["meanPsnr"] = summary.MeanPSNR
		meta["finite"] = summary.Finite
	}
	if summary.Exact > 0 {
		meta["exact"] = summary.Exact
	}
	return Result{Job: job, Meta: meta}
}

func (r *router) handleScan(ctx context.Context, job Job) Result {
	summary, err := r.scanFn(ctx, job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	return Result{Job: job, Meta: map[string]any{
		"images": summary.Images,
		"dirs":   len(summary.Dirs),
		"byExt":  summary.ByExt,
	}}
}

// Option extraction helpers

func getFloat64Option(options map[string]any, key string, defaultValue float64) float64 {
	if v, ok := options[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return defaultValue
}

func getIntOption(options map[string]any, key string, defaultValue int) int {
	if v, ok := options[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultValue
}
