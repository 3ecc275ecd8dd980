package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"demosaic/internal/config"
	"demosaic/internal/pipeline"
	"demosaic/internal/server"
	"demosaic/internal/storage"
	"demosaic/internal/tasks"
	"demosaic/internal/web"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

type pipelineClient interface {
	Submit(job pipeline.Job) error
	Subscribe() (<-chan pipeline.Result, func())
}

type imageWatcher interface {
	Start()
	Stop() error
	Events() <-chan tasks.FileEvent
}

type watcherFactory func(dir string, log *slog.Logger) (imageWatcher, error)

func defaultWatcher(dir string, log *slog.Logger) (imageWatcher, error) {
	return tasks.NewWatcher(dir, log)
}

type serverFunc func(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error

func defaultServe(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error {
	if real, ok := pipe.(*pipeline.Pipeline); ok {
		return server.Serve(ctx, addr, store, real, log)
	}
	return fmt.Errorf("pipeline does not support server operation")
}

// Root wires CLI commands to the pipeline.
type Root struct {
	pipeline     pipelineClient
	cfg          *config.Config
	log          *slog.Logger
	store        *storage.Store
	hub          *web.Hub
	serveFn      serverFunc
	watchFactory watcherFactory
}

// NewRoot constructs the CLI root command. A nil pipeline is allowed for
// commands that only read the catalog or the configuration.
func NewRoot(pl *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger, store *storage.Store, hub *web.Hub) *Root {
	r := &Root{
		cfg:          cfg,
		log:          logger,
		store:        store,
		hub:          hub,
		serveFn:      defaultServe,
		watchFactory: defaultWatcher,
	}
	if pl != nil {
		r.pipeline = pl
	}
	return r
}

// Run parses args and dispatches to subcommands.
func (r *Root) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.usage()
		return nil
	}

	// Global help handling
	if args[0] == "--help" || args[0] == "-h" || args[0] == "help" {
		if len(args) == 1 {
			r.usage()
			return nil
		}
		return r.showCommandHelp(args[1])
	}

	switch args[0] {
	case "run":
		return r.cmdRun(ctx, args[1:])
	case "scan":
		return r.cmdScan(ctx, args[1:])
	case "watch":
		return r.cmdWatch(ctx, args[1:])
	case "serve":
		return r.cmdServe(ctx, args[1:])
	case "catalog":
		return r.cmdCatalog(ctx, args[1:])
	case "config":
		return r.cmdConfig(ctx, args[1:])
	case "version":
		return r.cmdVersion()
	default:
		r.log.Error("unknown command", "command", args[0])
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (r *Root) cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	output := fs.String("output", r.cfg.Output, "output directory")
	noise := fs.Float64("noise", r.cfg.Noise, "degradation sigma added before mosaicking")
	offsetX := fs.Int("offset-x", r.cfg.OffsetX, "pattern phase offset in columns (raw mode)")
	offsetY := fs.Int("offset-y", r.cfg.OffsetY, "pattern phase offset in rows (raw mode)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	input := fs.Arg(0)
	if input == "" {
		return fmt.Errorf("run requires an input file or directory")
	}
	if err := config.ValidateNoise(*noise); err != nil {
		return err
	}
	if *offsetX < 0 || *offsetY < 0 {
		return fmt.Errorf("offsets must be non-negative, got (%d, %d)", *offsetX, *offsetY)
	}

	job := pipeline.Job{
		ID:        newID("restore"),
		Type:      pipeline.JobRestore,
		InputPath: input,
		Output:    *output,
		Options: map[string]any{
			"noise":   *noise,
			"offsetX": *offsetX,
			"offsetY": *offsetY,
		},
	}
	return r.enqueueAndWait(ctx, job)
}

func (r *Root) cmdScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	input := fs.Arg(0)
	if input == "" {
		return fmt.Errorf("scan requires an input directory")
	}

	job := pipeline.Job{
		ID:        newID("scan"),
		Type:      pipeline.JobScan,
		InputPath: input,
		Options:   map[string]any{"source": "cli"},
	}
	return r.enqueueAndWait(ctx, job)
}

// cmdWatch blocks on a directory watcher and enqueues a restoration job for
// every image that settles there. It only returns on context cancellation or
// a watcher setup failure.
func (r *Root) cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	output := fs.String("output", r.cfg.Output, "output directory")
	noise := fs.Float64("noise", r.cfg.Noise, "degradation sigma added before mosaicking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := fs.Arg(0)
	if dir == "" {
		return fmt.Errorf("watch requires a directory")
	}
	if r.pipeline == nil {
		return fmt.Errorf("pipeline not running")
	}
	if err := config.ValidateNoise(*noise); err != nil {
		return err
	}
	return r.watchLoop(ctx, dir, *output, *noise)
}

func (r *Root) watchLoop(ctx context.Context, dir, output string, noise float64) error {
	w, err := r.watchFactory(dir, r.log)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer func() { _ = w.Stop() }()
	w.Start()

	r.log.Info("watching for new images", "dir", dir, "output", output)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events():
			job := pipeline.Job{
				ID:        newID("restore"),
				Type:      pipeline.JobRestore,
				InputPath: ev.Path,
				Output:    output,
				Options: map[string]any{
					"noise":   noise,
					"offsetX": r.cfg.OffsetX,
					"offsetY": r.cfg.OffsetY,
				},
			}
			if err := r.enqueue(ctx, job); err != nil {
				r.log.Warn("failed to enqueue watched image", "path", ev.Path, "error", err.Error())
			}
		}
	}
}

func (r *Root) cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", r.cfg.ListenAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return r.serve(ctx, *addr)
}

func (r *Root) serve(ctx context.Context, addr string) error {
	if r.hub != nil {
		go func() {
			if err := r.hub.Start(ctx); err != nil {
				r.log.Error("progress hub failed", "error", err.Error())
			}
		}()
	}
	return r.serveFn(ctx, addr, r.store, r.pipeline, r.log)
}

func (r *Root) cmdCatalog(ctx context.Context, args []string) error {
	_ = ctx
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if runID := fs.Arg(0); runID != "" {
		return r.catalogImages(runID)
	}
	return r.listRuns(*limit)
}

func (r *Root) listRuns(limit int) error {
	if r.store == nil {
		return fmt.Errorf("catalog requires the run database")
	}
	runs, err := r.store.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no recorded runs")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-32s %-8s %-10s %-20s %s\n", "ID", "TYPE", "STATUS", "QUEUED", "INPUT")
	for _, run := range runs {
		fmt.Fprintf(os.Stdout, "%-32s %-8s %-10s %-20s %s\n",
			run.ID, run.JobType, run.Status, run.CreatedAt.Format("2006-01-02 15:04:05"), run.InputPath)
		if run.Error != "" {
			fmt.Fprintf(os.Stdout, "  error: %s\n", run.Error)
		}
	}
	return nil
}

func (r *Root) catalogImages(runID string) error {
	if r.store == nil {
		return fmt.Errorf("catalog requires the run database")
	}
	images, err := r.store.RunImages(runID)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Fprintf(os.Stdout, "no images recorded for run %s\n", runID)
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-40s %-10s %10s %6s %8s\n", "SOURCE", "STATUS", "PSNR", "TILES", "TIME")
	for _, img := range images {
		psnr := "-"
		switch {
		case img.Exact:
			psnr = "exact"
		case img.HasPSNR:
			psnr = fmt.Sprintf("%.2f dB", img.PSNR)
		}
		fmt.Fprintf(os.Stdout, "%-40s %-10s %10s %6d %7dms\n",
			img.SourcePath, img.Status, psnr, img.Tiles, img.DurationMS)
		if img.Error != "" {
			fmt.Fprintf(os.Stdout, "  error: %s\n", img.Error)
		}
	}
	return nil
}

func (r *Root) enqueueAndWait(ctx context.Context, job pipeline.Job) error {
	if r.pipeline == nil {
		return fmt.Errorf("pipeline not running")
	}
	resCh, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()
	if err := r.enqueue(ctx, job); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return fmt.Errorf("pipeline stopped before completion")
			}
			if res.Job.ID == job.ID {
				if res.Error != nil {
					return res.Error
				}
				r.printResult(res)
				return nil
			}
		}
	}
}

func (r *Root) enqueue(ctx context.Context, job pipeline.Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if r.pipeline == nil {
		return fmt.Errorf("pipeline not running")
	}
	if err := r.pipeline.Submit(job); err != nil {
		return err
	}

	r.log.Info("job queued", "type", job.Type, "id", job.ID, "input", job.InputPath)
	return nil
}

func (r *Root) printResult(res pipeline.Result) {
	switch res.Job.Type {
	case pipeline.JobRestore:
		fmt.Fprintf(os.Stdout, "restored %v images (%v failed)\n", res.Meta["images"], res.Meta["failed"])
		if mean, ok := res.Meta["meanPsnr"].(float64); ok {
			fmt.Fprintf(os.Stdout, "mean PSNR %.2f dB over %v images\n", mean, res.Meta["finite"])
		}
		if exact, ok := res.Meta["exact"]; ok {
			fmt.Fprintf(os.Stdout, "%v exact reconstructions\n", exact)
		}
	case pipeline.JobScan:
		fmt.Fprintf(os.Stdout, "found %v images across %v directories\n", res.Meta["images"], res.Meta["dirs"])
		if byExt, ok := res.Meta["byExt"].(map[string]int); ok {
			for ext, n := range byExt {
				fmt.Fprintf(os.Stdout, "  %s: %d\n", ext, n)
			}
		}
	}
}

func (r *Root) usage() {
	fmt.Fprintf(os.Stdout, `Demosaic - CFA Restoration Pipeline

Usage:
  demosaic <command> [options] [arguments]

Processing Commands:
  run          Mosaic, restore, and score an image or directory
  scan         Count restorable images under a directory
  watch        Restore new images as they appear in a directory

Utility Commands:
  serve        Start the status API server
  catalog      List recorded runs and their images
  config       Manage configuration settings
  version      Show version information

Global Options:
  --help, -h      Show help for command
  --verbose       Enable detailed logging
  --config PATH   Use custom config file

Examples:
  demosaic run /images/kodak/ --noise 0.02
  demosaic run frame.tif --offset-x 1 --offset-y 1
  demosaic watch /images/incoming/ --output /images/restored/
  demosaic serve --addr :8643
  demosaic catalog --limit 10

For detailed help on any command:
  demosaic help <command>
`)
}

func (r *Root) showCommandHelp(cmd string) error {
	switch cmd {
	case "run":
		fmt.Fprintf(os.Stdout, "Usage: demosaic run <input> [options]\nDegrade, mosaic, and restore an image or every image in a directory.\nFull-color inputs get a five-panel comparison strip and a PSNR score;\nsingle-channel inputs are treated as raw mosaics and restored directly.\nOptions:\n  --output DIR     Output directory (default: %s)\n  --noise SIGMA    Gaussian sigma in [0, %.4f] (default: %.4f)\n  --offset-x N     Pattern phase offset in columns, raw mode only\n  --offset-y N     Pattern phase offset in rows, raw mode only\nExamples:\n  demosaic run /images/kodak/\n  demosaic run frame.tif --offset-x 1\n", r.cfg.Output, config.MaxNoise, r.cfg.Noise)
	case "scan":
		fmt.Fprintf(os.Stdout, "Usage: demosaic scan <input_dir>\nWalk a directory and report restorable images by folder and extension.\nExamples:\n  demosaic scan /images/archive/\n")
	case "watch":
		fmt.Fprintf(os.Stdout, "Usage: demosaic watch <input_dir> [options]\nWatch a directory and enqueue a restoration for each new image once\nits writes settle.\nOptions:\n  --output DIR     Output directory (default: %s)\n  --noise SIGMA    Gaussian sigma in [0, %.4f] (default: %.4f)\nExamples:\n  demosaic watch /images/incoming/ --output /images/restored/\n", r.cfg.Output, config.MaxNoise, r.cfg.Noise)
	case "serve":
		fmt.Fprintf(os.Stdout, "Usage: demosaic serve [options]\nStart the status API server with run history and live job events.\nOptions:\n  --addr ADDR      Listen address (default: %s)\nExamples:\n  demosaic serve --addr :8643\n", r.cfg.ListenAddr)
	case "catalog":
		fmt.Fprintf(os.Stdout, "Usage: demosaic catalog [run_id] [options]\nList recorded runs, or the per-image results of one run.\nOptions:\n  --limit N        Number of runs to list (default: 20)\nExamples:\n  demosaic catalog\n  demosaic catalog restore-20250114T120000-0042\n")
	case "config":
		fmt.Fprintf(os.Stdout, "Usage: demosaic config <subcommand>\nManage configuration settings.\nSubcommands:\n  show             Display current configuration\n  validate         Check the configuration for errors\nExamples:\n  demosaic config show\n  demosaic config validate\n")
	default:
		r.usage()
	}
	return nil
}

func newID(prefix string) string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s-%s-%04d", prefix, ts, rand.Intn(10000))
}
