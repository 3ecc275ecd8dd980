package cli

import (
	"fmt"
	"log/slog"
	"runtime"

	"demosaic/internal/config"
	"demosaic/internal/pipeline"
	"demosaic/internal/storage"
	"demosaic/internal/web"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline, hub *web.Hub) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store, hub)

	rootCmd := &cobra.Command{
		Use:   "demosaic",
		Short: "Demosaic restores full-color images from CFA mosaics",
		Long: `Demosaic degrades, mosaics, and restores images tile by tile, scoring each
reconstruction against its reference and recording every run.`,
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd(root))
	rootCmd.AddCommand(newScanCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newCatalogCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newRunCmd(root *Root) *cobra.Command {
	var (
		output  string
		noise   float64
		offsetX int
		offsetY int
	)

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Mosaic, restore, and score an image or directory",
		Long: `Degrade a full-color image with seeded Gaussian noise, mosaic it, and restore
it tile by tile, scoring the result against the untouched reference.
Single-channel inputs are treated as raw mosaics and restored directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateNoise(noise); err != nil {
				return err
			}
			if offsetX < 0 || offsetY < 0 {
				return fmt.Errorf("offsets must be non-negative, got (%d, %d)", offsetX, offsetY)
			}
			job := pipeline.Job{
				ID:        newID("restore"),
				Type:      pipeline.JobRestore,
				InputPath: args[0],
				Output:    output,
				Options: map[string]any{
					"noise":   noise,
					"offsetX": offsetX,
					"offsetY": offsetY,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}

	cmd.Flags().StringVar(&output, "output", root.cfg.Output, "output directory")
	cmd.Flags().Float64Var(&noise, "noise", root.cfg.Noise, "degradation sigma added before mosaicking")
	cmd.Flags().IntVar(&offsetX, "offset-x", root.cfg.OffsetX, "pattern phase offset in columns (raw mode)")
	cmd.Flags().IntVar(&offsetY, "offset-y", root.cfg.OffsetY, "pattern phase offset in rows (raw mode)")

	return cmd
}

func newScanCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <input_directory>",
		Short: "Count restorable images under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("scan"),
				Type:      pipeline.JobScan,
				InputPath: args[0],
				Options:   map[string]any{"source": "cli"},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		output string
		noise  float64
	)

	cmd := &cobra.Command{
		Use:   "watch <input_directory>",
		Short: "Restore new images as they appear in a directory",
		Long: `Watch a directory and enqueue a restoration for each new image once its
writes settle. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.pipeline == nil {
				return fmt.Errorf("pipeline not running")
			}
			if err := config.ValidateNoise(noise); err != nil {
				return err
			}
			return root.watchLoop(cmd.Context(), args[0], output, noise)
		},
	}

	cmd.Flags().StringVar(&output, "output", root.cfg.Output, "output directory")
	cmd.Flags().Float64Var(&noise, "noise", root.cfg.Noise, "degradation sigma added before mosaicking")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status API server",
		Long: `Start an HTTP server exposing run history, per-image results, and a live
job event stream, plus the WebSocket progress dashboard.

Examples:
  demosaic serve --addr :8643`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.log.Info("starting server", "addr", addr)
			return root.serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", root.cfg.ListenAddr, "server address (host:port)")

	return cmd
}

func newCatalogCmd(root *Root) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "catalog [run_id]",
		Short: "List recorded runs and their images",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return root.catalogImages(args[0])
			}
			return root.listRuns(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")

	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate the demosaic configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configValidate()
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Demosaic v1.0.0-dev\nBuilt with Go %s\n", runtime.Version())
		},
	}
}
