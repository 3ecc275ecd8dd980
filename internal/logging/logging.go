package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Setup configures global logging. Log lines go to stdout and, when
// logFile is non-empty, to a dated file next to it; logFile itself is kept
// as a symlink to the current dated file so the configured path always
// tails the active log.
func Setup(logFile, level string) (*slog.Logger, error) {
	parsed := parseLevel(level)

	var writers []io.Writer

	// Always include stdout for immediate feedback
	writers = append(writers, os.Stdout)

	if logFile != "" {
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}

		datedLog := filepath.Join(logDir, fmt.Sprintf("demosaic-%s.log",
			time.Now().Format("2006-01-02")))

		file, err := os.OpenFile(datedLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %v", err)
		}

		writers = append(writers, file)

		// Keep the configured path pointing at the current log
		os.Remove(logFile)
		if err := os.Symlink(filepath.Base(datedLog), logFile); err != nil {
			// Symlink failed, but continue - it's not critical
		}
	}

	multiWriter := io.MultiWriter(writers...)

	// Standard logger carrying the traditional format
	logger := log.New(multiWriter, "", log.LstdFlags)

	handler := &TraditionalHandler{
		logger: logger,
		level:  parsed,
	}

	slogLogger := slog.New(handler)
	slog.SetDefault(slogLogger)

	slogLogger.Info("demosaic logging initialized",
		"level", parsed.String(),
		"log_file", logFile,
	)

	return slogLogger, nil
}

// TraditionalHandler implements slog.Handler with traditional log formatting
type TraditionalHandler struct {
	logger *log.Logger
	level  slog.Level
}

func (h *TraditionalHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *TraditionalHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String()

	// Build message with attributes
	msg := r.Message
	attrs := make([]string, 0)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})

	if len(attrs) > 0 {
		msg = fmt.Sprintf("%s [%s]", msg, strings.Join(attrs, " "))
	}

	// Use traditional format: [LEVEL] message
	h.logger.Printf("[%s] %s", strings.ToUpper(level), msg)

	return nil
}

func (h *TraditionalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// For simplicity, return the same handler
	return h
}

func (h *TraditionalHandler) WithGroup(name string) slog.Handler {
	// For simplicity, return the same handler
	return h
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogJobStart logs the beginning of a processing job
func LogJobStart(logger *slog.Logger, jobType, jobID, inputPath, outputPath string, options map[string]any) {
	logger.Info("job started",
		"type", jobType,
		"id", jobID,
		"input", inputPath,
		"output", outputPath,
		"options", options,
	)
}

// LogJobComplete logs successful job completion
func LogJobComplete(logger *slog.Logger, jobType, jobID string, duration time.Duration, resultInfo map[string]any) {
	logger.Info("job completed successfully",
		"type", jobType,
		"id", jobID,
		"duration_ms", duration.Milliseconds(),
		"duration_human", duration.String(),
		"result", resultInfo,
	)
}

// LogJobError logs job failures
func LogJobError(logger *slog.Logger, jobType, jobID string, duration time.Duration, err error, context map[string]any) {
	logger.Error("job failed",
		"type", jobType,
		"id", jobID,
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
		"context", context,
	)
}

// LogStage logs one state transition of an image moving through the
// restoration pipeline
func LogStage(logger *slog.Logger, jobID, stage string, details map[string]any) {
	logger.Debug("pipeline stage",
		"job_id", jobID,
		"stage", stage,
		"details", details,
	)
}
