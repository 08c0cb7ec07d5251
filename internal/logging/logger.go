// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zerolog logger shared by every stage. The
// entry point constructs one logger per process and passes it down; there is
// no package-level instance.
//
// Output fans out to up to three sinks: the terminal (human-readable, at the
// configured level), <dir>/app.log (JSON, every level) and <dir>/errors.log
// (JSON, error and above).
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/pkg/types"
)

const (
	appLogFile   = "app.log"
	errorLogFile = "errors.log"
)

// DefaultConfig returns the logging defaults used when no config is supplied.
func DefaultConfig() types.LoggingConfig {
	return types.LoggingConfig{
		Level:  "info",
		Format: "console",
		Dir:    "logs",
	}
}

// New creates a logger writing to console and, when cfg.Dir is set, to the
// log files under it. The returned closer releases the files.
func New(cfg types.LoggingConfig, console io.Writer) (zerolog.Logger, io.Closer, error) {
	if console == nil {
		console = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var term io.Writer = console
	if !strings.EqualFold(cfg.Format, "json") {
		term = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}

	writers := []io.Writer{levelFilter{w: term, min: ParseLevel(cfg.Level)}}
	var files multiCloser

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating log directory %s: %w", cfg.Dir, err)
		}
		for _, sink := range []struct {
			name string
			min  zerolog.Level
		}{
			{appLogFile, zerolog.DebugLevel},
			{errorLogFile, zerolog.ErrorLevel},
		} {
			f, err := os.OpenFile(filepath.Join(cfg.Dir, sink.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				files.Close()
				return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
			}
			files = append(files, f)
			writers = append(writers, levelFilter{w: f, min: sink.min})
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	return logger, files, nil
}

// ErrorLogPath returns where error-level entries are written for cfg.
func ErrorLogPath(cfg types.LoggingConfig) string {
	if cfg.Dir == "" {
		return ""
	}
	return filepath.Join(cfg.Dir, errorLogFile)
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRun adds run-correlation fields to a logger.
func WithRun(logger zerolog.Logger, runID, source string) zerolog.Logger {
	return logger.With().
		Str("run_id", runID).
		Str("source", source).
		Logger()
}

// levelFilter drops entries below min before they reach w.
type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
