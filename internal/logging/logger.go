// Package logging builds the process-wide slog logger and the small set of
// helpers every component uses to log with consistent keys.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // text, json or auto
	// Debug forces debug level and includes file:line in every record.
	Debug  bool
	Output io.Writer
}

// New constructs a slog logger and installs it as the slog default so the
// stdlib log package routes through the same handler.
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := parseLevel(opts.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Debug,
	}

	var h slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "auto":
		if isTerminal(out) {
			h = slog.NewTextHandler(out, hopts)
		} else {
			h = slog.NewJSONHandler(out, hopts)
		}
	case "text", "console":
		h = slog.NewTextHandler(out, hopts)
	case "json":
		h = slog.NewJSONHandler(out, hopts)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}

// WithRunID tags logger with a fresh run id. The supervisor restarts the
// bridge after every device fault, and the id keeps those runs apart in the
// journal.
func WithRunID(logger *slog.Logger) (*slog.Logger, string) {
	id := uuid.NewString()
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldRunID, id)), id
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
