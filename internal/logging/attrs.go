package logging

import (
	"context"
	"log/slog"

	"github.com/antonijn/controlpanel/internal/faults"
)

const (
	FieldComponent  = "component"
	FieldFaultClass = "fault_class"
	FieldRunID      = "run_id"
	FieldDevice     = "device"
)

// Error returns the standard attribute for an error value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

// Fault logs err with its fault class. Protocol and validation faults are
// recovered where they happen and log at warn; device faults end the process
// and log at error.
func Fault(logger *slog.Logger, msg string, err error, args ...any) {
	if logger == nil || err == nil {
		return
	}
	class := faults.Class(err)
	args = append(args, slog.String(FieldFaultClass, class), Error(err))
	if faults.IsFatal(err) {
		logger.Error(msg, args...)
		return
	}
	logger.Warn(msg, args...)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h NoopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h NoopHandler) WithGroup(string) slog.Handler           { return h }
