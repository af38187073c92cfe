package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

// LevelTrace sits below debug and covers per-token work such as set
// computation and tokenizer output.
const LevelTrace slog.Level = -8

// level is shared by every logger built through Setup so the threshold can
// move after startup.
var level slog.LevelVar

// NewLogger returns a text logger writing to w. Sources are printed as
// package/file:line since several packages share file names.
func NewLogger(w io.Writer, leveler slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       leveler,
		AddSource:   true,
		ReplaceAttr: replaceAttr,
	}))
}

func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok && l <= LevelTrace {
			attr.Value = slog.StringValue("TRACE")
		}
	case slog.SourceKey:
		if source, ok := attr.Value.Any().(*slog.Source); ok {
			source.File = filepath.Join(filepath.Base(filepath.Dir(source.File)), filepath.Base(source.File))
		}
	}
	return attr
}

// Setup installs a logger writing to w as the process default.
func Setup(w io.Writer, l slog.Level) *slog.Logger {
	level.Set(l)
	logger := NewLogger(w, &level)
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the threshold of the logger installed by Setup.
func SetLevel(l slog.Level) {
	level.Set(l)
}

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithSequence returns a copy of ctx whose logger tags every record with
// the sequence id.
func WithSequence(ctx context.Context, id string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With("seq", id))
}

// Trace logs at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	trace(context.Background(), slog.Default(), msg, args)
}

// TraceContext logs at LevelTrace on the logger carried by ctx.
func TraceContext(ctx context.Context, msg string, args ...any) {
	trace(ctx, FromContext(ctx), msg, args)
}

func trace(ctx context.Context, logger *slog.Logger, msg string, args []any) {
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}

	var pcs [1]uintptr
	// skip Callers, trace and the exported wrapper
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), LevelTrace, msg, pcs[0])
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}
