package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"
)

// fanoutHandler hands each record to every sink that accepts its level.
type fanoutHandler struct {
	sinks []slog.Handler
}

func newFanoutHandler(sinks ...slog.Handler) slog.Handler {
	var kept []slog.Handler
	for _, h := range sinks {
		if h == nil {
			continue
		}
		if _, noop := h.(NoopHandler); noop {
			continue
		}
		kept = append(kept, h)
	}
	switch len(kept) {
	case 0:
		return NoopHandler{}
	case 1:
		return kept[0]
	}
	return &fanoutHandler{sinks: kept}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		if err := sink.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.each(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *fanoutHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		next[i] = fn(sink)
	}
	return &fanoutHandler{sinks: next}
}

// RunLogName is the per-run log file name for a run started at start.
func RunLogName(start time.Time, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		short = "run"
	}
	return fmt.Sprintf("run-%s-%s.log", start.UTC().Format("20060102-150405"), short)
}

// AttachRunLog returns a logger that also writes every record of this run
// as JSON to its own file under dir. Close the returned io.Closer when the
// run ends. An empty dir attaches nothing.
func AttachRunLog(logger *slog.Logger, dir, runID string, start time.Time) (*slog.Logger, io.Closer, error) {
	if logger == nil {
		logger = NewNop()
	}
	if dir == "" {
		return logger, nopCloser{}, nil
	}
	path := filepath.Join(dir, RunLogName(start, runID))
	file, err := openLogFile(path)
	if err != nil {
		return nil, nil, err
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)
	return slog.New(newFanoutHandler(logger.Handler(), newJSONHandler(file, level, true))), file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
