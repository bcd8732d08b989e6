package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Sink names reported by SlogManager.SinkFailures.
const (
	SinkConsole = "console"
	SinkFile    = "file"
	SinkGelf    = "gelf"
	SinkOTel    = "otel"
)

// sink is one named log destination with its own failure count.
type sink struct {
	name    string
	handler slog.Handler
	failed  *atomic.Int64
}

// SinkHandler writes every record to each sink that accepts its level. A
// failing sink never blocks the others; its failures are counted so a lost
// Graylog connection shows up at shutdown.
type SinkHandler struct {
	sinks []sink
}

func newSinkHandler(sinks ...sink) *SinkHandler {
	valid := make([]sink, 0, len(sinks))
	for _, s := range sinks {
		if s.handler == nil {
			continue
		}
		if s.failed == nil {
			s.failed = new(atomic.Int64)
		}
		valid = append(valid, s)
	}
	return &SinkHandler{sinks: valid}
}

func (h *SinkHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle returns the joined errors of the sinks that failed.
func (h *SinkHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range h.sinks {
		if !s.handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.handler.Handle(ctx, r.Clone()); err != nil {
			s.failed.Add(1)
			errs = append(errs, fmt.Errorf("%s sink: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// WithAttrs and WithGroup share the failure counters with h.
func (h *SinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *SinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *SinkHandler) derive(fn func(slog.Handler) slog.Handler) *SinkHandler {
	sinks := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = sink{name: s.name, handler: fn(s.handler), failed: s.failed}
	}
	return &SinkHandler{sinks: sinks}
}

// Failures returns the failed write count of each sink that has failed.
func (h *SinkHandler) Failures() map[string]int64 {
	out := make(map[string]int64)
	for _, s := range h.sinks {
		if n := s.failed.Load(); n > 0 {
			out[s.name] = n
		}
	}
	return out
}
