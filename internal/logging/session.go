package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Session identifies one run of the cluster in every log record.
type Session struct {
	ID      string
	Started time.Time

	drivingMode atomic.Value
}

// NewSession starts a session with the given id.
func NewSession(id string, started time.Time) *Session {
	return &Session{ID: id, Started: started}
}

// SetDrivingMode records the mode the engine reports after each tick.
func (s *Session) SetDrivingMode(mode string) {
	s.drivingMode.Store(mode)
}

// DrivingMode is the last mode set, or "" before the first tick.
func (s *Session) DrivingMode() string {
	mode, _ := s.drivingMode.Load().(string)
	return mode
}

// Attrs are the attributes stamped on each record: the session id, the
// driving mode once known, and seconds since the session started.
func (s *Session) Attrs(now time.Time) []slog.Attr {
	attrs := make([]slog.Attr, 0, 3)
	attrs = append(attrs, slog.String("session", s.ID))
	if mode := s.DrivingMode(); mode != "" {
		attrs = append(attrs, slog.String("drivingMode", mode))
	}
	if !s.Started.IsZero() {
		attrs = append(attrs, slog.Int64("uptime", int64(now.Sub(s.Started)/time.Second)))
	}
	return attrs
}

// SessionHandler stamps every record with the session attributes, read at
// log time so mode changes show up without rebuilding loggers.
type SessionHandler struct {
	inner   slog.Handler
	session *Session
}

// NewSessionHandler wraps inner. A nil session leaves records untouched.
func NewSessionHandler(inner slog.Handler, session *Session) *SessionHandler {
	return &SessionHandler{inner: inner, session: session}
}

func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.session != nil {
		r.AddAttrs(h.session.Attrs(r.Time)...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionHandler{inner: h.inner.WithAttrs(attrs), session: h.session}
}

func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{inner: h.inner.WithGroup(name), session: h.session}
}
