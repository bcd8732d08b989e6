package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textSink(name string, buf *bytes.Buffer, level slog.Level) sink {
	return sink{name: name, handler: slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})}
}

// brokenHandler rejects every record.
type brokenHandler struct{}

func (brokenHandler) Enabled(context.Context, slog.Level) bool { return true }
func (brokenHandler) Handle(context.Context, slog.Record) error {
	return errors.New("graylog unreachable")
}
func (h brokenHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h brokenHandler) WithGroup(string) slog.Handler      { return h }

func TestSinkHandler_FansOutByLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := newSinkHandler(
		textSink(SinkConsole, &console, slog.LevelWarn),
		textSink(SinkFile, &file, slog.LevelDebug),
	)
	log := slog.New(h)

	log.Info("gear changed", "gear", 3)
	log.Warn("fuel low")

	assert.NotContains(t, console.String(), "gear changed")
	assert.Contains(t, console.String(), "fuel low")
	assert.Contains(t, file.String(), "gear changed")
	assert.Contains(t, file.String(), "fuel low")
}

func TestSinkHandler_SkipsNilHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := newSinkHandler(sink{name: SinkGelf}, textSink(SinkFile, &buf, slog.LevelInfo))
	require.Len(t, h.sinks, 1)
	assert.Equal(t, SinkFile, h.sinks[0].name)
}

func TestSinkHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := newSinkHandler(textSink(SinkConsole, &buf, slog.LevelWarn))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	empty := newSinkHandler()
	assert.False(t, empty.Enabled(context.Background(), slog.LevelError))
	assert.NoError(t, empty.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "x", 0)))
}

func TestSinkHandler_FailureDoesNotStopOthers(t *testing.T) {
	var file bytes.Buffer
	h := newSinkHandler(
		sink{name: SinkGelf, handler: brokenHandler{}},
		textSink(SinkFile, &file, slog.LevelInfo),
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "trip started", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gelf sink: graylog unreachable")
	assert.Contains(t, file.String(), "trip started")
	assert.Equal(t, map[string]int64{SinkGelf: 1}, h.Failures())
}

func TestSinkHandler_DerivedHandlersShareCounters(t *testing.T) {
	var file bytes.Buffer
	h := newSinkHandler(
		sink{name: SinkGelf, handler: brokenHandler{}},
		textSink(SinkFile, &file, slog.LevelInfo),
	)
	log := slog.New(h)

	log.With("component", "recorder").Info("flushed")
	log.WithGroup("trip").Info("ended", "km", 12.5)
	assert.Same(t, h, h.WithGroup(""))

	assert.Contains(t, file.String(), "component=recorder")
	assert.Contains(t, file.String(), "trip.km=12.5")
	assert.Equal(t, map[string]int64{SinkGelf: 2}, h.Failures())
}
