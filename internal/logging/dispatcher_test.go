package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNewDispatcherLogger(t *testing.T) {
	dl := NewDispatcherLogger(zerolog.Nop(), nil)
	require.NotNil(t, dl)
	dl.Info("nothing happens")
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel), nil)

	dl.Debug("handling action", "action", "reset_trip", "args", 2)

	entry := decodeLast(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "handling action", entry["message"])
	assert.Equal(t, "reset_trip", entry["action"])
	assert.Equal(t, float64(2), entry["args"])
	assert.NotContains(t, entry, "session")
}

func TestDispatcherLogger_ErrorAndDuration(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf), nil)

	dl.Error("action failed", "action", "dismiss_warning", "duration", 1500*time.Microsecond, "error", errors.New("no such warning"))

	entry := decodeLast(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "no such warning", entry["error"])
	assert.Equal(t, 1.5, entry["duration"], "milliseconds")
}

func TestDispatcherLogger_StampsSession(t *testing.T) {
	var buf bytes.Buffer
	session := NewSession("ride-7", time.Time{})
	dl := NewDispatcherLogger(zerolog.New(&buf), session)

	dl.Info("registered", "action", "toggle_high_beam")
	entry := decodeLast(t, &buf)
	assert.Equal(t, "ride-7", entry["session"])
	assert.NotContains(t, entry, "drivingMode")

	session.SetDrivingMode("rain")
	dl.Info("registered", "action", "toggle_turn_signal")
	entry = decodeLast(t, &buf)
	assert.Equal(t, "rain", entry["drivingMode"])
	assert.Equal(t, "toggle_turn_signal", entry["action"])
}

func TestDispatcherLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel), NewSession("s", time.Time{}))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestAppendFields(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	appendFields(log.Info(), []any{"a", 1, "b", "two", 3, "skipped", "ok", true, "mode", stringer("eco"), "dangling"}).Msg("")

	entry := decodeLast(t, &buf)
	delete(entry, "level")
	assert.Equal(t, map[string]any{"a": float64(1), "b": "two", "ok": true, "mode": "eco"}, entry)
}

type stringer string

func (s stringer) String() string { return string(s) }
