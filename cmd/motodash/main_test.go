package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motodash/cluster/internal/api"
	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage/memory"
	"github.com/motodash/cluster/internal/telemetry"
	"github.com/motodash/cluster/internal/units"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isolate points config and logs at a temp dir.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MOTODASH_LOGSDIR", filepath.Join(dir, "logs"))
	viper.Reset()
	t.Cleanup(viper.Reset)
	configDir = dir
	logLevel = "error"
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--config", configDir, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "motodash dev (built unknown)\n", out)
}

func TestSnapshot_Local(t *testing.T) {
	isolate(t)
	out, err := run(t, "snapshot")
	require.NoError(t, err)

	var rec telemetry.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.GreaterOrEqual(t, rec.Gear, 1)
	assert.LessOrEqual(t, rec.Gear, 6)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestSnapshot_Remote(t *testing.T) {
	isolate(t)
	ts, _ := newTestServer(t)

	out, err := run(t, "snapshot", "--remote", "--server", ts.URL)
	require.NoError(t, err)
	var rec telemetry.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.GreaterOrEqual(t, rec.Gear, 1)
}

func TestResolveServerURL(t *testing.T) {
	isolate(t)
	config.SetDefaults()
	assert.Equal(t, defaultServerURL, resolveServerURL(""))
	assert.Equal(t, "http://bike:1", resolveServerURL("http://bike:1"))

	viper.Set("display.serverUrl", "http://garage:5000")
	assert.Equal(t, "http://garage:5000", resolveServerURL(""))
}

func TestFormatRecord(t *testing.T) {
	rec := telemetry.InitialRecord(time.Date(2024, 6, 1, 9, 5, 7, 0, time.UTC))
	rec.Speed = 72.4
	rec.RPM = 5120
	rec.Gear = 4
	assert.Equal(t, "09:05:07   72 km/h   5120 rpm  gear 4  normal fuel  68%    0.0 kW  trip 234.5 km", formatRecord(rec))
}

func TestPrefsFromSettings(t *testing.T) {
	s := model.DefaultSettings("rider", time.Now())
	assert.Equal(t, units.DefaultPrefs(), prefsFromSettings(&s))

	s.SpeedUnit = units.MPH
	assert.Equal(t, units.MPH, prefsFromSettings(&s).SpeedUnit)
}

func TestExportTrips(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Init())
	defer func() { _ = store.Close() }()

	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		trip := &model.Trip{UserID: "rider", StartOdometer: float64(100 * i), StartTime: start.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.StartTrip(trip))
		_, err := store.EndTrip(trip.ID, model.TripEnd{EndOdometer: float64(100*i + 42), EndTime: trip.StartTime.Add(30 * time.Minute)})
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "trips.json.gz")
	n, err := exportTrips(store, "rider", 2, path, start)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc := readExport(t, path)
	assert.Equal(t, "rider", doc.UserID)
	require.Len(t, doc.Trips, 2)
	assert.True(t, doc.Trips[0].EndTime.After(*doc.Trips[1].EndTime), "newest first")
}

func TestExportTrips_EmptyHistory(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Init())
	defer func() { _ = store.Close() }()

	path := filepath.Join(t.TempDir(), "none.json.gz")
	n, err := exportTrips(store, "nobody", 0, path, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	doc := readExport(t, path)
	assert.NotNil(t, doc.Trips)
	assert.Empty(t, doc.Trips)
}

func TestExportTrips_BadPath(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Init())
	defer func() { _ = store.Close() }()

	_, err := exportTrips(store, "rider", 0, filepath.Join(t.TempDir(), "missing", "x.gz"), time.Now())
	assert.ErrorContains(t, err, "error creating file")
}

func TestWatch_PrintsRecords(t *testing.T) {
	ts, hub := newTestServer(t)
	out := &lockedBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, api.New(ts.URL, discardLogger()), out, discardLogger()) }()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast(telemetry.Record{Speed: 101, Gear: 6, Timestamp: time.Now()})
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "101 km/h") }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.GreaterOrEqual(t, strings.Count(out.String(), "\n"), 2, "initial record then broadcast")
}

func TestWatchServer_FailureCancels(t *testing.T) {
	serverErr := make(chan error, 1)
	ctx, stop := watchServer(context.Background(), serverErr)

	serverErr <- errors.New("api server: listen tcp :5000: bind: address already in use")
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after server failure")
	}
	assert.ErrorContains(t, stop(), "address already in use")
}

func TestWatchServer_EarlyCleanExit(t *testing.T) {
	serverErr := make(chan error, 1)
	ctx, stop := watchServer(context.Background(), serverErr)

	serverErr <- nil
	require.Eventually(t, func() bool { return ctx.Err() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, stop(), errServerStopped)
}

func TestWatchServer_ParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := watchServer(parent, make(chan error))

	cancel()
	<-ctx.Done()
	assert.NoError(t, stop())
}

func TestWatchServer_StopWhileRunning(t *testing.T) {
	serverErr := make(chan error, 1)
	ctx, stop := watchServer(context.Background(), serverErr)

	assert.NoError(t, stop())
	assert.Error(t, ctx.Err())
	// the clean exit after Shutdown is no longer a failure
	serverErr <- nil
	assert.NoError(t, stop())
}

func newTestServer(t *testing.T) (*httptest.Server, *api.Hub) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Init())
	hub := api.NewHub(discardLogger())
	srv, err := api.NewServer(config.ServerConfig{Mode: "test"}, api.Dependencies{
		Store:  store,
		Engine: dashboard.New(dashboard.DefaultConfig(), dashboard.Dependencies{Logger: discardLogger()}),
		Hub:    hub,
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
		_ = store.Close()
	})
	return ts, hub
}

func readExport(t *testing.T, path string) TripExport {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	var doc TripExport
	require.NoError(t, json.NewDecoder(gz).Decode(&doc))
	return doc
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
