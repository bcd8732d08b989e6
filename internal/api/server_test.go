package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/dispatcher"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage"
	"github.com/motodash/cluster/internal/storage/memory"
	"github.com/motodash/cluster/internal/telemetry"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv    *Server
	store  *memory.Backend
	engine *dashboard.Engine
	disp   *dispatcher.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	clock := func() time.Time { return testNow }
	engine := dashboard.New(dashboard.Config{}, dashboard.Dependencies{
		Rand:   rand.New(rand.NewSource(1)),
		Clock:  clock,
		Logger: testLogger(),
	})
	t.Cleanup(engine.Stop)

	disp, err := dispatcher.New(testLogger())
	require.NoError(t, err)
	engine.RegisterActions(disp)
	t.Cleanup(disp.Close)

	srv, err := NewServer(config.ServerConfig{Mode: "test"}, Dependencies{
		Store:      store,
		Engine:     engine,
		Dispatcher: disp,
		Hub:        NewHub(testLogger()),
		Logger:     testLogger(),
		Rand:       rand.New(rand.NewSource(2)),
		Clock:      clock,
	})
	require.NoError(t, err)
	return &testEnv{srv: srv, store: store, engine: engine, disp: disp}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(config.ServerConfig{Mode: "test"}, Dependencies{})
	assert.Error(t, err)
}

func TestHealthcheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSettings_GetCreatesDefaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/settings/rider-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	s := decode[model.Settings](t, w)
	assert.Equal(t, "rider-1", s.UserID)
	assert.Equal(t, model.DefaultTheme, s.Theme)
	assert.NotZero(t, s.ID)

	// persisted: a second read returns the same record
	again := decode[model.Settings](t, env.do(t, http.MethodGet, "/api/settings/rider-1", ""))
	assert.Equal(t, s.ID, again.ID)
}

func TestSettings_CreateAndPatch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/settings", `{"userId":"rider-2","theme":"dark"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[model.Settings](t, w)
	assert.Equal(t, "dark", created.Theme)
	assert.Equal(t, model.DefaultSpeedUnit, created.SpeedUnit)

	w = env.do(t, http.MethodPatch, "/api/settings/"+itoa(created.ID), `{"speedUnit":"mph"}`)
	require.Equal(t, http.StatusOK, w.Code)
	patched := decode[model.Settings](t, w)
	assert.Equal(t, "mph", patched.SpeedUnit)
	assert.Equal(t, "dark", patched.Theme)
	assert.True(t, patched.LastUpdated.Equal(testNow))
}

func TestSettings_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/settings", `{"theme":"neon"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "Invalid settings data", resp.Message)

	fields := map[string]string{}
	for _, fe := range resp.Errors {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "is required", fields["userId"])
	assert.Equal(t, "must be one of: light, dark", fields["theme"])
}

func TestSettings_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/settings", `{"userId":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "body", resp.Errors[0].Field)
}

func TestSettings_PatchMissing(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPatch, "/api/settings/999", `{"theme":"dark"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Settings not found"}`, w.Body.String())

	w = env.do(t, http.MethodPatch, "/api/settings/abc", `{"theme":"dark"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWarnings_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	seeded := decode[[]model.Warning](t, env.do(t, http.MethodGet, "/api/warnings", ""))
	require.Len(t, seeded, 1)
	assert.Equal(t, "Tire Pressure", seeded[0].Title)

	w := env.do(t, http.MethodPost, "/api/warnings", `{"title":"Chain","description":"Lubricate chain","severity":"info"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[model.Warning](t, w)
	assert.True(t, created.Active)
	assert.Equal(t, "info", created.Severity)

	w = env.do(t, http.MethodPost, "/api/warnings/"+itoa(seeded[0].ID)+"/dismiss", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	active := decode[[]model.Warning](t, env.do(t, http.MethodGet, "/api/warnings", ""))
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)

	w = env.do(t, http.MethodPost, "/api/warnings/999/dismiss", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Warning not found"}`, w.Body.String())
}

func TestWarnings_Validation(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/warnings", `{"title":"Only a title","severity":"catastrophic"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "Invalid warning data", resp.Message)
	assert.Len(t, resp.Errors, 2)
}

func TestTrips_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/trips/current/rider-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"No active trip found"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/trips/start", `{"userId":"rider-1","startOdometer":12457}`)
	require.Equal(t, http.StatusCreated, w.Code)
	trip := decode[model.Trip](t, w)
	assert.True(t, trip.Open())
	assert.True(t, trip.StartTime.Equal(testNow))

	current := decode[model.Trip](t, env.do(t, http.MethodGet, "/api/trips/current/rider-1", ""))
	assert.Equal(t, trip.ID, current.ID)

	w = env.do(t, http.MethodPatch, "/api/trips/"+itoa(trip.ID)+"/end", `{"endOdometer":12500.5,"maxSpeed":140}`)
	require.Equal(t, http.StatusOK, w.Code)
	ended := decode[model.Trip](t, w)
	require.NotNil(t, ended.EndOdometer)
	assert.Equal(t, 12500.5, *ended.EndOdometer)
	require.NotNil(t, ended.MaxSpeed)
	assert.Equal(t, 140.0, *ended.MaxSpeed)
	assert.False(t, ended.Open())

	history := decode[[]model.Trip](t, env.do(t, http.MethodGet, "/api/trips/history/rider-1", ""))
	require.Len(t, history, 1)
	assert.Equal(t, trip.ID, history[0].ID)

	w = env.do(t, http.MethodPatch, "/api/trips/999/end", `{"endOdometer":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Trip not found"}`, w.Body.String())
}

func TestTrips_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/trips/start", `{"userId":"rider-1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "Invalid trip data", resp.Message)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "startOdometer", resp.Errors[0].Field)

	w = env.do(t, http.MethodPatch, "/api/trips/1/end", `{"endOdometer":-5}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp = decode[ErrorResponse](t, w)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "must be at least 0", resp.Errors[0].Message)
}

func TestTrips_HistoryLimit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 4; i++ {
		trip := model.Trip{UserID: "rider-1", StartOdometer: float64(i), StartTime: testNow}
		require.NoError(t, env.store.StartTrip(&trip))
		_, err := env.store.EndTrip(trip.ID, model.TripEnd{
			EndOdometer: float64(i + 1),
			EndTime:     testNow.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	history := decode[[]model.Trip](t, env.do(t, http.MethodGet, "/api/trips/history/rider-1?limit=2", ""))
	require.Len(t, history, 2)
	assert.True(t, history[0].EndTime.After(*history[1].EndTime))

	history = decode[[]model.Trip](t, env.do(t, http.MethodGet, "/api/trips/history/rider-1?limit=junk", ""))
	assert.Len(t, history, 4)
}

func TestMotorcycleData(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/motorcycle/data", "")
	require.Equal(t, http.StatusOK, w.Code)
	r := decode[telemetry.Record](t, w)
	assert.GreaterOrEqual(t, r.RPM, 1000.0)
	assert.Less(t, r.Speed, 120.0)
	assert.True(t, r.Timestamp.Equal(testNow))
}

func TestLayout_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/layout/" + model.DefaultLayoutKey

	w := env.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Layout not found"}`, w.Body.String())

	blob := `{"lg":[{"i":"speed","x":0,"y":0,"w":6,"h":4}]}`
	w = env.do(t, http.MethodPut, path, blob)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, blob, w.Body.String())

	w = env.do(t, http.MethodPut, path, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, "").Code)
}

func TestLayout_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := `"` + strings.Repeat("x", maxLayoutBytes) + `"`
	w := env.do(t, http.MethodPut, "/api/layout/big", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDashboardView(t *testing.T) {
	env := newTestEnv(t)
	env.engine.Simulator().Tick()

	w := env.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[dashboard.View](t, w)
	assert.Equal(t, env.engine.Telemetry().Speed, v.Telemetry.Speed)
	assert.Equal(t, telemetry.DefaultBatteryLevel, v.Status.BatteryLevel)
}

func TestActions(t *testing.T) {
	env := newTestEnv(t)
	before := env.engine.Telemetry().HighBeamOn

	w := env.do(t, http.MethodPost, "/api/dashboard/actions/"+dashboard.CmdToggleHighBeam, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, !before, env.engine.Telemetry().HighBeamOn)

	w = env.do(t, http.MethodPost, "/api/dashboard/actions/"+dashboard.CmdToggleDrivingMode, `{"args":[]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "sport", body["result"])

	w = env.do(t, http.MethodPost, "/api/dashboard/actions/launch_control", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/dashboard/actions/"+dashboard.CmdDismissWarning, `{"args":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cmds := decode[map[string][]string](t, env.do(t, http.MethodGet, "/api/dashboard/actions", ""))
	assert.Contains(t, cmds["commands"], dashboard.CmdResetTrip)
}

func TestActions_Closed(t *testing.T) {
	env := newTestEnv(t)
	env.disp.Close()
	w := env.do(t, http.MethodPost, "/api/dashboard/actions/"+dashboard.CmdResetTrip, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTelemetryHistory(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.RecordSamples([]model.TelemetrySample{
		{Time: testNow, Speed: 10},
		{Time: testNow.Add(time.Second), Speed: 20},
		{Time: testNow.Add(2 * time.Second), Speed: 30},
	}))

	samples := decode[[]model.TelemetrySample](t, env.do(t, http.MethodGet, "/api/telemetry/history?limit=2", ""))
	require.Len(t, samples, 2)
	assert.Equal(t, 30.0, samples[0].Speed)
	assert.Equal(t, 20.0, samples[1].Speed)
}

func TestTelemetryHistory_DefaultLimit(t *testing.T) {
	env := newTestEnv(t)
	batch := make([]model.TelemetrySample, storage.MaxSampleLimit+20)
	for i := range batch {
		batch[i] = model.TelemetrySample{Time: testNow.Add(time.Duration(i) * time.Second), Speed: float64(i)}
	}
	require.NoError(t, env.store.RecordSamples(batch))

	for query, want := range map[string]int{
		"":            storage.DefaultSampleLimit,
		"?limit=0":    storage.DefaultSampleLimit,
		"?limit=-3":   storage.DefaultSampleLimit,
		"?limit=lots": storage.DefaultSampleLimit,
		"?limit=5000": storage.MaxSampleLimit,
	} {
		w := env.do(t, http.MethodGet, "/api/telemetry/history"+query, "")
		require.Equal(t, http.StatusOK, w.Code, query)
		samples := decode[[]model.TelemetrySample](t, w)
		assert.Len(t, samples, want, query)
		assert.Equal(t, float64(len(batch)-1), samples[0].Speed, "newest first")
	}
}

func TestShutdown_BeforeListen(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- env.srv.ListenAndServe() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe kept running after Shutdown")
	}
}

// brokenStore fails every call so 500 handling can be observed.
type brokenStore struct {
	*memory.Backend
}

var errBroken = errors.New("disk on fire")

func (brokenStore) ActiveWarnings() ([]model.Warning, error) { return nil, errBroken }

func TestStoreFailure_Generic500(t *testing.T) {
	var logs bytes.Buffer
	srv, err := NewServer(config.ServerConfig{Mode: "test"}, Dependencies{
		Store:  brokenStore{memory.New()},
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/warnings", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Failed to retrieve warnings"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "disk on fire")
	assert.Contains(t, logs.String(), "disk on fire")
}

func TestOptionalRoutesNotMounted(t *testing.T) {
	srv, err := NewServer(config.ServerConfig{Mode: "test"}, Dependencies{Store: memory.New()})
	require.NoError(t, err)

	for _, path := range []string{"/api/dashboard", "/api/telemetry/stream"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
