package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage/memory"
	"github.com/motodash/cluster/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu      sync.Mutex
	records []telemetry.Record
	err     error
}

func (f *fakeSink) WriteRecord(_ context.Context, r telemetry.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return f.err
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type failingStore struct {
	*memory.Backend
	fail bool
}

func (f *failingStore) RecordSamples(samples []model.TelemetrySample) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Backend.RecordSamples(samples)
}

func newSim() *telemetry.Simulator {
	return telemetry.NewSimulator(rand.New(rand.NewSource(7)), nil)
}

func TestNewService_RequiresDeps(t *testing.T) {
	_, err := NewService(Config{}, Dependencies{})
	assert.Error(t, err)
}

func TestSampleFromRecord(t *testing.T) {
	r := telemetry.InitialRecord(time.Unix(100, 0))
	r.DrivingMode = telemetry.Eco
	r.Speed = 42

	s := SampleFromRecord(r)
	assert.Equal(t, 42.0, s.Speed)
	assert.Equal(t, "eco", s.DrivingMode)
	assert.Equal(t, 12457.0, s.Odometer)
	assert.Equal(t, time.Unix(100, 0), s.Time)
}

func TestRecord_IgnoredWhileStopped(t *testing.T) {
	sim := newSim()
	svc, err := NewService(Config{}, Dependencies{Simulator: sim, Store: memory.New()})
	require.NoError(t, err)

	svc.Record(sim.Tick())
	assert.Equal(t, 0, svc.GetStatus().Buffered)
}

func TestStartTickStop_FlushesToStore(t *testing.T) {
	sim := newSim()
	store := memory.New()
	sink := &fakeSink{}
	svc, err := NewService(Config{FlushInterval: time.Hour}, Dependencies{Simulator: sim, Store: store, Sink: sink})
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start(), "second start is a no-op")
	assert.True(t, svc.IsRunning())

	var last telemetry.Record
	for i := 0; i < 5; i++ {
		last = sim.Tick()
	}
	assert.Equal(t, 5, svc.GetStatus().Buffered)
	assert.Equal(t, 5, sink.count())

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())

	samples, err := store.RecentSamples(0)
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.Equal(t, last.Speed, samples[0].Speed)

	st := svc.GetStatus()
	assert.Equal(t, int64(5), st.Recorded)
	assert.Equal(t, int64(5), st.Flushed)
	assert.Zero(t, st.Buffered)
}

func TestFlushLoop_Periodic(t *testing.T) {
	sim := newSim()
	store := memory.New()
	svc, err := NewService(Config{FlushInterval: 10 * time.Millisecond}, Dependencies{Simulator: sim, Store: store})
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(func() { svc.Stop() })

	sim.Tick()
	assert.Eventually(t, func() bool {
		samples, _ := store.RecentSamples(0)
		return len(samples) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFlush_FailureKeepsSamples(t *testing.T) {
	sim := newSim()
	store := &failingStore{Backend: memory.New(), fail: true}
	svc, err := NewService(Config{FlushInterval: time.Hour}, Dependencies{Simulator: sim, Store: store})
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	sim.Tick()
	sim.Tick()
	require.Error(t, svc.Flush())
	assert.Equal(t, 2, svc.GetStatus().Buffered)

	store.fail = false
	require.NoError(t, svc.Stop())
	assert.Equal(t, int64(2), svc.GetStatus().Flushed)
}

func TestBufferBound_DropsOldest(t *testing.T) {
	sim := newSim()
	svc, err := NewService(Config{FlushInterval: time.Hour, BufferSize: 3}, Dependencies{Simulator: sim, Store: memory.New()})
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(func() { svc.Stop() })

	for i := 0; i < 5; i++ {
		sim.Tick()
	}
	st := svc.GetStatus()
	assert.Equal(t, 3, st.Buffered)
	assert.Equal(t, int64(2), st.Dropped)
}

func TestSinkErrorDoesNotBlock(t *testing.T) {
	sim := newSim()
	sink := &fakeSink{err: errors.New("influx down")}
	svc, err := NewService(Config{FlushInterval: time.Hour}, Dependencies{Simulator: sim, Store: memory.New(), Sink: sink})
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(func() { svc.Stop() })

	sim.Tick()
	assert.Equal(t, 1, svc.GetStatus().Buffered)
}

func TestStop_WritesStatusFile(t *testing.T) {
	sim := newSim()
	path := filepath.Join(t.TempDir(), "status.json")
	svc, err := NewService(Config{FlushInterval: time.Hour}, Dependencies{Simulator: sim, Store: memory.New(), StatusPath: path})
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	sim.Tick()
	require.NoError(t, svc.Stop())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, int64(1), st.Flushed)
	assert.False(t, st.Running)
}
