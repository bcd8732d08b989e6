// Package storagetest holds a behaviour suite every storage.Store must pass.
package storagetest

import (
	"testing"
	"time"

	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, initialized store for one subtest.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SeededWarning", func(t *testing.T) { testSeededWarning(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("SettingsDefaults", func(t *testing.T) { testSettingsDefaults(t, newStore(t)) })
	t.Run("Warnings", func(t *testing.T) { testWarnings(t, newStore(t)) })
	t.Run("Trips", func(t *testing.T) { testTrips(t, newStore(t)) })
	t.Run("TripHistory", func(t *testing.T) { testTripHistory(t, newStore(t)) })
	t.Run("TripHistorySameEndTime", func(t *testing.T) { testTripHistorySameEndTime(t, newStore(t)) })
	t.Run("Layouts", func(t *testing.T) { testLayouts(t, newStore(t)) })
	t.Run("Samples", func(t *testing.T) { testSamples(t, newStore(t)) })
}

func testSeededWarning(t *testing.T, s storage.Store) {
	warnings, err := s.ActiveWarnings()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Tire Pressure", warnings[0].Title)
	assert.Equal(t, "warning", warnings[0].Severity)
}

func testSettings(t *testing.T, s storage.Store) {
	_, err := s.GetSettings("rider-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	created := model.DefaultSettings("rider-1", base)
	require.NoError(t, s.CreateSettings(&created))
	require.NotZero(t, created.ID)

	got, err := s.GetSettings("rider-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "kmh", got.SpeedUnit)

	mph := "mph"
	later := base.Add(time.Hour)
	updated, err := s.UpdateSettings(created.ID, model.SettingsPatch{SpeedUnit: &mph}, later)
	require.NoError(t, err)
	assert.Equal(t, "mph", updated.SpeedUnit)
	assert.Equal(t, "km", updated.DistanceUnit)
	assert.True(t, later.Equal(updated.LastUpdated))

	_, err = s.UpdateSettings(created.ID+100, model.SettingsPatch{SpeedUnit: &mph}, later)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSettingsDefaults(t *testing.T, s storage.Store) {
	first, err := storage.GetOrCreateSettings(s, "new-rider", base)
	require.NoError(t, err)
	assert.Equal(t, "light", first.Theme)

	second, err := storage.GetOrCreateSettings(s, "new-rider", base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "defaults persisted once")
}

func testWarnings(t *testing.T, s storage.Store) {
	w := model.Warning{Title: "Chain", Description: "Chain tension", Severity: "info", Active: true, Timestamp: base}
	require.NoError(t, s.CreateWarning(&w))
	require.NotZero(t, w.ID)

	active, err := s.ActiveWarnings()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, s.DismissWarning(w.ID))
	active, err = s.ActiveWarnings()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.NotEqual(t, w.ID, active[0].ID)

	assert.ErrorIs(t, s.DismissWarning(9999), storage.ErrNotFound)
}

func testTrips(t *testing.T, s storage.Store) {
	_, err := s.CurrentTrip("rider-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	trip := model.Trip{UserID: "rider-1", StartOdometer: 12457, StartTime: base}
	require.NoError(t, s.StartTrip(&trip))
	require.NotZero(t, trip.ID)

	current, err := s.CurrentTrip("rider-1")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, current.ID)

	avg := 62.5
	ended, err := s.EndTrip(trip.ID, model.TripEnd{EndOdometer: 12500, EndTime: base.Add(time.Hour), AvgSpeed: &avg})
	require.NoError(t, err)
	require.NotNil(t, ended.EndOdometer)
	assert.Equal(t, 12500.0, *ended.EndOdometer)
	require.NotNil(t, ended.AvgSpeed)
	assert.Equal(t, 62.5, *ended.AvgSpeed)
	assert.Nil(t, ended.MaxSpeed)

	_, err = s.CurrentTrip("rider-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.EndTrip(9999, model.TripEnd{EndTime: base})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testTripHistory(t *testing.T, s storage.Store) {
	for i := 0; i < 12; i++ {
		trip := model.Trip{UserID: "rider-1", StartOdometer: float64(i), StartTime: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.StartTrip(&trip))
		_, err := s.EndTrip(trip.ID, model.TripEnd{EndOdometer: float64(i + 1), EndTime: base.Add(time.Duration(i)*time.Hour + 30*time.Minute)})
		require.NoError(t, err)
	}
	open := model.Trip{UserID: "rider-1", StartTime: base.Add(48 * time.Hour)}
	require.NoError(t, s.StartTrip(&open))
	other := model.Trip{UserID: "rider-2", StartTime: base}
	require.NoError(t, s.StartTrip(&other))
	_, err := s.EndTrip(other.ID, model.TripEnd{EndTime: base.Add(time.Hour)})
	require.NoError(t, err)

	history, err := s.TripHistory("rider-1", 0)
	require.NoError(t, err)
	require.Len(t, history, storage.DefaultHistoryLimit)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].EndTime.After(*history[i-1].EndTime), "endTime descending")
	}
	assert.Equal(t, 11.0, history[0].StartOdometer)

	short, err := s.TripHistory("rider-1", 3)
	require.NoError(t, err)
	assert.Len(t, short, 3)
}

func testTripHistorySameEndTime(t *testing.T, s storage.Store) {
	end := base.Add(2 * time.Hour)
	var ids []uint
	for i := 0; i < 4; i++ {
		trip := model.Trip{UserID: "rider-1", StartOdometer: float64(i), StartTime: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.StartTrip(&trip))
		_, err := s.EndTrip(trip.ID, model.TripEnd{EndOdometer: float64(i + 10), EndTime: end})
		require.NoError(t, err)
		ids = append(ids, trip.ID)
	}

	for run := 0; run < 3; run++ {
		history, err := s.TripHistory("rider-1", 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, []uint{ids[3], ids[2]}, []uint{history[0].ID, history[1].ID}, "highest id first")
	}

	var open []uint
	for i := 0; i < 3; i++ {
		trip := model.Trip{UserID: "rider-2", StartTime: base}
		require.NoError(t, s.StartTrip(&trip))
		open = append(open, trip.ID)
	}
	for run := 0; run < 3; run++ {
		current, err := s.CurrentTrip("rider-2")
		require.NoError(t, err)
		assert.Equal(t, open[2], current.ID)
	}
}

func testLayouts(t *testing.T, s storage.Store) {
	_, err := s.GetLayout(model.DefaultLayoutKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	l := model.Layout{Key: model.DefaultLayoutKey, Data: []byte(`{"lg":[{"i":"speed","x":0}]}`)}
	require.NoError(t, s.SaveLayout(&l))

	got, err := s.GetLayout(model.DefaultLayoutKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lg":[{"i":"speed","x":0}]}`, string(got.Data))

	l2 := model.Layout{Key: model.DefaultLayoutKey, Data: []byte(`{"lg":[]}`)}
	require.NoError(t, s.SaveLayout(&l2))
	got, err = s.GetLayout(model.DefaultLayoutKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lg":[]}`, string(got.Data), "wholesale replace")

	require.NoError(t, s.DeleteLayout(model.DefaultLayoutKey))
	_, err = s.GetLayout(model.DefaultLayoutKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, s.DeleteLayout("missing"), "deleting nothing is fine")
}

func testSamples(t *testing.T, s storage.Store) {
	samples := make([]model.TelemetrySample, 5)
	for i := range samples {
		samples[i] = model.TelemetrySample{Time: base.Add(time.Duration(i) * time.Second), Speed: float64(i * 10), Gear: 1}
	}
	require.NoError(t, s.RecordSamples(samples))

	recent, err := s.RecentSamples(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 40.0, recent[0].Speed)
	assert.Equal(t, 20.0, recent[2].Speed)

	all, err := s.RecentSamples(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	require.NoError(t, s.RecordSamples(nil))
}
