// Package memory implements storage.Store with in-process maps.
package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage"
)

// Backend keeps every record in memory. Contents are lost on Close.
type Backend struct {
	settings map[uint]*model.Settings
	warnings map[uint]*model.Warning
	trips    map[uint]*model.Trip
	layouts  map[string]*model.Layout
	samples  []model.TelemetrySample

	// sample history is capped to keep memory flat on long runs
	maxSamples int

	nextSettingsID uint
	nextWarningID  uint
	nextTripID     uint
	nextSampleID   uint

	now func() time.Time
	mu  sync.RWMutex
}

// DefaultMaxSamples caps the telemetry history held in memory.
const DefaultMaxSamples = 3600

// New creates a new memory backend.
func New() *Backend {
	return &Backend{
		settings:   make(map[uint]*model.Settings),
		warnings:   make(map[uint]*model.Warning),
		trips:      make(map[uint]*model.Trip),
		layouts:    make(map[string]*model.Layout),
		maxSamples: DefaultMaxSamples,
		now:        time.Now,
	}
}

// Init seeds the default persisted warning.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.warnings) == 0 {
		b.nextWarningID++
		w := model.SeedWarning(b.now())
		w.ID = b.nextWarningID
		b.warnings[w.ID] = &w
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) GetSettings(userID string) (*model.Settings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.settings {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (b *Backend) CreateSettings(s *model.Settings) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSettingsID++
	s.ID = b.nextSettingsID
	if s.LastUpdated.IsZero() {
		s.LastUpdated = b.now()
	}
	cp := *s
	b.settings[s.ID] = &cp
	return nil
}

func (b *Backend) UpdateSettings(id uint, patch model.SettingsPatch, now time.Time) (*model.Settings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.settings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	patch.Apply(s)
	s.LastUpdated = now
	cp := *s
	return &cp, nil
}

func (b *Backend) ActiveWarnings() ([]model.Warning, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Warning, 0, len(b.warnings))
	for _, w := range b.warnings {
		if w.Active {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) CreateWarning(w *model.Warning) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextWarningID++
	w.ID = b.nextWarningID
	if w.Timestamp.IsZero() {
		w.Timestamp = b.now()
	}
	cp := *w
	b.warnings[w.ID] = &cp
	return nil
}

func (b *Backend) DismissWarning(id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.warnings[id]
	if !ok {
		return storage.ErrNotFound
	}
	w.Active = false
	return nil
}

func (b *Backend) CurrentTrip(userID string) (*model.Trip, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var current *model.Trip
	for _, t := range b.trips {
		if t.UserID != userID || !t.Open() {
			continue
		}
		// several open trips: the most recently started wins, then the highest id
		if current == nil || t.StartTime.After(current.StartTime) ||
			(t.StartTime.Equal(current.StartTime) && t.ID > current.ID) {
			current = t
		}
	}
	if current == nil {
		return nil, storage.ErrNotFound
	}
	cp := *current
	return &cp, nil
}

func (b *Backend) StartTrip(t *model.Trip) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextTripID++
	t.ID = b.nextTripID
	if t.StartTime.IsZero() {
		t.StartTime = b.now()
	}
	cp := *t
	b.trips[t.ID] = &cp
	return nil
}

func (b *Backend) EndTrip(id uint, end model.TripEnd) (*model.Trip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.trips[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	odo := end.EndOdometer
	endTime := end.EndTime
	t.EndOdometer = &odo
	t.EndTime = &endTime
	t.AvgSpeed = end.AvgSpeed
	t.MaxSpeed = end.MaxSpeed
	t.FuelUsed = end.FuelUsed
	cp := *t
	return &cp, nil
}

func (b *Backend) TripHistory(userID string, limit int) ([]model.Trip, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []model.Trip
	for _, t := range b.trips {
		if t.UserID == userID && !t.Open() {
			out = append(out, *t)
		}
	}
	// newest first; trips ending together keep insertion order reversed
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndTime.Equal(*out[j].EndTime) {
			return out[i].EndTime.After(*out[j].EndTime)
		}
		return out[i].ID > out[j].ID
	})

	limit = storage.HistoryLimit(limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *Backend) GetLayout(key string) (*model.Layout, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l, ok := b.layouts[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *l
	cp.Data = append([]byte(nil), l.Data...)
	return &cp, nil
}

func (b *Backend) SaveLayout(l *model.Layout) error {
	if !json.Valid(l.Data) {
		return fmt.Errorf("layout %s: invalid JSON", l.Key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = b.now()
	}
	cp := *l
	cp.Data = bytes.Clone(l.Data)
	b.layouts[l.Key] = &cp
	return nil
}

func (b *Backend) DeleteLayout(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.layouts, key)
	return nil
}

func (b *Backend) RecordSamples(samples []model.TelemetrySample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range samples {
		b.nextSampleID++
		samples[i].ID = b.nextSampleID
	}
	b.samples = append(b.samples, samples...)
	if over := len(b.samples) - b.maxSamples; b.maxSamples > 0 && over > 0 {
		b.samples = append([]model.TelemetrySample(nil), b.samples[over:]...)
	}
	return nil
}

func (b *Backend) RecentSamples(limit int) ([]model.TelemetrySample, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.samples)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.TelemetrySample, n)
	for i := 0; i < n; i++ {
		out[i] = b.samples[len(b.samples)-1-i]
	}
	return out, nil
}
