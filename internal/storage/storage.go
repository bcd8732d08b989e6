// Package storage defines the persistence contract shared by every backend.
package storage

import (
	"errors"
	"time"

	"github.com/motodash/cluster/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// DefaultHistoryLimit is the trip history size when the caller gives none.
const DefaultHistoryLimit = 10

// Telemetry sample page sizes served to clients.
const (
	DefaultSampleLimit = 100
	MaxSampleLimit     = 1000
)

// Store is the interface all storage implementations must satisfy.
type Store interface {
	// Lifecycle
	Init() error
	Close() error

	// Settings
	GetSettings(userID string) (*model.Settings, error)
	CreateSettings(s *model.Settings) error
	UpdateSettings(id uint, patch model.SettingsPatch, now time.Time) (*model.Settings, error)

	// Persisted warnings
	ActiveWarnings() ([]model.Warning, error)
	CreateWarning(w *model.Warning) error
	DismissWarning(id uint) error

	// Trips
	CurrentTrip(userID string) (*model.Trip, error)
	StartTrip(t *model.Trip) error
	EndTrip(id uint, end model.TripEnd) (*model.Trip, error)
	TripHistory(userID string, limit int) ([]model.Trip, error)

	// Layouts
	GetLayout(key string) (*model.Layout, error)
	SaveLayout(l *model.Layout) error
	DeleteLayout(key string) error

	// Telemetry history
	RecordSamples(samples []model.TelemetrySample) error
	RecentSamples(limit int) ([]model.TelemetrySample, error)
}

// Dumper is an optional interface for backends that can snapshot their
// contents to a file on demand.
type Dumper interface {
	DumpTo(path string) error
}

// GetOrCreateSettings returns the user's settings, persisting and returning
// the defaults when none exist yet.
func GetOrCreateSettings(s Store, userID string, now time.Time) (*model.Settings, error) {
	settings, err := s.GetSettings(userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	def := model.DefaultSettings(userID, now)
	if err := s.CreateSettings(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// HistoryLimit normalizes a requested history size.
func HistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// SampleLimit normalizes a requested sample count to (0, MaxSampleLimit].
func SampleLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSampleLimit
	case limit > MaxSampleLimit:
		return MaxSampleLimit
	}
	return limit
}
