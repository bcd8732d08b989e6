// Package gormstorage implements storage.Store on any gorm dialect.
// The sqlite and postgres backends embed it and add dialect concerns.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/motodash/cluster/internal/database"
	"github.com/motodash/cluster/internal/logging"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SampleBatchSize is the insert batch size for telemetry samples.
const SampleBatchSize = 500

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend implements storage.Store with synchronous gorm queries.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{deps: deps}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and seeds the default warning.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	log := b.deps.LogManager

	log.WriteLog("gorm:Init", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	seeded, err := database.SeedWarnings(b.deps.DB, time.Now())
	if err != nil {
		return err
	}
	if seeded {
		log.WriteLog("gorm:Init", "Seeded default warning", "DEBUG")
	}
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// notFound maps gorm's sentinel onto storage.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func (b *Backend) GetSettings(userID string) (*model.Settings, error) {
	var s model.Settings
	if err := b.deps.DB.Where("user_id = ?", userID).Order("id").First(&s).Error; err != nil {
		return nil, notFound(err, "settings")
	}
	return &s, nil
}

func (b *Backend) CreateSettings(s *model.Settings) error {
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now()
	}
	if err := b.deps.DB.Create(s).Error; err != nil {
		return fmt.Errorf("failed to create settings: %w", err)
	}
	return nil
}

func (b *Backend) UpdateSettings(id uint, patch model.SettingsPatch, now time.Time) (*model.Settings, error) {
	var s model.Settings
	if err := b.deps.DB.First(&s, id).Error; err != nil {
		return nil, notFound(err, "settings")
	}
	patch.Apply(&s)
	s.LastUpdated = now
	if err := b.deps.DB.Save(&s).Error; err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return &s, nil
}

func (b *Backend) ActiveWarnings() ([]model.Warning, error) {
	var out []model.Warning
	if err := b.deps.DB.Where("active = ?", true).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}
	return out, nil
}

func (b *Backend) CreateWarning(w *model.Warning) error {
	if w.Timestamp.IsZero() {
		w.Timestamp = time.Now()
	}
	if err := b.deps.DB.Create(w).Error; err != nil {
		return fmt.Errorf("failed to create warning: %w", err)
	}
	return nil
}

func (b *Backend) DismissWarning(id uint) error {
	res := b.deps.DB.Model(&model.Warning{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to dismiss warning: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *Backend) CurrentTrip(userID string) (*model.Trip, error) {
	var t model.Trip
	err := b.deps.DB.
		Where("user_id = ? AND end_time IS NULL", userID).
		Order("start_time DESC").
		Order("id DESC").
		First(&t).Error
	if err != nil {
		return nil, notFound(err, "trip")
	}
	return &t, nil
}

func (b *Backend) StartTrip(t *model.Trip) error {
	if t.StartTime.IsZero() {
		t.StartTime = time.Now()
	}
	if err := b.deps.DB.Create(t).Error; err != nil {
		return fmt.Errorf("failed to start trip: %w", err)
	}
	return nil
}

func (b *Backend) EndTrip(id uint, end model.TripEnd) (*model.Trip, error) {
	var t model.Trip
	if err := b.deps.DB.First(&t, id).Error; err != nil {
		return nil, notFound(err, "trip")
	}
	odo := end.EndOdometer
	endTime := end.EndTime
	t.EndOdometer = &odo
	t.EndTime = &endTime
	t.AvgSpeed = end.AvgSpeed
	t.MaxSpeed = end.MaxSpeed
	t.FuelUsed = end.FuelUsed
	if err := b.deps.DB.Save(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to end trip: %w", err)
	}
	return &t, nil
}

func (b *Backend) TripHistory(userID string, limit int) ([]model.Trip, error) {
	var out []model.Trip
	err := b.deps.DB.
		Where("user_id = ? AND end_time IS NOT NULL", userID).
		Order("end_time DESC").
		Order("id DESC").
		Limit(storage.HistoryLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return out, nil
}

// layoutKey builds a quoted equality on the layouts primary key.
func layoutKey(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func (b *Backend) GetLayout(key string) (*model.Layout, error) {
	var l model.Layout
	if err := b.deps.DB.Where(layoutKey(key)).First(&l).Error; err != nil {
		return nil, notFound(err, "layout")
	}
	return &l, nil
}

func (b *Backend) SaveLayout(l *model.Layout) error {
	if !json.Valid(l.Data) {
		return fmt.Errorf("layout %s: invalid JSON", l.Key)
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now()
	}
	err := b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(l).Error
	if err != nil {
		return fmt.Errorf("failed to save layout: %w", err)
	}
	return nil
}

func (b *Backend) DeleteLayout(key string) error {
	if err := b.deps.DB.Where(layoutKey(key)).Delete(&model.Layout{}).Error; err != nil {
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	return nil
}

func (b *Backend) RecordSamples(samples []model.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := b.deps.DB.CreateInBatches(samples, SampleBatchSize).Error; err != nil {
		return fmt.Errorf("failed to record samples: %w", err)
	}
	return nil
}

func (b *Backend) RecentSamples(limit int) ([]model.TelemetrySample, error) {
	q := b.deps.DB.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "time"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.TelemetrySample
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return out, nil
}
