package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Settings{},
	&Warning{},
	&Trip{},
	&Layout{},
	&TelemetrySample{},
}

// Setting defaults applied when a user has no stored record.
const (
	DefaultTheme           = "light"
	DefaultSpeedUnit       = "kmh"
	DefaultDistanceUnit    = "km"
	DefaultTemperatureUnit = "celsius"

	// DefaultLayoutKey is the key the dashboard layout blob is stored under.
	DefaultLayoutKey = "dashboardLayouts"
)

////////////////////////
// USER MODELS
////////////////////////

// Settings holds one user's display preferences.
type Settings struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID          string    `json:"userId" gorm:"size:64;not null;index"`
	Theme           string    `json:"theme" gorm:"size:16;not null;default:light"`
	SpeedUnit       string    `json:"speedUnit" gorm:"size:16;not null;default:kmh"`
	DistanceUnit    string    `json:"distanceUnit" gorm:"size:16;not null;default:km"`
	TemperatureUnit string    `json:"temperatureUnit" gorm:"size:16;not null;default:celsius"`
	LastUpdated     time.Time `json:"lastUpdated" gorm:"not null"`
}

func (*Settings) TableName() string {
	return "settings"
}

// DefaultSettings returns the record created for a user on first read.
func DefaultSettings(userID string, now time.Time) Settings {
	return Settings{
		UserID:          userID,
		Theme:           DefaultTheme,
		SpeedUnit:       DefaultSpeedUnit,
		DistanceUnit:    DefaultDistanceUnit,
		TemperatureUnit: DefaultTemperatureUnit,
		LastUpdated:     now,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left untouched.
type SettingsPatch struct {
	Theme           *string `json:"theme,omitempty"`
	SpeedUnit       *string `json:"speedUnit,omitempty"`
	DistanceUnit    *string `json:"distanceUnit,omitempty"`
	TemperatureUnit *string `json:"temperatureUnit,omitempty"`
}

// Apply copies the set fields onto s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.SpeedUnit != nil {
		s.SpeedUnit = *p.SpeedUnit
	}
	if p.DistanceUnit != nil {
		s.DistanceUnit = *p.DistanceUnit
	}
	if p.TemperatureUnit != nil {
		s.TemperatureUnit = *p.TemperatureUnit
	}
}

// Warning is a persisted alert, separate from the simulated warning pool.
type Warning struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string    `json:"title" gorm:"size:127;not null"`
	Description string    `json:"description" gorm:"size:255;not null"`
	Severity    string    `json:"severity" gorm:"size:16;not null;default:warning"`
	Active      bool      `json:"active" gorm:"not null;default:true"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null;index"`
}

func (*Warning) TableName() string {
	return "warnings"
}

// SeedWarning is the persisted alert present on a fresh store.
func SeedWarning(now time.Time) Warning {
	return Warning{
		Title:       "Tire Pressure",
		Description: "Front tire pressure low",
		Severity:    "warning",
		Active:      true,
		Timestamp:   now,
	}
}

// Trip is one ride from start to end.
type Trip struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        string     `json:"userId" gorm:"size:64;not null;index"`
	StartOdometer float64    `json:"startOdometer" gorm:"not null"`
	EndOdometer   *float64   `json:"endOdometer"`
	StartTime     time.Time  `json:"startTime" gorm:"not null"`
	EndTime       *time.Time `json:"endTime" gorm:"index"`
	AvgSpeed      *float64   `json:"avgSpeed"`
	MaxSpeed      *float64   `json:"maxSpeed"`
	FuelUsed      *float64   `json:"fuelUsed"`
}

func (*Trip) TableName() string {
	return "trips"
}

// Open reports whether the trip has not ended yet.
func (t *Trip) Open() bool {
	return t.EndTime == nil
}

// TripEnd carries the fields set when a trip ends.
type TripEnd struct {
	EndOdometer float64   `json:"endOdometer"`
	EndTime     time.Time `json:"endTime"`
	AvgSpeed    *float64  `json:"avgSpeed,omitempty"`
	MaxSpeed    *float64  `json:"maxSpeed,omitempty"`
	FuelUsed    *float64  `json:"fuelUsed,omitempty"`
}

// Layout is an opaque dashboard layout blob keyed by name.
type Layout struct {
	Key       string         `json:"key" gorm:"primaryKey;size:64"`
	Data      datatypes.JSON `json:"data"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (*Layout) TableName() string {
	return "layouts"
}

////////////////////////
// TELEMETRY MODELS
////////////////////////

// TelemetrySample is one recorded telemetry tick.
type TelemetrySample struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Time         time.Time `json:"time" gorm:"not null;index"`
	Speed        float64   `json:"speed"`
	RPM          float64   `json:"rpm"`
	Gear         int       `json:"gear"`
	Power        float64   `json:"power"`
	DrivingMode  string    `json:"drivingMode" gorm:"size:16"`
	FuelLevel    int       `json:"fuelLevel"`
	FuelRange    float64   `json:"fuelRange"`
	Temperature  float64   `json:"temperature"`
	TripDistance float64   `json:"tripDistance"`
	Odometer     float64   `json:"odometer"`
	RegenBraking bool      `json:"regenBraking"`
}

func (*TelemetrySample) TableName() string {
	return "telemetry_samples"
}
