// Package gauge lays out and draws the arc instruments of the cluster.
package gauge

import (
	"math"
	"strconv"
)

// Kind selects the quantity a gauge shows.
type Kind int

const (
	Speed Kind = iota
	RPM
)

func (k Kind) String() string {
	if k == RPM {
		return "rpm"
	}
	return "speed"
}

const (
	DefaultMaxSpeed   = 200
	SpeedTickInterval = 40
	RPMMax            = 10
	RPMTickInterval   = 2
	RPMUnit           = "x1000r/min"
)

// Spec describes one gauge instance.
type Spec struct {
	Kind         Kind
	MaxValue     float64
	TickInterval float64
	Unit         string
	Palette      Palette
}

// SpeedSpec is the speedometer. A non-positive maxSpeed uses DefaultMaxSpeed.
func SpeedSpec(maxSpeed float64, unit string) Spec {
	if maxSpeed <= 0 {
		maxSpeed = DefaultMaxSpeed
	}
	if unit == "" {
		unit = "km/h"
	}
	return Spec{
		Kind:         Speed,
		MaxValue:     maxSpeed,
		TickInterval: SpeedTickInterval,
		Unit:         unit,
		Palette:      SpeedPalette,
	}
}

// RPMSpec is the tachometer, scaled in thousands.
func RPMSpec() Spec {
	return Spec{
		Kind:         RPM,
		MaxValue:     RPMMax,
		TickInterval: RPMTickInterval,
		Unit:         RPMUnit,
		Palette:      RPMPalette,
	}
}

// Scaled converts a raw reading into gauge units without rounding.
func (s Spec) Scaled(raw float64) float64 {
	if s.Kind == RPM {
		return raw / 1000
	}
	return raw
}

// Display is the number printed in the readout.
func (s Spec) Display(raw float64) float64 {
	if s.Kind == RPM {
		return roundHalfDown(raw/100) / 10
	}
	return math.Round(raw)
}

// Readout formats the display value.
func (s Spec) Readout(raw float64) string {
	if s.Kind == RPM {
		return strconv.FormatFloat(s.Display(raw), 'f', 1, 64)
	}
	return strconv.FormatFloat(s.Display(raw), 'f', 0, 64)
}

// Ratio is the filled fraction of the arc for a raw reading.
func (s Spec) Ratio(raw float64) float64 {
	return Ratio(s.Scaled(raw), s.MaxValue)
}

// roundHalfDown rounds to the nearest integer with ties going down, so
// 8550 rpm reads 8.5.
func roundHalfDown(v float64) float64 {
	return math.Ceil(v - 0.5)
}
