// Package units formats telemetry values according to user preferences.
package units

import (
	"fmt"
	"math"
)

// Preference values as stored in user settings.
const (
	KMH        = "kmh"
	MPH        = "mph"
	Kilometers = "km"
	Miles      = "miles"
	Celsius    = "celsius"
	Fahrenheit = "fahrenheit"
)

// KmToMiles converts kilometres to miles.
const KmToMiles = 0.621371

// Prefs are the unit fields of a user's settings.
type Prefs struct {
	SpeedUnit       string
	DistanceUnit    string
	TemperatureUnit string
}

// DefaultPrefs are metric.
func DefaultPrefs() Prefs {
	return Prefs{SpeedUnit: KMH, DistanceUnit: Kilometers, TemperatureUnit: Celsius}
}

// Speed converts km/h into the preferred unit.
func (p Prefs) Speed(kmh float64) float64 {
	if p.SpeedUnit == MPH {
		return kmh * KmToMiles
	}
	return kmh
}

// SpeedLabel is the gauge unit caption.
func (p Prefs) SpeedLabel() string {
	if p.SpeedUnit == MPH {
		return "mph"
	}
	return "km/h"
}

// Distance converts kilometres into the preferred unit.
func (p Prefs) Distance(km float64) float64 {
	if p.DistanceUnit == Miles {
		return km * KmToMiles
	}
	return km
}

// DistanceLabel is the short distance unit.
func (p Prefs) DistanceLabel() string {
	if p.DistanceUnit == Miles {
		return "mi"
	}
	return "km"
}

// Temperature converts Celsius into the preferred unit.
func (p Prefs) Temperature(c float64) float64 {
	if p.TemperatureUnit == Fahrenheit {
		return c*9/5 + 32
	}
	return c
}

// TemperatureLabel is the degree symbol with unit letter.
func (p Prefs) TemperatureLabel() string {
	if p.TemperatureUnit == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// FormatDistance renders a distance with one decimal.
func (p Prefs) FormatDistance(km float64) string {
	return fmt.Sprintf("%.1f %s", p.Distance(km), p.DistanceLabel())
}

// FormatRange renders a range as a whole number.
func (p Prefs) FormatRange(km float64) string {
	return fmt.Sprintf("%d %s", int(math.Round(p.Distance(km))), p.DistanceLabel())
}

// FormatTemperature renders a temperature as a whole number.
func (p Prefs) FormatTemperature(c float64) string {
	return fmt.Sprintf("%d%s", int(math.Round(p.Temperature(c))), p.TemperatureLabel())
}

// Level is a traffic-light classification.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelDanger
)

// BatteryLevel classifies a charge percentage.
func BatteryLevel(percent int) Level {
	switch {
	case percent <= 15:
		return LevelDanger
	case percent <= 30:
		return LevelWarning
	default:
		return LevelOK
	}
}

// GearBand groups gears for colouring: 0 low, 1 mid, 2 high.
func GearBand(gear int) int {
	switch {
	case gear >= 5:
		return 2
	case gear >= 3:
		return 1
	default:
		return 0
	}
}
