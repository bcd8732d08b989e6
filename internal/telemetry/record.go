// Package telemetry holds the simulated motorcycle state and the generators
// that mutate it.
package telemetry

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DrivingMode is the ride mode shown on the cluster.
type DrivingMode int

const (
	Eco DrivingMode = iota
	Normal
	Sport
)

// Modes lists the driving modes in cycle order.
var Modes = []DrivingMode{Eco, Normal, Sport}

// Next returns the following mode in the Eco -> Normal -> Sport cycle.
func (m DrivingMode) Next() DrivingMode {
	return Modes[(int(m)+1)%len(Modes)]
}

func (m DrivingMode) String() string {
	switch m {
	case Eco:
		return "eco"
	case Normal:
		return "normal"
	case Sport:
		return "sport"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText encodes the mode as its lowercase name.
func (m DrivingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the lowercase or capitalised mode name.
func (m *DrivingMode) UnmarshalText(b []byte) error {
	mode, err := ParseDrivingMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseDrivingMode resolves a mode name.
func ParseDrivingMode(s string) (DrivingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eco":
		return Eco, nil
	case "normal":
		return Normal, nil
	case "sport":
		return Sport, nil
	}
	return Normal, fmt.Errorf("unknown driving mode: %q", s)
}

// Record is one snapshot of the motorcycle state.
type Record struct {
	Speed          float64     `json:"speed"`
	RPM            float64     `json:"rpm"`
	Gear           int         `json:"gear"`
	Power          float64     `json:"power"`
	DrivingMode    DrivingMode `json:"drivingMode"`
	FuelLevel      int         `json:"fuelLevel"`
	FuelRange      float64     `json:"fuelRange"`
	Temperature    float64     `json:"temperature"`
	TripDistance   float64     `json:"tripDistance"`
	Odometer       float64     `json:"odometer"`
	LeftIndicator  bool        `json:"leftIndicator"`
	RightIndicator bool        `json:"rightIndicator"`
	HighBeamOn     bool        `json:"highBeamOn"`
	HeadlightOn    bool        `json:"headlightOn"`
	RegenBraking   bool        `json:"regenBraking"`
	Timestamp      time.Time   `json:"timestamp"`
}

// InitialRecord is the state shown before the first tick.
func InitialRecord(now time.Time) Record {
	return Record{
		Gear:         1,
		DrivingMode:  Normal,
		FuelLevel:    68,
		FuelRange:    215,
		Temperature:  25,
		TripDistance: 234.5,
		Odometer:     12457,
		HeadlightOn:  true,
		Timestamp:    now,
	}
}

// gearBreakpoints are the exclusive upper speed bounds of gears 1 to 5.
var gearBreakpoints = [...]float64{10, 30, 50, 80, 110}

// DeriveGear maps a speed in km/h to the gear engaged at that speed.
func DeriveGear(speed float64) int {
	for i, limit := range gearBreakpoints {
		if speed < limit {
			return i + 1
		}
	}
	return len(gearBreakpoints) + 1
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
