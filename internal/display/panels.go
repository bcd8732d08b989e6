package display

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/motodash/cluster/internal/gauge"
	"github.com/motodash/cluster/internal/telemetry"
	"github.com/motodash/cluster/internal/units"
	"github.com/motodash/cluster/internal/warning"
)

const (
	statusBarHeight = 32
	margin          = 24
	rowHeight       = 26
	infoColumns     = 4
)

var (
	backgroundColor = color.RGBA{R: 15, G: 23, B: 42, A: 255}
	panelColor      = color.RGBA{R: 30, G: 41, B: 59, A: 230}
	textColor       = color.RGBA{R: 226, G: 232, B: 240, A: 255}
	mutedColor      = color.RGBA{R: 148, G: 163, B: 184, A: 255}

	okColor     = color.RGBA{R: 34, G: 197, B: 94, A: 255}
	amberColor  = color.RGBA{R: 245, G: 158, B: 11, A: 255}
	dangerColor = color.RGBA{R: 239, G: 68, B: 68, A: 255}
	blueColor   = color.RGBA{R: 59, G: 130, B: 246, A: 255}
)

// GaugeSize is the responsive gauge size for a window width, shrunk so two
// gauges always fit side by side.
func GaugeSize(width int, override float64) float64 {
	size := gauge.SizeForViewport(float64(width), override)
	if fit := (float64(width) - 3*margin) / 2; fit < size {
		size = fit
	}
	if size < 0 {
		return 0
	}
	return size
}

// Placement is where each part of the cluster goes for one window size.
type Placement struct {
	Size     float64
	SpeedX   float64
	RPMX     float64
	GaugeY   float64
	InfoY    float64
	WarningY float64
	Width    float64
	Height   float64
}

// Arrange lays out two gauges side by side under the status bar, the info
// rows under them and the warning panel at the bottom.
func Arrange(width, height int, size float64) Placement {
	w, h := float64(width), float64(height)
	gap := (w - 2*size) / 3
	if gap < 0 {
		gap = 0
	}
	p := Placement{
		Size:     size,
		SpeedX:   gap,
		RPMX:     2*gap + size,
		GaugeY:   statusBarHeight + margin,
		Width:    w,
		Height:   h,
		WarningY: h - statusBarHeight - margin/2,
	}
	p.InfoY = p.GaugeY + size + margin
	return p
}

// StatusText is the left and right halves of the status bar.
func StatusText(s telemetry.Status) (left, right string) {
	gps := "GPS --"
	if s.GPSConnected {
		gps = "GPS OK"
	}
	return gps, fmt.Sprintf("%s  BAT %d%%", s.Time, s.BatteryLevel)
}

// BatteryColor maps the battery classification to a colour.
func BatteryColor(percent int) color.RGBA {
	switch units.BatteryLevel(percent) {
	case units.LevelDanger:
		return dangerColor
	case units.LevelWarning:
		return amberColor
	}
	return okColor
}

// GearColor is amber in high gears, green in the middle ones, blue below.
func GearColor(gear int) color.RGBA {
	switch units.GearBand(gear) {
	case 2:
		return amberColor
	case 1:
		return okColor
	}
	return blueColor
}

// InfoRow is one labelled value under the gauges.
type InfoRow struct {
	Label string
	Value string
	Color color.RGBA
}

// InfoRows formats the record for the info panel in the user's units.
func InfoRows(r telemetry.Record, p units.Prefs) []InfoRow {
	power := fmt.Sprintf("%.1f kW", r.Power)
	powerColor := textColor
	if r.RegenBraking {
		power = "REGEN " + power
		powerColor = okColor
	}
	return []InfoRow{
		{Label: "GEAR", Value: fmt.Sprintf("%d", r.Gear), Color: GearColor(r.Gear)},
		{Label: "MODE", Value: strings.ToUpper(r.DrivingMode.String()), Color: textColor},
		{Label: "FUEL", Value: fmt.Sprintf("%d%%", r.FuelLevel), Color: BatteryColor(r.FuelLevel)},
		{Label: "RANGE", Value: p.FormatRange(r.FuelRange), Color: textColor},
		{Label: "TEMP", Value: p.FormatTemperature(r.Temperature), Color: textColor},
		{Label: "POWER", Value: power, Color: powerColor},
		{Label: "TRIP", Value: p.FormatDistance(r.TripDistance), Color: textColor},
		{Label: "ODO", Value: p.FormatDistance(r.Odometer), Color: mutedColor},
	}
}

// Indicators renders the lamp row: turn signals, headlight and high beam.
func Indicators(r telemetry.Record) string {
	lamp := func(on bool, s string) string {
		if on {
			return s
		}
		return strings.Repeat(" ", len(s))
	}
	return strings.Join([]string{
		lamp(r.LeftIndicator, "<<"),
		lamp(r.HeadlightOn, "LO"),
		lamp(r.HighBeamOn, "HI"),
		lamp(r.RightIndicator, ">>"),
	}, "  ")
}

// WarningText summarises the active warnings: the count and the first one.
// It returns an empty string when nothing is active.
func WarningText(ws []warning.Warning) (string, color.RGBA) {
	if len(ws) == 0 {
		return "", textColor
	}
	first := ws[0]
	col := amberColor
	switch first.Severity {
	case warning.Danger:
		col = dangerColor
	case warning.Info:
		col = blueColor
	}
	noun := "warning"
	if len(ws) > 1 {
		noun = "warnings"
	}
	return fmt.Sprintf("%d %s | %s: %s  [D] dismiss", len(ws), noun, first.Title, first.Description), col
}
