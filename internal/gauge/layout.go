package gauge

import (
	"math"
	"strconv"
)

const (
	// StartAngle is where every arc begins, measured clockwise from +x.
	StartAngle = 0.75 * math.Pi
	// Sweep is the full angular extent of an arc.
	Sweep = 1.5 * math.Pi

	// LabelMinSize is the size at or below which tick labels are omitted.
	LabelMinSize = 120
)

// Ratio is value/max clamped to [0, 1]. A non-positive max yields 0.
func Ratio(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(value / max)
}

// Metrics are the size-proportional drawing dimensions.
type Metrics struct {
	Size          float64
	CenterX       float64
	CenterY       float64
	Radius        float64
	LineWidth     float64
	TickLength    float64
	TickWidth     float64
	LabelOffset   float64
	LabelFontSize float64
	ValueFontSize float64
	UnitFontSize  float64
	TextOffset    float64
}

// NewMetrics scales every dimension from size.
func NewMetrics(size float64) Metrics {
	return Metrics{
		Size:          size,
		CenterX:       size / 2,
		CenterY:       size / 2,
		Radius:        size/2 - 10,
		LineWidth:     size * 0.07,
		TickLength:    size * 0.05,
		TickWidth:     size * 0.008,
		LabelOffset:   size * 0.11,
		LabelFontSize: size * 0.046,
		ValueFontSize: size * 0.22,
		UnitFontSize:  size * 0.06,
		TextOffset:    size * -0.03,
	}
}

// Arc is a stroked circular arc between two angles.
type Arc struct {
	Start, End float64
	Width      float64
	RoundCap   bool
}

// Tick is a radial line.
type Tick struct {
	Value  float64
	Angle  float64
	X0, Y0 float64
	X1, Y1 float64
}

// Text is a string centered at a point.
type Text struct {
	Text     string
	X, Y     float64
	FontSize float64
}

// Frame is everything a gauge draws for one value.
type Frame struct {
	Metrics    Metrics
	Background Arc
	Foreground Arc
	Gradient   Gradient
	Ratio      float64
	Ticks      []Tick
	Labels     []Text
	Unit       Text
	Value      Text
}

// Layout computes the frame for raw at the given pixel size.
func Layout(spec Spec, raw, size float64) Frame {
	m := NewMetrics(size)
	ratio := spec.Ratio(raw)

	f := Frame{
		Metrics:    m,
		Background: Arc{Start: StartAngle, End: StartAngle + Sweep, Width: m.LineWidth},
		Foreground: Arc{Start: StartAngle, End: StartAngle + Sweep*ratio, Width: m.LineWidth, RoundCap: true},
		Gradient:   Gradient{X0: 0, X1: size, Palette: spec.Palette},
		Ratio:      ratio,
	}

	if spec.MaxValue > 0 && spec.TickInterval > 0 {
		inner := m.Radius - m.TickLength
		outer := m.Radius + m.TickLength*0.2
		labelRadius := m.Radius - m.LabelOffset

		for i := 0.0; i <= spec.MaxValue+1e-9; i += spec.TickInterval {
			angle := StartAngle + (i/spec.MaxValue)*Sweep
			cos, sin := math.Cos(angle), math.Sin(angle)
			f.Ticks = append(f.Ticks, Tick{
				Value: i,
				Angle: angle,
				X0:    m.CenterX + inner*cos,
				Y0:    m.CenterY + inner*sin,
				X1:    m.CenterX + outer*cos,
				Y1:    m.CenterY + outer*sin,
			})
			if size > LabelMinSize && i > 0 && i < spec.MaxValue {
				f.Labels = append(f.Labels, Text{
					Text:     strconv.FormatFloat(i, 'f', -1, 64),
					X:        m.CenterX + labelRadius*cos,
					Y:        m.CenterY + labelRadius*sin,
					FontSize: m.LabelFontSize,
				})
			}
		}
	}

	textY := m.CenterY + m.TextOffset
	f.Unit = Text{
		Text:     spec.Unit,
		X:        m.CenterX,
		Y:        textY - m.ValueFontSize/2,
		FontSize: m.UnitFontSize,
	}
	f.Value = Text{
		Text:     spec.Readout(raw),
		X:        m.CenterX,
		Y:        textY + m.UnitFontSize/2,
		FontSize: m.ValueFontSize,
	}
	return f
}
