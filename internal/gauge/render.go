package gauge

import "image/color"

// Canvas is a drawing surface. Angles are radians clockwise from +x in
// screen coordinates; text is centered on (x, y).
type Canvas interface {
	Clear()
	StrokeArc(cx, cy, r float64, arc Arc, col color.RGBA)
	StrokeGradientArc(cx, cy, r float64, arc Arc, g Gradient)
	StrokeLine(x0, y0, x1, y1, width float64, col color.RGBA)
	FillText(t Text, bold bool, col color.RGBA)
}

// Render draws a gauge for raw onto c. A nil canvas or a non-positive size
// draws nothing.
func Render(c Canvas, spec Spec, raw, size float64) {
	if c == nil || size <= 0 {
		return
	}
	DrawFrame(c, Layout(spec, raw, size))
}

// DrawFrame draws a precomputed frame.
func DrawFrame(c Canvas, f Frame) {
	if c == nil || f.Metrics.Size <= 0 {
		return
	}
	m := f.Metrics

	c.Clear()
	c.StrokeArc(m.CenterX, m.CenterY, m.Radius, f.Background, TrackColor)
	if f.Ratio > 0 {
		c.StrokeGradientArc(m.CenterX, m.CenterY, m.Radius, f.Foreground, f.Gradient)
	}
	for _, t := range f.Ticks {
		c.StrokeLine(t.X0, t.Y0, t.X1, t.Y1, m.TickWidth, TickColor)
	}
	for _, l := range f.Labels {
		c.FillText(l, true, TickColor)
	}
	c.FillText(f.Unit, false, UnitColor)
	c.FillText(f.Value, true, ValueColor)
}
