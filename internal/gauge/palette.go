package gauge

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// StopOffsets are the gradient stop positions along the foreground arc.
var StopOffsets = [3]float64{0, 0.7, 1.0}

// Palette is the three-stop gradient of a gauge's foreground arc.
type Palette [3]color.RGBA

var (
	// SpeedPalette is blue into amber.
	SpeedPalette = MustPalette("#2563EB", "#2563EB", "#F59E0B")
	// RPMPalette is red through amber.
	RPMPalette = MustPalette("#EF4444", "#F59E0B", "#EF4444")

	TrackColor = color.RGBA{R: 30, G: 41, B: 59, A: 204}
	TickColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	UnitColor  = color.RGBA{R: 209, G: 213, B: 219, A: 255}
	ValueColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ParsePalette builds a palette from three "#RRGGBB" strings.
func ParsePalette(stops ...string) (Palette, error) {
	var p Palette
	if len(stops) != len(p) {
		return p, fmt.Errorf("palette needs %d stops, got %d", len(p), len(stops))
	}
	for i, s := range stops {
		c, err := ParseHex(s)
		if err != nil {
			return p, fmt.Errorf("stop %d: %w", i, err)
		}
		p[i] = c
	}
	return p, nil
}

// MustPalette is ParsePalette for package-level literals.
func MustPalette(stops ...string) Palette {
	p, err := ParsePalette(stops...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseHex parses "#RRGGBB" or "#RRGGBBAA".
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// At samples the gradient at t in [0, 1].
func (p Palette) At(t float64) color.RGBA {
	t = clamp01(t)
	for i := 1; i < len(StopOffsets); i++ {
		if t <= StopOffsets[i] {
			lo, hi := StopOffsets[i-1], StopOffsets[i]
			return lerp(p[i-1], p[i], (t-lo)/(hi-lo))
		}
	}
	return p[len(p)-1]
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// Gradient is a horizontal linear gradient spanning [X0, X1].
type Gradient struct {
	X0, X1  float64
	Palette Palette
}

// At returns the colour at horizontal position x.
func (g Gradient) At(x float64) color.RGBA {
	if g.X1 == g.X0 {
		return g.Palette.At(0)
	}
	return g.Palette.At((x - g.X0) / (g.X1 - g.X0))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
