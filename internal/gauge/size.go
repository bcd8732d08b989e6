package gauge

// Viewport breakpoints and the gauge size used in each band.
const (
	WideBreakpoint   = 1200
	NarrowBreakpoint = 768

	WideSize   = 260
	MediumSize = 180
	NarrowSize = 220
)

// SizeForViewport picks the nominal gauge size for a window width. A positive
// override always wins.
func SizeForViewport(width, override float64) float64 {
	switch {
	case override > 0:
		return override
	case width >= WideBreakpoint:
		return WideSize
	case width >= NarrowBreakpoint:
		return MediumSize
	default:
		return NarrowSize
	}
}
