package display

import (
	"image/color"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/gauge"
	"github.com/motodash/cluster/internal/telemetry"
	"github.com/motodash/cluster/internal/units"
	"github.com/motodash/cluster/internal/warning"
)

func TestNew_RequiresEngineAndDispatcher(t *testing.T) {
	_, err := New(Config{}, Dependencies{})
	assert.Error(t, err)
}

func TestGaugeSize_Breakpoints(t *testing.T) {
	assert.Equal(t, float64(gauge.WideSize), GaugeSize(1280, 0))
	assert.Equal(t, float64(gauge.MediumSize), GaugeSize(1000, 0))
	assert.Equal(t, float64(gauge.NarrowSize), GaugeSize(700, 0))
	assert.Equal(t, 300.0, GaugeSize(1280, 300), "override wins")
}

func TestGaugeSize_ShrinksToFit(t *testing.T) {
	// 220 would overflow two gauges in 400px
	assert.Equal(t, (400.0-3*margin)/2, GaugeSize(400, 0))
	assert.Equal(t, 0.0, GaugeSize(10, 0))
}

func TestArrange(t *testing.T) {
	p := Arrange(1280, 720, 260)
	assert.Equal(t, 260.0, p.Size)
	assert.InDelta(t, (1280.0-520)/3, p.SpeedX, 1e-9)
	assert.InDelta(t, p.SpeedX*2+260, p.RPMX, 1e-9)
	assert.Greater(t, p.InfoY, p.GaugeY+p.Size)
	assert.Less(t, p.WarningY, 720.0)
	assert.Greater(t, p.GaugeY, float64(statusBarHeight))
}

func TestArrange_NoNegativeGap(t *testing.T) {
	p := Arrange(300, 400, 200)
	assert.Equal(t, 0.0, p.SpeedX)
	assert.Equal(t, 200.0, p.RPMX)
}

func TestStatusText(t *testing.T) {
	left, right := StatusText(telemetry.Status{GPSConnected: true, Time: "09:05", BatteryLevel: 85})
	assert.Equal(t, "GPS OK", left)
	assert.Equal(t, "09:05  BAT 85%", right)

	left, _ = StatusText(telemetry.Status{})
	assert.Equal(t, "GPS --", left)
}

func TestColours(t *testing.T) {
	assert.Equal(t, dangerColor, BatteryColor(10))
	assert.Equal(t, amberColor, BatteryColor(30))
	assert.Equal(t, okColor, BatteryColor(85))

	assert.Equal(t, blueColor, GearColor(2))
	assert.Equal(t, okColor, GearColor(3))
	assert.Equal(t, amberColor, GearColor(6))
}

func TestInfoRows_UsesPreferences(t *testing.T) {
	rec := telemetry.InitialRecord(testTime())
	rec.Gear = 5
	rec.RegenBraking = true
	rec.Power = -7.5

	rows := InfoRows(rec, units.Prefs{SpeedUnit: units.MPH, DistanceUnit: units.Miles, TemperatureUnit: units.Fahrenheit})
	byLabel := map[string]InfoRow{}
	for _, r := range rows {
		byLabel[r.Label] = r
	}
	require.Len(t, rows, 8)
	assert.Equal(t, "5", byLabel["GEAR"].Value)
	assert.Equal(t, amberColor, byLabel["GEAR"].Color)
	assert.Equal(t, "NORMAL", byLabel["MODE"].Value)
	assert.Equal(t, "68%", byLabel["FUEL"].Value)
	assert.Equal(t, "134 mi", byLabel["RANGE"].Value)
	assert.Equal(t, "77°F", byLabel["TEMP"].Value)
	assert.Equal(t, "REGEN -7.5 kW", byLabel["POWER"].Value)
	assert.Equal(t, okColor, byLabel["POWER"].Color)
	assert.Equal(t, "145.7 mi", byLabel["TRIP"].Value)
}

func TestIndicators(t *testing.T) {
	rec := telemetry.Record{LeftIndicator: true, HeadlightOn: true}
	assert.Equal(t, "<<  LO        ", Indicators(rec))

	rec = telemetry.Record{RightIndicator: true, HighBeamOn: true}
	assert.Equal(t, "        HI  >>", Indicators(rec))
}

func TestWarningText(t *testing.T) {
	msg, col := WarningText(nil)
	assert.Empty(t, msg)
	assert.Equal(t, textColor, col)

	ws := []warning.Warning{
		{ID: 1, Title: "Low fuel", Description: "Fuel level is below the reserve mark", Severity: warning.Danger},
		{ID: 3, Title: "Low tire pressure", Description: "Check the rear tire pressure", Severity: warning.Info},
	}
	msg, col = WarningText(ws)
	assert.Equal(t, "2 warnings | Low fuel: Fuel level is below the reserve mark  [D] dismiss", msg)
	assert.Equal(t, dangerColor, col)

	msg, col = WarningText(ws[1:])
	assert.Contains(t, msg, "1 warning |")
	assert.Equal(t, blueColor, col)
}

func TestCommands(t *testing.T) {
	pressed := func(keys ...ebiten.Key) func(ebiten.Key) bool {
		set := map[ebiten.Key]bool{}
		for _, k := range keys {
			set[k] = true
		}
		return func(k ebiten.Key) bool { return set[k] }
	}
	active := []warning.Warning{{ID: 2, Title: "Engine overheating"}}

	assert.Empty(t, Commands(pressed(), active))

	cmds := Commands(pressed(ebiten.KeyD, ebiten.KeyH), active)
	require.Len(t, cmds, 2)
	assert.Equal(t, Command{Name: dashboard.CmdToggleHighBeam}, cmds[0])
	assert.Equal(t, Command{Name: dashboard.CmdDismissWarning, Args: []string{"2"}}, cmds[1])

	assert.Empty(t, Commands(pressed(ebiten.KeyD), nil), "nothing to dismiss")

	cmds = Commands(pressed(ebiten.KeyM, ebiten.KeyR), nil)
	assert.Equal(t, []Command{{Name: dashboard.CmdToggleDrivingMode}, {Name: dashboard.CmdResetTrip}}, cmds)
}

func TestShadeVertices(t *testing.T) {
	vs := []ebiten.Vertex{{DstX: 0}, {DstX: 100}}
	g := gauge.Gradient{X0: 0, X1: 100, Palette: gauge.SpeedPalette}

	ShadeVertices(vs, func(x float32) color.RGBA { return g.At(float64(x)) })

	blue := gauge.SpeedPalette[0]
	assert.InDelta(t, float32(blue.B)/0xff, vs[0].ColorB, 1e-6)
	assert.InDelta(t, 1.0, vs[0].ColorA, 1e-6)
	amber := gauge.SpeedPalette[2]
	assert.InDelta(t, float32(amber.R)/0xff, vs[1].ColorR, 1e-6)
	assert.Equal(t, float32(1), vs[1].SrcX)
}

func TestShadeVertices_Premultiplies(t *testing.T) {
	vs := []ebiten.Vertex{{}}
	ShadeVertices(vs, func(float32) color.RGBA { return color.RGBA{R: 255, A: 128} })
	assert.InDelta(t, 128.0/255, vs[0].ColorR, 1e-6)
	assert.InDelta(t, 128.0/255, vs[0].ColorA, 1e-6)
}

func TestCanvas_NilImageIsNoop(t *testing.T) {
	c := NewCanvas(nil)
	assert.NotPanics(t, func() {
		gauge.Render(c, gauge.RPMSpec(), 8550, 200)
	})
}

func testTime() time.Time {
	return time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC)
}
