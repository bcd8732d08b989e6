// Package display renders the instrument cluster in a desktop window.
package display

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/dispatcher"
	"github.com/motodash/cluster/internal/gauge"
	"github.com/motodash/cluster/internal/units"
)

// Gauge ids mounted on the engine.
const (
	SpeedGaugeID = "speedometer"
	RPMGaugeID   = "tachometer"
)

// prefsRefreshFrames is how often unit preferences are re-read, in ticks.
const prefsRefreshFrames = 300

// Config holds the window settings.
type Config struct {
	Width     int
	Height    int
	GaugeSize float64
	MaxSpeed  float64
	Title     string
}

// PrefsFunc returns the current unit preferences of the rider.
type PrefsFunc func() (units.Prefs, error)

// Dependencies holds the collaborators of the window.
type Dependencies struct {
	Engine     *dashboard.Engine
	Dispatcher *dispatcher.Dispatcher
	Prefs      PrefsFunc
	Logger     *slog.Logger
}

// App is the ebiten game drawing the cluster.
type App struct {
	cfg  Config
	deps Dependencies

	width, height int
	size          float64
	canvases      map[string]*Canvas

	prefs   units.Prefs
	frames  int
	mounted bool
	quit    atomic.Bool
}

// New creates the window app. Nothing is shown until Run.
func New(cfg Config, deps Dependencies) (*App, error) {
	if deps.Engine == nil || deps.Dispatcher == nil {
		return nil, errors.New("display requires an engine and a dispatcher")
	}
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("loading fonts: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.Title == "" {
		cfg.Title = "motodash"
	}
	return &App{
		cfg:      cfg,
		deps:     deps,
		width:    cfg.Width,
		height:   cfg.Height,
		size:     GaugeSize(cfg.Width, cfg.GaugeSize),
		canvases: make(map[string]*Canvas),
		prefs:    units.DefaultPrefs(),
	}, nil
}

// Mount starts the animation timers of both gauges.
func (a *App) Mount() error {
	if a.mounted {
		return nil
	}
	if err := a.deps.Engine.MountGauge(SpeedGaugeID, gauge.Speed); err != nil {
		return err
	}
	if err := a.deps.Engine.MountGauge(RPMGaugeID, gauge.RPM); err != nil {
		a.deps.Engine.UnmountGauge(SpeedGaugeID)
		return err
	}
	a.mounted = true
	return nil
}

// Unmount stops the animation timers and frees the gauge images.
func (a *App) Unmount() {
	if !a.mounted {
		return
	}
	a.deps.Engine.UnmountGauge(SpeedGaugeID)
	a.deps.Engine.UnmountGauge(RPMGaugeID)
	a.disposeCanvases()
	a.mounted = false
}

// Run opens the window and blocks until it is closed or Q is pressed.
func (a *App) Run() error {
	ebiten.SetWindowSize(a.cfg.Width, a.cfg.Height)
	ebiten.SetWindowTitle(a.cfg.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := a.Mount(); err != nil {
		return err
	}
	defer a.Unmount()

	a.refreshPrefs()
	a.deps.Logger.Info("Display window opened", "width", a.cfg.Width, "height", a.cfg.Height, "gaugeSize", a.size)
	err := ebiten.RunGame(a)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

func (a *App) refreshPrefs() {
	if a.deps.Prefs == nil {
		return
	}
	p, err := a.deps.Prefs()
	if err != nil {
		a.deps.Logger.Warn("Failed to load unit preferences", "error", err)
		return
	}
	a.prefs = p
}

// Quit asks the window to close on its next tick. Safe from any goroutine.
func (a *App) Quit() {
	a.quit.Store(true)
}

// Update handles keyboard input.
func (a *App) Update() error {
	a.frames++
	if a.frames%prefsRefreshFrames == 0 {
		a.refreshPrefs()
	}

	if a.quit.Load() || inpututil.IsKeyJustPressed(KeyQuit) {
		return ebiten.Termination
	}
	for _, cmd := range Commands(inpututil.IsKeyJustPressed, a.deps.Engine.Warnings()) {
		a.dispatch(cmd)
	}
	return nil
}

func (a *App) dispatch(cmd Command) {
	if _, err := a.deps.Dispatcher.Dispatch(dispatcher.Event{Command: cmd.Name, Args: cmd.Args}); err != nil {
		a.deps.Logger.Warn("Key action failed", "action", cmd.Name, "error", err)
	}
}

// Layout follows the window size and re-sizes the gauges on breakpoints.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	a.width, a.height = outsideWidth, outsideHeight
	if size := GaugeSize(outsideWidth, a.cfg.GaugeSize); size != a.size {
		a.size = size
		a.disposeCanvases()
	}
	return outsideWidth, outsideHeight
}

func (a *App) disposeCanvases() {
	for id, c := range a.canvases {
		if img := c.Image(); img != nil {
			img.Deallocate()
		}
		delete(a.canvases, id)
	}
}

func (a *App) canvas(id string) *Canvas {
	c, ok := a.canvases[id]
	if !ok {
		n := int(a.size)
		if n <= 0 {
			return NewCanvas(nil)
		}
		c = NewCanvas(ebiten.NewImage(n, n))
		a.canvases[id] = c
	}
	return c
}

// Draw renders one frame.
func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	p := Arrange(a.width, a.height, a.size)
	e := a.deps.Engine
	rec := e.Telemetry()

	a.drawStatus(screen, p)

	speed := gauge.SpeedSpec(a.cfg.MaxSpeed, a.prefs.SpeedLabel())
	a.drawGauge(screen, SpeedGaugeID, speed, a.prefs.Speed(e.GaugeValue(SpeedGaugeID)), p.SpeedX, p.GaugeY)
	a.drawGauge(screen, RPMGaugeID, gauge.RPMSpec(), e.GaugeValue(RPMGaugeID), p.RPMX, p.GaugeY)

	drawText(screen, Indicators(rec), p.Width/2, p.GaugeY+p.Size/2, 18, true, text.AlignCenter, amberColor)

	colW := p.Width / infoColumns
	for i, row := range InfoRows(rec, a.prefs) {
		x := colW*float64(i%infoColumns) + colW/2
		y := p.InfoY + float64(i/infoColumns)*rowHeight*2
		drawText(screen, row.Label, x, y, 12, false, text.AlignCenter, mutedColor)
		drawText(screen, row.Value, x, y+rowHeight*0.8, 18, true, text.AlignCenter, row.Color)
	}

	a.drawWarnings(screen, p)
}

func (a *App) drawStatus(screen *ebiten.Image, p Placement) {
	status := a.deps.Engine.Status()
	vector.DrawFilledRect(screen, 0, 0, float32(p.Width), statusBarHeight, panelColor, true)
	left, right := StatusText(status)
	gpsColor := mutedColor
	if status.GPSConnected {
		gpsColor = okColor
	}
	drawText(screen, left, margin, statusBarHeight/2, 14, true, text.AlignStart, gpsColor)
	drawText(screen, right, p.Width-margin, statusBarHeight/2, 14, true, text.AlignEnd, BatteryColor(status.BatteryLevel))
}

func (a *App) drawGauge(screen *ebiten.Image, id string, spec gauge.Spec, raw, x, y float64) {
	c := a.canvas(id)
	img := c.Image()
	if img == nil {
		return
	}
	gauge.Render(c, spec, raw, a.size)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(x, y)
	screen.DrawImage(img, op)
}

func (a *App) drawWarnings(screen *ebiten.Image, p Placement) {
	msg, col := WarningText(a.deps.Engine.Warnings())
	if msg == "" {
		return
	}
	vector.DrawFilledRect(screen, margin, float32(p.WarningY), float32(p.Width-2*margin), statusBarHeight, panelColor, true)
	vector.StrokeRect(screen, margin, float32(p.WarningY), float32(p.Width-2*margin), statusBarHeight, 2, col, true)
	drawText(screen, msg, p.Width/2, p.WarningY+statusBarHeight/2, 14, false, text.AlignCenter, col)
}

func drawText(dst *ebiten.Image, s string, x, y, size float64, isBold bool, align text.Align, col color.RGBA) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.PrimaryAlign = align
	op.SecondaryAlign = text.AlignCenter
	op.ColorScale.ScaleWithColor(col)
	text.Draw(dst, s, face(size, isBold), op)
}
