// Package dashboard wires the simulators, animators and timers of the
// instrument cluster into one owned engine.
package dashboard

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/motodash/cluster/internal/animator"
	"github.com/motodash/cluster/internal/gauge"
	"github.com/motodash/cluster/internal/scheduler"
	"github.com/motodash/cluster/internal/telemetry"
	"github.com/motodash/cluster/internal/warning"
)

// Task names used with the scheduler.
const (
	TaskTelemetry = "telemetry"
	TaskWarnings  = "warnings"
	TaskStatus    = "status"

	animatePrefix = "animate:"
)

// Config holds the timer periods.
type Config struct {
	TelemetryInterval time.Duration
	AnimationInterval time.Duration
	WarningInterval   time.Duration
	StatusInterval    time.Duration
}

// DefaultConfig returns the stock periods.
func DefaultConfig() Config {
	return Config{
		TelemetryInterval: 1000 * time.Millisecond,
		AnimationInterval: 16 * time.Millisecond,
		WarningInterval:   7000 * time.Millisecond,
		StatusInterval:    60 * time.Second,
	}
}

// Dependencies holds the collaborators of the engine. Nil fields are
// created with defaults.
type Dependencies struct {
	Simulator *telemetry.Simulator
	Warnings  *warning.Generator
	Status    *telemetry.StatusMonitor
	Arena     *animator.Arena
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
	Rand      *rand.Rand
	Clock     func() time.Time
}

// View is a consistent read of everything the cluster shows.
type View struct {
	Telemetry telemetry.Record   `json:"telemetry"`
	Warnings  []warning.Warning  `json:"warnings"`
	Status    telemetry.Status   `json:"status"`
	Gauges    map[string]float64 `json:"gauges"`
}

// Engine is the owned state of one dashboard.
type Engine struct {
	cfg  Config
	deps Dependencies

	mu      sync.Mutex
	gauges  map[string]gauge.Kind
	running bool
}

// New creates an engine. Nothing runs until Start.
func New(cfg Config, deps Dependencies) *Engine {
	def := DefaultConfig()
	if cfg.TelemetryInterval <= 0 {
		cfg.TelemetryInterval = def.TelemetryInterval
	}
	if cfg.AnimationInterval <= 0 {
		cfg.AnimationInterval = def.AnimationInterval
	}
	if cfg.WarningInterval <= 0 {
		cfg.WarningInterval = def.WarningInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(deps.Clock().UnixNano()))
	}
	// each generator gets its own source; *rand.Rand is not safe for concurrent use
	if deps.Simulator == nil {
		deps.Simulator = telemetry.NewSimulator(rand.New(rand.NewSource(deps.Rand.Int63())), deps.Clock)
	}
	if deps.Warnings == nil {
		deps.Warnings = warning.NewGenerator(warning.DefaultPool, rand.New(rand.NewSource(deps.Rand.Int63())), deps.Clock)
	}
	if deps.Status == nil {
		deps.Status = telemetry.NewStatusMonitor(rand.New(rand.NewSource(deps.Rand.Int63())), deps.Clock)
	}
	if deps.Arena == nil {
		deps.Arena = animator.NewArena()
	}
	if deps.Scheduler == nil {
		deps.Scheduler = scheduler.New(deps.Logger)
	}

	return &Engine{
		cfg:    cfg,
		deps:   deps,
		gauges: make(map[string]gauge.Kind),
	}
}

// Start rolls the first warning set and schedules the periodic tasks.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}

	e.deps.Warnings.Reroll()

	s := e.deps.Scheduler
	if err := s.Every(TaskTelemetry, e.cfg.TelemetryInterval, func() { e.deps.Simulator.Tick() }); err != nil {
		return fmt.Errorf("scheduling telemetry: %w", err)
	}
	if err := s.Every(TaskWarnings, e.cfg.WarningInterval, func() { e.deps.Warnings.Reroll() }); err != nil {
		return fmt.Errorf("scheduling warnings: %w", err)
	}
	if err := s.Every(TaskStatus, e.cfg.StatusInterval, func() { e.deps.Status.Refresh() }); err != nil {
		return fmt.Errorf("scheduling status: %w", err)
	}

	e.running = true
	e.deps.Logger.Info("Dashboard engine started",
		"telemetryInterval", e.cfg.TelemetryInterval,
		"warningInterval", e.cfg.WarningInterval)
	return nil
}

// Stop cancels every timer, including per-gauge animations. An engine
// cannot be restarted after Stop.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.deps.Scheduler.StopAll()
	e.deps.Logger.Info("Dashboard engine stopped")
}

// Running reports whether Start has been called without a Stop.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Simulator exposes the telemetry owner for observers.
func (e *Engine) Simulator() *telemetry.Simulator {
	return e.deps.Simulator
}

// target returns the telemetry value a gauge of kind follows.
func target(kind gauge.Kind, r telemetry.Record) float64 {
	if kind == gauge.RPM {
		return r.RPM
	}
	return r.Speed
}

func epsilonFor(kind gauge.Kind) float64 {
	if kind == gauge.RPM {
		return animator.RPMEpsilon
	}
	return animator.SpeedEpsilon
}

// MountGauge creates the animator for id and starts its animation timer.
func (e *Engine) MountGauge(id string, kind gauge.Kind) error {
	e.mu.Lock()
	if _, ok := e.gauges[id]; ok {
		e.mu.Unlock()
		return fmt.Errorf("gauge %q already mounted", id)
	}
	e.gauges[id] = kind
	e.mu.Unlock()

	an := e.deps.Arena.Mount(id, epsilonFor(kind))
	sim := e.deps.Simulator
	err := e.deps.Scheduler.Every(animatePrefix+id, e.cfg.AnimationInterval, func() {
		an.Advance(target(kind, sim.Snapshot()))
	})
	if err != nil {
		e.deps.Arena.Unmount(id)
		e.mu.Lock()
		delete(e.gauges, id)
		e.mu.Unlock()
		return fmt.Errorf("scheduling animation for %s: %w", id, err)
	}
	return nil
}

// UnmountGauge stops the animation timer of id and discards its state.
func (e *Engine) UnmountGauge(id string) bool {
	e.mu.Lock()
	_, ok := e.gauges[id]
	delete(e.gauges, id)
	e.mu.Unlock()

	if !ok {
		return false
	}
	e.deps.Scheduler.Cancel(animatePrefix + id)
	e.deps.Arena.Unmount(id)
	return true
}

// GaugeValue is the displayed value of a mounted gauge.
func (e *Engine) GaugeValue(id string) float64 {
	return e.deps.Arena.Value(id)
}

// Telemetry returns a snapshot of the record.
func (e *Engine) Telemetry() telemetry.Record {
	return e.deps.Simulator.Snapshot()
}

// Warnings returns the active simulated warnings.
func (e *Engine) Warnings() []warning.Warning {
	return e.deps.Warnings.Active()
}

// Status returns the status bar.
func (e *Engine) Status() telemetry.Status {
	return e.deps.Status.Current()
}

// View bundles telemetry, warnings, status and gauge values.
func (e *Engine) View() View {
	v := View{
		Telemetry: e.Telemetry(),
		Warnings:  e.Warnings(),
		Status:    e.Status(),
		Gauges:    make(map[string]float64),
	}
	for _, id := range e.deps.Arena.IDs() {
		v.Gauges[id] = e.deps.Arena.Value(id)
	}
	return v
}

// ResetTrip zeroes the trip meter.
func (e *Engine) ResetTrip() { e.deps.Simulator.ResetTrip() }

// ToggleHighBeam flips the high beam.
func (e *Engine) ToggleHighBeam() { e.deps.Simulator.ToggleHighBeam() }

// ToggleDrivingMode advances the ride mode.
func (e *Engine) ToggleDrivingMode() telemetry.DrivingMode {
	return e.deps.Simulator.ToggleDrivingMode()
}

// DismissWarning hides id until the next re-roll.
func (e *Engine) DismissWarning(id int) bool {
	return e.deps.Warnings.Dismiss(id)
}
