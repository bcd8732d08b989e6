package telemetry

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultBatteryLevel is the fixed battery percentage reported by the status bar.
const DefaultBatteryLevel = 85

// Status is the top bar of the cluster.
type Status struct {
	GPSConnected bool   `json:"gpsConnected"`
	Time         string `json:"currentTime"`
	BatteryLevel int    `json:"batteryLevel"`
}

// StatusMonitor refreshes the system status on demand.
type StatusMonitor struct {
	mu     sync.Mutex
	status Status
	rng    *rand.Rand
	clock  func() time.Time
}

// NewStatusMonitor creates a monitor and performs the first refresh.
func NewStatusMonitor(rng *rand.Rand, clock func() time.Time) *StatusMonitor {
	if clock == nil {
		clock = time.Now
	}
	m := &StatusMonitor{rng: rng, clock: clock}
	m.Refresh()
	return m
}

// Refresh flips the GPS coin and updates the clock.
func (m *StatusMonitor) Refresh() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = Status{
		GPSConnected: m.rng.Float64() > 0.6,
		Time:         m.clock().Format("15:04"),
		BatteryLevel: DefaultBatteryLevel,
	}
	return m.status
}

// Current returns the last refreshed status.
func (m *StatusMonitor) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
