// Package warning re-rolls the simulated warnings shown on the cluster.
package warning

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Severity of a warning.
type Severity string

const (
	Info   Severity = "info"
	Warn   Severity = "warning"
	Danger Severity = "danger"
)

// ParseSeverity validates a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(s)) {
	case Info:
		return Info, nil
	case Warn:
		return Warn, nil
	case Danger:
		return Danger, nil
	}
	return "", fmt.Errorf("unknown severity: %q", s)
}

// Warning is one candidate alert.
type Warning struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Active      bool      `json:"active"`
	Timestamp   time.Time `json:"timestamp"`
}

// ActivationThreshold is the draw a candidate must exceed to become active.
const ActivationThreshold = 0.7

// DefaultPool is the fixed set of candidate warnings.
var DefaultPool = []Warning{
	{ID: 1, Title: "Low fuel", Description: "Fuel level is below the reserve mark", Severity: Danger},
	{ID: 2, Title: "Engine overheating", Description: "Coolant temperature is above the safe range", Severity: Danger},
	{ID: 3, Title: "Low tire pressure", Description: "Check the rear tire pressure", Severity: Info},
}

// Generator keeps the active subset of a static pool.
type Generator struct {
	mu     sync.Mutex
	pool   []Warning
	active []Warning
	rng    *rand.Rand
	clock  func() time.Time
}

// NewGenerator creates a generator over pool with nothing active.
func NewGenerator(pool []Warning, rng *rand.Rand, clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{
		pool:  append([]Warning(nil), pool...),
		rng:   rng,
		clock: clock,
	}
}

// Reroll draws a fresh active set. Earlier dismissals are forgotten.
func (g *Generator) Reroll() []Warning {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.active = g.active[:0]
	for _, w := range g.pool {
		if g.rng.Float64() > ActivationThreshold {
			w.Active = true
			w.Timestamp = now
			g.active = append(g.active, w)
		}
	}
	return append([]Warning(nil), g.active...)
}

// Dismiss removes id from the active set until the next Reroll.
func (g *Generator) Dismiss(id int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, w := range g.active {
		if w.ID == id {
			g.active = append(g.active[:i], g.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the active warnings in pool order.
func (g *Generator) Active() []Warning {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Warning(nil), g.active...)
}

// Pool returns the candidate list.
func (g *Generator) Pool() []Warning {
	return append([]Warning(nil), g.pool...)
}
