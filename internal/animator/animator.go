// Package animator smooths displayed gauge values toward their telemetry
// targets.
package animator

import (
	"math"
	"sort"
	"sync"
)

const (
	// Gain is the fraction of the remaining distance covered per step.
	Gain = 0.1

	// SpeedEpsilon is the snap distance for speed-like values.
	SpeedEpsilon = 0.1
	// RPMEpsilon is the snap distance for rpm-like values.
	RPMEpsilon = 10
)

// Step moves current one step toward target, snapping once within epsilon.
func Step(current, target, epsilon float64) float64 {
	if math.Abs(target-current) < epsilon {
		return target
	}
	return current + (target-current)*Gain
}

// Animator holds the displayed value of one gauge.
type Animator struct {
	mu      sync.Mutex
	current float64
	epsilon float64
}

// New creates an animator starting at zero.
func New(epsilon float64) *Animator {
	return &Animator{epsilon: epsilon}
}

// Value returns the displayed value.
func (a *Animator) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Set jumps straight to v.
func (a *Animator) Set(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = v
}

// Advance performs one smoothing step toward target and returns the new value.
func (a *Animator) Advance(target float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = Step(a.current, target, a.epsilon)
	return a.current
}

// Arena owns one animator per mounted gauge.
type Arena struct {
	mu        sync.RWMutex
	animators map[string]*Animator
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{animators: make(map[string]*Animator)}
}

// Mount returns the animator for id, creating it if needed.
func (a *Arena) Mount(id string, epsilon float64) *Animator {
	a.mu.Lock()
	defer a.mu.Unlock()
	if an, ok := a.animators[id]; ok {
		return an
	}
	an := New(epsilon)
	a.animators[id] = an
	return an
}

// Unmount discards the animator for id.
func (a *Arena) Unmount(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.animators[id]; !ok {
		return false
	}
	delete(a.animators, id)
	return true
}

// Get looks up a mounted animator.
func (a *Arena) Get(id string) (*Animator, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	an, ok := a.animators[id]
	return an, ok
}

// Value returns the displayed value of id, or zero if it is not mounted.
func (a *Arena) Value(id string) float64 {
	if an, ok := a.Get(id); ok {
		return an.Value()
	}
	return 0
}

// IDs lists the mounted gauge ids in sorted order.
func (a *Arena) IDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.animators))
	for id := range a.animators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of mounted animators.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.animators)
}
