package telemetry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Observer receives the record produced by each tick.
type Observer func(Record)

// Simulator owns the live telemetry record. All mutation happens under a
// single mutex and readers only ever see copies.
type Simulator struct {
	mu        sync.Mutex
	record    Record
	rng       *rand.Rand
	clock     func() time.Time
	observers []Observer
}

// NewSimulator creates a simulator seeded with the initial record.
// A nil clock defaults to time.Now.
func NewSimulator(rng *rand.Rand, clock func() time.Time) *Simulator {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		record: InitialRecord(clock()),
		rng:    rng,
		clock:  clock,
	}
}

// Observe registers a callback invoked after every tick.
func (s *Simulator) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Snapshot returns a copy of the current record.
func (s *Simulator) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Tick re-randomizes the record and returns the new snapshot.
func (s *Simulator) Tick() Record {
	s.mu.Lock()
	r := &s.record
	u := s.rng.Float64

	r.Speed = math.Floor(u() * 181)
	r.RPM = math.Floor(u() * 12001)

	if u() > 0.8 {
		r.Power = -roundTo(u()*10, 1)
	} else {
		r.Power = math.Round(r.Speed * (0.5 + u()*0.5))
	}
	// a zero regen draw is not braking
	r.RegenBraking = r.Power < 0

	r.Gear = DeriveGear(r.Speed)
	r.FuelLevel = int(math.Floor(u() * 101))
	r.TripDistance = roundTo(math.Max(0, r.TripDistance+(u()*0.6-0.3)), 2)
	r.FuelRange = roundTo(r.FuelRange-r.Speed/1000, 2)
	r.Temperature = roundTo(25+u()*50, 1)

	r.LeftIndicator = u() > 0.5
	r.RightIndicator = u() > 0.5
	r.HighBeamOn = u() > 0.8

	r.DrivingMode = r.DrivingMode.Next()
	r.Timestamp = s.clock()

	snap := *r
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
	return snap
}

// ResetTrip zeroes the trip distance.
func (s *Simulator) ResetTrip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.TripDistance = 0
}

// ToggleHighBeam flips the high beam.
func (s *Simulator) ToggleHighBeam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.HighBeamOn = !s.record.HighBeamOn
}

// ToggleDrivingMode advances the driving mode one step. It composes with the
// advance performed by Tick.
func (s *Simulator) ToggleDrivingMode() DrivingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.DrivingMode = s.record.DrivingMode.Next()
	return s.record.DrivingMode
}
