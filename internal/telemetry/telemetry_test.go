package telemetry

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestSimulator(seed int64) *Simulator {
	return NewSimulator(rand.New(rand.NewSource(seed)), func() time.Time { return fixedNow })
}

func TestDeriveGear(t *testing.T) {
	tests := []struct {
		speed float64
		want  int
	}{
		{0, 1},
		{9.9, 1},
		{10, 2},
		{29, 2},
		{30, 3},
		{45, 3},
		{50, 4},
		{79, 4},
		{80, 5},
		{109, 5},
		{110, 6},
		{115, 6},
		{180, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveGear(tt.speed), "speed %v", tt.speed)
	}
}

func TestDeriveGear_Monotonic(t *testing.T) {
	prev := DeriveGear(0)
	for s := 0.0; s <= 180; s += 0.5 {
		g := DeriveGear(s)
		assert.GreaterOrEqual(t, g, prev)
		assert.True(t, g >= 1 && g <= 6)
		prev = g
	}
}

func TestDrivingMode_Cycle(t *testing.T) {
	assert.Equal(t, Normal, Eco.Next())
	assert.Equal(t, Sport, Normal.Next())
	assert.Equal(t, Eco, Sport.Next())
}

func TestDrivingMode_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Mode DrivingMode `json:"mode"`
	}{Sport})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"sport"}`, string(data))

	var out struct {
		Mode DrivingMode `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"Eco"}`), &out))
	assert.Equal(t, Eco, out.Mode)

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"turbo"}`), &out))
}

func TestNewSimulator_InitialRecord(t *testing.T) {
	s := newTestSimulator(1)
	r := s.Snapshot()

	assert.Equal(t, 1, r.Gear)
	assert.Equal(t, Normal, r.DrivingMode)
	assert.Equal(t, 68, r.FuelLevel)
	assert.Equal(t, 215.0, r.FuelRange)
	assert.Equal(t, 234.5, r.TripDistance)
	assert.Equal(t, 12457.0, r.Odometer)
	assert.True(t, r.HeadlightOn)
	assert.False(t, r.HighBeamOn)
	assert.Equal(t, fixedNow, r.Timestamp)
}

func TestTick_HoldsRules(t *testing.T) {
	s := newTestSimulator(42)

	for i := 0; i < 500; i++ {
		r := s.Tick()
		assert.True(t, r.Speed >= 0 && r.Speed <= 180, "speed %v", r.Speed)
		assert.True(t, r.RPM >= 0 && r.RPM <= 12000, "rpm %v", r.RPM)
		assert.Equal(t, DeriveGear(r.Speed), r.Gear)
		assert.Equal(t, r.Power < 0, r.RegenBraking)
		if r.Power < 0 {
			assert.GreaterOrEqual(t, r.Power, -10.0)
		}
		assert.True(t, r.FuelLevel >= 0 && r.FuelLevel <= 100)
		assert.GreaterOrEqual(t, r.TripDistance, 0.0)
		assert.True(t, r.Temperature >= 25 && r.Temperature <= 75)
		assert.Equal(t, fixedNow, r.Timestamp)
	}
}

func TestTick_AdvancesModeEachTick(t *testing.T) {
	s := newTestSimulator(7)
	start := s.Snapshot().DrivingMode

	assert.Equal(t, start.Next(), s.Tick().DrivingMode)
	assert.Equal(t, start.Next().Next(), s.Tick().DrivingMode)
	assert.Equal(t, start, s.Tick().DrivingMode)
}

func TestTick_FuelRangeDecreasesBySpeed(t *testing.T) {
	s := newTestSimulator(3)
	before := s.Snapshot().FuelRange
	r := s.Tick()
	assert.InDelta(t, before-r.Speed/1000, r.FuelRange, 0.006)
}

func TestTick_NotifiesObservers(t *testing.T) {
	s := newTestSimulator(5)
	var got []Record
	s.Observe(func(r Record) { got = append(got, r) })

	r1 := s.Tick()
	r2 := s.Tick()

	require.Len(t, got, 2)
	assert.Equal(t, r1, got[0])
	assert.Equal(t, r2, got[1])
}

func TestResetTrip_Idempotent(t *testing.T) {
	s := newTestSimulator(9)
	s.Tick()

	s.ResetTrip()
	assert.Equal(t, 0.0, s.Snapshot().TripDistance)
	s.ResetTrip()
	assert.Equal(t, 0.0, s.Snapshot().TripDistance)
}

func TestToggleHighBeam(t *testing.T) {
	s := newTestSimulator(9)
	before := s.Snapshot().HighBeamOn

	s.ToggleHighBeam()
	assert.Equal(t, !before, s.Snapshot().HighBeamOn)
	s.ToggleHighBeam()
	assert.Equal(t, before, s.Snapshot().HighBeamOn)
}

func TestToggleDrivingMode_CycleLengthThree(t *testing.T) {
	s := newTestSimulator(9)
	start := s.Snapshot().DrivingMode

	s.ToggleDrivingMode()
	s.ToggleDrivingMode()
	s.ToggleDrivingMode()

	assert.Equal(t, start, s.Snapshot().DrivingMode)
}

func TestSimulator_ConcurrentMutators(t *testing.T) {
	s := newTestSimulator(11)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Tick()
				s.ToggleHighBeam()
				s.ToggleDrivingMode()
				s.ResetTrip()
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	r := s.Snapshot()
	assert.Equal(t, DeriveGear(r.Speed), r.Gear)
}

func TestRandomSnapshot_Ranges(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		r := RandomSnapshot(rng, fixedNow)
		assert.True(t, r.Speed >= 0 && r.Speed < 120)
		assert.True(t, r.RPM >= 1000 && r.RPM < 9000)
		assert.Equal(t, DeriveGear(r.Speed), r.Gear)
		assert.True(t, r.Temperature >= 15 && r.Temperature < 35)
		assert.True(t, r.FuelRange >= 180 && r.FuelRange < 230)
		assert.Equal(t, r.Power < 0, r.RegenBraking)
		assert.False(t, r.LeftIndicator && r.RightIndicator)
		if r.HighBeamOn {
			assert.True(t, r.HeadlightOn)
		}
	}
}

func TestStatusMonitor_Refresh(t *testing.T) {
	m := NewStatusMonitor(rand.New(rand.NewSource(1)), func() time.Time { return fixedNow })
	st := m.Current()

	assert.Equal(t, "09:30", st.Time)
	assert.Equal(t, DefaultBatteryLevel, st.BatteryLevel)
	assert.Equal(t, st, m.Current())
}
