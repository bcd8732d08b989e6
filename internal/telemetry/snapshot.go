package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// RandomSnapshot produces an independent one-shot record, as served by the
// HTTP API. It shares no state with any Simulator.
func RandomSnapshot(rng *rand.Rand, now time.Time) Record {
	u := rng.Float64

	speed := u() * 120
	left := u() > 0.8
	right := !left && u() > 0.8
	headlight := u() > 0.3
	highBeam := headlight && u() > 0.7
	regen := u() > 0.7

	var power float64
	if regen {
		power = -(u()*15 + 5)
	} else {
		power = u()*40 + 10
	}

	return Record{
		Speed:          speed,
		RPM:            1000 + u()*8000,
		Gear:           DeriveGear(speed),
		Power:          power,
		DrivingMode:    Modes[rng.Intn(len(Modes))],
		FuelLevel:      int(math.Floor(u() * 100)),
		FuelRange:      180 + math.Floor(u()*50),
		Temperature:    15 + math.Floor(u()*20),
		TripDistance:   234.5 + u()*2,
		Odometer:       12457 + u()*10,
		LeftIndicator:  left,
		RightIndicator: right,
		HighBeamOn:     highBeam,
		HeadlightOn:    headlight,
		RegenBraking:   regen,
		Timestamp:      now,
	}
}
