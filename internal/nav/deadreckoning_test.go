package nav

import (
	"math"
	"testing"
	"time"

	"github.com/varun99015/stellarroute/internal/sensors"
)

// cleanMeasurement builds a noiseless measurement with the magnetometer
// pointing along the given heading so the blend cannot pull it away.
func cleanMeasurement(accel sensors.Vec3, gyroZ, heading float64) sensors.InertialMeasurement {
	return sensors.InertialMeasurement{
		Accel: accel,
		Gyro:  sensors.Vec3{Z: gyroZ},
		Mag:   sensors.Vec3{X: math.Cos(heading), Y: math.Sin(heading)},
	}
}

func TestDeadReckonerConstantAcceleration(t *testing.T) {
	d := NewDeadReckoner(0, 0, 0)
	now := time.Unix(1800000000, 0)

	// First update only establishes the clock; nothing accelerates yet.
	d.Update(cleanMeasurement(sensors.Vec3{}, 0, 0), now)

	// Constant 1 m/s² along heading 0 for 10 s in 0.1 s steps. Position
	// integrates on the pre-update velocity, so the result matches the
	// closed form ½at² exactly, not just in the small-dt limit.
	const step = 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		now = now.Add(step)
		d.Update(cleanMeasurement(sensors.Vec3{X: 1}, 0, 0), now)
	}

	est := d.Estimate()
	want := 0.5 * 1.0 * 10 * 10
	if math.Abs(est.X-want) > 1e-9 {
		t.Errorf("X = %f, want %f", est.X, want)
	}
	if math.Abs(est.VX-10) > 1e-9 {
		t.Errorf("VX = %f, want 10", est.VX)
	}
	if math.Abs(est.Y) > 1e-9 || math.Abs(est.VY) > 1e-9 {
		t.Errorf("motion leaked off-axis: Y=%f VY=%f", est.Y, est.VY)
	}
}

func TestDeadReckonerHeadingIntegration(t *testing.T) {
	d := NewDeadReckoner(0, 0, 0)
	now := time.Unix(1800000000, 0)
	d.Update(cleanMeasurement(sensors.Vec3{}, 0, 0), now)

	// Rotate at 0.1 rad/s for 10 s with the magnetometer tracking the
	// expected heading, so the blend agrees with the gyro at every step.
	heading := 0.0
	for i := 0; i < 100; i++ {
		now = now.Add(100 * time.Millisecond)
		heading += 0.1 * 0.1
		d.Update(cleanMeasurement(sensors.Vec3{}, 0.1, heading), now)
	}
	if got := d.Estimate().Heading; math.Abs(got-1.0) > 1e-6 {
		t.Errorf("heading = %f, want 1.0", got)
	}
}

func TestDeadReckonerHeadingNormalized(t *testing.T) {
	// Start just under 2π and keep turning; the heading must wrap into
	// [0, 2π) rather than grow without bound.
	d := NewDeadReckoner(0, 0, 2*math.Pi-0.05)
	now := time.Unix(1800000000, 0)
	for i := 0; i < 20; i++ {
		now = now.Add(time.Second)
		h := d.Estimate().Heading
		d.Update(cleanMeasurement(sensors.Vec3{}, 0.1, h+0.1), now)
	}
	h := d.Estimate().Heading
	if h < 0 || h >= 2*math.Pi {
		t.Errorf("heading %f outside [0, 2π)", h)
	}
}

func TestDeadReckonerDtClamped(t *testing.T) {
	d := NewDeadReckoner(0, 0, 0)
	now := time.Unix(1800000000, 0)
	d.Update(cleanMeasurement(sensors.Vec3{}, 0, 0), now)

	// A one-hour gap must integrate as the 1 s clamp, not 3600 s.
	d.Update(cleanMeasurement(sensors.Vec3{X: 1}, 0, 0), now.Add(time.Hour))
	if vx := d.Estimate().VX; math.Abs(vx-1.0) > 1e-9 {
		t.Errorf("VX after clamped gap = %f, want 1.0", vx)
	}

	// Same-timestamp updates clamp up to the minimum step instead of
	// freezing the integrators.
	before := d.Estimate().VX
	d.Update(cleanMeasurement(sensors.Vec3{X: 1}, 0, 0), now.Add(time.Hour))
	if after := d.Estimate().VX; after <= before {
		t.Errorf("VX did not advance on zero-gap update: %f -> %f", before, after)
	}
}
