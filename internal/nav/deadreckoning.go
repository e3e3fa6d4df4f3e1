// Package nav estimates the vehicle's position under degrading satellite
// conditions: a dead-reckoning integrator over inertial measurements and
// a fusion estimator that blends it with intermittent GPS fixes.
package nav

import (
	"math"
	"time"

	"github.com/varun99015/stellarroute/internal/sensors"
)

// Integration constants. dt is clamped so a stalled or glitched clock
// can never explode the integrators; the first sample has no delta to
// measure and uses a small fixed step.
const (
	minDt   = 0.001
	maxDt   = 1.0
	firstDt = 0.01

	gyroHeadingWeight = 0.98
	magHeadingWeight  = 0.02
)

// normalizeHeading maps an angle to [0, 2π).
func normalizeHeading(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}

// wrapPi maps an angle difference to (-π, π].
func wrapPi(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// DeadReckoner integrates inertial measurements into a position,
// velocity, and heading estimate. Heading is 2D only: pitch and roll are
// not modeled, so body-frame acceleration is rotated into the world
// frame by heading alone.
type DeadReckoner struct {
	x, y       float64
	vx, vy     float64
	heading    float64
	lastUpdate time.Time
	started    bool
}

// Estimate is the dead reckoner's current output.
type Estimate struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	Heading float64 `json:"heading"` // radians, [0, 2π)
}

// NewDeadReckoner starts the integrator at a known position and heading.
func NewDeadReckoner(x, y, heading float64) *DeadReckoner {
	return &DeadReckoner{x: x, y: y, heading: normalizeHeading(heading)}
}

// Estimate snapshots the current state.
func (d *DeadReckoner) Estimate() Estimate {
	return Estimate{X: d.x, Y: d.y, VX: d.vx, VY: d.vy, Heading: d.heading}
}

// Update integrates one inertial measurement taken at the given time.
//
// The heading blends the gyro-integrated angle (weight 0.98) with the
// magnetometer-derived angle (weight 0.02); the blend is applied to the
// wrapped angular difference so headings near 0/2π do not average
// through the wrong half of the circle. Position advances on the
// pre-update velocity plus the ½at² term, which integrates a constant
// acceleration exactly.
func (d *DeadReckoner) Update(m sensors.InertialMeasurement, now time.Time) Estimate {
	dt := firstDt
	if d.started {
		dt = now.Sub(d.lastUpdate).Seconds()
		if dt < minDt {
			dt = minDt
		} else if dt > maxDt {
			dt = maxDt
		}
	}
	d.started = true
	d.lastUpdate = now

	// Heading: gyro short-term, magnetometer long-term.
	gyroHeading := d.heading + m.Gyro.Z*dt
	magHeading := math.Atan2(m.Mag.Y, m.Mag.X)
	d.heading = normalizeHeading(gyroHeading*gyroHeadingWeight + (gyroHeading+wrapPi(magHeading-gyroHeading))*magHeadingWeight)

	// Rotate body-frame acceleration into the world frame.
	sin, cos := math.Sincos(d.heading)
	ax := m.Accel.X*cos - m.Accel.Y*sin
	ay := m.Accel.X*sin + m.Accel.Y*cos

	// Position first (pre-update velocity), then velocity.
	d.x += d.vx*dt + 0.5*ax*dt*dt
	d.y += d.vy*dt + 0.5*ay*dt*dt
	d.vx += ax * dt
	d.vy += ay * dt

	return d.Estimate()
}
