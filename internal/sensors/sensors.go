// Package sensors simulates the vehicle's measurement hardware: an
// inertial unit (accelerometer, gyroscope, magnetometer) and a satellite
// positioning receiver whose quality degrades with geomagnetic risk.
//
// Every stochastic model draws from an injected Source so tests can pin
// a seed and replay identical measurement streams. Nothing here touches
// the global math/rand state.
package sensors

import "math/rand"

// Source yields uniform floats in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSeeded returns a deterministic Source for the given seed.
func NewSeeded(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// uniform draws from [lo, hi).
func uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// jitter draws symmetric noise from [-level, level).
func jitter(src Source, level float64) float64 {
	return (src.Float64()*2 - 1) * level
}

// Vec3 is a fixed three-axis measurement vector. Using a concrete type
// removes any runtime shape checking at the model boundaries.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// InertialMeasurement is one snapshot of the IMU outputs. Models do not
// retain measurements they produce.
type InertialMeasurement struct {
	Accel Vec3 `json:"accel"` // m/s², body frame
	Gyro  Vec3 `json:"gyro"`  // rad/s
	Mag   Vec3 `json:"mag"`   // unitless field direction
}
