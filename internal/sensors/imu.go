package sensors

import (
	"errors"
	"fmt"
	"math"

	"github.com/varun99015/stellarroute/internal/terrain"
)

// ErrNonPositiveDt rejects zero or negative integration intervals at the
// gyroscope boundary.
var ErrNonPositiveDt = errors.New("sensors: dt must be positive")

// IMUNoise holds the per-risk-level noise scales for the inertial models.
type IMUNoise struct {
	AccelNoise float64 // uniform noise bound per axis, m/s²
	AccelBias  float64 // lifetime bias bound, m/s²
	GyroWalk   float64 // random-walk step bound per √s, rad/s
	GyroBias   float64 // lifetime bias bound, rad/s
	MagNoise   float64 // uniform noise bound per axis
}

// imuNoiseLevels maps risk level to noise scales. Storm-time field
// disturbances hit the magnetometer hardest.
var imuNoiseLevels = map[terrain.RiskLevel]IMUNoise{
	terrain.RiskLow:    {AccelNoise: 0.05, AccelBias: 0.02, GyroWalk: 0.001, GyroBias: 0.002, MagNoise: 0.02},
	terrain.RiskMedium: {AccelNoise: 0.15, AccelBias: 0.02, GyroWalk: 0.005, GyroBias: 0.002, MagNoise: 0.10},
	terrain.RiskHigh:   {AccelNoise: 0.40, AccelBias: 0.02, GyroWalk: 0.020, GyroBias: 0.002, MagNoise: 0.30},
}

// NoiseForLevel returns the IMU noise scales for a risk level, defaulting
// to the low-risk profile for unknown levels.
func NoiseForLevel(level terrain.RiskLevel) IMUNoise {
	if n, ok := imuNoiseLevels[level]; ok {
		return n
	}
	return imuNoiseLevels[terrain.RiskLow]
}

// Accelerometer measures body-frame acceleration with a lifetime bias
// shared across axes plus independent uniform noise per axis.
type Accelerometer struct {
	src   Source
	noise IMUNoise
	bias  float64 // drawn once at construction
}

// NewAccelerometer draws the lifetime bias and fixes it.
func NewAccelerometer(level terrain.RiskLevel, src Source) *Accelerometer {
	n := NoiseForLevel(level)
	return &Accelerometer{src: src, noise: n, bias: jitter(src, n.AccelBias)}
}

// SetRiskLevel switches the noise profile. The bias is a hardware
// property and survives the switch.
func (a *Accelerometer) SetRiskLevel(level terrain.RiskLevel) {
	a.noise = NoiseForLevel(level)
}

// Measure returns the true acceleration corrupted by bias and noise.
func (a *Accelerometer) Measure(truth Vec3) Vec3 {
	return Vec3{
		X: truth.X + a.bias + jitter(a.src, a.noise.AccelNoise),
		Y: truth.Y + a.bias + jitter(a.src, a.noise.AccelNoise),
		Z: truth.Z + a.bias + jitter(a.src, a.noise.AccelNoise),
	}
}

// Gyroscope measures angular velocity with a lifetime bias and an
// integrated random walk. The walk accumulator advances by noise scaled
// with √dt on every call and is never implicitly reset; that is the
// physically correct model of integrated gyro drift.
type Gyroscope struct {
	src   Source
	noise IMUNoise
	bias  float64
	walk  Vec3 // persistent random-walk state
}

// NewGyroscope draws the lifetime bias and fixes it.
func NewGyroscope(level terrain.RiskLevel, src Source) *Gyroscope {
	n := NoiseForLevel(level)
	return &Gyroscope{src: src, noise: n, bias: jitter(src, n.GyroBias)}
}

// SetRiskLevel switches the noise profile without touching the bias or
// the accumulated walk.
func (g *Gyroscope) SetRiskLevel(level terrain.RiskLevel) {
	g.noise = NoiseForLevel(level)
}

// Walk exposes the accumulated random-walk state for diagnostics.
func (g *Gyroscope) Walk() Vec3 { return g.walk }

// Measure returns the true angular velocity corrupted by bias and the
// advanced random walk. dt is the interval since the previous sample.
func (g *Gyroscope) Measure(truth Vec3, dt float64) (Vec3, error) {
	if dt <= 0 {
		return Vec3{}, fmt.Errorf("%w: got %f", ErrNonPositiveDt, dt)
	}
	scale := math.Sqrt(dt)
	g.walk.X += jitter(g.src, g.noise.GyroWalk) * scale
	g.walk.Y += jitter(g.src, g.noise.GyroWalk) * scale
	g.walk.Z += jitter(g.src, g.noise.GyroWalk) * scale
	return Vec3{
		X: truth.X + g.bias + g.walk.X,
		Y: truth.Y + g.bias + g.walk.Y,
		Z: truth.Z + g.bias + g.walk.Z,
	}, nil
}

// Magnetometer measures the field with a fixed scale factor (within
// ±10% of unity), a fixed hard-iron offset, and per-call noise.
type Magnetometer struct {
	src    Source
	noise  IMUNoise
	scale  float64
	offset Vec3
}

// NewMagnetometer draws the scale and offset and fixes them.
func NewMagnetometer(level terrain.RiskLevel, src Source) *Magnetometer {
	n := NoiseForLevel(level)
	return &Magnetometer{
		src:   src,
		noise: n,
		scale: 1 + jitter(src, 0.1),
		offset: Vec3{
			X: jitter(src, 0.05),
			Y: jitter(src, 0.05),
			Z: jitter(src, 0.05),
		},
	}
}

// SetRiskLevel switches the noise profile; scale and offset are fixed
// calibration errors and survive.
func (m *Magnetometer) SetRiskLevel(level terrain.RiskLevel) {
	m.noise = NoiseForLevel(level)
}

// Measure returns the true field distorted by scale, offset, and noise.
func (m *Magnetometer) Measure(truth Vec3) Vec3 {
	return Vec3{
		X: truth.X*m.scale + m.offset.X + jitter(m.src, m.noise.MagNoise),
		Y: truth.Y*m.scale + m.offset.Y + jitter(m.src, m.noise.MagNoise),
		Z: truth.Z*m.scale + m.offset.Z + jitter(m.src, m.noise.MagNoise),
	}
}

// IMU bundles the three inertial models behind one sampling call.
type IMU struct {
	Accel *Accelerometer
	Gyro  *Gyroscope
	Mag   *Magnetometer
}

// NewIMU constructs the three models over a shared source.
func NewIMU(level terrain.RiskLevel, src Source) *IMU {
	return &IMU{
		Accel: NewAccelerometer(level, src),
		Gyro:  NewGyroscope(level, src),
		Mag:   NewMagnetometer(level, src),
	}
}

// SetRiskLevel switches all three noise profiles.
func (u *IMU) SetRiskLevel(level terrain.RiskLevel) {
	u.Accel.SetRiskLevel(level)
	u.Gyro.SetRiskLevel(level)
	u.Mag.SetRiskLevel(level)
}

// Sample measures all three sensors against ground truth.
func (u *IMU) Sample(accel, gyro, mag Vec3, dt float64) (InertialMeasurement, error) {
	g, err := u.Gyro.Measure(gyro, dt)
	if err != nil {
		return InertialMeasurement{}, err
	}
	return InertialMeasurement{
		Accel: u.Accel.Measure(accel),
		Gyro:  g,
		Mag:   u.Mag.Measure(mag),
	}, nil
}
