package nav

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/sensors"
)

// FilterMode selects the blending strategy the estimator runs while a
// fix is available.
type FilterMode string

const (
	FilterComplementary FilterMode = "complementary"
	FilterKalman        FilterMode = "kalman"
)

// EstimatorMode reports what the estimator is currently doing.
type EstimatorMode string

const (
	ModeLocked   EstimatorMode = "locked"   // GPS available, filter running
	ModeCoasting EstimatorMode = "coasting" // no fix, dead reckoning carries
	ModeResync   EstimatorMode = "resync"   // fix reacquired this tick
)

var (
	ErrBadAlpha      = errors.New("nav: alpha must be in [0,1]")
	ErrBadFilterMode = errors.New("nav: unknown filter mode")
)

// FusionConfig tunes the estimator. Zero values are not usable; start
// from DefaultFusionConfig.
type FusionConfig struct {
	Mode FilterMode

	// Complementary filter: weight on the dead-reckoning estimate.
	// When the fix reports accuracy better than GoodAccuracy, the
	// weight drops to AlphaFloor so the cleaner GPS dominates.
	Alpha        float64
	AlphaFloor   float64
	GoodAccuracy float64 // meters

	// Kalman filter noise (diagonal, position/velocity split).
	ProcessNoisePos float64
	ProcessNoiseVel float64
	MeasureNoisePos float64
	MeasureNoiseVel float64

	// Coasting and reacquisition behavior.
	CoastWeight     float64       // trust in the dead-reckoning delta while coasting
	ResyncThreshold float64       // meters; beyond this a reacquired fix snaps
	ResyncBlend     float64       // blend factor for small reacquisition discrepancies
	MaxOutage       time.Duration // degraded warning after coasting this long
}

// DefaultFusionConfig returns the tuning used by the simulator.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Mode:            FilterComplementary,
		Alpha:           0.98,
		AlphaFloor:      0.7,
		GoodAccuracy:    10,
		ProcessNoisePos: 0.5,
		ProcessNoiseVel: 0.1,
		MeasureNoisePos: 25,
		MeasureNoiseVel: 4,
		CoastWeight:     0.95,
		ResyncThreshold: 50,
		ResyncBlend:     0.3,
		MaxOutage:       30 * time.Second,
	}
}

// Validate rejects tunings the filters cannot run with.
func (c FusionConfig) Validate() error {
	switch c.Mode {
	case FilterComplementary, FilterKalman:
	default:
		return fmt.Errorf("%w: %q", ErrBadFilterMode, c.Mode)
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("%w: alpha %f", ErrBadAlpha, c.Alpha)
	}
	if c.AlphaFloor < 0 || c.AlphaFloor > 1 {
		return fmt.Errorf("%w: floor %f", ErrBadAlpha, c.AlphaFloor)
	}
	if c.ResyncBlend < 0 || c.ResyncBlend > 1 {
		return fmt.Errorf("%w: resync blend %f", ErrBadAlpha, c.ResyncBlend)
	}
	if c.ResyncThreshold < 0 {
		return fmt.Errorf("nav: resync threshold must be non-negative, got %f", c.ResyncThreshold)
	}
	return nil
}

// State is the fused navigation output after a tick.
type State struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	Heading float64 `json:"heading"`

	Mode      EstimatorMode `json:"mode"`
	GPSActive bool          `json:"gps_active"`
	Degraded  bool          `json:"degraded"` // coasting past the outage budget
	Resyncs   int           `json:"resyncs"`
	Ticks     int           `json:"ticks"`
	GPSTicks  int           `json:"gps_ticks"`
	OutageFor time.Duration `json:"outage_for"`
}

// Estimator fuses dead-reckoning estimates with GPS fixes. It is not
// safe for concurrent use; each simulated vehicle owns one.
type Estimator struct {
	cfg   FusionConfig
	state State

	// Kalman state: [x, y, vx, vy] with a diagonal covariance. The
	// axes are decoupled, so each component updates independently with
	// the scalar gain P/(P+R).
	kx [4]float64
	kp [4]float64

	prevDR      Estimate
	havePrevDR  bool
	lastTick    time.Time
	haveTick    bool
	outageStart time.Time
	warned      bool
}

// NewEstimator validates the config and seeds the estimator at a known
// position and heading.
func NewEstimator(cfg FusionConfig, x, y, heading float64) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{
		cfg: cfg,
		state: State{
			X:         x,
			Y:         y,
			Heading:   normalizeHeading(heading),
			Mode:      ModeLocked,
			GPSActive: true,
		},
		kx: [4]float64{x, y, 0, 0},
		kp: [4]float64{1, 1, 1, 1},
	}
	return e, nil
}

// State snapshots the current fused output.
func (e *Estimator) State() State { return e.state }

// Tick advances the estimator by one step. dr is the dead reckoner's
// current estimate; fix is nil when no usable GPS fix exists this tick.
// A non-finite dead-reckoning estimate is dropped rather than folded in,
// so a diverged integrator cannot corrupt the fused state.
func (e *Estimator) Tick(dr Estimate, fix *sensors.Fix, now time.Time) State {
	e.state.Ticks++

	if !finite(dr.X) || !finite(dr.Y) || !finite(dr.VX) || !finite(dr.VY) {
		monitoring.Logf("nav: dropping non-finite dead-reckoning estimate at tick %d", e.state.Ticks)
		e.advanceClock(now)
		return e.state
	}

	dt := e.advanceClock(now)
	drDX, drDY := 0.0, 0.0
	if e.havePrevDR {
		drDX = dr.X - e.prevDR.X
		drDY = dr.Y - e.prevDR.Y
	}
	e.prevDR = dr
	e.havePrevDR = true
	e.state.Heading = dr.Heading

	switch {
	case fix == nil:
		e.coast(drDX, drDY, dr, now)
	case !e.state.GPSActive:
		e.resync(dr, *fix)
	default:
		e.locked(dr, *fix, dt)
	}
	return e.state
}

func (e *Estimator) advanceClock(now time.Time) float64 {
	dt := firstDt
	if e.haveTick {
		dt = now.Sub(e.lastTick).Seconds()
		if dt < minDt {
			dt = minDt
		} else if dt > maxDt {
			dt = maxDt
		}
	}
	e.haveTick = true
	e.lastTick = now
	return dt
}

// coast carries the position on the dead-reckoning delta while no fix
// is available.
func (e *Estimator) coast(drDX, drDY float64, dr Estimate, now time.Time) {
	if e.state.GPSActive {
		e.state.GPSActive = false
		e.outageStart = now
		e.warned = false
	}
	e.state.Mode = ModeCoasting
	e.state.X += e.cfg.CoastWeight * drDX
	e.state.Y += e.cfg.CoastWeight * drDY
	e.state.VX = dr.VX
	e.state.VY = dr.VY
	e.syncKalman()

	e.state.OutageFor = now.Sub(e.outageStart)
	if e.state.OutageFor > e.cfg.MaxOutage {
		e.state.Degraded = true
		if !e.warned {
			monitoring.Logf("nav: GPS outage exceeded %s, position is dead-reckoning only", e.cfg.MaxOutage)
			e.warned = true
		}
	}
}

// resync handles the first fix after an outage. A fix far from the
// dead-reckoning estimate means the coasted position has diverged and
// continuity is worth less than correctness: snap to the fix. A nearby
// fix is blended in gently.
func (e *Estimator) resync(dr Estimate, fix sensors.Fix) {
	disc := math.Hypot(dr.X-fix.X, dr.Y-fix.Y)
	if disc > e.cfg.ResyncThreshold {
		e.state.X = fix.X
		e.state.Y = fix.Y
		e.state.Resyncs++
	} else {
		e.state.X += e.cfg.ResyncBlend * (fix.X - e.state.X)
		e.state.Y += e.cfg.ResyncBlend * (fix.Y - e.state.Y)
	}
	e.state.VX = dr.VX
	e.state.VY = dr.VY
	e.state.Mode = ModeResync
	e.state.GPSActive = true
	e.state.Degraded = false
	e.state.OutageFor = 0
	e.state.GPSTicks++
	e.warned = false
	e.syncKalman()
}

// locked runs the configured filter with both sources available.
func (e *Estimator) locked(dr Estimate, fix sensors.Fix, dt float64) {
	e.state.Mode = ModeLocked
	e.state.GPSActive = true
	e.state.GPSTicks++

	switch e.cfg.Mode {
	case FilterKalman:
		e.kalmanStep(dr, fix, dt)
	default:
		e.complementaryStep(dr, fix)
	}
}

// complementaryStep is a single-pole blend: mostly dead reckoning, a
// trickle of GPS. When the receiver reports good accuracy the GPS share
// grows (alpha drops to its floor).
func (e *Estimator) complementaryStep(dr Estimate, fix sensors.Fix) {
	alpha := e.cfg.Alpha
	if fix.Accuracy > 0 && fix.Accuracy < e.cfg.GoodAccuracy {
		alpha = e.cfg.AlphaFloor
	}
	e.state.X = alpha*dr.X + (1-alpha)*fix.X
	e.state.Y = alpha*dr.Y + (1-alpha)*fix.Y
	e.state.VX = dr.VX
	e.state.VY = dr.VY
	e.syncKalman()
}

// kalmanStep predicts with the constant-velocity model and corrects
// position from the fix and velocity from the dead reckoner. Covariance
// is kept diagonal, so the update is four independent scalar filters.
func (e *Estimator) kalmanStep(dr Estimate, fix sensors.Fix, dt float64) {
	// Predict.
	e.kx[0] += e.kx[2] * dt
	e.kx[1] += e.kx[3] * dt
	e.kp[0] += e.cfg.ProcessNoisePos * dt
	e.kp[1] += e.cfg.ProcessNoisePos * dt
	e.kp[2] += e.cfg.ProcessNoiseVel * dt
	e.kp[3] += e.cfg.ProcessNoiseVel * dt

	// Update, per axis.
	meas := [4]float64{fix.X, fix.Y, dr.VX, dr.VY}
	noise := [4]float64{e.cfg.MeasureNoisePos, e.cfg.MeasureNoisePos, e.cfg.MeasureNoiseVel, e.cfg.MeasureNoiseVel}
	for i := 0; i < 4; i++ {
		k := e.kp[i] / (e.kp[i] + noise[i])
		e.kx[i] += k * (meas[i] - e.kx[i])
		e.kp[i] *= 1 - k
	}

	e.state.X = e.kx[0]
	e.state.Y = e.kx[1]
	e.state.VX = e.kx[2]
	e.state.VY = e.kx[3]
}

// syncKalman keeps the filter state aligned with the fused output so a
// mode switch does not re-fight a stale prediction.
func (e *Estimator) syncKalman() {
	e.kx[0] = e.state.X
	e.kx[1] = e.state.Y
	e.kx[2] = e.state.VX
	e.kx[3] = e.state.VY
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
