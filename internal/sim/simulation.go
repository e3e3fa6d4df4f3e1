package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/nav"
	"github.com/varun99015/stellarroute/internal/sensors"
	"github.com/varun99015/stellarroute/internal/terrain"
	"github.com/varun99015/stellarroute/internal/timeutil"
)

var (
	ErrEmptyPath    = errors.New("sim: path is empty")
	ErrBadRunConfig = errors.New("sim: invalid run config")
	ErrTooManyTicks = errors.New("sim: run exceeds max ticks")
)

// RunConfig tunes one simulation run.
type RunConfig struct {
	Scenario     Scenario
	Seed         int64
	Speed        float64 // meters per second along the route
	CellSize     float64 // meters per grid cell
	TickSeconds  float64 // simulated seconds per tick
	TicksPerHour int     // storm timeline resolution
	MaxTicks     int     // hard cap on run length
	SettleTicks  int     // extra ticks after arrival, lets the filter settle
	Fusion       nav.FusionConfig
	GPS          sensors.GPSConfig
}

// DefaultRunConfig returns the tuning used unless a request overrides it.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Scenario:     ScenarioModerate,
		Seed:         1,
		Speed:        15,
		CellSize:     10,
		TickSeconds:  1,
		TicksPerHour: 60,
		MaxTicks:     100000,
		SettleTicks:  5,
		Fusion:       nav.DefaultFusionConfig(),
		GPS:          sensors.DefaultGPSConfig(),
	}
}

// Validate rejects configs the run loop cannot execute.
func (c RunConfig) Validate() error {
	if !ValidScenario(c.Scenario) {
		return fmt.Errorf("%w: unknown scenario %q", ErrBadRunConfig, c.Scenario)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("%w: speed %f", ErrBadRunConfig, c.Speed)
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("%w: cell size %f", ErrBadRunConfig, c.CellSize)
	}
	if c.TickSeconds <= 0 {
		return fmt.Errorf("%w: tick seconds %f", ErrBadRunConfig, c.TickSeconds)
	}
	if c.TicksPerHour <= 0 {
		return fmt.Errorf("%w: ticks per hour %d", ErrBadRunConfig, c.TicksPerHour)
	}
	if c.MaxTicks <= 0 {
		return fmt.Errorf("%w: max ticks %d", ErrBadRunConfig, c.MaxTicks)
	}
	return c.Fusion.Validate()
}

// TickRecord is one tick of a run: where the vehicle actually was,
// where the estimator thought it was, and the sky conditions.
type TickRecord struct {
	Tick   int               `json:"tick"`
	TruthX float64           `json:"truth_x"`
	TruthY float64           `json:"truth_y"`
	EstX   float64           `json:"est_x"`
	EstY   float64           `json:"est_y"`
	Error  float64           `json:"error"`
	FixOK  bool              `json:"fix_ok"`
	Mode   nav.EstimatorMode `json:"mode"`
	Kp     float64           `json:"kp"`
	Phase  Phase             `json:"phase"`
	Level  terrain.RiskLevel `json:"level"`
}

// RunStats summarizes estimator performance over a run.
type RunStats struct {
	Ticks           int     `json:"ticks"`
	MeanError       float64 `json:"mean_error"`
	MedianError     float64 `json:"median_error"`
	P95Error        float64 `json:"p95_error"`
	MaxError        float64 `json:"max_error"`
	GPSAvailability float64 `json:"gps_availability"` // fraction of ticks with a usable fix
	Resyncs         int     `json:"resyncs"`
	Degraded        bool    `json:"degraded"` // any tick spent past the outage budget
}

// RunResult is everything one simulation run produced.
type RunResult struct {
	ID        string         `json:"id"`
	Scenario  Scenario       `json:"scenario"`
	Seed      int64          `json:"seed"`
	Path      []terrain.Cell `json:"path"`
	Records   []TickRecord   `json:"records"`
	Stats     RunStats       `json:"stats"`
	Timeline  Timeline       `json:"timeline"`
	CreatedAt time.Time      `json:"created_at"`
}

// Simulator runs a vehicle along planned routes under a storm timeline.
type Simulator struct {
	model *terrain.Model
	cfg   RunConfig
	clock timeutil.Clock
}

// NewSimulator validates the config and binds it to a terrain model.
func NewSimulator(model *terrain.Model, cfg RunConfig, clock timeutil.Clock) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Simulator{model: model, cfg: cfg, clock: clock}, nil
}

// waypoints converts a cell path to world coordinates (cell centers).
func (s *Simulator) waypoints(path []terrain.Cell) [][2]float64 {
	pts := make([][2]float64, len(path))
	for i, c := range path {
		pts[i] = [2]float64{(float64(c.X) + 0.5) * s.cfg.CellSize, (float64(c.Y) + 0.5) * s.cfg.CellSize}
	}
	return pts
}

// pointAlong walks the polyline to arc length dist and returns the
// position there, clamping past the end.
func pointAlong(pts [][2]float64, dist float64) (x, y float64) {
	if dist <= 0 {
		return pts[0][0], pts[0][1]
	}
	for i := 1; i < len(pts); i++ {
		seg := math.Hypot(pts[i][0]-pts[i-1][0], pts[i][1]-pts[i-1][1])
		if dist <= seg && seg > 0 {
			f := dist / seg
			return pts[i-1][0] + f*(pts[i][0]-pts[i-1][0]), pts[i-1][1] + f*(pts[i][1]-pts[i-1][1])
		}
		dist -= seg
	}
	last := pts[len(pts)-1]
	return last[0], last[1]
}

// pathLength is the total arc length of the polyline.
func pathLength(pts [][2]float64) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i][0]-pts[i-1][0], pts[i][1]-pts[i-1][1])
	}
	return total
}

// Run drives the vehicle along the path tick by tick. Each tick the
// storm timeline sets the sensor risk level, the IMU and GPS measure
// the true state, and the estimator fuses them. Ground truth is only
// used to generate measurements and score the estimate.
func (s *Simulator) Run(path []terrain.Cell) (*RunResult, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	for _, c := range path {
		if s.model != nil && !s.model.InBounds(c) {
			return nil, fmt.Errorf("sim: path cell %s outside the terrain model", c)
		}
	}

	src := sensors.NewSeeded(s.cfg.Seed)
	timeline, err := GenerateTimeline(s.cfg.Scenario, src)
	if err != nil {
		return nil, err
	}

	pts := s.waypoints(path)
	total := pathLength(pts)
	travelTicks := int(math.Ceil(total/(s.cfg.Speed*s.cfg.TickSeconds))) + s.cfg.SettleTicks
	if travelTicks < 1 {
		travelTicks = 1
	}
	if travelTicks > s.cfg.MaxTicks {
		return nil, fmt.Errorf("%w: need %d, cap %d", ErrTooManyTicks, travelTicks, s.cfg.MaxTicks)
	}

	startLevel := timeline.At(0, s.cfg.TicksPerHour).Level
	imu := sensors.NewIMU(startLevel, src)
	gps := sensors.NewGPS(startLevel, s.cfg.GPS, src)

	startX, startY := pts[0][0], pts[0][1]
	reckoner := nav.NewDeadReckoner(startX, startY, 0)
	estimator, err := nav.NewEstimator(s.cfg.Fusion, startX, startY, 0)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now()
	dt := s.cfg.TickSeconds
	records := make([]TickRecord, 0, travelTicks)

	prevX, prevY := startX, startY
	prevVX, prevVY := 0.0, 0.0
	prevHeading := 0.0
	level := startLevel

	for tick := 1; tick <= travelTicks; tick++ {
		now := start.Add(time.Duration(float64(tick) * dt * float64(time.Second)))
		point := timeline.At(tick, s.cfg.TicksPerHour)
		if point.Level != level {
			level = point.Level
			imu.SetRiskLevel(level)
			gps.SetRiskLevel(level)
		}
		gps.SetStorm(point.Phase == PhasePeak && point.Level == terrain.RiskHigh)

		// Truth kinematics from the polyline.
		truthX, truthY := pointAlong(pts, s.cfg.Speed*dt*float64(tick))
		vx := (truthX - prevX) / dt
		vy := (truthY - prevY) / dt
		ax := (vx - prevVX) / dt
		ay := (vy - prevVY) / dt
		heading := prevHeading
		if vx != 0 || vy != 0 {
			heading = math.Atan2(vy, vx)
		}
		yawRate := angleDelta(heading, prevHeading) / dt

		// World acceleration into the body frame.
		sin, cos := math.Sincos(-heading)
		bodyAccel := sensors.Vec3{X: ax*cos - ay*sin, Y: ax*sin + ay*cos}
		gyro := sensors.Vec3{Z: yawRate}
		mag := sensors.Vec3{X: math.Cos(heading), Y: math.Sin(heading)}

		meas, err := imu.Sample(bodyAccel, gyro, mag, dt)
		if err != nil {
			return nil, fmt.Errorf("sim: imu sample at tick %d: %w", tick, err)
		}
		dr := reckoner.Update(meas, now)

		var fixPtr *sensors.Fix
		fix, ok := gps.Sample(truthX, truthY, now)
		if ok {
			fixPtr = &fix
		}
		st := estimator.Tick(dr, fixPtr, now)

		records = append(records, TickRecord{
			Tick:   tick,
			TruthX: truthX,
			TruthY: truthY,
			EstX:   st.X,
			EstY:   st.Y,
			Error:  math.Hypot(st.X-truthX, st.Y-truthY),
			FixOK:  ok,
			Mode:   st.Mode,
			Kp:     point.Kp,
			Phase:  point.Phase,
			Level:  point.Level,
		})

		prevX, prevY = truthX, truthY
		prevVX, prevVY = vx, vy
		prevHeading = heading
	}

	id := uuid.New().String()
	stats := summarize(records, estimator.State())
	monitoring.Logf("sim: run %s scenario=%s ticks=%d mean_err=%.2fm resyncs=%d",
		id, s.cfg.Scenario, stats.Ticks, stats.MeanError, stats.Resyncs)

	return &RunResult{
		ID:        id,
		Scenario:  s.cfg.Scenario,
		Seed:      s.cfg.Seed,
		Path:      path,
		Records:   records,
		Stats:     stats,
		Timeline:  timeline,
		CreatedAt: start,
	}, nil
}

// angleDelta is the shortest signed rotation from b to a.
func angleDelta(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// summarize computes run statistics from the tick records.
func summarize(records []TickRecord, final nav.State) RunStats {
	stats := RunStats{Ticks: len(records), Resyncs: final.Resyncs}
	if len(records) == 0 {
		return stats
	}

	errs := make([]float64, len(records))
	fixes := 0
	for i, r := range records {
		errs[i] = r.Error
		if r.FixOK {
			fixes++
		}
		if r.Error > stats.MaxError {
			stats.MaxError = r.Error
		}
	}
	stats.Degraded = final.Degraded

	sort.Float64s(errs)
	stats.MeanError = stat.Mean(errs, nil)
	stats.MedianError = stat.Quantile(0.5, stat.Empirical, errs, nil)
	stats.P95Error = stat.Quantile(0.95, stat.Empirical, errs, nil)
	stats.GPSAvailability = float64(fixes) / float64(len(records))
	return stats
}
