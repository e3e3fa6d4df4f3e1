package sensors

import (
	"math"
	"time"

	"github.com/varun99015/stellarroute/internal/terrain"
)

// GPSLevelConfig bounds the three error terms for one risk level. All
// values are meters.
type GPSLevelConfig struct {
	ErrorMin  float64 // random term magnitude lower bound
	ErrorMax  float64 // random term magnitude upper bound
	DriftStep float64 // per-axis walk step bound per call
	DriftMax  float64 // drift vector magnitude clamp
	JumpMax   float64 // sudden drift addition upper bound
}

// gpsLevels carries the storm-severity error envelopes. The low range
// matches quiet-sky consumer GPS; medium and high follow the degradation
// observed during moderate and severe geomagnetic storms.
var gpsLevels = map[terrain.RiskLevel]GPSLevelConfig{
	terrain.RiskLow:    {ErrorMin: 5, ErrorMax: 15, DriftStep: 0.2, DriftMax: 2.0, JumpMax: 1.0},
	terrain.RiskMedium: {ErrorMin: 30, ErrorMax: 100, DriftStep: 1.0, DriftMax: 12.0, JumpMax: 8.0},
	terrain.RiskHigh:   {ErrorMin: 100, ErrorMax: 500, DriftStep: 3.0, DriftMax: 40.0, JumpMax: 25.0},
}

// GPSLevelFor returns the error envelope for a risk level, defaulting to
// the low-risk envelope for unknown levels.
func GPSLevelFor(level terrain.RiskLevel) GPSLevelConfig {
	if c, ok := gpsLevels[level]; ok {
		return c
	}
	return gpsLevels[terrain.RiskLow]
}

// GPSConfig holds the level-independent receiver parameters.
type GPSConfig struct {
	MinSatellites  int     // fixes are withheld below this count
	BaseSatellites int     // visible satellites in clear conditions
	StormLoss      int     // satellites lost while storm mode is active
	BaseHDOP       float64 // dilution of precision, quiet sky
	StormHDOP      float64 // dilution of precision in storm mode
	JumpBaseProb   float64 // jump probability immediately after a jump
	JumpProbPerSec float64 // probability growth per second since last jump
	JumpMaxProb    float64 // probability cap
}

// DefaultGPSConfig returns the receiver parameters used by the
// simulator unless a scenario overrides them.
func DefaultGPSConfig() GPSConfig {
	return GPSConfig{
		MinSatellites:  4,
		BaseSatellites: 10,
		StormLoss:      7,
		BaseHDOP:       1.0,
		StormHDOP:      4.5,
		JumpBaseProb:   0.01,
		JumpProbPerSec: 0.005,
		JumpMaxProb:    0.2,
	}
}

// Fix is one satellite position report.
type Fix struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Satellites int       `json:"satellites"`
	HDOP       float64   `json:"hdop"`
	Accuracy   float64   `json:"accuracy"` // estimated horizontal error, meters
	Time       time.Time `json:"time"`
}

// GPSErrorState is the receiver's persistent error state, exposed for
// diagnostics. Drift and jump are path-dependent: they evolve across
// calls rather than being redrawn each sample.
type GPSErrorState struct {
	DriftX     float64   `json:"drift_x"`
	DriftY     float64   `json:"drift_y"`
	LastJump   time.Time `json:"last_jump"`
	Satellites int       `json:"satellites"`
	HDOP       float64   `json:"hdop"`
	Outage     bool      `json:"outage"`
}

// GPS simulates a satellite receiver. One instance owns its drift and
// jump state exclusively; concurrent simulated vehicles need separate
// instances.
type GPS struct {
	src   Source
	cfg   GPSConfig
	level terrain.RiskLevel
	env   GPSLevelConfig

	driftX   float64
	driftY   float64
	lastJump time.Time
	storm    bool
	outage   bool
}

// NewGPS builds a receiver at the given risk level.
func NewGPS(level terrain.RiskLevel, cfg GPSConfig, src Source) *GPS {
	return &GPS{src: src, cfg: cfg, level: level, env: GPSLevelFor(level)}
}

// SetRiskLevel switches the error envelope. Accumulated drift belongs to
// the old propagation regime and is zeroed; the jump clock is left alone.
func (g *GPS) SetRiskLevel(level terrain.RiskLevel) {
	if level == g.level {
		return
	}
	g.level = level
	g.env = GPSLevelFor(level)
	g.driftX = 0
	g.driftY = 0
}

// SetStorm toggles storm mode: fewer visible satellites, worse HDOP.
func (g *GPS) SetStorm(on bool) { g.storm = on }

// SetOutage forces the receiver to withhold fixes.
func (g *GPS) SetOutage(on bool) { g.outage = on }

// Level returns the current risk level.
func (g *GPS) Level() terrain.RiskLevel { return g.level }

// ErrorState snapshots the receiver's persistent error state.
func (g *GPS) ErrorState() GPSErrorState {
	return GPSErrorState{
		DriftX:     g.driftX,
		DriftY:     g.driftY,
		LastJump:   g.lastJump,
		Satellites: g.visibleSatellites(),
		HDOP:       g.hdop(),
		Outage:     g.outage,
	}
}

func (g *GPS) visibleSatellites() int {
	if g.storm {
		return g.cfg.BaseSatellites - g.cfg.StormLoss
	}
	return g.cfg.BaseSatellites
}

func (g *GPS) hdop() float64 {
	if g.storm {
		return g.cfg.StormHDOP
	}
	return g.cfg.BaseHDOP
}

// clampDrift re-clamps the drift vector after every update so its
// magnitude never exceeds the level maximum.
func (g *GPS) clampDrift() {
	mag := math.Hypot(g.driftX, g.driftY)
	if mag > g.env.DriftMax && mag > 0 {
		scale := g.env.DriftMax / mag
		g.driftX *= scale
		g.driftY *= scale
	}
}

// Sample produces a fix for the true position, or ok=false when the fix
// is withheld (outage, or too few visible satellites). Withholding is an
// expected absence, not an error.
func (g *GPS) Sample(trueX, trueY float64, now time.Time) (Fix, bool) {
	if g.outage {
		return Fix{}, false
	}
	sats := g.visibleSatellites()
	if sats < g.cfg.MinSatellites {
		return Fix{}, false
	}

	// Drift: persistent random walk, clamped per update.
	g.driftX += jitter(g.src, g.env.DriftStep)
	g.driftY += jitter(g.src, g.env.DriftStep)
	g.clampDrift()

	// Jump: probability grows with time since the last one.
	if g.lastJump.IsZero() {
		g.lastJump = now
	}
	elapsed := now.Sub(g.lastJump).Seconds()
	p := math.Min(g.cfg.JumpMaxProb, g.cfg.JumpBaseProb+g.cfg.JumpProbPerSec*elapsed)
	if g.src.Float64() < p {
		ang := g.src.Float64() * 2 * math.Pi
		mag := uniform(g.src, 0, g.env.JumpMax)
		g.driftX += mag * math.Cos(ang)
		g.driftY += mag * math.Sin(ang)
		g.lastJump = now
		g.clampDrift()
	}

	// Random term: fresh magnitude and direction every call.
	mag := uniform(g.src, g.env.ErrorMin, g.env.ErrorMax)
	ang := g.src.Float64() * 2 * math.Pi

	hdop := g.hdop()
	return Fix{
		X:          trueX + mag*math.Cos(ang) + g.driftX,
		Y:          trueY + mag*math.Sin(ang) + g.driftY,
		Satellites: sats,
		HDOP:       hdop,
		Accuracy:   hdop * (g.env.ErrorMin + g.env.ErrorMax) / 4,
		Time:       now,
	}, true
}
