package nav

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/sensors"
)

func mustEstimator(t *testing.T, cfg FusionConfig, x, y float64) *Estimator {
	t.Helper()
	e, err := NewEstimator(cfg, x, y, 0)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func fixAt(x, y float64, accuracy float64, now time.Time) *sensors.Fix {
	return &sensors.Fix{X: x, Y: y, Satellites: 8, HDOP: 1, Accuracy: accuracy, Time: now}
}

// TestEstimatorOutageAndResync walks the canonical degradation sequence:
// three agreeing ticks, three ticks of outage while dead reckoning
// drifts, then reacquisition far from the coasted estimate. The far fix
// must snap, not blend, and count exactly one resync.
func TestEstimatorOutageAndResync(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	e := mustEstimator(t, DefaultFusionConfig(), 0, 0)
	now := time.Unix(1800000000, 0)

	// Locked: GPS and dead reckoning agree, so the fused position tracks
	// them regardless of the blend weight.
	for i := 1; i <= 3; i++ {
		now = now.Add(time.Second)
		x := float64(i)
		st := e.Tick(Estimate{X: x}, fixAt(x, 0, 100, now), now)
		if st.Mode != ModeLocked {
			t.Fatalf("tick %d: mode = %s, want %s", i, st.Mode, ModeLocked)
		}
		if math.Abs(st.X-x) > 1e-9 {
			t.Fatalf("tick %d: X = %f, want %f", i, st.X, x)
		}
	}

	// Outage: the fused position coasts on the dead-reckoning delta.
	for i := 4; i <= 6; i++ {
		now = now.Add(time.Second)
		st := e.Tick(Estimate{X: float64(i)}, nil, now)
		if st.Mode != ModeCoasting {
			t.Fatalf("tick %d: mode = %s, want %s", i, st.Mode, ModeCoasting)
		}
		if st.GPSActive {
			t.Fatalf("tick %d: GPS still marked active during outage", i)
		}
	}
	coasted := e.State()
	wantCoast := 3.0 + 0.95*3.0
	if math.Abs(coasted.X-wantCoast) > 1e-9 {
		t.Fatalf("coasted X = %f, want %f", coasted.X, wantCoast)
	}

	// Reacquisition far from the dead-reckoning estimate: snap.
	now = now.Add(time.Second)
	st := e.Tick(Estimate{X: 7}, fixAt(200, 0, 100, now), now)
	if st.Mode != ModeResync {
		t.Errorf("mode = %s, want %s", st.Mode, ModeResync)
	}
	if st.Resyncs != 1 {
		t.Errorf("resyncs = %d, want 1", st.Resyncs)
	}
	if st.X != 200 || st.Y != 0 {
		t.Errorf("position = (%f, %f), want exact snap to (200, 0)", st.X, st.Y)
	}
	if !st.GPSActive || st.Degraded {
		t.Errorf("reacquired state not clean: %+v", st)
	}

	// The tick after a resync runs the normal filter again.
	now = now.Add(time.Second)
	if st := e.Tick(Estimate{X: 200}, fixAt(200, 0, 100, now), now); st.Mode != ModeLocked {
		t.Errorf("post-resync mode = %s, want %s", st.Mode, ModeLocked)
	}
	if e.State().Resyncs != 1 {
		t.Errorf("resyncs after relock = %d, want still 1", e.State().Resyncs)
	}
}

func TestEstimatorResyncBlendWhenClose(t *testing.T) {
	e := mustEstimator(t, DefaultFusionConfig(), 0, 0)
	now := time.Unix(1800000000, 0)

	now = now.Add(time.Second)
	e.Tick(Estimate{X: 10}, nil, now) // force an outage

	// Reacquired fix within the resync threshold: blend, don't snap.
	now = now.Add(time.Second)
	before := e.State().X
	st := e.Tick(Estimate{X: 10}, fixAt(20, 0, 100, now), now)
	if st.Resyncs != 0 {
		t.Errorf("resyncs = %d, want 0 for a close fix", st.Resyncs)
	}
	want := before + 0.3*(20-before)
	if math.Abs(st.X-want) > 1e-9 {
		t.Errorf("blended X = %f, want %f", st.X, want)
	}
}

func TestEstimatorComplementaryAlpha(t *testing.T) {
	cfg := DefaultFusionConfig()
	e := mustEstimator(t, cfg, 0, 0)
	now := time.Unix(1800000000, 0)

	// Poor accuracy: dead reckoning dominates at the configured alpha.
	now = now.Add(time.Second)
	st := e.Tick(Estimate{X: 100}, fixAt(0, 0, 100, now), now)
	if want := cfg.Alpha * 100; math.Abs(st.X-want) > 1e-9 {
		t.Errorf("X with poor fix = %f, want %f", st.X, want)
	}

	// Accuracy under the good threshold drops alpha to its floor.
	e2 := mustEstimator(t, cfg, 0, 0)
	now = now.Add(time.Second)
	st = e2.Tick(Estimate{X: 100}, fixAt(0, 0, 5, now), now)
	if want := cfg.AlphaFloor * 100; math.Abs(st.X-want) > 1e-9 {
		t.Errorf("X with good fix = %f, want %f", st.X, want)
	}
}

func TestEstimatorKalmanConverges(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.Mode = FilterKalman
	e := mustEstimator(t, cfg, 0, 0)
	now := time.Unix(1800000000, 0)

	// Stationary truth at (100, 50); dead reckoning and GPS both agree.
	var first State
	for i := 0; i < 100; i++ {
		now = now.Add(time.Second)
		st := e.Tick(Estimate{X: 100, Y: 50}, fixAt(100, 50, 100, now), now)
		if i == 0 {
			first = st
		}
	}
	last := e.State()

	firstErr := math.Hypot(first.X-100, first.Y-50)
	lastErr := math.Hypot(last.X-100, last.Y-50)
	if lastErr >= firstErr {
		t.Errorf("filter did not converge: error %f -> %f", firstErr, lastErr)
	}
	if lastErr > 1.0 {
		t.Errorf("steady-state error = %f, want under 1.0", lastErr)
	}
}

func TestEstimatorDegradedAfterMaxOutage(t *testing.T) {
	logged, restore := monitoring.Capture()
	defer restore()

	cfg := DefaultFusionConfig()
	cfg.MaxOutage = 2 * time.Second
	e := mustEstimator(t, cfg, 0, 0)
	now := time.Unix(1800000000, 0)

	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		e.Tick(Estimate{}, nil, now)
	}
	st := e.State()
	if !st.Degraded {
		t.Error("estimator not degraded after coasting past the outage budget")
	}
	if st.OutageFor < 4*time.Second {
		t.Errorf("outage duration = %s, want at least 4s", st.OutageFor)
	}

	warnings := 0
	for _, msg := range *logged {
		if strings.Contains(msg, "outage") {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("outage warning logged %d times, want exactly once", warnings)
	}
}

func TestEstimatorDropsNonFiniteEstimate(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	e := mustEstimator(t, DefaultFusionConfig(), 5, 5)
	now := time.Unix(1800000000, 0)

	st := e.Tick(Estimate{X: math.NaN(), Y: 0}, nil, now)
	if st.X != 5 || st.Y != 5 {
		t.Errorf("non-finite estimate moved the state to (%f, %f)", st.X, st.Y)
	}
	if st.Ticks != 1 {
		t.Errorf("ticks = %d, want 1 (dropped input still counts)", st.Ticks)
	}
}

func TestNewEstimatorValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FusionConfig)
		wantErr error
	}{
		{"alpha too high", func(c *FusionConfig) { c.Alpha = 1.5 }, ErrBadAlpha},
		{"alpha negative", func(c *FusionConfig) { c.Alpha = -0.1 }, ErrBadAlpha},
		{"floor too high", func(c *FusionConfig) { c.AlphaFloor = 2 }, ErrBadAlpha},
		{"blend out of range", func(c *FusionConfig) { c.ResyncBlend = 1.2 }, ErrBadAlpha},
		{"unknown mode", func(c *FusionConfig) { c.Mode = "ekf" }, ErrBadFilterMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFusionConfig()
			tt.mutate(&cfg)
			if _, err := NewEstimator(cfg, 0, 0, 0); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if _, err := NewEstimator(DefaultFusionConfig(), 0, 0, 0); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}
