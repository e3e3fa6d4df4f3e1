package sensors

import (
	"math"
	"testing"
	"time"

	"github.com/varun99015/stellarroute/internal/terrain"
)

func newTestGPS(level terrain.RiskLevel, seed int64) *GPS {
	return NewGPS(level, DefaultGPSConfig(), NewSeeded(seed))
}

// TestGPSErrorBoundsLow samples the quiet-sky receiver 1000 times and
// checks every error magnitude stays inside the [5,15] random range plus
// the clamped drift contribution.
func TestGPSErrorBoundsLow(t *testing.T) {
	g := newTestGPS(terrain.RiskLow, 17)
	env := GPSLevelFor(terrain.RiskLow)
	now := time.Unix(1700000000, 0)

	for i := 0; i < 1000; i++ {
		now = now.Add(time.Second)
		fix, ok := g.Sample(100, 200, now)
		if !ok {
			t.Fatalf("sample %d: fix withheld under clear conditions", i)
		}
		errMag := math.Hypot(fix.X-100, fix.Y-200)
		lo := env.ErrorMin - env.DriftMax
		hi := env.ErrorMax + env.DriftMax
		if errMag < lo || errMag > hi {
			t.Fatalf("sample %d: error magnitude %f outside [%f, %f]", i, errMag, lo, hi)
		}
	}
}

func TestGPSDriftClamped(t *testing.T) {
	for _, level := range []terrain.RiskLevel{terrain.RiskLow, terrain.RiskMedium, terrain.RiskHigh} {
		g := newTestGPS(level, 29)
		env := GPSLevelFor(level)
		now := time.Unix(1700000000, 0)
		for i := 0; i < 500; i++ {
			now = now.Add(time.Second)
			g.Sample(0, 0, now)
			st := g.ErrorState()
			if mag := math.Hypot(st.DriftX, st.DriftY); mag > env.DriftMax+1e-9 {
				t.Fatalf("level %s sample %d: drift magnitude %f exceeds clamp %f", level, i, mag, env.DriftMax)
			}
		}
	}
}

func TestGPSRiskLevelSwitchResetsDrift(t *testing.T) {
	g := newTestGPS(terrain.RiskHigh, 41)
	now := time.Unix(1700000000, 0)
	for i := 0; i < 100; i++ {
		now = now.Add(time.Second)
		g.Sample(0, 0, now)
	}
	if st := g.ErrorState(); st.DriftX == 0 && st.DriftY == 0 {
		t.Fatal("high-risk receiver accumulated no drift in 100 samples")
	}

	g.SetRiskLevel(terrain.RiskLow)
	if st := g.ErrorState(); st.DriftX != 0 || st.DriftY != 0 {
		t.Errorf("drift not reset on level switch: %+v", st)
	}

	// Switching to the same level must not reset anything.
	now = now.Add(time.Second)
	g.Sample(0, 0, now)
	before := g.ErrorState()
	g.SetRiskLevel(terrain.RiskLow)
	if after := g.ErrorState(); after.DriftX != before.DriftX || after.DriftY != before.DriftY {
		t.Error("same-level switch reset drift")
	}
}

func TestGPSStormAndOutage(t *testing.T) {
	g := newTestGPS(terrain.RiskHigh, 53)
	now := time.Unix(1700000000, 0)

	if _, ok := g.Sample(0, 0, now); !ok {
		t.Fatal("fix withheld in clear conditions")
	}

	// Default config: storm drops 10 satellites to 3, below the minimum
	// of 4, so the fix is withheld and HDOP degrades.
	g.SetStorm(true)
	if _, ok := g.Sample(0, 0, now.Add(time.Second)); ok {
		t.Error("storm mode should withhold the fix (3 < 4 satellites)")
	}
	st := g.ErrorState()
	if st.Satellites != 3 {
		t.Errorf("storm satellites = %d, want 3", st.Satellites)
	}
	if st.HDOP <= DefaultGPSConfig().BaseHDOP {
		t.Errorf("storm HDOP = %f, want above base %f", st.HDOP, DefaultGPSConfig().BaseHDOP)
	}

	g.SetStorm(false)
	g.SetOutage(true)
	if _, ok := g.Sample(0, 0, now.Add(2*time.Second)); ok {
		t.Error("explicit outage should withhold the fix")
	}
	g.SetOutage(false)
	if _, ok := g.Sample(0, 0, now.Add(3*time.Second)); !ok {
		t.Error("fix should resume after outage clears")
	}
}

func TestGPSJumpProbabilityGrows(t *testing.T) {
	cfg := DefaultGPSConfig()
	g := NewGPS(terrain.RiskMedium, cfg, NewSeeded(61))
	start := time.Unix(1700000000, 0)
	g.Sample(0, 0, start) // initializes the jump clock

	// After a long quiet stretch the per-call jump probability is capped
	// at JumpMaxProb; over many calls at the cap, at least one jump must
	// land and move the jump clock forward.
	jumped := false
	now := start
	for i := 0; i < 200; i++ {
		now = now.Add(time.Minute)
		g.Sample(0, 0, now)
		if st := g.ErrorState(); st.LastJump.After(start) {
			jumped = true
			break
		}
	}
	if !jumped {
		t.Error("no jump occurred in 200 capped-probability samples")
	}
}

func TestGPSDeterministicUnderSeed(t *testing.T) {
	a := newTestGPS(terrain.RiskMedium, 73)
	b := newTestGPS(terrain.RiskMedium, 73)
	now := time.Unix(1700000000, 0)
	for i := 0; i < 50; i++ {
		now = now.Add(time.Second)
		fa, oka := a.Sample(10, 20, now)
		fb, okb := b.Sample(10, 20, now)
		if oka != okb || fa != fb {
			t.Fatalf("sample %d diverged: %+v vs %+v", i, fa, fb)
		}
	}
}
