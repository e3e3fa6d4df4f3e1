// Package sim drives end-to-end navigation runs: a geomagnetic storm
// timeline degrades the sensor models while a simulated vehicle follows
// a planned route and the estimator tracks it.
package sim

import (
	"fmt"

	"github.com/varun99015/stellarroute/internal/sensors"
	"github.com/varun99015/stellarroute/internal/terrain"
)

// Scenario names a storm severity profile.
type Scenario string

const (
	ScenarioNormal   Scenario = "normal"
	ScenarioModerate Scenario = "moderate"
	ScenarioSevere   Scenario = "severe"
)

// Phase labels one stage of a storm's life cycle.
type Phase string

const (
	PhaseQuiet    Phase = "quiet"
	PhaseOnset    Phase = "onset"
	PhasePeak     Phase = "peak"
	PhaseRecovery Phase = "recovery"
)

// TimelinePoints is the number of hourly samples in a storm timeline.
const TimelinePoints = 24

// quietKp is the planetary index of an undisturbed field.
const quietKp = 2.0

// stormProfile holds the peak Kp statistics for one scenario.
type stormProfile struct {
	peakKp   float64
	kpJitter float64
}

var stormProfiles = map[Scenario]stormProfile{
	ScenarioNormal:   {peakKp: 2.0, kpJitter: 0.5},
	ScenarioModerate: {peakKp: 5.0, kpJitter: 1.0},
	ScenarioSevere:   {peakKp: 8.0, kpJitter: 0.7},
}

// ValidScenario reports whether the name maps to a storm profile.
func ValidScenario(s Scenario) bool {
	_, ok := stormProfiles[s]
	return ok
}

// Scenarios lists the known scenario names in severity order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioNormal, ScenarioModerate, ScenarioSevere}
}

// TimelinePoint is one hourly sample of the storm timeline.
type TimelinePoint struct {
	Hour  int               `json:"hour"`
	Phase Phase             `json:"phase"`
	Kp    float64           `json:"kp"`
	Level terrain.RiskLevel `json:"level"`
}

// Timeline is a full storm life cycle at hourly resolution.
type Timeline []TimelinePoint

// phaseFor splits the 24 hours into quiet, onset, peak, and recovery.
func phaseFor(hour int) Phase {
	switch {
	case hour < 6:
		return PhaseQuiet
	case hour < 12:
		return PhaseOnset
	case hour < 18:
		return PhasePeak
	default:
		return PhaseRecovery
	}
}

// GenerateTimeline builds a storm timeline for the scenario. Quiet hours
// sit at the undisturbed index, onset ramps linearly to the scenario
// peak, peak hours hold there with jitter, and recovery ramps back down.
func GenerateTimeline(scenario Scenario, src sensors.Source) (Timeline, error) {
	prof, ok := stormProfiles[scenario]
	if !ok {
		return nil, fmt.Errorf("sim: unknown scenario %q", scenario)
	}

	tl := make(Timeline, TimelinePoints)
	for hour := 0; hour < TimelinePoints; hour++ {
		phase := phaseFor(hour)
		var kp float64
		switch phase {
		case PhaseQuiet:
			kp = quietKp
		case PhaseOnset:
			frac := float64(hour-5) / 7.0 // hour 6 starts the ramp, hour 12 reaches peak
			kp = quietKp + (prof.peakKp-quietKp)*frac
		case PhasePeak:
			kp = prof.peakKp + (src.Float64()*2-1)*prof.kpJitter
		case PhaseRecovery:
			frac := float64(hour-17) / 7.0
			kp = prof.peakKp - (prof.peakKp-quietKp)*frac
		}
		if kp < 0 {
			kp = 0
		} else if kp > 9 {
			kp = 9
		}
		tl[hour] = TimelinePoint{
			Hour:  hour,
			Phase: phase,
			Kp:    kp,
			Level: terrain.LevelForKp(kp),
		}
	}
	return tl, nil
}

// At maps an arbitrary tick index onto the timeline, wrapping past the
// end so long runs cycle through the storm again.
func (t Timeline) At(tick, ticksPerHour int) TimelinePoint {
	if len(t) == 0 || ticksPerHour <= 0 {
		return TimelinePoint{Phase: PhaseQuiet, Kp: quietKp, Level: terrain.RiskLow}
	}
	hour := (tick / ticksPerHour) % len(t)
	return t[hour]
}

// PeakKp returns the highest index in the timeline.
func (t Timeline) PeakKp() float64 {
	peak := 0.0
	for _, p := range t {
		if p.Kp > peak {
			peak = p.Kp
		}
	}
	return peak
}
