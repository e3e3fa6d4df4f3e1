package terrain

import "math"

// RiskLevel buckets a risk score into the three bands the sensor models
// are tuned for.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScoreRisk computes a 0-100 geomagnetic risk score for a location from
// the planetary Kp index. Higher latitudes score higher: auroral-zone
// positioning degrades first during a storm.
func ScoreRisk(kpIndex, latitude float64) float64 {
	base := (kpIndex / 9.0) * 100
	latFactor := math.Abs(latitude) / 90.0
	score := base * (0.5 + 0.5*latFactor)
	return math.Min(100.0, score)
}

// LevelForKp maps a Kp index to a risk level. Thresholds follow the NOAA
// G-scale boundaries: minor storms start near Kp 4, strong at Kp 7.
func LevelForKp(kp float64) RiskLevel {
	switch {
	case kp < 4:
		return RiskLow
	case kp < 7:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// LevelForScore maps a 0-100 risk score to a risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score < 20:
		return RiskLow
	case score < 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// SynthesizeRisk builds a risk surface for a width×height grid from a Kp
// index, sweeping latitude linearly between latSouth and latNorth across
// the rows. Values are normalized to [0,1].
func SynthesizeRisk(width, height int, kpIndex, latSouth, latNorth float64) [][]float64 {
	risk := make([][]float64, height)
	for y := 0; y < height; y++ {
		risk[y] = make([]float64, width)
		lat := latSouth
		if height > 1 {
			lat = latSouth + (latNorth-latSouth)*float64(y)/float64(height-1)
		}
		score := ScoreRisk(kpIndex, lat) / 100.0
		for x := 0; x < width; x++ {
			risk[y][x] = score
		}
	}
	return risk
}
