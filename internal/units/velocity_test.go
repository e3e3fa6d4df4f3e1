package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "knots", false},
		{"empty unit", "", false},
		{"uppercase MPS", "MPS", false}, // Case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "mps, mph, kmph, kph" {
		t.Errorf("GetValidUnitsString() = %s", got)
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		unit     string
		expected float64
	}{
		{"zero stays zero", 0.0, MPH, 0.0},
		{"mps passthrough", 15.0, MPS, 15.0},
		{"vehicle speed to mph", 15.0, MPH, 33.554044380816},
		{"vehicle speed to kmph", 15.0, KMPH, 54.0},
		{"kph alias", 10.0, KPH, 36.0},
		{"unknown unit falls back to mps", 15.0, "knots", 15.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSpeed(tt.speedMPS, tt.unit)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPS, tt.unit, got, tt.expected)
			}
		})
	}
}

func TestConvertToMPS(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		fromUnit string
		expected float64
	}{
		{"mps passthrough", 15.0, MPS, 15.0},
		{"kmph to mps", 54.0, KMPH, 15.0},
		{"kph to mps", 3.6, KPH, 1.0},
		{"mph to mps", 2.2369362920544, MPH, 1.0},
		{"unknown unit falls back", 5.0, "knots", 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertToMPS(tt.speed, tt.fromUnit)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ConvertToMPS(%f, %s) = %f, want %f", tt.speed, tt.fromUnit, got, tt.expected)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, unit := range ValidUnits {
		got := ConvertToMPS(ConvertSpeed(15.5, unit), unit)
		if math.Abs(got-15.5) > 1e-9 {
			t.Errorf("%s round-trip: started 15.5 m/s, got %f m/s", unit, got)
		}
	}
}
