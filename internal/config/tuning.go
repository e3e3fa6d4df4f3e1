package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/params endpoint so the same JSON can be
// used for both startup configuration and runtime updates.
type TuningConfig struct {
	// Planner params
	Lambda        *float64 `json:"lambda,omitempty"`
	Heuristic     *string  `json:"heuristic,omitempty"`
	Bidirectional *bool    `json:"bidirectional,omitempty"`

	// Fusion params
	FilterMode      *string  `json:"filter_mode,omitempty"`
	Alpha           *float64 `json:"alpha,omitempty"`
	AlphaFloor      *float64 `json:"alpha_floor,omitempty"`
	ResyncThreshold *float64 `json:"resync_threshold,omitempty"`
	ResyncBlend     *float64 `json:"resync_blend,omitempty"`
	CoastWeight     *float64 `json:"coast_weight,omitempty"`
	MaxOutage       *string  `json:"max_outage,omitempty"` // duration string like "30s"

	// Simulation params
	Scenario    *string  `json:"scenario,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`     // meters per second
	CellSize    *float64 `json:"cell_size,omitempty"` // meters per grid cell
	TickSeconds *float64 `json:"tick_seconds,omitempty"`

	// GPS receiver params
	MinSatellites *int `json:"min_satellites,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// with its default value. Used when no defaults file is available.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Lambda:          ptrFloat64(0.5),
		Heuristic:       ptrString("euclidean"),
		Bidirectional:   ptrBool(true),
		FilterMode:      ptrString("complementary"),
		Alpha:           ptrFloat64(0.98),
		AlphaFloor:      ptrFloat64(0.7),
		ResyncThreshold: ptrFloat64(50),
		ResyncBlend:     ptrFloat64(0.3),
		CoastWeight:     ptrFloat64(0.95),
		MaxOutage:       ptrString("30s"),
		Scenario:        ptrString("moderate"),
		Seed:            ptrInt64(1),
		Speed:           ptrFloat64(15),
		CellSize:        ptrFloat64(10),
		TickSeconds:     ptrFloat64(1),
		MinSatellites:   ptrInt(4),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Lambda != nil && *c.Lambda < 0 {
		return fmt.Errorf("lambda must be non-negative, got %f", *c.Lambda)
	}

	if c.Heuristic != nil {
		switch *c.Heuristic {
		case "manhattan", "euclidean", "chebyshev":
		default:
			return fmt.Errorf("unknown heuristic %q", *c.Heuristic)
		}
	}

	if c.FilterMode != nil {
		switch *c.FilterMode {
		case "complementary", "kalman":
		default:
			return fmt.Errorf("unknown filter_mode %q", *c.FilterMode)
		}
	}

	for name, v := range map[string]*float64{
		"alpha":        c.Alpha,
		"alpha_floor":  c.AlphaFloor,
		"resync_blend": c.ResyncBlend,
		"coast_weight": c.CoastWeight,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.ResyncThreshold != nil && *c.ResyncThreshold < 0 {
		return fmt.Errorf("resync_threshold must be non-negative, got %f", *c.ResyncThreshold)
	}

	// Validate MaxOutage can be parsed if set
	if c.MaxOutage != nil && *c.MaxOutage != "" {
		if _, err := time.ParseDuration(*c.MaxOutage); err != nil {
			return fmt.Errorf("invalid max_outage '%s': %w", *c.MaxOutage, err)
		}
	}

	if c.Speed != nil && *c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %f", *c.Speed)
	}

	if c.CellSize != nil && *c.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %f", *c.CellSize)
	}

	if c.TickSeconds != nil && *c.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive, got %f", *c.TickSeconds)
	}

	if c.MinSatellites != nil && *c.MinSatellites < 1 {
		return fmt.Errorf("min_satellites must be at least 1, got %d", *c.MinSatellites)
	}

	return nil
}

// GetLambda returns the lambda value or the default.
func (c *TuningConfig) GetLambda() float64 {
	if c.Lambda == nil {
		return 0.5 // default
	}
	return *c.Lambda
}

// GetHeuristic returns the heuristic value or the default.
func (c *TuningConfig) GetHeuristic() string {
	if c.Heuristic == nil {
		return "euclidean"
	}
	return *c.Heuristic
}

// GetBidirectional returns the bidirectional value or the default.
func (c *TuningConfig) GetBidirectional() bool {
	if c.Bidirectional == nil {
		return true // default
	}
	return *c.Bidirectional
}

// GetFilterMode returns the filter_mode value or the default.
func (c *TuningConfig) GetFilterMode() string {
	if c.FilterMode == nil {
		return "complementary"
	}
	return *c.FilterMode
}

// GetAlpha returns the alpha value or the default.
func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return 0.98
	}
	return *c.Alpha
}

// GetAlphaFloor returns the alpha_floor value or the default.
func (c *TuningConfig) GetAlphaFloor() float64 {
	if c.AlphaFloor == nil {
		return 0.7
	}
	return *c.AlphaFloor
}

// GetResyncThreshold returns the resync_threshold value or the default.
func (c *TuningConfig) GetResyncThreshold() float64 {
	if c.ResyncThreshold == nil {
		return 50.0
	}
	return *c.ResyncThreshold
}

// GetResyncBlend returns the resync_blend value or the default.
func (c *TuningConfig) GetResyncBlend() float64 {
	if c.ResyncBlend == nil {
		return 0.3
	}
	return *c.ResyncBlend
}

// GetCoastWeight returns the coast_weight value or the default.
func (c *TuningConfig) GetCoastWeight() float64 {
	if c.CoastWeight == nil {
		return 0.95
	}
	return *c.CoastWeight
}

// GetMaxOutage parses and returns the MaxOutage as a time.Duration.
func (c *TuningConfig) GetMaxOutage() time.Duration {
	if c.MaxOutage == nil || *c.MaxOutage == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.MaxOutage)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetScenario returns the scenario value or the default.
func (c *TuningConfig) GetScenario() string {
	if c.Scenario == nil {
		return "moderate"
	}
	return *c.Scenario
}

// GetSeed returns the seed value or the default.
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetSpeed returns the speed value or the default.
func (c *TuningConfig) GetSpeed() float64 {
	if c.Speed == nil {
		return 15.0
	}
	return *c.Speed
}

// GetCellSize returns the cell_size value or the default.
func (c *TuningConfig) GetCellSize() float64 {
	if c.CellSize == nil {
		return 10.0
	}
	return *c.CellSize
}

// GetTickSeconds returns the tick_seconds value or the default.
func (c *TuningConfig) GetTickSeconds() float64 {
	if c.TickSeconds == nil {
		return 1.0
	}
	return *c.TickSeconds
}

// GetMinSatellites returns the min_satellites value or the default.
func (c *TuningConfig) GetMinSatellites() int {
	if c.MinSatellites == nil {
		return 4
	}
	return *c.MinSatellites
}
