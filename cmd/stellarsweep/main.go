// stellarsweep plans a route set over a synthesized terrain, sweeps the
// requested storm scenarios, and writes plots plus an optional archive.
// Offline counterpart to the HTTP API for batch experiments.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/varun99015/stellarroute/internal/config"
	"github.com/varun99015/stellarroute/internal/db"
	"github.com/varun99015/stellarroute/internal/pathing"
	"github.com/varun99015/stellarroute/internal/report"
	"github.com/varun99015/stellarroute/internal/sim"
	"github.com/varun99015/stellarroute/internal/terrain"
	"github.com/varun99015/stellarroute/internal/units"
)

var (
	width      = flag.Int("width", 40, "Terrain grid width in cells")
	height     = flag.Int("height", 40, "Terrain grid height in cells")
	kp         = flag.Float64("kp", 5, "Kp index for the synthesized risk surface")
	latSouth   = flag.Float64("lat-south", 45, "Latitude of the southern grid edge")
	latNorth   = flag.Float64("lat-north", 70, "Latitude of the northern grid edge")
	startFlag  = flag.String("start", "0,0", "Start cell as x,y")
	goalFlag   = flag.String("goal", "", "Goal cell as x,y (defaults to the far corner)")
	lambdas    = flag.String("lambdas", "", "Extra comma-separated lambdas beyond the default set")
	scenarios  = flag.String("scenarios", "normal,moderate,severe", "Comma-separated storm scenarios to run")
	seed       = flag.Int64("seed", 1, "Noise seed")
	outDir     = flag.String("out", "sweep_output", "Output directory root")
	dbFile     = flag.String("db", "", "Archive runs and routes into this SQLite file")
	configFile = flag.String("config", "", "Tuning config JSON (defaults searched when empty)")
	speedUnits = flag.String("units", units.MPS, "Speed units for log output ("+units.GetValidUnitsString()+")")
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCell parses "x,y" into a grid cell.
func parseCell(s string) (terrain.Cell, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return terrain.Cell{}, fmt.Errorf("invalid cell '%s': want x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return terrain.Cell{}, fmt.Errorf("invalid cell x '%s': %w", parts[0], err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return terrain.Cell{}, fmt.Errorf("invalid cell y '%s': %w", parts[1], err)
	}
	return terrain.Cell{X: x, Y: y}, nil
}

func main() {
	flag.Parse()

	var cfg *config.TuningConfig
	if *configFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	} else {
		cfg = config.MustLoadDefaultConfig()
	}

	start, err := parseCell(*startFlag)
	if err != nil {
		log.Fatalf("bad -start: %v", err)
	}
	goal := terrain.Cell{X: *width - 1, Y: *height - 1}
	if *goalFlag != "" {
		goal, err = parseCell(*goalFlag)
		if err != nil {
			log.Fatalf("bad -goal: %v", err)
		}
	}
	extraLambdas, err := parseCSVFloatSlice(*lambdas)
	if err != nil {
		log.Fatalf("bad -lambdas: %v", err)
	}

	risk := terrain.SynthesizeRisk(*width, *height, *kp, *latSouth, *latNorth)
	cells := make([][]terrain.Type, *height)
	for y := range cells {
		cells[y] = make([]terrain.Type, *width)
		for x := range cells[y] {
			cells[y][x] = terrain.Default
		}
	}
	model, err := terrain.NewModel(cells, risk, terrain.DefaultWeights())
	if err != nil {
		log.Fatalf("failed to build terrain model: %v", err)
	}

	var archive *db.DB
	if *dbFile != "" {
		archive, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open archive: %v", err)
		}
		defer archive.Close()
	}

	dir := filepath.Join(*outDir, report.FormatTimestamp(time.Now()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	// Route sweep across the lambda presets plus any extras.
	gen := pathing.NewGenerator(model, pathing.PlannerConfig{
		Heuristic:     pathing.Heuristic(cfg.GetHeuristic()),
		Bidirectional: cfg.GetBidirectional(),
	})
	routes, err := gen.GenerateDefaults(start, goal)
	if err != nil {
		log.Fatalf("failed to generate routes: %v", err)
	}
	if len(extraLambdas) > 0 {
		routes, err = gen.AddCustom(start, goal, extraLambdas)
		if err != nil {
			log.Fatalf("failed to add custom lambdas: %v", err)
		}
	}
	if len(routes) == 0 {
		log.Fatalf("no route from %s to %s", start, goal)
	}
	for _, r := range routes {
		log.Printf("route %-9s λ=%.2f distance=%.1f risk=%.2f cost=%.1f",
			r.Name, r.Lambda, r.Metrics.Distance, r.Metrics.TotalRisk, r.Metrics.TotalCost)
	}
	for _, to := range gen.TradeOffs() {
		marker := " "
		if to.Recommended {
			marker = "*"
		}
		log.Printf("trade-off%s %s -> %s: +%.1f%% distance for -%.1f%% risk",
			marker, to.From, to.To, to.DistanceIncPct, to.RiskReductPct)
	}

	if err := report.RiskHeatmap(model, routes, filepath.Join(dir, "terrain.png")); err != nil {
		log.Fatalf("failed to render heatmap: %v", err)
	}
	chartFile, err := os.Create(filepath.Join(dir, "routes.html"))
	if err != nil {
		log.Fatalf("failed to create route chart: %v", err)
	}
	if err := report.RouteComparisonChart(routes, chartFile); err != nil {
		log.Fatalf("failed to render route chart: %v", err)
	}
	chartFile.Close()

	if archive != nil {
		now := time.Now().UTC()
		for _, r := range routes {
			if _, err := archive.SaveRoute(r, now); err != nil {
				log.Fatalf("failed to archive route %s: %v", r.Name, err)
			}
		}
	}

	// Simulate the balanced route under each requested scenario.
	var balanced *pathing.Route
	for i := range routes {
		if routes[i].Name == pathing.RouteBalanced {
			balanced = &routes[i]
			break
		}
	}
	if balanced == nil {
		balanced = &routes[0]
	}

	if !units.IsValid(*speedUnits) {
		log.Fatalf("bad -units %q: want one of %s", *speedUnits, units.GetValidUnitsString())
	}

	runCfg := sim.DefaultRunConfig()
	runCfg.Seed = *seed
	runCfg.Speed = cfg.GetSpeed()
	runCfg.CellSize = cfg.GetCellSize()
	runCfg.TickSeconds = cfg.GetTickSeconds()
	runCfg.GPS.MinSatellites = cfg.GetMinSatellites()
	log.Printf("vehicle speed %.1f %s along the %s route",
		units.ConvertSpeed(runCfg.Speed, *speedUnits), *speedUnits, balanced.Name)

	for _, name := range strings.Split(*scenarios, ",") {
		scenario := sim.Scenario(strings.TrimSpace(name))
		runCfg.Scenario = scenario
		simulator, err := sim.NewSimulator(model, runCfg, nil)
		if err != nil {
			log.Fatalf("scenario %s: %v", scenario, err)
		}
		result, err := simulator.Run(balanced.Path)
		if err != nil {
			log.Fatalf("scenario %s: run failed: %v", scenario, err)
		}
		log.Printf("scenario %-9s ticks=%d mean=%.2fm p95=%.2fm availability=%.0f%% resyncs=%d degraded=%v",
			scenario, result.Stats.Ticks, result.Stats.MeanError, result.Stats.P95Error,
			result.Stats.GPSAvailability*100, result.Stats.Resyncs, result.Stats.Degraded)

		plotPath := filepath.Join(dir, fmt.Sprintf("run_%s.png", scenario))
		if err := report.ErrorSeriesPlot(result, plotPath); err != nil {
			log.Fatalf("scenario %s: failed to render error plot: %v", scenario, err)
		}
		htmlFile, err := os.Create(filepath.Join(dir, fmt.Sprintf("run_%s.html", scenario)))
		if err != nil {
			log.Fatalf("scenario %s: failed to create chart file: %v", scenario, err)
		}
		if err := report.RunErrorChart(result, htmlFile); err != nil {
			log.Fatalf("scenario %s: failed to render chart: %v", scenario, err)
		}
		htmlFile.Close()

		if archive != nil {
			if err := archive.SaveRun(result); err != nil {
				log.Fatalf("scenario %s: failed to archive run: %v", scenario, err)
			}
		}
	}

	log.Printf("sweep output written to %s", dir)
}
