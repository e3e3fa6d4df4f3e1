package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/varun99015/stellarroute/internal/httputil"
	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/nav"
	"github.com/varun99015/stellarroute/internal/pathing"
	"github.com/varun99015/stellarroute/internal/report"
	"github.com/varun99015/stellarroute/internal/sim"
	"github.com/varun99015/stellarroute/internal/terrain"
)

const maxRequestBody = 4 << 20 // grids arrive inline, so allow a few MB

// terrainSpec describes the grid a request plans or simulates over.
// Either an explicit cells grid is given, or width/height with a risk
// surface synthesized from the Kp index across the latitude band.
type terrainSpec struct {
	Width    int              `json:"width,omitempty"`
	Height   int              `json:"height,omitempty"`
	Cells    [][]terrain.Type `json:"cells,omitempty"`
	Risk     [][]float64      `json:"risk,omitempty"`
	Kp       float64          `json:"kp,omitempty"`
	LatSouth float64          `json:"lat_south,omitempty"`
	LatNorth float64          `json:"lat_north,omitempty"`
}

type planRequest struct {
	Terrain terrainSpec `json:"terrain"`
	Start   [2]int      `json:"start"` // [x, y]
	Goal    [2]int      `json:"goal"`
	Lambdas []float64   `json:"lambdas,omitempty"`
	Archive bool        `json:"archive,omitempty"`
}

type planResponse struct {
	Routes      []pathing.Route       `json:"routes"`
	Pareto      []pathing.Route       `json:"pareto"`
	TradeOffs   []pathing.TradeOff    `json:"trade_offs"`
	Ranking     []pathing.RankedRoute `json:"ranking"`
	ArchivedIDs []string              `json:"archived_ids,omitempty"`
}

type simulateRequest struct {
	Terrain  terrainSpec `json:"terrain"`
	Start    [2]int      `json:"start"`
	Goal     [2]int      `json:"goal"`
	Scenario string      `json:"scenario,omitempty"`
	Seed     *int64      `json:"seed,omitempty"`
	Lambda   *float64    `json:"lambda,omitempty"`
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// buildModel turns a terrain spec into a model. An explicit cells grid
// wins; otherwise a uniform grid of the given size gets a synthesized
// risk surface.
func buildModel(spec terrainSpec) (*terrain.Model, error) {
	if len(spec.Cells) > 0 {
		risk := spec.Risk
		if risk == nil {
			risk = terrain.SynthesizeRisk(len(spec.Cells[0]), len(spec.Cells), spec.Kp, spec.LatSouth, spec.LatNorth)
		}
		return terrain.NewModel(spec.Cells, risk, terrain.DefaultWeights())
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("terrain needs either a cells grid or width/height > 0")
	}
	risk := spec.Risk
	if risk == nil {
		risk = terrain.SynthesizeRisk(spec.Width, spec.Height, spec.Kp, spec.LatSouth, spec.LatNorth)
	}
	cells := make([][]terrain.Type, spec.Height)
	for y := range cells {
		cells[y] = make([]terrain.Type, spec.Width)
		for x := range cells[y] {
			cells[y][x] = terrain.Default
		}
	}
	return terrain.NewModel(cells, risk, terrain.DefaultWeights())
}

// plannerConfig is the server's tuned search setup; per-route lambdas
// override Lambda inside the generator.
func (s *Server) plannerConfig() pathing.PlannerConfig {
	return pathing.PlannerConfig{
		Lambda:        s.cfg.GetLambda(),
		Heuristic:     pathing.Heuristic(s.cfg.GetHeuristic()),
		Bidirectional: s.cfg.GetBidirectional(),
	}
}

// planRoutes generates the default route set (plus any custom lambdas)
// between two cells and reports the trade-off analysis.
func (s *Server) planRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req planRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	model, err := buildModel(req.Terrain)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := terrain.Cell{X: req.Start[0], Y: req.Start[1]}
	goal := terrain.Cell{X: req.Goal[0], Y: req.Goal[1]}

	gen := pathing.NewGenerator(model, s.plannerConfig())
	routes, err := gen.GenerateDefaults(start, goal)
	if err == nil && len(req.Lambdas) > 0 {
		routes, err = gen.AddCustom(start, goal, req.Lambdas)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pathing.ErrInvalidCoordinate) || errors.Is(err, pathing.ErrNegativeLambda) || errors.Is(err, pathing.ErrUnknownHeuristic) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	if len(routes) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("no route from %s to %s", start, goal))
		return
	}

	resp := planResponse{
		Routes:    routes,
		Pareto:    gen.ParetoFrontier(),
		TradeOffs: gen.TradeOffs(),
		Ranking:   gen.RankByEfficiency(),
	}
	if req.Archive && s.db != nil {
		now := s.clock.Now()
		for _, route := range routes {
			id, err := s.db.SaveRoute(route, now)
			if err != nil {
				httputil.WriteJSONError(w, http.StatusInternalServerError, "archive route: "+err.Error())
				return
			}
			resp.ArchivedIDs = append(resp.ArchivedIDs, id)
		}
	}

	s.mu.Lock()
	s.lastRoutes = routes
	s.mu.Unlock()

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// runConfig assembles the simulation tuning from the server config plus
// per-request overrides.
func (s *Server) runConfig(req simulateRequest) sim.RunConfig {
	cfg := sim.DefaultRunConfig()
	cfg.Scenario = sim.Scenario(s.cfg.GetScenario())
	if req.Scenario != "" {
		cfg.Scenario = sim.Scenario(req.Scenario)
	}
	cfg.Seed = s.cfg.GetSeed()
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	cfg.Speed = s.cfg.GetSpeed()
	cfg.CellSize = s.cfg.GetCellSize()
	cfg.TickSeconds = s.cfg.GetTickSeconds()

	cfg.Fusion.Mode = nav.FilterMode(s.cfg.GetFilterMode())
	cfg.Fusion.Alpha = s.cfg.GetAlpha()
	cfg.Fusion.AlphaFloor = s.cfg.GetAlphaFloor()
	cfg.Fusion.ResyncThreshold = s.cfg.GetResyncThreshold()
	cfg.Fusion.ResyncBlend = s.cfg.GetResyncBlend()
	cfg.Fusion.CoastWeight = s.cfg.GetCoastWeight()
	cfg.Fusion.MaxOutage = s.cfg.GetMaxOutage()

	cfg.GPS.MinSatellites = s.cfg.GetMinSatellites()
	return cfg
}

// runSimulation plans a single route and drives the simulated vehicle
// along it under the requested storm scenario.
func (s *Server) runSimulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req simulateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	model, err := buildModel(req.Terrain)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	pcfg := s.plannerConfig()
	if req.Lambda != nil {
		pcfg.Lambda = *req.Lambda
	}
	planner, err := pathing.NewPlanner(model, pcfg)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := terrain.Cell{X: req.Start[0], Y: req.Start[1]}
	goal := terrain.Cell{X: req.Goal[0], Y: req.Goal[1]}
	plan, err := planner.Plan(start, goal)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pathing.ErrInvalidCoordinate) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	if !plan.Found {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, "no route to simulate: "+plan.Reason)
		return
	}

	simulator, err := sim.NewSimulator(model, s.runConfig(req), s.clock)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := simulator.Run(plan.Path)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sim.ErrEmptyPath) || errors.Is(err, sim.ErrTooManyTicks) {
			status = http.StatusUnprocessableEntity
		}
		httputil.WriteJSONError(w, status, err.Error())
		return
	}

	if s.db != nil {
		if err := s.db.SaveRun(result); err != nil {
			monitoring.Logf("api: failed to archive run %s: %v", result.ID, err)
		}
	}

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()

	httputil.WriteJSON(w, http.StatusOK, result)
}

// routeChart renders the most recent plan's trade-off scatter as HTML.
func (s *Server) routeChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	routes := s.lastRoutes
	s.mu.Unlock()
	if len(routes) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no routes planned yet")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RouteComparisonChart(routes, w); err != nil {
		monitoring.Logf("api: route chart render: %v", err)
	}
}

// lastRunChart renders the most recent simulation's error series as HTML.
func (s *Server) lastRunChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	run := s.lastRun
	s.mu.Unlock()
	if run == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no simulation run yet")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RunErrorChart(run, w); err != nil {
		monitoring.Logf("api: run chart render: %v", err)
	}
}
