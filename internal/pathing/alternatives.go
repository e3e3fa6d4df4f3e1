package pathing

import (
	"math"
	"sort"

	"github.com/varun99015/stellarroute/internal/terrain"
)

// Named lambda presets for the default route set.
const (
	RouteShortest = "shortest"
	RouteBalanced = "balanced"
	RouteSafest   = "safest"
	RouteCustom   = "custom"

	lambdaShortest = 0.0
	lambdaBalanced = 0.5
	lambdaSafest   = 2.0
)

// riskEpsilon avoids division by zero in cost-per-risk-reduction.
const riskEpsilon = 1e-9

// RouteMetrics summarizes one route. All fields are non-negative.
type RouteMetrics struct {
	Distance    float64 `json:"distance"`     // sum of Euclidean edge lengths
	TotalRisk   float64 `json:"total_risk"`   // sum of risk at each arrival cell
	AvgRisk     float64 `json:"avg_risk"`     // TotalRisk per arrival cell
	TerrainCost float64 `json:"terrain_cost"` // sum of terrain weights at arrival cells
	TotalCost   float64 `json:"total_cost"`   // Distance + TotalRisk*lambda
}

// Route is one planner outcome with its metrics and search statistics.
// Immutable once created.
type Route struct {
	Name    string         `json:"name"`
	Lambda  float64        `json:"lambda"`
	Path    []terrain.Cell `json:"path"`
	Metrics RouteMetrics   `json:"metrics"`
	Stats   SearchStats    `json:"stats"`
}

// TradeOff compares a faster reference route against a safer one.
type TradeOff struct {
	From           string  `json:"from"`
	To             string  `json:"to"`
	DistanceIncPct float64 `json:"distance_increase_pct"`
	RiskReductPct  float64 `json:"risk_reduction_pct"`
	Recommended    bool    `json:"recommended"` // risk reduction beats twice the distance cost
}

// RankedRoute is a route with its cost-effectiveness scores.
type RankedRoute struct {
	Route                Route   `json:"route"`
	EfficiencyScore      float64 `json:"efficiency_score"`
	CostPerRiskReduction float64 `json:"cost_per_risk_reduction"`
}

// Generator accumulates routes across the distance/risk trade-off space.
// Each lambda runs through a fresh planner over the shared terrain model;
// custom lambdas append to the collection without discarding prior
// routes.
type Generator struct {
	model  *terrain.Model
	cfg    PlannerConfig // Lambda is overridden per route
	routes []Route
}

// NewGenerator creates a route generator. cfg.Lambda is ignored; each
// generated route supplies its own.
func NewGenerator(model *terrain.Model, cfg PlannerConfig) *Generator {
	return &Generator{model: model, cfg: cfg}
}

// GenerateDefaults plans the shortest (λ=0), balanced (λ=0.5) and safest
// (λ=2) routes. A lambda whose search finds no path is omitted from the
// collection; that is not an error for the batch.
func (g *Generator) GenerateDefaults(start, goal terrain.Cell) ([]Route, error) {
	named := []struct {
		name   string
		lambda float64
	}{
		{RouteShortest, lambdaShortest},
		{RouteBalanced, lambdaBalanced},
		{RouteSafest, lambdaSafest},
	}
	for _, n := range named {
		if err := g.generate(n.name, n.lambda, start, goal); err != nil {
			return nil, err
		}
	}
	return g.Routes(), nil
}

// AddCustom plans one extra route per lambda and appends the successes.
func (g *Generator) AddCustom(start, goal terrain.Cell, lambdas []float64) ([]Route, error) {
	for _, l := range lambdas {
		if err := g.generate(RouteCustom, l, start, goal); err != nil {
			return nil, err
		}
	}
	return g.Routes(), nil
}

func (g *Generator) generate(name string, lambda float64, start, goal terrain.Cell) error {
	cfg := g.cfg
	cfg.Lambda = lambda
	planner, err := NewPlanner(g.model, cfg)
	if err != nil {
		return err
	}
	res, err := planner.Plan(start, goal)
	if err != nil {
		return err
	}
	if !res.Found {
		return nil // expected absence; skip this lambda
	}
	g.routes = append(g.routes, Route{
		Name:    name,
		Lambda:  lambda,
		Path:    res.Path,
		Metrics: g.measure(res.Path, lambda),
		Stats:   res.Stats,
	})
	return nil
}

// measure computes route metrics from the path. Risk and terrain cost
// accrue at arrival cells, matching the search cost model.
func (g *Generator) measure(path []terrain.Cell, lambda float64) RouteMetrics {
	var m RouteMetrics
	for i := 1; i < len(path); i++ {
		dx := float64(path[i].X - path[i-1].X)
		dy := float64(path[i].Y - path[i-1].Y)
		m.Distance += math.Hypot(dx, dy)
		m.TotalRisk += g.model.RiskAt(path[i])
		m.TerrainCost += g.model.WeightAt(path[i])
	}
	if steps := len(path) - 1; steps > 0 {
		m.AvgRisk = m.TotalRisk / float64(steps)
	}
	m.TotalCost = m.Distance + m.TotalRisk*lambda
	return m
}

// Routes returns a copy of the accumulated route collection.
func (g *Generator) Routes() []Route {
	out := make([]Route, len(g.routes))
	copy(out, g.routes)
	return out
}

// dominates reports whether b dominates a in (distance, totalRisk):
// b is no worse on both objectives and strictly better on at least one.
func dominates(b, a RouteMetrics) bool {
	if b.Distance > a.Distance || b.TotalRisk > a.TotalRisk {
		return false
	}
	return b.Distance < a.Distance || b.TotalRisk < a.TotalRisk
}

// ParetoFrontier returns the non-dominated subset of the accumulated
// routes, sorted by ascending distance. Recomputed from scratch on every
// call so late custom routes can evict earlier frontier members.
func (g *Generator) ParetoFrontier() []Route {
	var frontier []Route
	for i, cand := range g.routes {
		dominated := false
		for j, other := range g.routes {
			if i == j {
				continue
			}
			if dominates(other.Metrics, cand.Metrics) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, cand)
		}
	}
	sort.Slice(frontier, func(i, j int) bool {
		return frontier[i].Metrics.Distance < frontier[j].Metrics.Distance
	})
	return frontier
}

// named returns the first route with the given name, if present.
func (g *Generator) named(name string) (Route, bool) {
	for _, r := range g.routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// TradeOffs compares the named reference routes pairwise (faster vs
// safer) and flags pairs whose risk reduction exceeds twice their
// distance increase.
func (g *Generator) TradeOffs() []TradeOff {
	pairs := [][2]string{
		{RouteShortest, RouteBalanced},
		{RouteShortest, RouteSafest},
		{RouteBalanced, RouteSafest},
	}
	var out []TradeOff
	for _, pair := range pairs {
		from, okA := g.named(pair[0])
		to, okB := g.named(pair[1])
		if !okA || !okB {
			continue
		}
		var distInc, riskRed float64
		if from.Metrics.Distance > 0 {
			distInc = (to.Metrics.Distance - from.Metrics.Distance) / from.Metrics.Distance * 100
		}
		if from.Metrics.TotalRisk > 0 {
			riskRed = (from.Metrics.TotalRisk - to.Metrics.TotalRisk) / from.Metrics.TotalRisk * 100
		}
		out = append(out, TradeOff{
			From:           pair[0],
			To:             pair[1],
			DistanceIncPct: distInc,
			RiskReductPct:  riskRed,
			Recommended:    riskRed > 2*distInc,
		})
	}
	return out
}

// RankByEfficiency orders the accumulated routes by cost-effectiveness,
// best first. EfficiencyScore = 1/(distance*(totalRisk+1)).
func (g *Generator) RankByEfficiency() []RankedRoute {
	out := make([]RankedRoute, 0, len(g.routes))
	for _, r := range g.routes {
		score := math.Inf(1)
		if r.Metrics.Distance > 0 {
			score = 1 / (r.Metrics.Distance * (r.Metrics.TotalRisk + 1))
		}
		out = append(out, RankedRoute{
			Route:                r,
			EfficiencyScore:      score,
			CostPerRiskReduction: r.Metrics.Distance / (r.Metrics.TotalRisk + riskEpsilon),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EfficiencyScore > out[j].EfficiencyScore
	})
	return out
}
