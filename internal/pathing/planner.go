package pathing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/varun99015/stellarroute/internal/monitoring"
	"github.com/varun99015/stellarroute/internal/terrain"
)

// Heuristic selects the distance estimate used to order the search.
type Heuristic string

const (
	HeuristicManhattan Heuristic = "manhattan"
	HeuristicEuclidean Heuristic = "euclidean"
	HeuristicChebyshev Heuristic = "chebyshev"
)

// Search mode labels reported in SearchStats.
const (
	ModeUnidirectional = "unidirectional"
	ModeBidirectional  = "bidirectional"
	ModeFallback       = "bidirectional-fallback"
)

// hotRiskThreshold marks cells whose risk penalty is amplified; above it
// the effective lambda grows by hotRiskFactor, steering the search away
// from risk hot zones super-linearly as lambda rises.
const (
	hotRiskThreshold = 0.7
	hotRiskFactor    = 1.5
	baseMoveCost     = 1.0
)

// Planner errors.
var (
	ErrInvalidCoordinate = errors.New("pathing: coordinate outside grid")
	ErrNegativeLambda    = errors.New("pathing: lambda must be >= 0")
	ErrUnknownHeuristic  = errors.New("pathing: unknown heuristic")
)

// PlannerConfig holds the per-planner search parameters.
type PlannerConfig struct {
	Lambda        float64   // risk weight, >= 0
	Heuristic     Heuristic // distance estimate
	Bidirectional bool      // two-frontier search with meeting rule
}

// DefaultPlannerConfig returns the balanced planner setup.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Lambda:        0.5,
		Heuristic:     HeuristicEuclidean,
		Bidirectional: true,
	}
}

// SearchStats describes one completed planner invocation.
type SearchStats struct {
	NodesExplored int           `json:"nodes_explored"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	Mode          string        `json:"mode"`
	Heuristic     Heuristic     `json:"heuristic"`
}

// PlanResult is the outcome of a single Plan call. Found=false is an
// expected absence (unreachable goal), not an error; Reason carries the
// diagnostic.
type PlanResult struct {
	Found  bool
	Reason string
	Path   []terrain.Cell
	Stats  SearchStats
}

// Planner computes risk-weighted paths over one terrain model. A planner
// owns no cross-call state; frontiers live and die inside a single Plan.
//
// Heuristic admissibility is the caller's concern: Chebyshev and
// Euclidean never overestimate on an 8-connected grid with unit base
// cost, Manhattan can under diagonal moves. The configuration is kept
// open and the caveat documented rather than restricting choices.
type Planner struct {
	model *terrain.Model
	cfg   PlannerConfig
}

// NewPlanner validates the configuration against the model. Out-of-range
// parameters fail here, never silently corrected.
func NewPlanner(model *terrain.Model, cfg PlannerConfig) (*Planner, error) {
	if model == nil {
		return nil, fmt.Errorf("pathing: nil terrain model")
	}
	if cfg.Lambda < 0 {
		return nil, fmt.Errorf("%w: got %f", ErrNegativeLambda, cfg.Lambda)
	}
	switch cfg.Heuristic {
	case HeuristicManhattan, HeuristicEuclidean, HeuristicChebyshev:
	case "":
		cfg.Heuristic = HeuristicEuclidean
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeuristic, cfg.Heuristic)
	}
	return &Planner{model: model, cfg: cfg}, nil
}

// Plan computes a path from start to goal. An out-of-bounds endpoint is
// an input error; a reachable=false outcome is reported in the result.
func (p *Planner) Plan(start, goal terrain.Cell) (*PlanResult, error) {
	if !p.model.InBounds(start) {
		return nil, fmt.Errorf("%w: start %s", ErrInvalidCoordinate, start)
	}
	if !p.model.InBounds(goal) {
		return nil, fmt.Errorf("%w: goal %s", ErrInvalidCoordinate, goal)
	}

	began := time.Now()
	stats := SearchStats{Heuristic: p.cfg.Heuristic}

	if start == goal {
		stats.Mode = ModeUnidirectional
		stats.Elapsed = time.Since(began)
		return &PlanResult{Found: true, Path: []terrain.Cell{start}, Stats: stats}, nil
	}
	if p.model.Impassable(goal) {
		stats.Mode = ModeUnidirectional
		stats.Elapsed = time.Since(began)
		return &PlanResult{
			Found:  false,
			Reason: fmt.Sprintf("goal %s is blocked (%s)", goal, p.model.TypeAt(goal)),
			Stats:  stats,
		}, nil
	}

	var res *PlanResult
	if p.cfg.Bidirectional {
		res = p.searchBidirectional(start, goal)
	} else {
		res = p.searchUnidirectional(start, goal)
	}
	res.Stats.Heuristic = p.cfg.Heuristic
	res.Stats.Elapsed = time.Since(began)
	return res, nil
}

// effectiveLambda amplifies the risk weight inside hot zones.
func (p *Planner) effectiveLambda(risk float64) float64 {
	if risk > hotRiskThreshold {
		return p.cfg.Lambda * hotRiskFactor
	}
	return p.cfg.Lambda
}

// stepCost prices entering cell v.
func (p *Planner) stepCost(v terrain.Cell) float64 {
	risk := p.model.RiskAt(v)
	return baseMoveCost*p.model.WeightAt(v) + risk*p.effectiveLambda(risk)
}

func (p *Planner) heuristic(a, b terrain.Cell) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	switch p.cfg.Heuristic {
	case HeuristicManhattan:
		return dx + dy
	case HeuristicChebyshev:
		return math.Max(dx, dy)
	default:
		return math.Hypot(dx, dy)
	}
}

// moves is the 8-connected neighborhood: four cardinal, four diagonal.
var moves = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// neighbors appends the expandable neighbors of u to buf. Diagonal moves
// are rejected when either adjacent cardinal cell is blocked, so a path
// never cuts a corner.
func (p *Planner) neighbors(u terrain.Cell, buf []terrain.Cell) []terrain.Cell {
	for _, mv := range moves {
		v := terrain.Cell{X: u.X + mv[0], Y: u.Y + mv[1]}
		if p.model.Impassable(v) {
			continue
		}
		if mv[0] != 0 && mv[1] != 0 {
			if p.model.Impassable(terrain.Cell{X: u.X + mv[0], Y: u.Y}) ||
				p.model.Impassable(terrain.Cell{X: u.X, Y: u.Y + mv[1]}) {
				continue
			}
		}
		buf = append(buf, v)
	}
	return buf
}

// frontier is the per-direction search state: open set, closed set,
// predecessor map, and best-known cost map.
type frontier struct {
	open     *cellQueue
	closed   map[terrain.Cell]bool
	cameFrom map[terrain.Cell]terrain.Cell
	gScore   map[terrain.Cell]float64
	target   terrain.Cell
}

func newFrontier(origin, target terrain.Cell, h float64) *frontier {
	f := &frontier{
		open:     newCellQueue(),
		closed:   make(map[terrain.Cell]bool),
		cameFrom: make(map[terrain.Cell]terrain.Cell),
		gScore:   map[terrain.Cell]float64{origin: 0},
		target:   target,
	}
	f.open.Push(origin, h)
	return f
}

// expand closes the cheapest open cell and relaxes its neighbors.
// Returns the closed cell and ok=false when the frontier is exhausted.
func (p *Planner) expand(f *frontier, buf []terrain.Cell) (terrain.Cell, bool) {
	cur, ok := f.open.Pop()
	if !ok {
		return terrain.Cell{}, false
	}
	f.closed[cur] = true

	for _, v := range p.neighbors(cur, buf[:0]) {
		if f.closed[v] {
			continue
		}
		ng := f.gScore[cur] + p.stepCost(v)
		if best, seen := f.gScore[v]; seen && ng >= best {
			continue
		}
		f.gScore[v] = ng
		f.cameFrom[v] = cur
		f.open.Update(v, ng+p.heuristic(v, f.target))
	}
	return cur, true
}

// walkBack reconstructs origin→cell order from a frontier's predecessor
// map. A successful reconstruction never repeats a node.
func (f *frontier) walkBack(cell terrain.Cell) []terrain.Cell {
	var rev []terrain.Cell
	for {
		rev = append(rev, cell)
		prev, ok := f.cameFrom[cell]
		if !ok {
			break
		}
		cell = prev
	}
	path := make([]terrain.Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

func (p *Planner) searchUnidirectional(start, goal terrain.Cell) *PlanResult {
	f := newFrontier(start, goal, p.heuristic(start, goal))
	buf := make([]terrain.Cell, 0, 8)
	explored := 0

	for {
		cur, ok := p.expand(f, buf)
		if !ok {
			return &PlanResult{
				Found:  false,
				Reason: fmt.Sprintf("frontier exhausted after %d expansions", explored),
				Stats:  SearchStats{NodesExplored: explored, Mode: ModeUnidirectional},
			}
		}
		explored++
		if cur == goal {
			return &PlanResult{
				Found: true,
				Path:  f.walkBack(goal),
				Stats: SearchStats{NodesExplored: explored, Mode: ModeUnidirectional},
			}
		}
	}
}

// searchBidirectional expands a forward and a backward frontier in strict
// alternation. A cell closed by both sides is a meeting candidate; the
// search stops once the best candidate's combined cost is provably at
// least as good as anything still open on either side.
func (p *Planner) searchBidirectional(start, goal terrain.Cell) *PlanResult {
	fwd := newFrontier(start, goal, p.heuristic(start, goal))
	bwd := newFrontier(goal, start, p.heuristic(goal, start))
	buf := make([]terrain.Cell, 0, 8)
	explored := 0

	bestCost := math.Inf(1)
	var meeting terrain.Cell
	haveMeeting := false

	frontiers := [2]*frontier{fwd, bwd}
	for !fwd.open.Empty() || !bwd.open.Empty() {
		for _, f := range frontiers {
			cur, ok := p.expand(f, buf)
			if !ok {
				continue
			}
			explored++

			other := bwd
			if f == bwd {
				other = fwd
			}
			if other.closed[cur] {
				combined := fwd.gScore[cur] + bwd.gScore[cur]
				if combined < bestCost {
					bestCost = combined
					meeting = cur
					haveMeeting = true
				}
			}
		}

		if haveMeeting {
			fMin, fOK := fwd.open.MinPriority()
			bMin, bOK := bwd.open.MinPriority()
			if !fOK || !bOK || bestCost <= fMin+bMin {
				return &PlanResult{
					Found: true,
					Path:  splice(fwd, bwd, meeting),
					Stats: SearchStats{NodesExplored: explored, Mode: ModeBidirectional},
				}
			}
		}
	}

	if haveMeeting {
		return &PlanResult{
			Found: true,
			Path:  splice(fwd, bwd, meeting),
			Stats: SearchStats{NodesExplored: explored, Mode: ModeBidirectional},
		}
	}

	// Both frontiers drained without a meeting point. Retry the whole
	// search unidirectionally so a reachable goal is never reported
	// unreachable by the meeting rule alone.
	monitoring.Logf("pathing: bidirectional search found no meeting point for %s->%s, falling back to unidirectional", start, goal)
	res := p.searchUnidirectional(start, goal)
	res.Stats.NodesExplored += explored
	res.Stats.Mode = ModeFallback
	return res
}

// splice joins the two half-paths at the meeting cell.
func splice(fwd, bwd *frontier, meeting terrain.Cell) []terrain.Cell {
	path := fwd.walkBack(meeting) // start ... meeting
	back := bwd.walkBack(meeting) // goal ... meeting
	// The meeting cell is already the tail of path.
	for i := len(back) - 2; i >= 0; i-- {
		path = append(path, back[i])
	}
	return path
}
