// Package terrain holds the grid model the planner and simulator share:
// a rectangular field of terrain categories plus a parallel risk surface.
package terrain

import (
	"fmt"
)

// Type classifies a single grid cell.
type Type string

const (
	Road     Type = "road"
	Grass    Type = "grass"
	Forest   Type = "forest"
	Mountain Type = "mountain"
	Water    Type = "water"
	Urban    Type = "urban"
	Rough    Type = "rough"
	Default  Type = "default"
	Blocked  Type = "blocked"
)

// DefaultWeights returns the traversal cost multiplier per terrain type.
// Water is priced high enough to be avoided even when a cell is not
// hard-blocked.
func DefaultWeights() map[Type]float64 {
	return map[Type]float64{
		Road:     0.8,
		Grass:    1.0,
		Forest:   1.5,
		Mountain: 2.5,
		Water:    50.0,
		Urban:    1.2,
		Rough:    2.0,
		Default:  1.0,
	}
}

// Cell is a grid coordinate. Cells are compared by value.
type Cell struct {
	X int
	Y int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Model is an immutable terrain grid with a matching risk surface and a
// weight table. Construct one per planning session; the planner and the
// simulator both read from it, neither mutates it.
type Model struct {
	width   int
	height  int
	cells   [][]Type    // indexed [y][x]
	risk    [][]float64 // indexed [y][x], values in [0,1]
	weights map[Type]float64
}

// NewModel validates that the terrain grid and risk surface are
// rectangular and share dimensions. Dimension mismatches are construction
// errors, never discovered mid-search.
func NewModel(cells [][]Type, risk [][]float64, weights map[Type]float64) (*Model, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, fmt.Errorf("terrain: empty grid")
	}
	h := len(cells)
	w := len(cells[0])
	for y, row := range cells {
		if len(row) != w {
			return nil, fmt.Errorf("terrain: ragged grid row %d: got %d cells, want %d", y, len(row), w)
		}
	}
	if len(risk) != h {
		return nil, fmt.Errorf("terrain: risk map has %d rows, grid has %d", len(risk), h)
	}
	for y, row := range risk {
		if len(row) != w {
			return nil, fmt.Errorf("terrain: risk map row %d has %d cells, grid has %d", y, len(row), w)
		}
		for x, r := range row {
			if r < 0 || r > 1 {
				return nil, fmt.Errorf("terrain: risk at (%d,%d) = %f, want [0,1]", x, y, r)
			}
		}
	}
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Model{width: w, height: h, cells: cells, risk: risk, weights: weights}, nil
}

// UniformModel builds an open grid of a single terrain type with constant
// risk. Test and scenario setup helper.
func UniformModel(width, height int, t Type, risk float64) (*Model, error) {
	cells := make([][]Type, height)
	rm := make([][]float64, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]Type, width)
		rm[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			cells[y][x] = t
			rm[y][x] = risk
		}
	}
	return NewModel(cells, rm, nil)
}

// Width returns the grid width in cells.
func (m *Model) Width() int { return m.width }

// Height returns the grid height in cells.
func (m *Model) Height() int { return m.height }

// InBounds reports whether c lies inside the grid.
func (m *Model) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < m.width && c.Y >= 0 && c.Y < m.height
}

// TypeAt returns the terrain type at c. Caller must bounds-check first.
func (m *Model) TypeAt(c Cell) Type {
	return m.cells[c.Y][c.X]
}

// RiskAt returns the risk scalar at c. Caller must bounds-check first.
func (m *Model) RiskAt(c Cell) float64 {
	return m.risk[c.Y][c.X]
}

// WeightAt returns the traversal weight for the terrain at c, falling
// back to the Default weight for types missing from the table.
func (m *Model) WeightAt(c Cell) float64 {
	if w, ok := m.weights[m.cells[c.Y][c.X]]; ok {
		return w
	}
	if w, ok := m.weights[Default]; ok {
		return w
	}
	return 1.0
}

// Impassable reports whether c is outside the grid or hard-blocked
// (water or an explicit blocked cell).
func (m *Model) Impassable(c Cell) bool {
	if !m.InBounds(c) {
		return true
	}
	t := m.cells[c.Y][c.X]
	return t == Water || t == Blocked
}
