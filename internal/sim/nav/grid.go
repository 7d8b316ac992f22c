package nav

import (
	"fmt"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/logic/mathx"
)

// BufferCells is the extra margin rasterized around every wall so that a cell
// only barely outside the physical wall radius is not considered free.
const BufferCells = 1

// Cell is a discrete grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// offsets is the fixed 8-neighbour enumeration order (x outer, y inner).
// Direction tie-breaking depends on it.
var offsets = [8]Cell{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Grid is a square occupancy grid. It is read-only once built.
type Grid struct {
	size    int
	blocked []bool
}

// NewGrid returns an obstacle-free grid.
func NewGrid(size int) *Grid {
	if size < 1 {
		size = 1
	}
	return &Grid{size: size, blocked: make([]bool, size*size)}
}

// Rasterize builds the occupancy grid of a map: every wall with its
// thickness and BufferCells margin, plus the four map edges.
func Rasterize(size int, walls []geometry.Wall) (*Grid, error) {
	if size < 3 {
		return nil, fmt.Errorf("map size %d too small", size)
	}
	g := NewGrid(size)
	for _, w := range walls {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		w.ForEachCell(BufferCells, g.block)
	}
	for _, w := range geometry.BorderWalls(size) {
		w.ForEachCell(0, g.block)
	}
	return g, nil
}

func (g *Grid) Size() int { return g.size }

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.size && y < g.size
}

// Blocked reports whether a cell is an obstacle. Out-of-bounds cells are blocked.
func (g *Grid) Blocked(x, y int) bool {
	if !g.InBounds(x, y) {
		return true
	}
	return g.blocked[g.index(x, y)]
}

func (g *Grid) Free(x, y int) bool { return !g.Blocked(x, y) }

// FreeCount returns the number of free cells.
func (g *Grid) FreeCount() int {
	n := 0
	for _, b := range g.blocked {
		if !b {
			n++
		}
	}
	return n
}

// Codes returns the grid row-major (index = y*size + x), 1 for blocked.
func (g *Grid) Codes() []uint16 {
	out := make([]uint16, len(g.blocked))
	for i, b := range g.blocked {
		if b {
			out[i] = 1
		}
	}
	return out
}

// Clamp maps an arbitrary coordinate onto the nearest in-bounds cell.
func (g *Grid) Clamp(x, y int) Cell {
	return Cell{X: mathx.ClampInt(x, 0, g.size-1), Y: mathx.ClampInt(y, 0, g.size-1)}
}

func (g *Grid) block(x, y int) {
	if g.InBounds(x, y) {
		g.blocked[g.index(x, y)] = true
	}
}

func (g *Grid) index(x, y int) int { return y*g.size + x }
