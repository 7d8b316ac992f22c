package nav

import (
	"fmt"
	"math/rand"
)

// Navigator answers per-agent direction queries against precomputed fields.
// It holds no mutable state and is safe for concurrent use.
type Navigator struct {
	grid   *Grid
	fields []*Field
}

func NewNavigator(g *Grid, fields []*Field) (*Navigator, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("navigator: no fields")
	}
	for i, f := range fields {
		if f == nil || f.size != g.size {
			return nil, fmt.Errorf("navigator: field %d does not match %dx%d grid", i, g.size, g.size)
		}
	}
	return &Navigator{grid: g, fields: fields}, nil
}

func (n *Navigator) Grid() *Grid        { return n.grid }
func (n *Navigator) Destinations() int  { return len(n.fields) }
func (n *Navigator) Field(i int) *Field { return n.fields[i] }
func (n *Navigator) Fields() []*Field   { return n.fields }

// Direction returns the offset from c to its free neighbour with the smallest
// distance toward destination dest; the first minimum in enumeration order
// wins. When no neighbour has a finite distance (enclosed cell, unreachable
// region, unknown destination) a uniformly random offset from {-1,0,1}² is
// drawn from rng so the agent does not stall.
func (n *Navigator) Direction(c Cell, dest int, rng *rand.Rand) (dx, dy int) {
	if dest >= 0 && dest < len(n.fields) {
		f := n.fields[dest]
		best := unreachable
		found := false
		for _, o := range offsets {
			nx, ny := c.X+o.X, c.Y+o.Y
			if n.grid.Blocked(nx, ny) {
				continue
			}
			if d := f.At(nx, ny); d < best {
				best = d
				dx, dy = o.X, o.Y
				found = true
			}
		}
		if found {
			return dx, dy
		}
	}
	return rng.Intn(3) - 1, rng.Intn(3) - 1
}
