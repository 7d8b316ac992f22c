package nav

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Mode selects the relaxation strategy of the flow-field generator.
type Mode string

const (
	// ModeExact expands cells in order of distance (Dijkstra). Every reachable
	// cell satisfies d(c) = min over free neighbours n of d(n)+step(c,n).
	ModeExact Mode = "exact"
	// ModeFIFO is a weighted breadth-first relaxation. A cell is enqueued once,
	// on first discovery; shorter paths found later update its distance in
	// place but are never re-expanded, so mixed 1/√2 costs can leave cells
	// slightly above their shortest distance behind obstacles.
	ModeFIFO Mode = "fifo"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExact, "":
		return ModeExact, nil
	case ModeFIFO:
		return ModeFIFO, nil
	}
	return "", fmt.Errorf("unknown field mode %q", s)
}

var unreachable = float32(math.Inf(1))

// Field is the distance from every cell to one destination.
type Field struct {
	size int
	dest Cell
	dist []float32
}

// NewField wraps a raw row-major distance slice, e.g. one loaded from cache.
func NewField(size int, dest Cell, dist []float32) (*Field, error) {
	if size < 1 || len(dist) != size*size {
		return nil, fmt.Errorf("field shape mismatch: size=%d len=%d", size, len(dist))
	}
	return &Field{size: size, dest: dest, dist: dist}, nil
}

func (f *Field) Size() int  { return f.size }
func (f *Field) Dest() Cell { return f.dest }

// At returns the distance of a cell, +Inf when unreachable or out of bounds.
func (f *Field) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= f.size || y >= f.size {
		return unreachable
	}
	return f.dist[y*f.size+x]
}

func (f *Field) Reachable(x, y int) bool { return !math.IsInf(float64(f.At(x, y)), 1) }

// Raw exposes the row-major distances. Callers must not modify it.
func (f *Field) Raw() []float32 { return f.dist }

func stepCost(o Cell) float32 {
	if o.X != 0 && o.Y != 0 {
		return math.Sqrt2
	}
	return 1
}

// Generate computes the distance field of dest over g. The destination is
// seeded at 0 even when it lies on an obstacle.
func Generate(g *Grid, dest Cell, mode Mode) (*Field, error) {
	if !g.InBounds(dest.X, dest.Y) {
		return nil, fmt.Errorf("destination (%d,%d) outside %dx%d map", dest.X, dest.Y, g.size, g.size)
	}
	dist := make([]float32, g.size*g.size)
	for i := range dist {
		dist[i] = unreachable
	}
	dist[g.index(dest.X, dest.Y)] = 0

	switch mode {
	case ModeFIFO:
		relaxFIFO(g, dest, dist)
	case ModeExact, "":
		relaxExact(g, dest, dist)
	default:
		return nil, fmt.Errorf("unknown field mode %q", mode)
	}
	return &Field{size: g.size, dest: dest, dist: dist}, nil
}

func relaxFIFO(g *Grid, dest Cell, dist []float32) {
	queue := make([]int, 0, g.size*4)
	queue = append(queue, g.index(dest.X, dest.Y))
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		cx, cy := cur%g.size, cur/g.size
		base := dist[cur]
		for _, o := range offsets {
			nx, ny := cx+o.X, cy+o.Y
			if g.Blocked(nx, ny) {
				continue
			}
			ni := g.index(nx, ny)
			cand := base + stepCost(o)
			if math.IsInf(float64(dist[ni]), 1) {
				dist[ni] = cand
				queue = append(queue, ni)
			} else if cand < dist[ni] {
				dist[ni] = cand
			}
		}
		// Release consumed prefix on large maps.
		if head > 1<<16 && head > len(queue)/2 {
			queue = append(queue[:0], queue[head+1:]...)
			head = -1
		}
	}
}

type pqItem struct {
	idx  int
	dist float32
}

type pq []pqItem

func (q pq) Len() int { return len(q) }
func (q pq) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].idx < q[j].idx
}
func (q pq) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pq) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *pq) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

func relaxExact(g *Grid, dest Cell, dist []float32) {
	done := make([]bool, len(dist))
	q := &pq{{idx: g.index(dest.X, dest.Y), dist: 0}}
	for q.Len() > 0 {
		it := heap.Pop(q).(pqItem)
		if done[it.idx] || it.dist > dist[it.idx] {
			continue
		}
		done[it.idx] = true
		cx, cy := it.idx%g.size, it.idx/g.size
		for _, o := range offsets {
			nx, ny := cx+o.X, cy+o.Y
			if g.Blocked(nx, ny) {
				continue
			}
			ni := g.index(nx, ny)
			if done[ni] {
				continue
			}
			cand := it.dist + stepCost(o)
			if cand < dist[ni] {
				dist[ni] = cand
				heap.Push(q, pqItem{idx: ni, dist: cand})
			}
		}
	}
}

// GenerateAll computes one field per destination in parallel. Fields share
// only the read-only grid.
func GenerateAll(ctx context.Context, g *Grid, dests []Cell, mode Mode, workers int) ([]*Field, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]*Field, len(dests))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, d := range dests {
		i, d := i, d
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := Generate(g, d, mode)
			if err != nil {
				return fmt.Errorf("destination %d: %w", i, err)
			}
			out[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
