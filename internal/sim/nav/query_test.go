package nav

import (
	"math"
	"math/rand"
	"testing"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
)

func enclosedMap(t *testing.T) *Grid {
	t.Helper()
	walls := []geometry.Wall{
		{Start: geometry.Pt(10, 10), End: geometry.Pt(30, 10), Thickness: 1},
		{Start: geometry.Pt(10, 10), End: geometry.Pt(10, 30), Thickness: 1},
		{Start: geometry.Pt(30, 10), End: geometry.Pt(30, 30), Thickness: 1},
		{Start: geometry.Pt(10, 30), End: geometry.Pt(30, 30), Thickness: 1},
	}
	g, err := Rasterize(40, walls)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	return g
}

func navigatorFor(t *testing.T, g *Grid, dests ...Cell) *Navigator {
	t.Helper()
	fields := make([]*Field, 0, len(dests))
	for _, d := range dests {
		f, err := Generate(g, d, ModeExact)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		fields = append(fields, f)
	}
	n, err := NewNavigator(g, fields)
	if err != nil {
		t.Fatalf("NewNavigator: %v", err)
	}
	return n
}

func TestDirection_EmptyGridPointsTowardDestination(t *testing.T) {
	n := navigatorFor(t, NewGrid(10), Cell{9, 9})
	dx, dy := n.Direction(Cell{0, 0}, 0, rand.New(rand.NewSource(1)))
	if dx < 0 || dy < 0 || (dx == 0 && dy == 0) {
		t.Fatalf("direction (%d,%d) does not approach (9,9)", dx, dy)
	}
	if dx != 1 || dy != 1 {
		t.Fatalf("expected diagonal step, got (%d,%d)", dx, dy)
	}
}

func TestDirection_MonotonicDescentOnOpenMap(t *testing.T) {
	g, err := Rasterize(24, nil)
	if err != nil {
		t.Fatal(err)
	}
	dest := Cell{17, 6}
	n := navigatorFor(t, g, dest)
	f := n.Field(0)
	rng := rand.New(rand.NewSource(3))

	for y := 1; y < 23; y++ {
		for x := 1; x < 23; x++ {
			c := Cell{x, y}
			start := float64(f.At(x, y))
			steps := 0
			for {
				if absInt(c.X-dest.X) <= 1 && absInt(c.Y-dest.Y) <= 1 {
					break
				}
				dx, dy := n.Direction(c, 0, rng)
				next := Cell{c.X + dx, c.Y + dy}
				if f.At(next.X, next.Y) >= f.At(c.X, c.Y) {
					t.Fatalf("from (%d,%d): step %v -> %v does not descend", x, y, c, next)
				}
				c = next
				steps++
				if steps > 4*24 {
					t.Fatalf("from (%d,%d): no arrival", x, y)
				}
			}
			if float64(steps) > math.Ceil(start+tol) {
				t.Fatalf("from (%d,%d): %d steps for distance %v", x, y, steps, start)
			}
		}
	}
}

func TestDirection_EnclosedRegionFallsBackToRandom(t *testing.T) {
	g := enclosedMap(t)
	n := navigatorFor(t, g, Cell{5, 5})

	for seed := int64(0); seed < 20; seed++ {
		dx, dy := n.Direction(Cell{20, 20}, 0, rand.New(rand.NewSource(seed)))
		ref := rand.New(rand.NewSource(seed))
		wantX, wantY := ref.Intn(3)-1, ref.Intn(3)-1
		if dx != wantX || dy != wantY {
			t.Fatalf("seed %d: got (%d,%d) want random (%d,%d)", seed, dx, dy, wantX, wantY)
		}
	}
}

func TestDirection_NoFreeNeighbours(t *testing.T) {
	g := NewGrid(5)
	for _, o := range offsets {
		g.block(2+o.X, 2+o.Y)
	}
	n := navigatorFor(t, g, Cell{0, 0})
	rng := rand.New(rand.NewSource(9))
	seen := map[[2]int]bool{}
	for i := 0; i < 200; i++ {
		dx, dy := n.Direction(Cell{2, 2}, 0, rng)
		if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
			t.Fatalf("offset out of range (%d,%d)", dx, dy)
		}
		seen[[2]int{dx, dy}] = true
	}
	if len(seen) < 5 {
		t.Fatalf("fallback not random enough: %v", seen)
	}
}

func TestDirection_TieBreakFirstInEnumerationOrder(t *testing.T) {
	const size = 5
	tied := func(cells ...Cell) *Navigator {
		dist := make([]float32, size*size)
		for i := range dist {
			dist[i] = 5
		}
		for _, c := range cells {
			dist[c.Y*size+c.X] = 1
		}
		f, err := NewField(size, Cell{0, 4}, dist)
		if err != nil {
			t.Fatalf("NewField: %v", err)
		}
		n, err := NewNavigator(NewGrid(size), []*Field{f})
		if err != nil {
			t.Fatalf("NewNavigator: %v", err)
		}
		return n
	}
	rng := rand.New(rand.NewSource(1))

	// (1,3) and (3,1) tie; offset (-1,1) is enumerated before (1,-1).
	if dx, dy := tied(Cell{3, 1}, Cell{1, 3}).Direction(Cell{2, 2}, 0, rng); dx != -1 || dy != 1 {
		t.Fatalf("got (%d,%d), want (-1,1)", dx, dy)
	}
	// (3,1) and (3,3) tie; offset (1,-1) comes first.
	if dx, dy := tied(Cell{3, 3}, Cell{3, 1}).Direction(Cell{2, 2}, 0, rng); dx != 1 || dy != -1 {
		t.Fatalf("got (%d,%d), want (1,-1)", dx, dy)
	}
}

func TestNewNavigator_RejectsMismatchedFields(t *testing.T) {
	f, _ := Generate(NewGrid(8), Cell{1, 1}, ModeExact)
	if _, err := NewNavigator(NewGrid(9), []*Field{f}); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	if _, err := NewNavigator(NewGrid(9), nil); err == nil {
		t.Fatalf("expected empty error")
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
