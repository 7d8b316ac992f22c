package geometry

import "fmt"

// Wall is an axis-aligned static segment with an odd integer thickness.
type Wall struct {
	Start     Point `json:"start"`
	End       Point `json:"end"`
	Thickness int   `json:"thickness"`
}

// WallError reports malformed wall geometry. It is a construction-time
// failure; a map containing such a wall cannot be simulated.
type WallError struct {
	Wall   Wall
	Reason string
}

func (e *WallError) Error() string {
	return fmt.Sprintf("wall (%d,%d)-(%d,%d) thickness=%d: %s",
		e.Wall.Start.X, e.Wall.Start.Y, e.Wall.End.X, e.Wall.End.Y, e.Wall.Thickness, e.Reason)
}

func (w Wall) Validate() error {
	switch {
	case w.Start.Equal(w.End):
		return &WallError{Wall: w, Reason: "zero-length segment"}
	case w.Start.X != w.End.X && w.Start.Y != w.End.Y:
		return &WallError{Wall: w, Reason: "segment is not axis-aligned"}
	case w.Thickness <= 0:
		return &WallError{Wall: w, Reason: "thickness must be positive"}
	case w.Thickness%2 == 0:
		return &WallError{Wall: w, Reason: "thickness must be odd"}
	}
	return nil
}

// Vertical reports whether the wall runs parallel to the y axis.
func (w Wall) Vertical() bool { return w.Start.X == w.End.X }

// ForEachCell calls fn for every cell covered by the wall: thickness/2 cells
// on each side of the segment plus buffer extra cells, extended by the same
// margin past both endpoints.
func (w Wall) ForEachCell(buffer int, fn func(x, y int)) {
	extra := w.Thickness/2 + buffer
	if w.Vertical() {
		lo, hi := minInt(w.Start.Y, w.End.Y), maxInt(w.Start.Y, w.End.Y)
		for y := lo - extra; y <= hi+extra; y++ {
			for x := w.Start.X - extra; x <= w.Start.X+extra; x++ {
				fn(x, y)
			}
		}
		return
	}
	lo, hi := minInt(w.Start.X, w.End.X), maxInt(w.Start.X, w.End.X)
	for x := lo - extra; x <= hi+extra; x++ {
		for y := w.Start.Y - extra; y <= w.Start.Y+extra; y++ {
			fn(x, y)
		}
	}
}

// ValidateAll returns the first malformed wall, if any.
func ValidateAll(walls []Wall) error {
	for _, w := range walls {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BorderWalls returns the four map edges as thickness-1 walls.
func BorderWalls(size int) []Wall {
	m := size - 1
	return []Wall{
		{Start: Pt(0, 0), End: Pt(m, 0), Thickness: 1},
		{Start: Pt(0, 0), End: Pt(0, m), Thickness: 1},
		{Start: Pt(m, 0), End: Pt(m, m), Thickness: 1},
		{Start: Pt(0, m), End: Pt(m, m), Thickness: 1},
	}
}

// BorderWallsWithGap is BorderWalls with x in (lo, hi) of the bottom edge
// left open. An empty interval returns BorderWalls(size).
func BorderWallsWithGap(size, lo, hi int) []Wall {
	walls := BorderWalls(size)
	if hi <= lo {
		return walls
	}
	m := size - 1
	walls = walls[:3]
	if lo > 0 {
		walls = append(walls, Wall{Start: Pt(0, m), End: Pt(minInt(lo, m), m), Thickness: 1})
	}
	if hi < m {
		walls = append(walls, Wall{Start: Pt(hi, m), End: Pt(m, m), Thickness: 1})
	}
	return walls
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
