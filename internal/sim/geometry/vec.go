package geometry

import "math"

// Vec2 is a continuous map position or velocity.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2      { return Vec2{X: a.X + b.X, Y: a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2      { return Vec2{X: a.X - b.X, Y: a.Y - b.Y} }
func (a Vec2) Scale(f float64) Vec2 { return Vec2{X: a.X * f, Y: a.Y * f} }
func (a Vec2) Dot(b Vec2) float64   { return a.X*b.X + a.Y*b.Y }
func (a Vec2) LenSq() float64       { return a.X*a.X + a.Y*a.Y }
func (a Vec2) Len() float64         { return math.Sqrt(a.LenSq()) }

// Point is an integer map coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func Pt(x, y int) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point  { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Equal(q Point) bool { return p.X == q.X && p.Y == q.Y }
func (p Point) Vec() Vec2          { return Vec2{X: float64(p.X), Y: float64(p.Y)} }
