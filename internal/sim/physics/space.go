// Package physics is a small 2D rigid-body space: dynamic circles and
// static or kinematic thick segments, explicit Euler integration, elastic
// contact response and begin-contact callbacks. It plays the role of the external physics engine
// of a run; anything implementing the same calls can replace it.
package physics

import (
	"fmt"
	"math"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/logic/mathx"
)

// Handle identifies a body in a Space. The zero Handle is never issued.
type Handle uint32

// BeginFunc is called once when two bodies start touching. Returning false
// ignores the contact until the pair separates.
type BeginFunc func(a, b Handle) bool

type kind uint8

const (
	kindCircle kind = iota + 1
	kindSegment
)

type body struct {
	kind   kind
	pos    geometry.Vec2
	vel    geometry.Vec2
	radius float64
	// elasticity multiplies the space restitution for contacts with this body.
	elasticity float64
	// segment endpoints; a segment with non-zero vel is kinematic
	a, b geometry.Vec2
}

type pairKey struct{ a, b Handle }

type contact struct {
	key      pairKey
	normal   geometry.Vec2 // from a toward b
	overlap  float64
	accepted bool
}

// Space is not safe for concurrent use.
type Space struct {
	size        float64
	restitution float64

	bodies   []body
	circles  []Handle
	segments []Handle

	cellSize  float64
	maxRadius float64
	buckets   map[[2]int][]Handle

	begin    BeginFunc
	touching map[pairKey]bool
}

// NewSpace returns a space whose dynamic bodies are confined to [0,size]².
func NewSpace(size float64) *Space {
	return &Space{
		size:        size,
		restitution: 1,
		cellSize:    1,
		buckets:     make(map[[2]int][]Handle),
		touching:    make(map[pairKey]bool),
	}
}

// SetRestitution sets the coefficient used by every contact (1 = elastic).
func (s *Space) SetRestitution(e float64) { s.restitution = e }

func (s *Space) SetBeginHandler(fn BeginFunc) { s.begin = fn }

func (s *Space) AddCircle(pos, vel geometry.Vec2, radius float64) Handle {
	s.bodies = append(s.bodies, body{kind: kindCircle, pos: pos, vel: vel, radius: radius, elasticity: 1})
	h := Handle(len(s.bodies))
	s.circles = append(s.circles, h)
	if radius > s.maxRadius {
		s.maxRadius = radius
		s.cellSize = math.Max(2*radius, 1)
	}
	return h
}

// AddSegment adds a segment with rounded ends of the given radius. It stays
// static until SetVelocity gives it a velocity.
func (s *Space) AddSegment(a, b geometry.Vec2, radius float64) Handle {
	s.bodies = append(s.bodies, body{kind: kindSegment, a: a, b: b, radius: radius, elasticity: 1})
	h := Handle(len(s.bodies))
	s.segments = append(s.segments, h)
	return h
}

func (s *Space) get(h Handle) *body {
	if h == 0 || int(h) > len(s.bodies) {
		panic(fmt.Sprintf("physics: unknown handle %d", h))
	}
	return &s.bodies[h-1]
}

func (s *Space) Position(h Handle) geometry.Vec2       { return s.get(h).pos }
func (s *Space) Velocity(h Handle) geometry.Vec2       { return s.get(h).vel }
func (s *Space) SetVelocity(h Handle, v geometry.Vec2) { s.get(h).vel = v }
func (s *Space) SetPosition(h Handle, p geometry.Vec2) { s.get(h).pos = p }
func (s *Space) IsSegment(h Handle) bool               { return s.get(h).kind == kindSegment }
func (s *Space) SetElasticity(h Handle, e float64)     { s.get(h).elasticity = e }
func (s *Space) Circles() []Handle                     { return s.circles }

// SetSegmentEndpoints moves a segment without any contact response, like a
// teleport. Contacts are picked up on the next Step.
func (s *Space) SetSegmentEndpoints(h Handle, a, b geometry.Vec2) {
	seg := s.get(h)
	if seg.kind != kindSegment {
		panic(fmt.Sprintf("physics: handle %d is not a segment", h))
	}
	seg.a, seg.b = a, b
}

func (s *Space) SegmentEndpoints(h Handle) (a, b geometry.Vec2) {
	seg := s.get(h)
	return seg.a, seg.b
}

// Step advances the space by dt seconds. Begin callbacks run synchronously,
// in a deterministic pair order, before Step returns.
func (s *Space) Step(dt float64) {
	for _, h := range s.circles {
		b := s.get(h)
		b.pos = b.pos.Add(b.vel.Scale(dt))
	}
	for _, h := range s.segments {
		seg := s.get(h)
		if seg.vel != (geometry.Vec2{}) {
			d := seg.vel.Scale(dt)
			seg.a, seg.b = seg.a.Add(d), seg.b.Add(d)
		}
	}

	contacts := s.detect()
	next := make(map[pairKey]bool, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		accepted, seen := s.touching[c.key]
		if !seen {
			accepted = true
			if s.begin != nil {
				accepted = s.begin(c.key.a, c.key.b)
			}
		}
		c.accepted = accepted
		next[c.key] = accepted
	}
	s.touching = next

	for i := range contacts {
		if contacts[i].accepted {
			s.resolve(contacts[i])
		}
	}
	s.confine()
}

func (s *Space) cellOf(p geometry.Vec2) [2]int {
	return [2]int{int(math.Floor(p.X / s.cellSize)), int(math.Floor(p.Y / s.cellSize))}
}

func (s *Space) detect() []contact {
	var out []contact
	if len(s.circles) == 0 {
		return out
	}

	for k := range s.buckets {
		delete(s.buckets, k)
	}
	for _, h := range s.circles {
		c := s.cellOf(s.get(h).pos)
		s.buckets[c] = append(s.buckets[c], h)
	}

	for _, ha := range s.circles {
		a := s.get(ha)
		ca := s.cellOf(a.pos)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, hb := range s.buckets[[2]int{ca[0] + dx, ca[1] + dy}] {
					if hb <= ha {
						continue
					}
					b := s.get(hb)
					d := b.pos.Sub(a.pos)
					r := a.radius + b.radius
					distSq := d.LenSq()
					if distSq >= r*r {
						continue
					}
					dist := math.Sqrt(distSq)
					n := geometry.V(1, 0)
					if dist > 0 {
						n = d.Scale(1 / dist)
					}
					out = append(out, contact{key: pairKey{ha, hb}, normal: n, overlap: r - dist})
				}
			}
		}

		for _, hs := range s.segments {
			seg := s.get(hs)
			q := closestOnSegment(seg.a, seg.b, a.pos)
			d := q.Sub(a.pos)
			r := a.radius + seg.radius
			distSq := d.LenSq()
			if distSq >= r*r {
				continue
			}
			dist := math.Sqrt(distSq)
			n := geometry.V(1, 0)
			if dist > 0 {
				n = d.Scale(1 / dist)
			}
			out = append(out, contact{key: pairKey{ha, hs}, normal: n, overlap: r - dist})
		}
	}
	return out
}

func closestOnSegment(a, b, p geometry.Vec2) geometry.Vec2 {
	ab := b.Sub(a)
	l := ab.LenSq()
	if l == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / l
	t = mathx.ClampFloat(t, 0, 1)
	return a.Add(ab.Scale(t))
}

func (s *Space) resolve(c contact) {
	a := s.get(c.key.a)
	b := s.get(c.key.b)
	e := s.restitution * a.elasticity * b.elasticity
	if b.kind == kindSegment {
		// Infinite mass: the circle takes the whole response, relative to
		// the segment's own velocity.
		if vn := a.vel.Sub(b.vel).Dot(c.normal); vn > 0 {
			a.vel = a.vel.Sub(c.normal.Scale((1 + e) * vn))
		}
		a.pos = a.pos.Sub(c.normal.Scale(c.overlap))
		return
	}
	// Equal masses.
	vn := b.vel.Sub(a.vel).Dot(c.normal)
	if vn < 0 {
		j := (1 + e) * vn / 2
		a.vel = a.vel.Add(c.normal.Scale(j))
		b.vel = b.vel.Sub(c.normal.Scale(j))
	}
	half := c.normal.Scale(c.overlap / 2)
	a.pos = a.pos.Sub(half)
	b.pos = b.pos.Add(half)
}

func (s *Space) confine() {
	for _, h := range s.circles {
		b := s.get(h)
		lo, hi := b.radius, s.size-b.radius
		if b.pos.X < lo {
			b.pos.X, b.vel.X = lo, math.Abs(b.vel.X)
		} else if b.pos.X > hi {
			b.pos.X, b.vel.X = hi, -math.Abs(b.vel.X)
		}
		if b.pos.Y < lo {
			b.pos.Y, b.vel.Y = lo, math.Abs(b.vel.Y)
		} else if b.pos.Y > hi {
			b.pos.Y, b.vel.Y = hi, -math.Abs(b.vel.Y)
		}
	}
}
