package physics

import (
	"math"
	"testing"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
)

func TestStep_HeadOnCirclesExchangeVelocity(t *testing.T) {
	s := NewSpace(100)
	a := s.AddCircle(geometry.V(40, 50), geometry.V(10, 0), 4)
	b := s.AddCircle(geometry.V(60, 50), geometry.V(-10, 0), 4)

	var begins [][2]Handle
	s.SetBeginHandler(func(x, y Handle) bool {
		begins = append(begins, [2]Handle{x, y})
		return true
	})
	for i := 0; i < 20; i++ {
		s.Step(0.05)
	}
	if len(begins) != 1 || begins[0] != [2]Handle{a, b} {
		t.Fatalf("begins = %v", begins)
	}
	if va := s.Velocity(a); va.X >= 0 {
		t.Fatalf("a did not bounce: %v", va)
	}
	if vb := s.Velocity(b); vb.X <= 0 {
		t.Fatalf("b did not bounce: %v", vb)
	}
	if math.Abs(s.Velocity(a).X+s.Velocity(b).X) > 1e-9 {
		t.Fatalf("momentum not conserved: %v %v", s.Velocity(a), s.Velocity(b))
	}
}

func TestStep_BeginFiresOncePerTouch(t *testing.T) {
	s := NewSpace(100)
	a := s.AddCircle(geometry.V(50, 50), geometry.Vec2{}, 4)
	b := s.AddCircle(geometry.V(55, 50), geometry.Vec2{}, 4)
	calls := 0
	s.SetBeginHandler(func(_, _ Handle) bool { calls++; return false })

	for i := 0; i < 5; i++ {
		s.Step(0.01)
	}
	if calls != 1 {
		t.Fatalf("calls = %d while touching", calls)
	}
	// Rejected contact: no positional correction.
	if d := s.Position(b).Sub(s.Position(a)).Len(); math.Abs(d-5) > 1e-9 {
		t.Fatalf("rejected contact moved bodies: dist %v", d)
	}

	s.SetPosition(b, geometry.V(80, 50))
	s.Step(0.01)
	s.SetPosition(b, geometry.V(56, 50))
	s.Step(0.01)
	if calls != 2 {
		t.Fatalf("calls = %d after re-touch", calls)
	}
}

func TestStep_CircleBouncesOffSegment(t *testing.T) {
	s := NewSpace(100)
	wall := s.AddSegment(geometry.V(70, 10), geometry.V(70, 90), 3)
	c := s.AddCircle(geometry.V(50, 50), geometry.V(20, 0), 4)
	var got []Handle
	s.SetBeginHandler(func(x, y Handle) bool {
		got = append(got, x, y)
		return true
	})
	for i := 0; i < 60; i++ {
		s.Step(0.02)
		if p := s.Position(c); p.X > 70-3 {
			t.Fatalf("tunnelled into wall at %v", p)
		}
	}
	if len(got) != 2 || got[0] != c || got[1] != wall {
		t.Fatalf("begin args %v", got)
	}
	if !s.IsSegment(wall) || s.IsSegment(c) {
		t.Fatalf("IsSegment wrong")
	}
	if v := s.Velocity(c); v.X >= 0 {
		t.Fatalf("did not bounce: %v", v)
	}
}

func TestStep_ConfinedToBounds(t *testing.T) {
	s := NewSpace(50)
	c := s.AddCircle(geometry.V(45, 5), geometry.V(100, -100), 2)
	for i := 0; i < 30; i++ {
		s.Step(0.1)
		p := s.Position(c)
		if p.X < 2 || p.X > 48 || p.Y < 2 || p.Y > 48 {
			t.Fatalf("escaped: %v", p)
		}
	}
}

func TestStep_Deterministic(t *testing.T) {
	run := func() []geometry.Vec2 {
		s := NewSpace(200)
		for i := 0; i < 30; i++ {
			x := float64(10 + (i*37)%180)
			y := float64(10 + (i*53)%180)
			s.AddCircle(geometry.V(x, y), geometry.V(float64(i%7-3)*10, float64(i%5-2)*10), 4)
		}
		s.AddSegment(geometry.V(100, 20), geometry.V(100, 180), 3)
		for i := 0; i < 300; i++ {
			s.Step(1.0 / 60)
		}
		out := make([]geometry.Vec2, 0, 30)
		for _, h := range s.Circles() {
			out = append(out, s.Position(h))
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("body %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStep_KinematicSegmentPushesCircle(t *testing.T) {
	s := NewSpace(200)
	seg := s.AddSegment(geometry.V(20, 10), geometry.V(20, 90), 3)
	s.SetVelocity(seg, geometry.V(30, 0))
	s.SetElasticity(seg, 0.5)
	c := s.AddCircle(geometry.V(40, 50), geometry.Vec2{}, 4)

	const dt = 1.0 / 60
	for i := 0; i < 60; i++ {
		s.Step(dt)
		a, _ := s.SegmentEndpoints(seg)
		if p := s.Position(c); p.X < a.X {
			t.Fatalf("step %d: circle %v behind segment at x=%v", i, p, a.X)
		}
	}
	a, b := s.SegmentEndpoints(seg)
	if math.Abs(a.X-50) > 1e-6 || math.Abs(b.X-50) > 1e-6 || a.Y != 10 || b.Y != 90 {
		t.Fatalf("segment endpoints %v %v", a, b)
	}
	if v := s.Velocity(c); v.X <= 30 {
		t.Fatalf("circle velocity %v, want faster than the segment", v)
	}
}

func TestStep_DoorOpensAndCloses(t *testing.T) {
	s := NewSpace(100)
	top, bottom := geometry.V(50, 10), geometry.V(50, 90)
	door := s.AddSegment(top, bottom, 3)
	c := s.AddCircle(geometry.V(30, 70), geometry.V(20, 0), 4)

	run := func(steps int) {
		for i := 0; i < steps; i++ {
			s.Step(0.02)
		}
	}

	run(100)
	if p, v := s.Position(c), s.Velocity(c); p.X > 50 || v.X >= 0 {
		t.Fatalf("closed door let circle through: pos %v vel %v", p, v)
	}

	// Open the lower half.
	s.SetSegmentEndpoints(door, top, geometry.V(50, 50))
	s.SetPosition(c, geometry.V(30, 70))
	s.SetVelocity(c, geometry.V(20, 0))
	run(100)
	if p := s.Position(c); p.X < 60 {
		t.Fatalf("open door blocked circle: pos %v", p)
	}

	s.SetSegmentEndpoints(door, top, bottom)
	s.SetVelocity(c, geometry.V(-20, 0))
	run(100)
	if p, v := s.Position(c), s.Velocity(c); p.X < 50 || v.X <= 0 {
		t.Fatalf("closed door let circle back: pos %v vel %v", p, v)
	}
}
