package epidemic

import (
	"math"
	"math/rand"
	"testing"
)

var testParams = Params{MeanIncubationTicks: 20, MeanInfectiousTicks: 40}

func mustPopulation(t *testing.T, n int, seed int64) *Population {
	t.Helper()
	p, err := NewPopulation(n, seed, testParams)
	if err != nil {
		t.Fatalf("NewPopulation: %v", err)
	}
	return p
}

func TestPopulation_NoTransmissionKeepsSeededCount(t *testing.T) {
	p := mustPopulation(t, 100, 42)
	if _, err := p.SeedInfections(3, 0, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("SeedInfections: %v", err)
	}
	for tick := uint64(0); tick < 2000; tick++ {
		p.Advance(tick)
		c := p.Counts()
		if c.Total() != 100 {
			t.Fatalf("tick %d: total %d", tick, c.Total())
		}
		if c.Ever() != 3 {
			t.Fatalf("tick %d: %d ever infected, want 3", tick, c.Ever())
		}
	}
	if c := p.Counts(); c.Removed != 3 {
		t.Fatalf("expected every seeded agent removed after 2000 ticks, got %+v", c)
	}
}

func TestPopulation_TransitionOrdering(t *testing.T) {
	const n = 200
	p := mustPopulation(t, n, 7)
	rng := rand.New(rand.NewSource(2))
	prev := make([]Status, n)
	sawInfectious := make([]bool, n)
	for tick := uint64(0); tick < 1500; tick++ {
		// Sporadic external infections.
		if tick%5 == 0 {
			p.Infect(rng.Intn(n), tick)
		}
		p.Advance(tick)
		for i := 0; i < n; i++ {
			s := p.Status(i)
			if s < prev[i] {
				t.Fatalf("agent %d went back from %s to %s", i, prev[i], s)
			}
			// Infect and Advance in one tick may move Susceptible straight
			// to Infectious; nothing else may skip a state.
			if s > prev[i]+1 && !(prev[i] == Susceptible && s == Infectious) {
				t.Fatalf("agent %d skipped from %s to %s", i, prev[i], s)
			}
			if s == Infectious {
				sawInfectious[i] = true
			}
			if s == Removed && !sawInfectious[i] {
				t.Fatalf("agent %d removed without being infectious", i)
			}
			prev[i] = s
		}
	}
}

func TestPopulation_InfectOnlySusceptible(t *testing.T) {
	p := mustPopulation(t, 2, 1)
	if !p.Infect(0, 5) {
		t.Fatalf("first infection refused")
	}
	if p.Infect(0, 6) {
		t.Fatalf("re-infection accepted")
	}
	st := p.State(0)
	if st.Status != Infected || st.ChangedTick != 5 {
		t.Fatalf("state %+v", st)
	}
	p.Restore(1, State{Status: Removed, ChangedTick: 1})
	if p.Infect(1, 7) {
		t.Fatalf("removed agent re-infected")
	}
	p.Advance(1 << 40)
	p.Advance(1 << 41)
	if p.Status(1) != Removed {
		t.Fatalf("removed is not terminal")
	}
}

func TestPopulation_TransitionFiresAtSampledDuration(t *testing.T) {
	p := mustPopulation(t, 1, 3)
	p.Infect(0, 10)
	d := p.State(0).Duration
	if d > 0 {
		p.Advance(10 + d - 1)
		if p.Status(0) != Infected {
			t.Fatalf("transitioned before incubation elapsed")
		}
	}
	tr := p.Advance(10 + d)
	if p.Status(0) != Infectious || tr.BecameInfectious != 1 {
		t.Fatalf("no transition at incubation end: %s %+v", p.Status(0), tr)
	}
	if p.State(0).ChangedTick != 10+d {
		t.Fatalf("changed tick %d", p.State(0).ChangedTick)
	}
}

func TestPopulation_DurationMeans(t *testing.T) {
	const n = 5000
	p := mustPopulation(t, n, 11)
	var sum float64
	for i := 0; i < n; i++ {
		p.Infect(i, 0)
		sum += float64(p.State(i).Duration)
	}
	mean := sum / n
	// Ceil adds about half a tick.
	if math.Abs(mean-testParams.MeanIncubationTicks) > 0.1*testParams.MeanIncubationTicks+1 {
		t.Fatalf("incubation mean %.2f, want ~%v", mean, testParams.MeanIncubationTicks)
	}
}

func TestPopulation_DeterministicPerSeed(t *testing.T) {
	a := mustPopulation(t, 50, 99)
	b := mustPopulation(t, 50, 99)
	for i := 0; i < 50; i++ {
		a.Infect(i, 0)
		b.Infect(i, 0)
	}
	for tick := uint64(0); tick < 300; tick++ {
		a.Advance(tick)
		b.Advance(tick)
	}
	for i := 0; i < 50; i++ {
		if a.State(i) != b.State(i) {
			t.Fatalf("agent %d diverged: %+v vs %+v", i, a.State(i), b.State(i))
		}
	}
}

func TestSeedInfections_Bounds(t *testing.T) {
	p := mustPopulation(t, 5, 1)
	if _, err := p.SeedInfections(6, 0, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected error")
	}
	picked, err := p.SeedInfections(5, 0, rand.New(rand.NewSource(1)))
	if err != nil || len(picked) != 5 {
		t.Fatalf("picked %v err %v", picked, err)
	}
	if c := p.Counts(); c.Infected != 5 {
		t.Fatalf("counts %+v", c)
	}
}

func TestStatus_Text(t *testing.T) {
	for s := Susceptible; s <= Removed; s++ {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Status
		if err := back.UnmarshalText(b); err != nil || back != s {
			t.Fatalf("%s -> %q -> %s (%v)", s, b, back, err)
		}
	}
	if _, err := ParseStatus("zombie"); err == nil {
		t.Fatalf("expected error")
	}
}
