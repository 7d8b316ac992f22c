package contact

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/physics"
)

var params = epidemic.Params{MeanIncubationTicks: 100, MeanInfectiousTicks: 100}

func newPop(t *testing.T, n int) *epidemic.Population {
	t.Helper()
	p, err := epidemic.NewPopulation(n, 1, params)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func makeInfectious(p *epidemic.Population, i int) {
	p.Restore(i, epidemic.State{Status: epidemic.Infectious, Duration: 1 << 30})
}

func newResolver(t *testing.T, pop *epidemic.Population, prob float64, seed int64) *Resolver {
	t.Helper()
	r, err := NewResolver(pop, prob, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < pop.Len(); i++ {
		r.Register(physics.Handle(i+1), i)
	}
	return r
}

func TestBegin_AlwaysAccepts(t *testing.T) {
	pop := newPop(t, 3)
	makeInfectious(pop, 0)
	r := newResolver(t, pop, 1, 1)
	// Wall handle 99 is unregistered.
	cases := [][2]physics.Handle{{1, 2}, {2, 1}, {1, 99}, {99, 3}, {2, 3}}
	for _, c := range cases {
		if !r.Begin(c[0], c[1]) {
			t.Fatalf("contact %v rejected", c)
		}
	}
	if r.Contacts() != 3 {
		t.Fatalf("contacts = %d", r.Contacts())
	}
}

func TestBegin_TransmissionRules(t *testing.T) {
	pop := newPop(t, 6)
	makeInfectious(pop, 0)
	makeInfectious(pop, 1)
	pop.Infect(2, 0) // infected, not yet infectious
	pop.Restore(3, epidemic.State{Status: epidemic.Removed})
	r := newResolver(t, pop, 1, 1)
	r.SetTick(17)

	r.Begin(1, 2) // infectious-infectious
	r.Begin(3, 5) // infected-susceptible
	r.Begin(4, 6) // removed-susceptible
	if got := len(r.TakeTransmissions()); got != 0 {
		t.Fatalf("%d transmissions from non-transmitting pairs", got)
	}
	if pop.Status(4) != epidemic.Susceptible {
		t.Fatalf("agent 4 infected by a pre-infectious agent")
	}

	r.Begin(5, 1) // susceptible(4)-infectious(0), reversed order
	tr := r.TakeTransmissions()
	if len(tr) != 1 || tr[0] != (Transmission{Tick: 17, Source: 0, Target: 4}) {
		t.Fatalf("transmissions %v", tr)
	}
	st := pop.State(4)
	if st.Status != epidemic.Infected || st.ChangedTick != 17 {
		t.Fatalf("state %+v", st)
	}
	if len(r.TakeTransmissions()) != 0 {
		t.Fatalf("transmissions not cleared")
	}
}

func TestBegin_ZeroProbabilityNeverTransmits(t *testing.T) {
	pop := newPop(t, 2)
	makeInfectious(pop, 0)
	r := newResolver(t, pop, 0, 1)
	for i := 0; i < 1000; i++ {
		r.Begin(1, 2)
	}
	if pop.Status(1) != epidemic.Susceptible {
		t.Fatalf("transmitted with probability 0")
	}
}

// Two infectious agents touching one susceptible agent in the same tick give
// two independent trials.
func TestBegin_TwoSourcesCompound(t *testing.T) {
	const p = 0.3
	const trials = 20000
	rng := rand.New(rand.NewSource(5))
	infected := 0
	for n := 0; n < trials; n++ {
		pop := newPop(t, 3)
		makeInfectious(pop, 0)
		makeInfectious(pop, 1)
		r, err := NewResolver(pop, p, rng)
		if err != nil {
			t.Fatal(err)
		}
		r.Register(1, 0)
		r.Register(2, 1)
		r.Register(3, 2)

		var wg sync.WaitGroup
		for _, src := range []physics.Handle{1, 2} {
			wg.Add(1)
			go func(src physics.Handle) {
				defer wg.Done()
				r.Begin(src, 3)
			}(src)
		}
		wg.Wait()
		if pop.Status(2) == epidemic.Infected {
			infected++
		}
	}
	want := 1 - (1-p)*(1-p)
	got := float64(infected) / trials
	// ~5 standard errors.
	if math.Abs(got-want) > 5*math.Sqrt(want*(1-want)/trials) {
		t.Fatalf("infection rate %.4f, want %.4f", got, want)
	}
}

func TestNewResolver_RejectsBadProbability(t *testing.T) {
	if _, err := NewResolver(newPop(t, 1), 1.5, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected error")
	}
}
