// Package epidemic holds the per-agent disease state machine:
// susceptible -> infected -> infectious -> removed.
package epidemic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/BinaryBen1/virus-simulation/internal/sim/logic/mathx"
)

type Params struct {
	MeanIncubationTicks float64
	MeanInfectiousTicks float64
}

func (p Params) Validate() error {
	if !(p.MeanIncubationTicks > 0) || !(p.MeanInfectiousTicks > 0) {
		return fmt.Errorf("mean durations must be positive (incubation=%v infectious=%v)",
			p.MeanIncubationTicks, p.MeanInfectiousTicks)
	}
	return nil
}

// State is one agent's disease record. Duration is the dwell time sampled on
// entering Infected or Infectious; it is zero in the other states.
type State struct {
	Status      Status
	ChangedTick uint64
	Duration    uint64
}

// Transitions counts the time-driven transitions of one evaluation.
type Transitions struct {
	BecameInfectious int
	Removed          int
}

func (t *Transitions) Add(o Transitions) {
	t.BecameInfectious += o.BecameInfectious
	t.Removed += o.Removed
}

// Population owns the disease state of a fixed set of agents. Each agent
// draws its durations from its own RNG stream, so evaluating disjoint agent
// ranges concurrently is safe and deterministic. Infect must not run
// concurrently with itself or with Advance.
type Population struct {
	params Params
	states []State
	rngs   []*rand.Rand
}

func NewPopulation(n int, seed int64, params Params) (*Population, error) {
	if n < 1 {
		return nil, fmt.Errorf("population must be positive, got %d", n)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Population{
		params: params,
		states: make([]State, n),
		rngs:   make([]*rand.Rand, n),
	}
	for i := range p.rngs {
		p.rngs[i] = rand.New(rand.NewSource(mathx.SeedFor(seed, mathx.StreamDisease, i)))
	}
	return p, nil
}

func (p *Population) Len() int               { return len(p.states) }
func (p *Population) Params() Params         { return p.params }
func (p *Population) State(i int) State      { return p.states[i] }
func (p *Population) Status(i int) Status    { return p.states[i].Status }
func (p *Population) Susceptible(i int) bool { return p.states[i].Status == Susceptible }

func (p *Population) sample(i int, mean float64) uint64 {
	return uint64(math.Ceil(p.rngs[i].ExpFloat64() * mean))
}

// Infect moves a susceptible agent to Infected at tick and samples its
// incubation period. It reports false for any other status.
func (p *Population) Infect(i int, tick uint64) bool {
	st := &p.states[i]
	if st.Status != Susceptible {
		return false
	}
	st.Status = Infected
	st.ChangedTick = tick
	st.Duration = p.sample(i, p.params.MeanIncubationTicks)
	return true
}

// SeedInfections infects n distinct agents chosen uniformly with rng and
// returns their indices.
func (p *Population) SeedInfections(n int, tick uint64, rng *rand.Rand) ([]int, error) {
	if n < 0 || n > len(p.states) {
		return nil, fmt.Errorf("cannot seed %d infections in a population of %d", n, len(p.states))
	}
	picked := rng.Perm(len(p.states))[:n]
	for _, i := range picked {
		p.Infect(i, tick)
	}
	return picked, nil
}

// advanceOne applies at most one time-driven transition to agent i.
func (p *Population) advanceOne(i int, tick uint64, tr *Transitions) {
	st := &p.states[i]
	if st.Status != Infected && st.Status != Infectious {
		return
	}
	if tick < st.ChangedTick || tick-st.ChangedTick < st.Duration {
		return
	}
	switch st.Status {
	case Infected:
		st.Status = Infectious
		st.ChangedTick = tick
		st.Duration = p.sample(i, p.params.MeanInfectiousTicks)
		tr.BecameInfectious++
	case Infectious:
		st.Status = Removed
		st.ChangedTick = tick
		st.Duration = 0
		tr.Removed++
	}
}

// AdvanceRange evaluates agents [lo, hi) at tick.
func (p *Population) AdvanceRange(lo, hi int, tick uint64) Transitions {
	var tr Transitions
	for i := lo; i < hi; i++ {
		p.advanceOne(i, tick, &tr)
	}
	return tr
}

// Advance evaluates every agent at tick.
func (p *Population) Advance(tick uint64) Transitions {
	return p.AdvanceRange(0, len(p.states), tick)
}

func (p *Population) Counts() Counts {
	var c Counts
	for i := range p.states {
		c.add(p.states[i].Status)
	}
	return c
}

// Restore overwrites an agent's record, e.g. from a replayed state.
func (p *Population) Restore(i int, st State) { p.states[i] = st }
