// Package contact decides disease transmission on physical contacts between
// agent bodies.
package contact

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/physics"
)

// Transmission records one successful infection.
type Transmission struct {
	Tick   uint64 `json:"tick"`
	Source int    `json:"source"`
	Target int    `json:"target"`
}

// Resolver maps physics handles to agents and applies the transmission rule.
// Contacts are serialized on an internal mutex, so two infectious agents
// touching the same susceptible agent in one tick are two independent trials.
type Resolver struct {
	mu       sync.Mutex
	pop      *epidemic.Population
	prob     float64
	rng      *rand.Rand
	registry map[physics.Handle]int
	tick     uint64
	trans    []Transmission
	contacts uint64
}

func NewResolver(pop *epidemic.Population, prob float64, rng *rand.Rand) (*Resolver, error) {
	if prob < 0 || prob > 1 {
		return nil, fmt.Errorf("infection probability %v outside [0,1]", prob)
	}
	return &Resolver{
		pop:      pop,
		prob:     prob,
		rng:      rng,
		registry: make(map[physics.Handle]int),
	}, nil
}

// Register binds a body handle to agent index i.
func (r *Resolver) Register(h physics.Handle, agent int) {
	r.mu.Lock()
	r.registry[h] = agent
	r.mu.Unlock()
}

// SetTick sets the tick recorded on infections made by subsequent contacts.
func (r *Resolver) SetTick(tick uint64) {
	r.mu.Lock()
	r.tick = tick
	r.mu.Unlock()
}

// Begin is the begin-contact callback. It always accepts the collision;
// contacts involving an unregistered body are ignored.
func (r *Resolver) Begin(a, b physics.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ia, okA := r.registry[a]
	ib, okB := r.registry[b]
	if !okA || !okB {
		return true
	}
	r.contacts++

	sa, sb := r.pop.Status(ia), r.pop.Status(ib)
	var src, dst int
	switch {
	case sa == epidemic.Infectious && sb == epidemic.Susceptible:
		src, dst = ia, ib
	case sb == epidemic.Infectious && sa == epidemic.Susceptible:
		src, dst = ib, ia
	default:
		return true
	}
	if r.rng.Float64() < r.prob && r.pop.Infect(dst, r.tick) {
		r.trans = append(r.trans, Transmission{Tick: r.tick, Source: src, Target: dst})
	}
	return true
}

// TakeTransmissions returns and clears the infections recorded since the
// previous call.
func (r *Resolver) TakeTransmissions() []Transmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.trans
	r.trans = nil
	return out
}

// Contacts returns the number of agent-agent contacts seen so far.
func (r *Resolver) Contacts() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contacts
}
