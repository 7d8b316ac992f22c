package world

import (
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
)

// Tick advances the run by one tick of dt seconds and returns the counts
// after it: physics step (contacts resolved synchronously), time-driven
// disease transitions, then velocity steering for the next step.
func (w *World) Tick(dt float64) epidemic.Counts {
	counts, _ := w.step(dt)
	return counts
}

// StepOnce advances one tick at the configured rate and returns the stepped
// tick and its state digest. Replays and tests use it.
func (w *World) StepOnce() (tick uint64, digest string) {
	tick = w.tick.Load()
	_, digest = w.step(w.dt())
	return tick, digest
}

func (w *World) step(dt float64) (epidemic.Counts, string) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	w.resolver.SetTick(nowTick)
	if w.train != nil && w.train.update(nowTick, w.cfg.TickRateHz) {
		st := w.train.status()
		w.logger.Printf("train %s at tick %d (cycle %d)", st.Phase, nowTick, st.Cycle)
	}
	w.engine.Step(dt)
	if w.train != nil {
		w.train.advance(dt)
	}
	trans := w.resolver.TakeTransmissions()

	tr := w.advanceDisease(nowTick)
	w.steer()

	counts := w.pop.Counts()
	w.lastCounts = counts
	w.stats.Record(nowTick, len(trans), tr)

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:          nowTick,
			Counts:        counts,
			NewInfections: len(trans),
			Transmissions: trans,
			Digest:        digest,
		}); err != nil {
			w.logger.Printf("tick log: %v", err)
		}
	}
	w.publishObservers(nowTick, counts, len(trans))

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.metrics.Store(w.buildMetrics(nextTick, len(trans), stepMS))
	return counts, digest
}

func (w *World) dt() float64 { return 1 / float64(w.cfg.TickRateHz) }

func (w *World) advanceDisease(nowTick uint64) epidemic.Transitions {
	parts := make([]epidemic.Transitions, w.cfg.Workers)
	w.parallel(w.pop.Len(), func(part, lo, hi int) {
		parts[part] = w.pop.AdvanceRange(lo, hi, nowTick)
	})
	var tr epidemic.Transitions
	for _, p := range parts {
		tr.Add(p)
	}
	return tr
}

// steer applies the motion model
//
//	v' = (1-rate)*v + rate*mult*dir + noise
//
// where dir is the navigation direction of the agent's cell and noise is
// uniform in [-noise, noise] per axis. Engine state is read and written on
// the calling goroutine; only the pure computation runs in parallel.
func (w *World) steer() {
	for i, a := range w.agents {
		w.cells[i] = w.cellOf(w.engine.Position(a.Handle))
		w.vels[i] = w.engine.Velocity(a.Handle)
	}
	m := w.cfg.Motion
	w.parallel(len(w.agents), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			a := &w.agents[i]
			dx, dy := w.nav.Direction(w.cells[i], a.Dest, a.rng)
			bias := geometry.V(float64(dx), float64(dy)).Scale(m.VelocityUpdateRate * m.VelocityMultiplier)
			noise := geometry.V(
				(a.rng.Float64()*2-1)*m.VelocityNoise,
				(a.rng.Float64()*2-1)*m.VelocityNoise,
			)
			w.vels[i] = w.vels[i].Scale(1 - m.VelocityUpdateRate).Add(bias).Add(noise)
		}
	})
	for i, a := range w.agents {
		w.engine.SetVelocity(a.Handle, w.vels[i])
	}
}

// parallel splits [0,n) into at most Workers contiguous parts. fn receives
// the part index so callers can keep per-part results without locking.
func (w *World) parallel(n int, fn func(part, lo, hi int)) {
	workers := w.cfg.Workers
	if workers <= 1 || n < 64 {
		fn(0, 0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var eg errgroup.Group
	for part, lo := 0, 0; lo < n; part, lo = part+1, lo+chunk {
		part, lo, hi := part, lo, lo+chunk
		if hi > n {
			hi = n
		}
		eg.Go(func() error {
			fn(part, lo, hi)
			return nil
		})
	}
	_ = eg.Wait()
}

func floorInt(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Floor(v))
}
