package world

import (
	"context"
	"time"
)

// Run steps the world in real time at TickRateHz until ctx is done, Stop is
// called or MaxTicks (when non-zero) is reached. Every tick advances the
// simulation by exactly 1/TickRateHz seconds regardless of wall-clock jitter.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.Tick(w.dt())
			if w.budgetSpent() {
				return nil
			}
		}
	}
}

// RunBatch steps as fast as possible, for headless runs. n overrides
// MaxTicks when non-zero; with neither set it runs until stopped.
func (w *World) RunBatch(ctx context.Context, n uint64) error {
	limit := n
	if limit == 0 {
		limit = w.cfg.MaxTicks
	}
	for i := uint64(0); limit == 0 || i < limit; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		default:
		}
		w.drainObserverRequests()
		w.Tick(w.dt())
	}
	return nil
}

func (w *World) budgetSpent() bool {
	return w.cfg.MaxTicks > 0 && w.tick.Load() >= w.cfg.MaxTicks
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }
