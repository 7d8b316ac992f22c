package world

import "github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"

// WorldMetrics is a thread-safe read-only view of key run signals.
// It is updated from the stepping goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Population    int             `json:"population"`
	Counts        epidemic.Counts `json:"counts"`
	NewInfections int             `json:"new_infections"`
	Contacts      uint64          `json:"contacts"`
	Observers     int             `json:"observers"`

	Destinations int    `json:"destinations"`
	FieldSource  string `json:"field_source"`

	Train *TrainStatus `json:"train,omitempty"`

	StepMS float64 `json:"step_ms"`

	StatsWindowTicks uint64      `json:"stats_window_ticks"`
	StatsWindow      StatsBucket `json:"stats_window"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) buildMetrics(nextTick uint64, newInfections int, stepMS float64) WorldMetrics {
	var window StatsBucket
	if nextTick > 0 {
		window = w.stats.Summarize(nextTick - 1)
	}
	m := WorldMetrics{
		Tick:             nextTick,
		Population:       w.pop.Len(),
		Counts:           w.lastCounts,
		NewInfections:    newInfections,
		Contacts:         w.resolver.Contacts(),
		Observers:        len(w.observers),
		Destinations:     len(w.dests),
		FieldSource:      w.fieldSource,
		StepMS:           stepMS,
		StatsWindowTicks: w.stats.WindowTicks(),
		StatsWindow:      window,
	}
	if w.train != nil {
		st := w.train.status()
		m.Train = &st
	}
	return m
}
