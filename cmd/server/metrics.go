package main

import (
	"fmt"
	"io"

	"github.com/BinaryBen1/virus-simulation/internal/persistence/indexdb"
	"github.com/BinaryBen1/virus-simulation/internal/sim/world"
)

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(rw io.Writer, runID string, m world.WorldMetrics, idx *indexdb.QueueStats) {
	fmt.Fprintf(rw, "# HELP virussim_tick Current simulation tick.\n")
	fmt.Fprintf(rw, "# TYPE virussim_tick gauge\n")
	fmt.Fprintf(rw, "virussim_tick{run=%q} %d\n", runID, m.Tick)

	fmt.Fprintf(rw, "# HELP virussim_agents Agents by disease status.\n")
	fmt.Fprintf(rw, "# TYPE virussim_agents gauge\n")
	fmt.Fprintf(rw, "virussim_agents{run=%q,status=%q} %d\n", runID, "susceptible", m.Counts.Susceptible)
	fmt.Fprintf(rw, "virussim_agents{run=%q,status=%q} %d\n", runID, "infected", m.Counts.Infected)
	fmt.Fprintf(rw, "virussim_agents{run=%q,status=%q} %d\n", runID, "infectious", m.Counts.Infectious)
	fmt.Fprintf(rw, "virussim_agents{run=%q,status=%q} %d\n", runID, "removed", m.Counts.Removed)

	fmt.Fprintf(rw, "# HELP virussim_new_infections Transmissions in the last tick.\n")
	fmt.Fprintf(rw, "# TYPE virussim_new_infections gauge\n")
	fmt.Fprintf(rw, "virussim_new_infections{run=%q} %d\n", runID, m.NewInfections)

	fmt.Fprintf(rw, "# HELP virussim_contacts_total Contacts reported by the physics engine.\n")
	fmt.Fprintf(rw, "# TYPE virussim_contacts_total counter\n")
	fmt.Fprintf(rw, "virussim_contacts_total{run=%q} %d\n", runID, m.Contacts)

	fmt.Fprintf(rw, "# HELP virussim_observers Connected observers.\n")
	fmt.Fprintf(rw, "# TYPE virussim_observers gauge\n")
	fmt.Fprintf(rw, "virussim_observers{run=%q} %d\n", runID, m.Observers)

	if m.Train != nil {
		open := 0
		if m.Train.DoorOpen {
			open = 1
		}
		fmt.Fprintf(rw, "# HELP virussim_train_door_open Whether the train is stopped with its door open.\n")
		fmt.Fprintf(rw, "# TYPE virussim_train_door_open gauge\n")
		fmt.Fprintf(rw, "virussim_train_door_open{run=%q} %d\n", runID, open)
	}

	fmt.Fprintf(rw, "# HELP virussim_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE virussim_step_ms gauge\n")
	fmt.Fprintf(rw, "virussim_step_ms{run=%q} %.3f\n", runID, m.StepMS)

	fmt.Fprintf(rw, "# HELP virussim_stats_window Rolling window transition counts.\n")
	fmt.Fprintf(rw, "# TYPE virussim_stats_window gauge\n")
	fmt.Fprintf(rw, "virussim_stats_window{run=%q,metric=%q} %d\n", runID, "new_infections", m.StatsWindow.NewInfections)
	fmt.Fprintf(rw, "virussim_stats_window{run=%q,metric=%q} %d\n", runID, "became_infectious", m.StatsWindow.BecameInfectious)
	fmt.Fprintf(rw, "virussim_stats_window{run=%q,metric=%q} %d\n", runID, "removed", m.StatsWindow.Removed)

	fmt.Fprintf(rw, "# HELP virussim_stats_window_ticks Rolling window size in ticks.\n")
	fmt.Fprintf(rw, "# TYPE virussim_stats_window_ticks gauge\n")
	fmt.Fprintf(rw, "virussim_stats_window_ticks{run=%q} %d\n", runID, m.StatsWindowTicks)

	if idx == nil {
		return
	}
	fmt.Fprintf(rw, "# HELP virussim_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE virussim_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "virussim_index_queue_depth %d\n", idx.QueueDepth)

	fmt.Fprintf(rw, "# HELP virussim_index_dropped_total Index rows dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE virussim_index_dropped_total counter\n")
	fmt.Fprintf(rw, "virussim_index_dropped_total{kind=%q} %d\n", "tick", idx.DropTickTotal)
	fmt.Fprintf(rw, "virussim_index_dropped_total{kind=%q} %d\n", "fields", idx.DropFieldsTotal)

	fmt.Fprintf(rw, "# HELP virussim_index_write_fail_total Failed index transactions.\n")
	fmt.Fprintf(rw, "# TYPE virussim_index_write_fail_total counter\n")
	fmt.Fprintf(rw, "virussim_index_write_fail_total %d\n", idx.WriteFailTotal)
}
