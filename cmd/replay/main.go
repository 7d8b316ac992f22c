package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/BinaryBen1/virus-simulation/internal/persistence/fieldcache"
	persistlog "github.com/BinaryBen1/virus-simulation/internal/persistence/log"
	"github.com/BinaryBen1/virus-simulation/internal/sim/catalogs"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
	"github.com/BinaryBen1/virus-simulation/internal/sim/world"
)

var errStop = errors.New("stop")

func main() {
	var (
		runDir    = flag.String("run", "", "run directory (data/runs/<id>) holding tuning.yaml and events/")
		configDir = flag.String("configs", "./configs", "config directory")
		cacheDir  = flag.String("fieldcache", "", "field cache directory (optional; fields are regenerated when empty)")
		toTick    = flag.Uint64("to_tick", 0, "stop after tick (inclusive, optional)")
		verbose   = flag.Bool("v", false, "log world construction")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	}

	res, err := replayRun(context.Background(), *runDir, *configDir, *cacheDir, *toTick, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: run=%s checked=%d ticks last=%d S=%d E=%d I=%d R=%d infections=%d\n",
		res.RunID, res.Checked, res.LastTick,
		res.Final.Susceptible, res.Final.Infected, res.Final.Infectious, res.Final.Removed,
		res.Infections)
}

type result struct {
	RunID      string
	Checked    uint64
	LastTick   uint64
	Infections int
	Final      world.TickLogEntry
}

// replayRun rebuilds the run from its tuning and steps it against the logged
// ticks, failing on the first digest or count mismatch.
func replayRun(ctx context.Context, runDir, configDir, cacheDir string, toTick uint64, logger *log.Logger) (result, error) {
	var res result
	tune, err := tuning.Load(filepath.Join(runDir, "tuning.yaml"))
	if err != nil {
		return res, fmt.Errorf("load tuning: %w", err)
	}
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return res, fmt.Errorf("load catalogs: %w", err)
	}
	res.RunID = filepath.Base(runDir)
	cfg, err := world.ConfigFromTuning(res.RunID, tune)
	if err != nil {
		return res, err
	}
	opts := world.Options{Catalog: cats, Logger: logger}
	if cacheDir != "" {
		opts.Cache = fieldcache.NewStore(cacheDir)
	} else {
		cfg.UseFieldCache = false
	}
	w, err := world.New(ctx, cfg, opts)
	if err != nil {
		return res, fmt.Errorf("world: %w", err)
	}

	files, err := persistlog.ListEventFiles(persistlog.EventsDir(runDir))
	if err != nil {
		return res, fmt.Errorf("list events: %w", err)
	}
	if len(files) == 0 {
		return res, fmt.Errorf("no events files found in %s", persistlog.EventsDir(runDir))
	}

	check := func(entry world.TickLogEntry) error {
		if toTick != 0 && entry.Tick > toTick {
			return errStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		tick, digest := w.StepOnce()
		if digest != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
		}
		if got := w.Counts(); got != entry.Counts {
			return fmt.Errorf("counts mismatch at tick %d: got=%+v want=%+v", tick, got, entry.Counts)
		}
		if entry.Total() != cfg.Population {
			return fmt.Errorf("tick %d: counts sum to %d, population %d", tick, entry.Total(), cfg.Population)
		}
		if len(entry.Transmissions) != entry.NewInfections {
			return fmt.Errorf("tick %d: %d transmissions for %d new infections", tick, len(entry.Transmissions), entry.NewInfections)
		}
		res.Checked++
		res.LastTick = tick
		res.Infections += entry.NewInfections
		res.Final = entry
		return nil
	}
	for _, path := range files {
		if err := persistlog.ReadTicks(path, check); err != nil {
			if errors.Is(err, errStop) {
				break
			}
			return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return res, nil
}
