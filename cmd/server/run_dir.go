package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
)

func newRunID(now time.Time) string {
	return "run_" + now.UTC().Format("20060102T150405Z")
}

func applyOverrides(t *tuning.Tuning, seed int64, maxTicks uint64, workers int, noCache bool) {
	if seed != 0 {
		t.Seed = seed
	}
	if maxTicks != 0 {
		t.MaxTicks = maxTicks
	}
	if workers > 0 {
		t.Workers = workers
	}
	if noCache {
		t.UseFieldCache = false
	}
}

// prepareRunDir creates data/runs/<id> and writes the effective tuning there
// so the run can be replayed from its directory alone.
func prepareRunDir(dataDir, runID string, t tuning.Tuning) (string, error) {
	dir := filepath.Join(dataDir, "runs", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	b, err := t.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal tuning: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tuning.yaml"), b, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}
