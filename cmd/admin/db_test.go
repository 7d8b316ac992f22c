package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BinaryBen1/virus-simulation/internal/persistence/indexdb"
	"github.com/BinaryBen1/virus-simulation/internal/sim/contact"
	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
	"github.com/BinaryBen1/virus-simulation/internal/sim/world"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertRun(indexdb.RunInfo{RunID: "r1", Tuning: tuning.Defaults(), MapVersion: "mv"}); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}
	for tick := uint64(0); tick < 10; tick++ {
		e := world.TickLogEntry{Tick: tick, Counts: epidemic.Counts{Susceptible: 9, Infectious: 1}, Digest: "d"}
		if tick == 4 {
			e.NewInfections = 1
			e.Transmissions = []contact.Transmission{{Tick: 4, Source: 2, Target: 5}}
		}
		_ = idx.WriteTick("r1", e)
	}
	idx.RecordFields(indexdb.FieldRecord{MapVersion: "mv", MapSize: 50, Mode: nav.ModeFIFO, Destinations: []nav.Cell{{X: 1, Y: 2}}, Source: "cache"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRunQuery_Series(t *testing.T) {
	db := openDB(t, seedIndex(t))
	var buf bytes.Buffer
	if err := runQuery(db, "series", queryArgs{RunID: "r1", From: 2, To: 8, Every: 3}, &buf); err != nil {
		t.Fatalf("series: %v", err)
	}
	rows := decodeLines(t, buf.Bytes())
	if len(rows) != 3 {
		t.Fatalf("rows=%d want 3 (%s)", len(rows), buf.String())
	}
	for i, want := range []float64{2, 5, 8} {
		if rows[i]["tick"] != want {
			t.Fatalf("row %d tick=%v want %v", i, rows[i]["tick"], want)
		}
	}
}

func TestRunQuery_TransmissionsRunsFields(t *testing.T) {
	db := openDB(t, seedIndex(t))

	var buf bytes.Buffer
	if err := runQuery(db, "transmissions", queryArgs{RunID: "r1"}, &buf); err != nil {
		t.Fatalf("transmissions: %v", err)
	}
	rows := decodeLines(t, buf.Bytes())
	if len(rows) != 1 || rows[0]["target"] != float64(5) {
		t.Fatalf("transmissions %s", buf.String())
	}

	buf.Reset()
	if err := runQuery(db, "runs", queryArgs{}, &buf); err != nil {
		t.Fatalf("runs: %v", err)
	}
	if rows := decodeLines(t, buf.Bytes()); len(rows) != 1 || rows[0]["run_id"] != "r1" {
		t.Fatalf("runs %s", buf.String())
	}

	buf.Reset()
	if err := runQuery(db, "fields", queryArgs{}, &buf); err != nil {
		t.Fatalf("fields: %v", err)
	}
	if !strings.Contains(buf.String(), `"destinations":[[1,2]]`) || !strings.Contains(buf.String(), `"mode":"fifo"`) {
		t.Fatalf("fields %s", buf.String())
	}
}

func TestRunQuery_Errors(t *testing.T) {
	db := openDB(t, seedIndex(t))
	var buf bytes.Buffer
	if err := runQuery(db, "series", queryArgs{}, &buf); err == nil || !strings.HasPrefix(err.Error(), "missing") {
		t.Fatalf("expected missing -run, got %v", err)
	}
	if err := runQuery(db, "nope", queryArgs{}, &buf); err == nil || !strings.HasPrefix(err.Error(), "unknown query") {
		t.Fatalf("expected unknown query, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	base := t.TempDir()
	good := filepath.Join(base, "run_a")
	if err := os.MkdirAll(good, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	b, _ := tuning.Defaults().Marshal()
	if err := os.WriteFile(filepath.Join(good, "tuning.yaml"), b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(base, "run_b"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var buf bytes.Buffer
	if err := listRuns(base, &buf); err != nil {
		t.Fatalf("listRuns: %v", err)
	}
	rows := decodeLines(t, buf.Bytes())
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0]["run_id"] != "run_a" || rows[0]["map_size"] != float64(tuning.Defaults().MapSize) {
		t.Fatalf("run_a %v", rows[0])
	}
	if rows[1]["error"] == nil {
		t.Fatalf("run_b without tuning should report an error: %v", rows[1])
	}
}
