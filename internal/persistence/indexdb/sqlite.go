package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
	"github.com/BinaryBen1/virus-simulation/internal/sim/world"
)

const SchemaVersion = "1"

// SQLiteIndex is a secondary, queryable index of simulation runs. The JSONL
// tick logs stay the source of truth; rows are written by a single goroutine
// and dropped when the queue is full.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick   atomic.Uint64
	dropFields atomic.Uint64
	writeFail  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqFields
)

type req struct {
	kind reqKind

	runID  string
	tick   world.TickLogEntry
	fields FieldRecord
}

// RunInfo describes one simulation run as recorded in the runs table.
type RunInfo struct {
	RunID         string
	Tuning        tuning.Tuning
	CatalogDigest string
	MapVersion    string
	FieldSource   string
	StartedAt     time.Time
}

// FieldRecord notes where a run's distance fields came from.
type FieldRecord struct {
	MapVersion   string
	MapSize      int
	Mode         nav.Mode
	Destinations []nav.Cell
	Source       string
	Path         string
	RecordedAt   time.Time
}

type QueueStats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropTickTotal   uint64 `json:"drop_tick_total"`
	DropFieldsTotal uint64 `json:"drop_fields_total"`
	WriteFailTotal  uint64 `json:"write_fail_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			map_size INTEGER NOT NULL,
			population INTEGER NOT NULL,
			infection_prob REAL NOT NULL,
			map_version TEXT NOT NULL,
			field_source TEXT NOT NULL,
			catalog_digest TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			susceptible INTEGER NOT NULL,
			infected INTEGER NOT NULL,
			infectious INTEGER NOT NULL,
			removed INTEGER NOT NULL,
			new_infections INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS transmissions (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			source INTEGER NOT NULL,
			target INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transmissions_source ON transmissions(run_id, source);`,
		`CREATE TABLE IF NOT EXISTS fields (
			map_version TEXT PRIMARY KEY,
			map_size INTEGER NOT NULL,
			mode TEXT NOT NULL,
			destinations TEXT NOT NULL,
			source TEXT NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropTickTotal:   s.dropTick.Load(),
		DropFieldsTotal: s.dropFields.Load(),
		WriteFailTotal:  s.writeFail.Load(),
	}
}

// UpsertRun records the run row synchronously, before any ticks are queued.
func (s *SQLiteIndex) UpsertRun(info RunInfo) error {
	if s == nil {
		return nil
	}
	if info.RunID == "" {
		return fmt.Errorf("empty run id")
	}
	b, err := json.Marshal(info.Tuning)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	started := info.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, SchemaVersion); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,seed,map_size,population,infection_prob,map_version,field_source,catalog_digest,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		info.RunID,
		info.Tuning.Seed,
		info.Tuning.MapSize,
		info.Tuning.Population,
		info.Tuning.InfectionProb,
		info.MapVersion,
		info.FieldSource,
		info.CatalogDigest,
		hex.EncodeToString(sum[:]),
		string(b),
		started.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// TickWriter binds the index to one run so it can serve as a world.TickLogger.
func (s *SQLiteIndex) TickWriter(runID string) world.TickLogger {
	return runTicks{s: s, runID: runID}
}

type runTicks struct {
	s     *SQLiteIndex
	runID string
}

func (r runTicks) WriteTick(entry world.TickLogEntry) error {
	return r.s.WriteTick(r.runID, entry)
}

func (s *SQLiteIndex) WriteTick(runID string, entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, runID: runID, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordFields(rec FieldRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	if rec.MapVersion == "" {
		return
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	select {
	case s.ch <- req{kind: reqFields, fields: rec}:
	default:
		s.dropFields.Add(1)
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,susceptible,infected,infectious,removed,new_infections,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertTransmission, _ := s.db.Prepare(`INSERT OR REPLACE INTO transmissions(run_id,tick,seq,source,target) VALUES(?,?,?,?,?)`)
	insertFields, _ := s.db.Prepare(`INSERT OR REPLACE INTO fields(map_version,map_size,mode,destinations,source,path,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertTransmission, insertFields} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeFail.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeFail.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				continue
			}
			b, _ := json.Marshal(r.tick)
			if _, err := tx.Stmt(insertTick).Exec(
				r.runID,
				int64(r.tick.Tick),
				r.tick.Digest,
				r.tick.Susceptible,
				r.tick.Infected,
				r.tick.Infectious,
				r.tick.Removed,
				r.tick.NewInfections,
				string(b),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			failed := false
			for seq, tr := range r.tick.Transmissions {
				if insertTransmission == nil {
					break
				}
				if _, err := tx.Stmt(insertTransmission).Exec(r.runID, int64(tr.Tick), seq, tr.Source, tr.Target); err != nil {
					failed = true
					break
				}
				opCount++
			}
			if failed {
				rollback()
				continue
			}
		case reqFields:
			if insertFields == nil {
				continue
			}
			dests, _ := json.Marshal(destPairs(r.fields.Destinations))
			if _, err := tx.Stmt(insertFields).Exec(
				r.fields.MapVersion,
				r.fields.MapSize,
				string(r.fields.Mode),
				string(dests),
				r.fields.Source,
				r.fields.Path,
				r.fields.RecordedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}
	commit()
}

func destPairs(dests []nav.Cell) [][2]int {
	out := make([][2]int, 0, len(dests))
	for _, d := range dests {
		out = append(out, [2]int{d.X, d.Y})
	}
	return out
}
