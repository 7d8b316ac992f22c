package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type queryArgs struct {
	RunID string
	From  uint64
	To    uint64
	Every uint64
	Limit int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/runs.sqlite)")
	runID := fs.String("run", "", "run id (required for series|transmissions)")
	from := fs.Uint64("from", 0, "first tick (inclusive)")
	to := fs.Uint64("to", 0, "last tick (inclusive, optional)")
	every := fs.Uint64("every", 1, "sample every N ticks (series)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	qa := queryArgs{RunID: strings.TrimSpace(*runID), From: *from, To: *to, Every: *every, Limit: *limit}
	if err := runQuery(db, q, qa, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") || strings.HasPrefix(err.Error(), "missing") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-run RUN] [-from T] [-to T] [-every N] [-limit N] runs|series|transmissions|fields")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q string, a queryArgs, out io.Writer) error {
	if a.Limit <= 0 {
		a.Limit = 20
	}
	if a.Every == 0 {
		a.Every = 1
	}
	to := int64(a.To)
	if a.To == 0 {
		to = -1
	}

	switch q {
	case "runs":
		rows, err := db.Query(`SELECT run_id,seed,map_size,population,infection_prob,map_version,field_source,catalog_digest,tuning_digest,started_at FROM runs ORDER BY started_at DESC LIMIT ?`, a.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID         string  `json:"run_id"`
				Seed          int64   `json:"seed"`
				MapSize       int     `json:"map_size"`
				Population    int     `json:"population"`
				InfectionProb float64 `json:"infection_prob"`
				MapVersion    string  `json:"map_version"`
				FieldSource   string  `json:"field_source"`
				CatalogDigest string  `json:"catalog_digest"`
				TuningDigest  string  `json:"tuning_digest"`
				StartedAt     string  `json:"started_at"`
			}
			if err := rows.Scan(&r.RunID, &r.Seed, &r.MapSize, &r.Population, &r.InfectionProb, &r.MapVersion, &r.FieldSource, &r.CatalogDigest, &r.TuningDigest, &r.StartedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "series":
		if a.RunID == "" {
			return fmt.Errorf("missing -run")
		}
		rows, err := db.Query(`SELECT tick,susceptible,infected,infectious,removed,new_infections,digest FROM ticks
			WHERE run_id=? AND tick>=? AND (?<0 OR tick<=?) AND (tick-?)%?=0 ORDER BY tick`,
			a.RunID, int64(a.From), to, to, int64(a.From), int64(a.Every))
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick          uint64 `json:"tick"`
				Susceptible   int    `json:"susceptible"`
				Infected      int    `json:"infected"`
				Infectious    int    `json:"infectious"`
				Removed       int    `json:"removed"`
				NewInfections int    `json:"new_infections"`
				Digest        string `json:"digest"`
			}
			if err := rows.Scan(&r.Tick, &r.Susceptible, &r.Infected, &r.Infectious, &r.Removed, &r.NewInfections, &r.Digest); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "transmissions":
		if a.RunID == "" {
			return fmt.Errorf("missing -run")
		}
		rows, err := db.Query(`SELECT tick,seq,source,target FROM transmissions
			WHERE run_id=? AND tick>=? AND (?<0 OR tick<=?) ORDER BY tick,seq LIMIT ?`,
			a.RunID, int64(a.From), to, to, a.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   uint64 `json:"tick"`
				Seq    int    `json:"seq"`
				Source int    `json:"source"`
				Target int    `json:"target"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Source, &r.Target); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "fields":
		rows, err := db.Query(`SELECT map_version,map_size,mode,destinations,source,path,recorded_at FROM fields ORDER BY recorded_at DESC LIMIT ?`, a.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				MapVersion   string          `json:"map_version"`
				MapSize      int             `json:"map_size"`
				Mode         string          `json:"mode"`
				Destinations json.RawMessage `json:"destinations"`
				Source       string          `json:"source"`
				Path         string          `json:"path,omitempty"`
				RecordedAt   string          `json:"recorded_at"`
			}
			var dests string
			if err := rows.Scan(&r.MapVersion, &r.MapSize, &r.Mode, &dests, &r.Source, &r.Path, &r.RecordedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Destinations = json.RawMessage(dests)
			printJSON(out, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
