package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BinaryBen1/virus-simulation/internal/persistence/fieldcache"
	persistlog "github.com/BinaryBen1/virus-simulation/internal/persistence/log"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "fieldcache":
			fieldCacheCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	if err := listRuns(filepath.Join(*dataDir, "runs"), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
}

type runSummary struct {
	RunID      string `json:"run_id"`
	Seed       int64  `json:"seed"`
	MapSize    int    `json:"map_size"`
	Population int    `json:"population"`
	EventFiles int    `json:"event_files"`
	Error      string `json:"error,omitempty"`
}

func listRuns(base string, out io.Writer) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(base, e.Name())
		s := runSummary{RunID: e.Name()}
		if t, err := tuning.Load(filepath.Join(dir, "tuning.yaml")); err != nil {
			s.Error = err.Error()
		} else {
			s.Seed, s.MapSize, s.Population = t.Seed, t.MapSize, t.Population
		}
		if files, err := persistlog.ListEventFiles(persistlog.EventsDir(dir)); err == nil {
			s.EventFiles = len(files)
		}
		printJSON(out, s)
	}
	return nil
}

func fieldCacheCmd(args []string) {
	fs := flag.NewFlagSet("fieldcache", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	store := fieldcache.NewStore(filepath.Join(*dataDir, "fieldcache"))
	paths, err := store.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, p := range paths {
		h, err := fieldcache.ReadHeader(p)
		if err != nil {
			printJSON(os.Stdout, map[string]string{"path": p, "error": err.Error()})
			continue
		}
		printJSON(os.Stdout, struct {
			Path string `json:"path"`
			fieldcache.Header
		}{Path: p, Header: h})
	}
}
