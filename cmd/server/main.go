package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BinaryBen1/virus-simulation/internal/persistence/fieldcache"
	"github.com/BinaryBen1/virus-simulation/internal/persistence/indexdb"
	persistlog "github.com/BinaryBen1/virus-simulation/internal/persistence/log"
	"github.com/BinaryBen1/virus-simulation/internal/sim/catalogs"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
	"github.com/BinaryBen1/virus-simulation/internal/sim/world"
	"github.com/BinaryBen1/virus-simulation/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		runID      = flag.String("run", "", "run id (default: derived from the start time)")
		seed       = flag.Int64("seed", 0, "seed override (0 keeps the tuning value)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		maxTicks   = flag.Uint64("max_ticks", 0, "tick budget override (0 keeps the tuning value)")
		workers    = flag.Int("workers", 0, "worker override (0 keeps the tuning value)")
		headless   = flag.Bool("headless", false, "step as fast as possible without the HTTP server")
		noCache    = flag.Bool("no_cache", false, "always regenerate distance fields")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	applyOverrides(&tune, *seed, *maxTicks, *workers, *noCache)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = newRunID(time.Now())
	}
	runDir, err := prepareRunDir(*dataDir, id, tune)
	if err != nil {
		logger.Fatalf("run dir: %v", err)
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}

	tickLog := persistlog.NewTickLogger(runDir)
	var tl world.TickLogger = tickLog
	if idx != nil {
		tl = multiTickLogger{a: tickLog, b: idx.TickWriter(id)}
	}

	cfg, err := world.ConfigFromTuning(id, tune)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	store := fieldcache.NewStore(filepath.Join(*dataDir, "fieldcache"))

	ctx, cancel := signalContext()
	defer cancel()

	w, err := world.New(ctx, cfg, world.Options{
		Cache:      store,
		Catalog:    cats,
		Logger:     log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
		TickLogger: tl,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	if idx != nil {
		if err := idx.UpsertRun(indexdb.RunInfo{
			RunID:         id,
			Tuning:        tune,
			CatalogDigest: cats.Digest,
			MapVersion:    w.MapVersion(),
			FieldSource:   w.FieldSource(),
		}); err != nil {
			logger.Printf("index backend: upsert run: %v", err)
		}
		rec := indexdb.FieldRecord{
			MapVersion:   w.MapVersion(),
			MapSize:      cfg.MapSize,
			Mode:         w.Config().FieldMode,
			Destinations: w.Destinations(),
			Source:       w.FieldSource(),
		}
		if cfg.UseFieldCache {
			rec.Path = store.Path(w.MapVersion())
		}
		idx.RecordFields(rec)
	}

	shutdown := func() {
		if err := tickLog.Close(); err != nil {
			logger.Printf("tick log close: %v", err)
		}
		if idx != nil {
			_ = idx.Close()
		}
	}

	if *headless {
		start := time.Now()
		if err := w.RunBatch(ctx, 0); err != nil && err != context.Canceled {
			logger.Printf("run stopped: %v", err)
		}
		c := w.Counts()
		logger.Printf("run %s finished: ticks=%d elapsed=%s S=%d E=%d I=%d R=%d",
			id, w.CurrentTick(), time.Since(start).Round(time.Millisecond), c.Susceptible, c.Infected, c.Infectious, c.Removed)
		shutdown()
		return
	}

	runDone := runWorld(ctx, cancel, w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		if m.Tick == 0 {
			m.Tick = w.CurrentTick()
		}
		var qs *indexdb.QueueStats
		if idx != nil {
			st := idx.Stats()
			qs = &st
		}
		writeMetrics(rw, id, m, qs)
	})

	enableAdminHTTP := envBool("VS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("VS_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				RunID      string             `json:"run_id"`
				Tick       uint64             `json:"tick"`
				MapVersion string             `json:"map_version"`
				Metrics    world.WorldMetrics `json:"metrics"`
			}{
				RunID:      id,
				Tick:       w.CurrentTick(),
				MapVersion: w.MapVersion(),
				Metrics:    w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (VS_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (run=%s dir=%s)", *addr, id, runDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}
	// The world goroutine writes to the loggers; close them only after it exits.
	<-runDone
	shutdown()
}

// runWorld runs w in real time. When Run returns, including on a spent tick
// budget, cancel ends the process like a signal does.
func runWorld(ctx context.Context, cancel context.CancelFunc, w *world.World, logger *log.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
			return
		}
		logger.Printf("run %s stopped at tick %d", w.ID(), w.CurrentTick())
	}()
	return done
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

// WriteTick always offers the entry to both loggers and joins their errors.
func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteTick(entry)
	}
	if m.b != nil {
		errB = m.b.WriteTick(entry)
	}
	return errors.Join(errA, errB)
}
