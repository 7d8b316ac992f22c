package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/BinaryBen1/virus-simulation/internal/persistence/fieldcache"
	"github.com/BinaryBen1/virus-simulation/internal/sim/catalogs"
	"github.com/BinaryBen1/virus-simulation/internal/sim/contact"
	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/logic/mathx"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
	"github.com/BinaryBen1/virus-simulation/internal/sim/physics"
)

// New assembles a run: map geometry, distance fields (cached or generated),
// disease state, physics bodies and initial infections. All randomness is
// derived from cfg.Seed.
func New(ctx context.Context, cfg WorldConfig, opts Options) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalogs.Default()
	}

	w := &World{
		cfg:           cfg,
		logger:        logger,
		tickLogger:    opts.TickLogger,
		stats:         NewIncidenceStats(uint64(cfg.TickRateHz)*10, uint64(cfg.TickRateHz)*60),
		observers:     map[string]*observerClient{},
		observerGone:  map[string]struct{}{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
	}

	for _, b := range cfg.Buildings {
		ws, err := cat.Place(b.Shape, b.Origin, cfg.WallThickness)
		if err != nil {
			return nil, err
		}
		w.walls = append(w.walls, ws...)
	}
	grid, err := nav.Rasterize(cfg.MapSize, w.walls)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	w.grid = grid

	if w.dests, err = pickDestinations(cfg, grid); err != nil {
		return nil, err
	}
	if err := w.loadFields(ctx, opts.Cache); err != nil {
		return nil, err
	}

	pop, err := epidemic.NewPopulation(cfg.Population, cfg.Seed, cfg.Disease)
	if err != nil {
		return nil, err
	}
	w.pop = pop
	resolver, err := contact.NewResolver(pop, cfg.InfectionProb, streamRand(cfg.Seed, mathx.StreamContact, 0))
	if err != nil {
		return nil, err
	}
	w.resolver = resolver

	w.engine = opts.Engine
	if w.engine == nil {
		w.engine = physics.NewSpace(float64(cfg.MapSize))
	}
	w.engine.SetBeginHandler(resolver.Begin)
	border := geometry.BorderWalls(cfg.MapSize)
	if cfg.Train.Enabled {
		border = geometry.BorderWallsWithGap(cfg.MapSize, cfg.Train.ExitGap[0], cfg.Train.ExitGap[1])
	}
	for _, wall := range append(append([]geometry.Wall(nil), w.walls...), border...) {
		w.engine.AddSegment(wall.Start.Vec(), wall.End.Vec(), float64(wall.Thickness))
	}
	if cfg.Train.Enabled {
		ke, ok := w.engine.(KinematicEngine)
		if !ok {
			return nil, fmt.Errorf("train: engine %T cannot move segments", w.engine)
		}
		w.train = newTrain(cfg.Train, ke)
	}
	if err := w.spawnAgents(); err != nil {
		return nil, err
	}

	seeded, err := pop.SeedInfections(cfg.InitialInfected, 0, streamRand(cfg.Seed, mathx.StreamSeeding, 0))
	if err != nil {
		return nil, err
	}
	w.lastCounts = pop.Counts()
	w.metrics.Store(w.buildMetrics(0, 0, 0))
	w.logger.Printf("run %s ready: map=%d walls=%d free=%d dests=%d population=%d seeded=%v fields=%s",
		cfg.ID, cfg.MapSize, len(w.walls), grid.FreeCount(), len(w.dests), cfg.Population, seeded, w.fieldSource)
	return w, nil
}

func streamRand(seed int64, stream, i int) *rand.Rand {
	return rand.New(rand.NewSource(mathx.SeedFor(seed, stream, i)))
}

func pickDestinations(cfg WorldConfig, g *nav.Grid) ([]nav.Cell, error) {
	if len(cfg.Destinations) > 0 {
		for i, d := range cfg.Destinations {
			if !g.InBounds(d.X, d.Y) {
				return nil, fmt.Errorf("destination %d (%d,%d) outside map", i, d.X, d.Y)
			}
		}
		return append([]nav.Cell(nil), cfg.Destinations...), nil
	}
	free := freeCells(g)
	if len(free) == 0 {
		return nil, fmt.Errorf("map has no free cells")
	}
	rng := streamRand(cfg.Seed, mathx.StreamDestinations, 0)
	out := make([]nav.Cell, cfg.NumDestinations)
	for i := range out {
		out[i] = free[rng.Intn(len(free))]
	}
	return out, nil
}

func freeCells(g *nav.Grid) []nav.Cell {
	var out []nav.Cell
	for y := 0; y < g.Size(); y++ {
		for x := 0; x < g.Size(); x++ {
			if g.Free(x, y) {
				out = append(out, nav.Cell{X: x, Y: y})
			}
		}
	}
	return out
}

// loadFields uses the cache when allowed and falls back to generation. Any
// cache failure is logged and recovered from.
func (w *World) loadFields(ctx context.Context, cache FieldCache) error {
	w.mapVersion = fieldcache.MapVersion(w.cfg.MapSize, w.walls, w.dests, w.cfg.FieldMode)
	key := fieldcache.Key{
		MapVersion:   w.mapVersion,
		MapSize:      w.cfg.MapSize,
		Destinations: w.dests,
		Mode:         w.cfg.FieldMode,
	}
	useCache := w.cfg.UseFieldCache && cache != nil

	if useCache {
		fields, err := cache.Load(key)
		if err == nil {
			nv, nerr := nav.NewNavigator(w.grid, fields)
			if nerr == nil {
				w.nav, w.fieldSource = nv, FieldSourceCache
				return nil
			}
			err = fmt.Errorf("%w: %v", fieldcache.ErrCorruptCache, nerr)
		}
		switch {
		case errors.Is(err, fieldcache.ErrCacheMiss):
			w.logger.Printf("field cache miss: %v", err)
		case errors.Is(err, fieldcache.ErrCorruptCache):
			w.logger.Printf("field cache corrupt, regenerating: %v", err)
		default:
			w.logger.Printf("field cache unavailable, regenerating: %v", err)
		}
	}

	start := time.Now()
	fields, err := nav.GenerateAll(ctx, w.grid, w.dests, w.cfg.FieldMode, w.cfg.Workers)
	if err != nil {
		return fmt.Errorf("generate fields: %w", err)
	}
	w.logger.Printf("generated %d %s fields (%dx%d) in %s",
		len(fields), w.cfg.FieldMode, w.cfg.MapSize, w.cfg.MapSize, time.Since(start).Round(time.Millisecond))
	nv, err := nav.NewNavigator(w.grid, fields)
	if err != nil {
		return err
	}
	w.nav, w.fieldSource = nv, FieldSourceGenerated

	if useCache {
		if err := cache.Save(key, fields); err != nil {
			w.logger.Printf("field cache save: %v", err)
		}
	}
	return nil
}

// spawnAgents places every agent on a uniformly random free cell with a
// uniformly random initial velocity and destination.
func (w *World) spawnAgents() error {
	free := freeCells(w.grid)
	if len(free) == 0 {
		return fmt.Errorf("map has no free cells")
	}
	rng := streamRand(w.cfg.Seed, mathx.StreamSpawn, 0)
	speed := w.cfg.Motion.InitialSpeed
	n := w.cfg.Population

	w.agents = make([]Agent, n)
	w.cells = make([]nav.Cell, n)
	w.vels = make([]geometry.Vec2, n)
	for i := 0; i < n; i++ {
		c := free[rng.Intn(len(free))]
		pos := geometry.V(float64(c.X)+0.5, float64(c.Y)+0.5)
		vel := geometry.V((rng.Float64()*2-1)*speed, (rng.Float64()*2-1)*speed)
		h := w.engine.AddCircle(pos, vel, w.cfg.Motion.AgentRadius)
		w.resolver.Register(h, i)
		w.agents[i] = Agent{
			Handle: h,
			Dest:   rng.Intn(len(w.dests)),
			rng:    streamRand(w.cfg.Seed, mathx.StreamMotion, i),
		}
	}
	return nil
}
