package world

import (
	"log"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/BinaryBen1/virus-simulation/internal/sim/catalogs"
	"github.com/BinaryBen1/virus-simulation/internal/sim/contact"
	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
	"github.com/BinaryBen1/virus-simulation/internal/sim/physics"
)

// Field sources reported in metrics and the observer bootstrap.
const (
	FieldSourceCache     = "cache"
	FieldSourceGenerated = "generated"
)

type Options struct {
	// Engine defaults to a physics.Space covering the map.
	Engine Engine
	// Cache is consulted when WorldConfig.UseFieldCache is set. May be nil.
	Cache   FieldCache
	Catalog *catalogs.BuildingCatalog
	Logger  *log.Logger
	// TickLogger receives one entry per tick. May be nil.
	TickLogger TickLogger
}

type Agent struct {
	Handle physics.Handle
	Dest   int
	rng    *rand.Rand
}

// World is one simulation run. Tick and the stepping entry points must be
// called from a single goroutine; Metrics and the read-only map accessors
// are safe from any goroutine.
type World struct {
	cfg    WorldConfig
	logger *log.Logger

	walls       []geometry.Wall
	grid        *nav.Grid
	dests       []nav.Cell
	nav         *nav.Navigator
	fieldSource string
	mapVersion  string

	pop      *epidemic.Population
	resolver *contact.Resolver
	engine   Engine
	agents   []Agent
	train    *train // nil without a train

	// per-tick scratch
	cells []nav.Cell
	vels  []geometry.Vec2

	tick atomic.Uint64

	tickLogger TickLogger
	stats      *IncidenceStats
	metrics    atomic.Value // WorldMetrics
	lastCounts epidemic.Counts

	observers     map[string]*observerClient
	observerGone  map[string]struct{} // left before their join was handled
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string

	stop     chan struct{}
	stopOnce sync.Once
}

type TickLogEntry struct {
	Tick uint64 `json:"tick"`
	epidemic.Counts
	NewInfections int                    `json:"new_infections"`
	Transmissions []contact.Transmission `json:"transmissions,omitempty"`
	Digest        string                 `json:"digest"`
}

func (w *World) Config() WorldConfig {
	cfg := w.cfg
	cfg.Destinations = append([]nav.Cell(nil), w.dests...)
	return cfg
}

func (w *World) ID() string                       { return w.cfg.ID }
func (w *World) CurrentTick() uint64              { return w.tick.Load() }
func (w *World) Grid() *nav.Grid                  { return w.grid }
func (w *World) Navigator() *nav.Navigator        { return w.nav }
func (w *World) Destinations() []nav.Cell         { return w.dests }
func (w *World) Walls() []geometry.Wall           { return w.walls }
func (w *World) FieldSource() string              { return w.fieldSource }
func (w *World) MapVersion() string               { return w.mapVersion }
func (w *World) Population() *epidemic.Population { return w.pop }
func (w *World) Agents() []Agent                  { return w.agents }
func (w *World) Counts() epidemic.Counts          { return w.lastCounts }

// AgentPosition reads the agent's position from the engine.
func (w *World) AgentPosition(i int) geometry.Vec2 { return w.engine.Position(w.agents[i].Handle) }

func (w *World) cellOf(p geometry.Vec2) nav.Cell {
	return w.grid.Clamp(floorInt(p.X), floorInt(p.Y))
}
