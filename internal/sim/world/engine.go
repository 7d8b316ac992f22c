package world

import (
	"github.com/BinaryBen1/virus-simulation/internal/persistence/fieldcache"
	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
	"github.com/BinaryBen1/virus-simulation/internal/sim/physics"
)

// Engine is the physics collaborator. It owns body positions and velocities
// and calls the begin handler synchronously from Step for every new contact.
// *physics.Space implements it.
type Engine interface {
	AddCircle(pos, vel geometry.Vec2, radius float64) physics.Handle
	AddSegment(a, b geometry.Vec2, radius float64) physics.Handle
	SetBeginHandler(fn physics.BeginFunc)
	Position(h physics.Handle) geometry.Vec2
	Velocity(h physics.Handle) geometry.Vec2
	SetVelocity(h physics.Handle, v geometry.Vec2)
	Step(dt float64)
}

// KinematicEngine can move segments after they are added. Runs with a train
// need it. *physics.Space implements it.
type KinematicEngine interface {
	Engine
	SetSegmentEndpoints(h physics.Handle, a, b geometry.Vec2)
	SetElasticity(h physics.Handle, e float64)
}

// FieldCache stores generated distance fields between runs.
// *fieldcache.Store implements it.
type FieldCache interface {
	Load(key fieldcache.Key) ([]*nav.Field, error)
	Save(key fieldcache.Key, fields []*nav.Field) error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}
