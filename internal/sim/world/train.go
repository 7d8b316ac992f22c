package world

import (
	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/physics"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
)

type trainPhase uint8

const (
	trainInbound trainPhase = iota
	trainStopped
	trainOutbound
)

func (p trainPhase) String() string {
	switch p {
	case trainInbound:
		return "inbound"
	case trainStopped:
		return "stopped"
	case trainOutbound:
		return "outbound"
	}
	return "unknown"
}

// TrainStatus is the train's state after the last tick.
type TrainStatus struct {
	Phase    string        `json:"phase"`
	Cycle    uint64        `json:"cycle"`
	Position geometry.Vec2 `json:"position"`
	DoorOpen bool          `json:"door_open"`
}

// train is a kinematic box of four segments: top, left and bottom walls and
// a right-hand door. Its state is a pure function of simulated time, so
// runs and replays see the same train.
type train struct {
	cfg    tuning.Train
	engine KinematicEngine
	segs   [4]physics.Handle // top, left, bottom, door
	pos    geometry.Vec2     // top-left corner
	phase  trainPhase
	cycle  uint64
}

func newTrain(cfg tuning.Train, e KinematicEngine) *train {
	t := &train{cfg: cfg, engine: e, pos: cfg.Origin}
	for i, s := range t.layout() {
		t.segs[i] = e.AddSegment(s[0], s[1], cfg.WallThickness)
		e.SetElasticity(t.segs[i], cfg.Elasticity)
	}
	t.sync()
	return t
}

// phaseAt maps milliseconds since the run start onto the timetable.
func phaseAt(cfg tuning.Train, ms uint64) (cycle uint64, phase trainPhase) {
	cycle, at := ms/cfg.CycleMS, ms%cfg.CycleMS
	switch {
	case at < cfg.StopMS:
		return cycle, trainInbound
	case at < cfg.ResumeMS:
		return cycle, trainStopped
	default:
		return cycle, trainOutbound
	}
}

func (t *train) velocity() geometry.Vec2 {
	if t.phase == trainStopped {
		return geometry.Vec2{}
	}
	return t.cfg.Velocity
}

func (t *train) layout() [4][2]geometry.Vec2 {
	x, y := t.pos.X, t.pos.Y
	w, h := t.cfg.Width, t.cfg.Height
	doorEnd := y + h
	if t.phase == trainStopped {
		doorEnd -= t.cfg.DoorOpening
	}
	return [4][2]geometry.Vec2{
		{geometry.V(x, y), geometry.V(x+w, y)},
		{geometry.V(x, y), geometry.V(x, y+h)},
		{geometry.V(x, y+h), geometry.V(x+w, y+h)},
		{geometry.V(x+w, y), geometry.V(x+w, doorEnd)},
	}
}

func (t *train) sync() {
	v := t.velocity()
	for i, s := range t.layout() {
		t.engine.SetSegmentEndpoints(t.segs[i], s[0], s[1])
		t.engine.SetVelocity(t.segs[i], v)
	}
}

// update applies the timetable for the tick about to be stepped and reports
// whether the phase changed.
func (t *train) update(nowTick uint64, tickRateHz int) bool {
	cycle, phase := phaseAt(t.cfg, nowTick*1000/uint64(tickRateHz))
	if cycle != t.cycle {
		t.cycle = cycle
		t.pos = t.cfg.Origin
	}
	changed := phase != t.phase
	t.phase = phase
	t.sync()
	return changed
}

// advance mirrors the engine moving the segments by their velocity.
func (t *train) advance(dt float64) {
	t.pos = t.pos.Add(t.velocity().Scale(dt))
}

func (t *train) status() TrainStatus {
	return TrainStatus{
		Phase:    t.phase.String(),
		Cycle:    t.cycle,
		Position: t.pos,
		DoorOpen: t.phase == trainStopped,
	}
}
