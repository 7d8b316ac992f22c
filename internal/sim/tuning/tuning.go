// Package tuning loads the run configuration (tuning.yaml).
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
)

type Tuning struct {
	Seed    int64 `yaml:"seed"`
	MapSize int   `yaml:"map_size"`

	Population      int `yaml:"population"`
	InitialInfected int `yaml:"initial_infected"`

	InfectionProb       float64 `yaml:"infection_prob"`
	MeanIncubationTicks float64 `yaml:"mean_incubation_ticks"`
	MeanInfectiousTicks float64 `yaml:"mean_infectious_ticks"`

	NumDestinations int              `yaml:"num_destinations"`
	Destinations    []geometry.Point `yaml:"destinations,omitempty"`
	UseFieldCache   bool             `yaml:"use_field_cache"`
	FieldMode       string           `yaml:"field_mode"`

	TickRateHz int    `yaml:"tick_rate_hz"`
	MaxTicks   uint64 `yaml:"max_ticks"`

	Motion Motion `yaml:"motion"`

	WallThickness int         `yaml:"wall_thickness"`
	Buildings     []Placement `yaml:"buildings"`

	Train Train `yaml:"train"`

	// Workers bounds parallel field generation and per-agent updates.
	// 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Motion parameterizes the per-tick velocity update of every agent.
type Motion struct {
	AgentRadius        float64 `yaml:"agent_radius"`
	VelocityMultiplier float64 `yaml:"velocity_multiplier"`
	VelocityUpdateRate float64 `yaml:"velocity_update_rate"`
	InitialSpeed       float64 `yaml:"initial_speed"`
	VelocityNoise      float64 `yaml:"velocity_noise"`
}

// Train is a moving obstacle on a fixed timetable. Times are milliseconds
// of simulated time since the start of the run: the train leaves Origin at
// the start of every cycle, stops with its door open at StopMS, closes the
// door and drives on at ResumeMS, and respawns at Origin after CycleMS.
// The occupancy grid ignores it; only the physics engine sees it.
type Train struct {
	Enabled  bool          `yaml:"enabled"`
	Origin   geometry.Vec2 `yaml:"origin"`
	Width    float64       `yaml:"width"`
	Height   float64       `yaml:"height"`
	Velocity geometry.Vec2 `yaml:"velocity"`
	// DoorOpening is how far the right-hand door wall retracts upward from
	// the bottom while stopped.
	DoorOpening   float64 `yaml:"door_opening"`
	WallThickness float64 `yaml:"wall_thickness"`
	Elasticity    float64 `yaml:"elasticity"`

	StopMS   uint64 `yaml:"stop_ms"`
	ResumeMS uint64 `yaml:"resume_ms"`
	CycleMS  uint64 `yaml:"cycle_ms"`

	// ExitGap leaves [lo,hi] of the bottom map border open in the physics
	// engine where the train leaves the map. Zero means no gap.
	ExitGap [2]int `yaml:"exit_gap,flow"`
}

// DefaultTrain is the campus commuter train.
func DefaultTrain() Train {
	return Train{
		Enabled:       true,
		Origin:        geometry.V(140, 10),
		Width:         20,
		Height:        80,
		Velocity:      geometry.V(-1.1, 30),
		DoorOpening:   40,
		WallThickness: 3,
		Elasticity:    0.5,
		StopMS:        9_000,
		ResumeMS:      13_000,
		CycleMS:       36_000,
		ExitGap:       [2]int{110, 130},
	}
}

func (tr Train) Validate(mapSize int) error {
	if !tr.Enabled {
		return nil
	}
	switch {
	case !(tr.Width > 0) || !(tr.Height > 0):
		return fmt.Errorf("train.width and train.height must be positive")
	case tr.DoorOpening < 0 || tr.DoorOpening > tr.Height:
		return fmt.Errorf("train.door_opening must be within [0, height]")
	case !(tr.WallThickness > 0):
		return fmt.Errorf("train.wall_thickness must be positive")
	case tr.Elasticity < 0 || tr.Elasticity > 1:
		return fmt.Errorf("train.elasticity must be within [0, 1]")
	case tr.CycleMS == 0 || tr.StopMS > tr.ResumeMS || tr.ResumeMS > tr.CycleMS:
		return fmt.Errorf("train timetable needs stop_ms <= resume_ms <= cycle_ms, cycle_ms > 0")
	case tr.ExitGap[0] > tr.ExitGap[1] || tr.ExitGap[0] < 0 || tr.ExitGap[1] > mapSize:
		return fmt.Errorf("train.exit_gap must be an interval within the map")
	}
	return nil
}

// Placement puts a catalog building shape at an absolute origin.
type Placement struct {
	Shape  string         `yaml:"shape"`
	Origin geometry.Point `yaml:"origin"`
}

// DefaultBuildings is the campus layout.
func DefaultBuildings() []Placement {
	return []Placement{
		{Shape: "building_1", Origin: geometry.Pt(630, 490)},
		{Shape: "building_2", Origin: geometry.Pt(620, 450)},
		{Shape: "building_3", Origin: geometry.Pt(700, 530)},
		{Shape: "building_4", Origin: geometry.Pt(690, 430)},
		{Shape: "building_5", Origin: geometry.Pt(700, 310)},
		{Shape: "building_6", Origin: geometry.Pt(630, 310)},
	}
}

func Defaults() Tuning {
	return Tuning{
		Seed:                1,
		MapSize:             800,
		Population:          100,
		InitialInfected:     1,
		InfectionProb:       0.5,
		MeanIncubationTicks: 600,
		MeanInfectiousTicks: 1800,
		NumDestinations:     3,
		UseFieldCache:       true,
		FieldMode:           "exact",
		TickRateHz:          60,
		Motion: Motion{
			AgentRadius:        4,
			VelocityMultiplier: 30,
			VelocityUpdateRate: 0.01,
			InitialSpeed:       100,
			VelocityNoise:      1,
		},
		WallThickness: 3,
		Buildings:     DefaultBuildings(),
		Train:         DefaultTrain(),
	}
}

// Load reads path over Defaults(); keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if len(t.Destinations) > 0 {
		t.NumDestinations = len(t.Destinations)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.MapSize < 3:
		return fmt.Errorf("map_size must be >= 3")
	case t.Population < 1:
		return fmt.Errorf("population must be >= 1")
	case t.InitialInfected < 0 || t.InitialInfected > t.Population:
		return fmt.Errorf("initial_infected must be within [0, population]")
	case t.InfectionProb < 0 || t.InfectionProb > 1:
		return fmt.Errorf("infection_prob must be within [0, 1]")
	case !(t.MeanIncubationTicks > 0) || !(t.MeanInfectiousTicks > 0):
		return fmt.Errorf("mean_incubation_ticks and mean_infectious_ticks must be positive")
	case t.NumDestinations < 1:
		return fmt.Errorf("num_destinations must be >= 1")
	case t.FieldMode != "" && t.FieldMode != "exact" && t.FieldMode != "fifo":
		return fmt.Errorf("unknown field_mode %q", t.FieldMode)
	case t.TickRateHz < 1:
		return fmt.Errorf("tick_rate_hz must be >= 1")
	case t.Motion.AgentRadius <= 0:
		return fmt.Errorf("motion.agent_radius must be positive")
	case t.Workers < 0:
		return fmt.Errorf("workers must be >= 0")
	}
	if err := t.Train.Validate(t.MapSize); err != nil {
		return err
	}
	for i, d := range t.Destinations {
		if d.X < 0 || d.Y < 0 || d.X >= t.MapSize || d.Y >= t.MapSize {
			return fmt.Errorf("destination %d (%d,%d) outside map", i, d.X, d.Y)
		}
	}
	return nil
}

func (t Tuning) Marshal() ([]byte, error) { return yaml.Marshal(t) }
