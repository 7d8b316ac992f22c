package world

import (
	"fmt"
	"runtime"

	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
	"github.com/BinaryBen1/virus-simulation/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	Seed       int64
	MapSize    int
	TickRateHz int
	MaxTicks   uint64

	Population      int
	InitialInfected int
	InfectionProb   float64
	Disease         epidemic.Params

	// Destinations, when non-empty, fixes the destination cells and wins
	// over NumDestinations.
	Destinations    []nav.Cell
	NumDestinations int
	FieldMode       nav.Mode
	UseFieldCache   bool

	Motion        tuning.Motion
	WallThickness int
	Buildings     []tuning.Placement
	Train         tuning.Train

	Workers int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "run_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.FieldMode == "" {
		c.FieldMode = nav.ModeExact
	}
	if c.WallThickness <= 0 {
		c.WallThickness = 3
	}
	if c.Motion.AgentRadius <= 0 {
		c.Motion.AgentRadius = 4
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if len(c.Destinations) > 0 {
		c.NumDestinations = len(c.Destinations)
	}
}

func (c WorldConfig) validate() error {
	switch {
	case c.MapSize < 3:
		return fmt.Errorf("map size %d too small", c.MapSize)
	case c.Population < 1:
		return fmt.Errorf("population must be positive")
	case c.InitialInfected < 0 || c.InitialInfected > c.Population:
		return fmt.Errorf("initial infected %d outside [0,%d]", c.InitialInfected, c.Population)
	case c.InfectionProb < 0 || c.InfectionProb > 1:
		return fmt.Errorf("infection probability %v outside [0,1]", c.InfectionProb)
	case c.NumDestinations < 1:
		return fmt.Errorf("need at least one destination")
	}
	if err := c.Train.Validate(c.MapSize); err != nil {
		return err
	}
	if _, err := nav.ParseMode(string(c.FieldMode)); err != nil {
		return err
	}
	return c.Disease.Validate()
}

// ConfigFromTuning maps a loaded tuning.yaml onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) (WorldConfig, error) {
	mode, err := nav.ParseMode(t.FieldMode)
	if err != nil {
		return WorldConfig{}, err
	}
	cfg := WorldConfig{
		ID:              id,
		Seed:            t.Seed,
		MapSize:         t.MapSize,
		TickRateHz:      t.TickRateHz,
		MaxTicks:        t.MaxTicks,
		Population:      t.Population,
		InitialInfected: t.InitialInfected,
		InfectionProb:   t.InfectionProb,
		Disease: epidemic.Params{
			MeanIncubationTicks: t.MeanIncubationTicks,
			MeanInfectiousTicks: t.MeanInfectiousTicks,
		},
		NumDestinations: t.NumDestinations,
		FieldMode:       mode,
		UseFieldCache:   t.UseFieldCache,
		Motion:          t.Motion,
		WallThickness:   t.WallThickness,
		Buildings:       append([]tuning.Placement(nil), t.Buildings...),
		Train:           t.Train,
		Workers:         t.Workers,
	}
	for _, d := range t.Destinations {
		cfg.Destinations = append(cfg.Destinations, nav.Cell{X: d.X, Y: d.Y})
	}
	return cfg, nil
}
