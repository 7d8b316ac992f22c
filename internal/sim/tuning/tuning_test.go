package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeFile(t, `
seed: 42
population: 250
infection_prob: 0.25
destinations:
  - {x: 100, y: 100}
  - {x: 700, y: 700}
motion:
  velocity_noise: 2
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seed != 42 || got.Population != 250 || got.InfectionProb != 0.25 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.NumDestinations != 2 {
		t.Fatalf("explicit destinations must set the count, got %d", got.NumDestinations)
	}
	if got.MapSize != 800 || got.Motion.AgentRadius != 4 || got.Motion.VelocityNoise != 2 {
		t.Fatalf("defaults lost: %+v", got)
	}
	if len(got.Buildings) != 6 {
		t.Fatalf("default buildings lost: %d", len(got.Buildings))
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"prob":    "infection_prob: 1.5\n",
		"seeded":  "population: 2\ninitial_infected: 3\n",
		"mode":    "field_mode: astar\n",
		"dests":   "num_destinations: 0\n",
		"incub":   "mean_incubation_ticks: 0\n",
		"outside": "destinations: [{x: 900, y: 1}]\n",
		"syntax":  "population: [\n",
		"train":   "train: {stop_ms: 20000, resume_ms: 10000}\n",
		"gap":     "train: {exit_gap: [130, 110]}\n",
	}
	for name, body := range cases {
		if _, err := Load(writeFile(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "tuning.yaml") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestMarshal_RoundTripsThroughLoad(t *testing.T) {
	want := Defaults()
	want.Seed = 7
	b, err := want.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Load(writeFile(t, string(b)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seed != 7 || got.Buildings[3] != want.Buildings[3] || got.Motion != want.Motion || got.Train != want.Train {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_TrainOverrides(t *testing.T) {
	got, err := Load(writeFile(t, `
train:
  origin: {x: 300, y: 20}
  cycle_ms: 60000
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tr := got.Train
	if !tr.Enabled || tr.Origin.X != 300 || tr.Origin.Y != 20 || tr.CycleMS != 60000 {
		t.Fatalf("train overrides not applied: %+v", tr)
	}
	if tr.StopMS != 9000 || tr.ResumeMS != 13000 || tr.ExitGap != [2]int{110, 130} {
		t.Fatalf("train defaults lost: %+v", tr)
	}

	off, err := Load(writeFile(t, "train: {enabled: false, cycle_ms: 0}\n"))
	if err != nil {
		t.Fatalf("disabled train must skip validation: %v", err)
	}
	if off.Train.Enabled {
		t.Fatalf("train still enabled")
	}
}
