package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
)

// Segment is a wall relative to a building origin.
type Segment struct {
	From [2]int `json:"from"`
	To   [2]int `json:"to"`
}

type ShapeDef struct {
	ID       string    `json:"id"`
	Segments []Segment `json:"segments"`
}

type BuildingCatalog struct {
	ByID   map[string]ShapeDef
	Digest string
}

func seg(x1, y1, x2, y2 int) Segment {
	return Segment{From: [2]int{x1, y1}, To: [2]int{x2, y2}}
}

// defaultShapes are the campus buildings. Gaps in a side are doors.
var defaultShapes = []ShapeDef{
	{ID: "house", Segments: []Segment{
		seg(0, 0, 80, 0), seg(0, 0, 0, 80), seg(80, 0, 80, 80),
		seg(0, 80, 20, 80), seg(60, 80, 80, 80),
	}},
	// right-open, long
	{ID: "building_1", Segments: []Segment{
		seg(0, 0, 20, 0), seg(0, 0, 0, 80), seg(0, 80, 20, 80),
		seg(20, 0, 20, 30), seg(20, 60, 20, 80),
	}},
	// right-open, small square
	{ID: "building_2", Segments: []Segment{
		seg(0, 0, 30, 0), seg(0, 0, 0, 30), seg(0, 30, 30, 30),
		seg(30, 20, 30, 30),
	}},
	// left-open, long
	{ID: "building_3", Segments: []Segment{
		seg(0, 0, 20, 0), seg(20, 0, 20, 80), seg(0, 80, 20, 80),
		seg(0, 0, 0, 30), seg(0, 60, 0, 80),
	}},
	// left-open, medium
	{ID: "building_4", Segments: []Segment{
		seg(0, 0, 40, 0), seg(40, 0, 40, 50), seg(0, 50, 40, 50),
		seg(0, 0, 0, 20), seg(0, 40, 0, 50),
	}},
	// L-shape
	{ID: "building_5", Segments: []Segment{
		seg(0, 0, 20, 0), seg(20, 0, 20, 60),
		seg(0, 0, 0, 30), seg(0, 60, 0, 90),
		seg(20, 60, 60, 60), seg(0, 90, 60, 90), seg(60, 60, 60, 90),
	}},
	// bottom-open
	{ID: "building_6", Segments: []Segment{
		seg(0, 0, 50, 0), seg(0, 0, 0, 20), seg(50, 0, 50, 20),
		seg(0, 20, 20, 20), seg(40, 20, 50, 20),
	}},
}

// Default returns the built-in building table.
func Default() *BuildingCatalog {
	c := &BuildingCatalog{ByID: map[string]ShapeDef{}}
	for _, s := range defaultShapes {
		c.ByID[s.ID] = s
	}
	c.Digest = c.digest()
	return c
}

// Load returns the built-in table extended (or overridden) by every
// <configDir>/buildings/*.json file. A missing directory is not an error.
func Load(configDir string) (*BuildingCatalog, error) {
	c := Default()
	if strings.TrimSpace(configDir) == "" {
		return c, nil
	}
	dir := filepath.Join(configDir, "buildings")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var def ShapeDef
		if err := json.Unmarshal(b, &def); err != nil {
			return nil, fmt.Errorf("building %s: %w", filepath.Base(p), err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("building %s: missing id", filepath.Base(p))
		}
		if len(def.Segments) == 0 {
			return nil, fmt.Errorf("building %s: no segments", filepath.Base(p))
		}
		c.ByID[def.ID] = def
	}
	c.Digest = c.digest()
	return c, nil
}

// Place expands a shape at origin into absolute walls. Each wall is validated.
func (c *BuildingCatalog) Place(shape string, origin geometry.Point, thickness int) ([]geometry.Wall, error) {
	def, ok := c.ByID[shape]
	if !ok {
		return nil, fmt.Errorf("unknown building shape %q", shape)
	}
	walls := make([]geometry.Wall, 0, len(def.Segments))
	for _, s := range def.Segments {
		w := geometry.Wall{
			Start:     origin.Add(geometry.Pt(s.From[0], s.From[1])),
			End:       origin.Add(geometry.Pt(s.To[0], s.To[1])),
			Thickness: thickness,
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("building %s: %w", shape, err)
		}
		walls = append(walls, w)
	}
	return walls, nil
}

func (c *BuildingCatalog) IDs() []string {
	ids := make([]string, 0, len(c.ByID))
	for id := range c.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *BuildingCatalog) digest() string {
	defs := make([]ShapeDef, 0, len(c.ByID))
	for _, id := range c.IDs() {
		defs = append(defs, c.ByID[id])
	}
	b, _ := json.Marshal(defs)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
