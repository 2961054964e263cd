// Package catalog loads the static set of workouts a session can run.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/claude/workoutpal/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed workouts.yaml
var presets []byte

// DefaultSetSeconds is assumed for exercises without a fixed duration when
// estimating a workout's length.
const DefaultSetSeconds = 30

type file struct {
	Workouts []models.Workout `yaml:"workouts"`
}

// Catalog is an immutable, ordered collection of workouts.
type Catalog struct {
	workouts []models.Workout
	byID     map[string]int
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Category   models.Category
	Difficulty models.Difficulty
}

// Load reads the catalog from path, or the built-in presets when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(presets)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in presets.
func Default() *Catalog {
	c, err := Parse(presets)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Workouts) == 0 {
		return nil, fmt.Errorf("catalog has no workouts")
	}

	c := &Catalog{byID: make(map[string]int, len(f.Workouts))}
	for _, w := range f.Workouts {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[w.ID]; dup {
			return nil, fmt.Errorf("duplicate workout id %q", w.ID)
		}
		if w.EstimatedDuration == 0 {
			w.EstimatedDuration = (EstimatedSeconds(w) + 59) / 60
		}
		c.byID[w.ID] = len(c.workouts)
		c.workouts = append(c.workouts, w)
	}
	return c, nil
}

// List returns the workouts matching f in catalog order.
func (c *Catalog) List(f Filter) []models.Workout {
	out := make([]models.Workout, 0, len(c.workouts))
	for _, w := range c.workouts {
		if f.Category != "" && w.Category != f.Category {
			continue
		}
		if f.Difficulty != "" && w.Difficulty != f.Difficulty {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Get returns the workout with the given id.
func (c *Catalog) Get(id string) (models.Workout, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Workout{}, false
	}
	return c.workouts[i], true
}

// EstimatedSeconds is the sum over exercises of the set time for every set
// plus the rest between sets. The rest after an exercise's last set is not
// counted.
func EstimatedSeconds(w models.Workout) int {
	total := 0
	for _, ex := range w.Exercises {
		set := ex.DurationSec
		if set == 0 {
			set = DefaultSetSeconds
		}
		total += set*ex.Sets + ex.RestSec*(ex.Sets-1)
	}
	return total
}
