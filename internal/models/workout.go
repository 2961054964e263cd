package models

import "fmt"

// Category groups workouts by training focus.
type Category string

const (
	CategoryStrength    Category = "strength"
	CategoryCardio      Category = "cardio"
	CategoryFlexibility Category = "flexibility"
	CategoryMixed       Category = "mixed"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryStrength, CategoryCardio, CategoryFlexibility, CategoryMixed:
		return true
	}
	return false
}

// Difficulty is the advertised level of a workout.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Exercise is a static exercise definition inside a workout.
// Reps of 0 means open-ended; DurationSec of 0 means the set is not time-based.
type Exercise struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Sets        int    `json:"sets" yaml:"sets"`
	Reps        int    `json:"reps" yaml:"reps"`
	DurationSec int    `json:"duration,omitempty" yaml:"duration"`
	RestSec     int    `json:"restTime" yaml:"rest"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Workout is an immutable, ordered list of exercises loaded from the catalog.
type Workout struct {
	ID                string     `json:"id" yaml:"id"`
	Name              string     `json:"name" yaml:"name"`
	Description       string     `json:"description" yaml:"description"`
	Exercises         []Exercise `json:"exercises" yaml:"exercises"`
	EstimatedDuration int        `json:"estimatedDuration" yaml:"estimated_duration"`
	Category          Category   `json:"category" yaml:"category"`
	Difficulty        Difficulty `json:"difficulty" yaml:"difficulty"`
	ImageURL          string     `json:"imageUrl,omitempty" yaml:"image_url"`
}

// Validate checks the structural invariants the session controller relies on.
func (w Workout) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workout id is required")
	}
	if w.Name == "" {
		return fmt.Errorf("workout %s: name is required", w.ID)
	}
	if len(w.Exercises) == 0 {
		return fmt.Errorf("workout %s: at least one exercise is required", w.ID)
	}
	if !w.Category.Valid() {
		return fmt.Errorf("workout %s: unknown category %q", w.ID, w.Category)
	}
	if !w.Difficulty.Valid() {
		return fmt.Errorf("workout %s: unknown difficulty %q", w.ID, w.Difficulty)
	}
	for i, ex := range w.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("workout %s: exercise %d has no name", w.ID, i+1)
		}
		if ex.Sets < 1 {
			return fmt.Errorf("workout %s: exercise %q needs at least one set", w.ID, ex.Name)
		}
		if ex.DurationSec < 0 || ex.RestSec < 0 || ex.Reps < 0 {
			return fmt.Errorf("workout %s: exercise %q has negative values", w.ID, ex.Name)
		}
	}
	return nil
}
