package models

import "time"

// HistoryRecord is the immutable summary of one completed workout session.
// WorkoutName is denormalized so the record still displays if the catalog changes.
type HistoryRecord struct {
	ID                 string    `json:"id"`
	WorkoutID          string    `json:"workoutId"`
	WorkoutName        string    `json:"workoutName"`
	Date               time.Time `json:"date"`
	Duration           int       `json:"duration"` // whole minutes
	CompletedExercises int       `json:"completedExercises"`
	TotalExercises     int       `json:"totalExercises"`
	Notes              string    `json:"notes,omitempty"`
}

// Stats is derived from the full history on every request and never stored.
type Stats struct {
	TotalWorkouts       int     `json:"totalWorkouts"`
	TotalDuration       int     `json:"totalDuration"`
	AverageDuration     float64 `json:"averageDuration"`
	MostFrequentWorkout string  `json:"mostFrequentWorkout"`
	StreakDays          int     `json:"streakDays"`
}

// SessionSnapshot is the persisted view of the session in progress.
type SessionSnapshot struct {
	ID                 string     `json:"id"`
	WorkoutID          string     `json:"workoutId"`
	WorkoutName        string     `json:"workoutName"`
	StartTime          time.Time  `json:"startTime"`
	EndTime            *time.Time `json:"endTime,omitempty"`
	CompletedExercises int        `json:"completedExercises"`
	TotalExercises     int        `json:"totalExercises"`
	IsCompleted        bool       `json:"isCompleted"`
}
