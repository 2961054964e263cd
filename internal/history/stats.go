package history

import (
	"slices"
	"time"

	"github.com/claude/workoutpal/internal/models"
)

// ComputeStats derives the aggregate statistics from records. Records are
// taken in the order given; that order breaks ties for the most frequent
// workout. now anchors the streak.
func ComputeStats(records []models.HistoryRecord, now time.Time) models.Stats {
	if len(records) == 0 {
		return models.Stats{}
	}

	var st models.Stats
	st.TotalWorkouts = len(records)
	for _, r := range records {
		st.TotalDuration += r.Duration
	}
	st.AverageDuration = float64(st.TotalDuration) / float64(st.TotalWorkouts)
	st.MostFrequentWorkout = mostFrequent(records)
	st.StreakDays = Streak(records, now)
	return st
}

func mostFrequent(records []models.HistoryRecord) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		if _, seen := counts[r.WorkoutName]; !seen {
			order = append(order, r.WorkoutName)
		}
		counts[r.WorkoutName]++
	}
	best := ""
	bestCount := 0
	for _, name := range order {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best
}

// Streak counts consecutive calendar days, walking back from the day of now,
// that have at least one record. Days are taken in now's location. Several
// records on one day count once.
func Streak(records []models.HistoryRecord, now time.Time) int {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.HistoryRecord) int {
		return b.Date.Compare(a.Date)
	})

	loc := now.Location()
	current := midnight(now, loc)
	streak := 0
	for _, r := range sorted {
		day := midnight(r.Date, loc)
		switch {
		case day.Equal(current):
			streak++
			current = current.AddDate(0, 0, -1)
		case day.Before(current):
			return streak
		}
	}
	return streak
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
