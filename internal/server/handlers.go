package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/workoutpal/internal/catalog"
	"github.com/claude/workoutpal/internal/history"
	"github.com/claude/workoutpal/internal/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	f := catalog.Filter{
		Category:   models.Category(r.URL.Query().Get("category")),
		Difficulty: models.Difficulty(r.URL.Query().Get("difficulty")),
	}
	writeJSON(w, http.StatusOK, s.Catalog.List(f))
}

type workoutDetail struct {
	models.Workout
	EstimatedSeconds int `json:"estimatedSeconds"`
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	wo, ok := s.Catalog.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	writeJSON(w, http.StatusOK, workoutDetail{Workout: wo, EstimatedSeconds: catalog.EstimatedSeconds(wo)})
}

// handleListHistory returns every record, or the records within start/end
// when either is given.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("start") && !q.Has("end") {
		writeJSON(w, http.StatusOK, s.History.List(r.Context()))
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.History.ByDateRange(r.Context(), start, end))
}

func (s *Server) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.History.Recent(r.Context(), limit))
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.History.Clear(r.Context()); err != nil {
		s.log.Error("clearing history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history was not fully cleared"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.History.Stats(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// parseTimeRange reads start/end as RFC3339 or YYYY-MM-DD. A date-only end
// covers that whole day. Missing start means the last 7 days.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		end = time.Now()
		start = end.AddDate(0, 0, -7)
		if endStr == "" {
			return
		}
	} else {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			start, err = time.Parse("2006-01-02", startStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		if startStr == "" {
			start = end.AddDate(0, 0, -7)
		}
	}
	return
}
