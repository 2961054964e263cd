package server

import (
	"errors"
	"net/http"

	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/session"
)

type beginRequest struct {
	WorkoutID string `json:"workout_id"`
}

type completionView struct {
	Saved   bool                 `json:"saved"`
	Message string               `json:"message"`
	Record  models.HistoryRecord `json:"record"`
}

// sessionView is what clients render: the raw state plus the exercise it
// points at.
type sessionView struct {
	session.State
	WorkoutID      string          `json:"workoutId"`
	WorkoutName    string          `json:"workoutName"`
	TotalExercises int             `json:"totalExercises"`
	Exercise       models.Exercise `json:"exercise"`
	Completion     *completionView `json:"completion,omitempty"`
}

func (s *Server) viewOf(r *session.Runner) sessionView {
	st := r.State()
	m := r.Machine()
	wo := m.Workout()
	v := sessionView{
		State:          st,
		WorkoutID:      wo.ID,
		WorkoutName:    wo.Name,
		TotalExercises: len(wo.Exercises),
		Exercise:       m.Exercise(st),
	}
	if c, ok := s.Sessions.LastCompletion(); ok && c.SessionID == r.ID() {
		v.Completion = &completionView{Saved: c.Saved, Message: c.Message, Record: c.Record}
	}
	return v
}

func (s *Server) handleBeginSession(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	wo, ok := s.Catalog.Get(req.WorkoutID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}

	cfg := s.Session
	cfg.VoiceEnabled = s.Preferences.Preferences(r.Context()).VoiceEnabled

	runner, err := s.Sessions.Begin(wo, cfg)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("session begun", "session", runner.ID(), "workout", wo.ID)
	writeJSON(w, http.StatusCreated, s.viewOf(runner))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.Sessions.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(runner))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if !s.Sessions.End() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionCommand adapts a runner command to a handler. Commands that are
// not allowed in the current phase answer 409 with the unchanged state.
func (s *Server) sessionCommand(cmd func(*session.Runner) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runner, ok := s.Sessions.Current()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
			return
		}
		if err := cmd(runner); err != nil {
			if errors.Is(err, session.ErrInvalidCommand) || errors.Is(err, session.ErrClosed) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, s.viewOf(runner))
	}
}
