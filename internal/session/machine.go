// Package session runs a single guided workout: a pure state machine that
// turns commands into the next State plus side-effect intents, and a Runner
// that drives it from a one-second ticker and executes those intents.
package session

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/voice"
	"github.com/google/uuid"
)

// Phase is the controller's current state.
type Phase string

const (
	PhaseReady     Phase = "ready"
	PhaseActive    Phase = "active"
	PhaseResting   Phase = "resting"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// Running reports whether the countdown ticks in p.
func (p Phase) Running() bool {
	return p == PhaseActive || p == PhaseResting
}

// ErrInvalidCommand is returned when a command is not allowed in the current phase.
var ErrInvalidCommand = errors.New("command not allowed in current phase")

const (
	DefaultSetSeconds  = 30
	DefaultRestSeconds = 60

	countdownFrom = 10
	completedText = "Workout completed! Great job!"
)

// State is one immutable snapshot of a session. Transitions never modify
// the receiver's Completed slice; they copy it.
type State struct {
	SessionID     string    `json:"sessionId"`
	ExerciseIndex int       `json:"exerciseIndex"`
	Set           int       `json:"set"`
	Phase         Phase     `json:"phase"`
	PausedFrom    Phase     `json:"pausedFrom,omitempty"`
	TimeLeft      int       `json:"timeLeft"`
	Elapsed       int       `json:"elapsed"`
	Completed     []bool    `json:"completed"`
	LastSpoken    int       `json:"-"` // 0 means nothing announced in this phase
	StartedAt     time.Time `json:"startedAt"`
	Started       bool      `json:"started"`
}

// CompletedCount returns how many exercises are flagged complete.
func (s State) CompletedCount() int {
	n := 0
	for _, done := range s.Completed {
		if done {
			n++
		}
	}
	return n
}

func (s State) clone() State {
	s.Completed = slices.Clone(s.Completed)
	return s
}

// Config is threaded in from the caller; nothing is read from ambient state.
type Config struct {
	VoiceEnabled       bool
	DefaultSetSeconds  int
	DefaultRestSeconds int
	Language           string
	Now                func() time.Time
}

// Machine holds the immutable inputs of one session.
type Machine struct {
	workout models.Workout
	cfg     Config
}

// NewMachine validates the workout and returns the machine with its initial state.
func NewMachine(w models.Workout, cfg Config) (*Machine, State, error) {
	if err := w.Validate(); err != nil {
		return nil, State{}, fmt.Errorf("invalid workout: %w", err)
	}
	if cfg.DefaultSetSeconds <= 0 {
		cfg.DefaultSetSeconds = DefaultSetSeconds
	}
	if cfg.DefaultRestSeconds <= 0 {
		cfg.DefaultRestSeconds = DefaultRestSeconds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Machine{workout: w, cfg: cfg}
	return m, State{
		SessionID: uuid.NewString(),
		Set:       1,
		Phase:     PhaseReady,
		Completed: make([]bool, len(w.Exercises)),
	}, nil
}

// Workout returns the workout being run.
func (m *Machine) Workout() models.Workout { return m.workout }

// Exercise returns the exercise at the state's index.
func (m *Machine) Exercise(s State) models.Exercise {
	return m.workout.Exercises[s.ExerciseIndex]
}

func (m *Machine) setSeconds(ex models.Exercise) int {
	if ex.DurationSec > 0 {
		return ex.DurationSec
	}
	return m.cfg.DefaultSetSeconds
}

func (m *Machine) restSeconds(ex models.Exercise) int {
	if ex.RestSec > 0 {
		return ex.RestSec
	}
	return m.cfg.DefaultRestSeconds
}

func (m *Machine) isLastExercise(s State) bool {
	return s.ExerciseIndex >= len(m.workout.Exercises)-1
}

// Start moves ready to active. The first start anchors the session at
// exercise 0, set 1; later starts begin the current exercise after a rest.
func (m *Machine) Start(s State) (State, []Effect, error) {
	if s.Phase != PhaseReady {
		return s, nil, fmt.Errorf("start in %s: %w", s.Phase, ErrInvalidCommand)
	}
	next := s.clone()
	var effects []Effect
	if !next.Started {
		next.Started = true
		next.StartedAt = m.cfg.Now()
		next.ExerciseIndex = 0
		next.Set = 1
		effects = append(effects, SaveSnapshot{Snapshot: m.snapshot(next, nil)})
	}
	var enter []Effect
	next, enter = m.enterActive(next)
	return next, append(effects, enter...), nil
}

// Tick advances the countdown and the elapsed accumulator by one second.
// Outside active and resting it is a no-op.
func (m *Machine) Tick(s State) (State, []Effect) {
	if !s.Phase.Running() {
		return s, nil
	}
	next := s.clone()
	next.Elapsed++

	if next.TimeLeft <= 1 {
		next.TimeLeft = 0
		return m.phaseEnded(next)
	}

	next.TimeLeft--
	if next.TimeLeft <= countdownFrom && next.TimeLeft != next.LastSpoken && m.cfg.VoiceEnabled {
		next.LastSpoken = next.TimeLeft
		return next, m.say(strconv.Itoa(next.TimeLeft), voice.Options{Rate: 1.2})
	}
	return next, nil
}

// Pause freezes the countdown and silences speech.
func (m *Machine) Pause(s State) (State, []Effect, error) {
	if !s.Phase.Running() {
		return s, nil, fmt.Errorf("pause in %s: %w", s.Phase, ErrInvalidCommand)
	}
	next := s.clone()
	next.PausedFrom = s.Phase
	next.Phase = PhasePaused
	var effects []Effect
	if m.cfg.VoiceEnabled {
		effects = append(effects, StopSpeech{})
	}
	return next, effects, nil
}

// Resume returns to the phase that was paused with the same time left.
func (m *Machine) Resume(s State) (State, []Effect, error) {
	if s.Phase != PhasePaused {
		return s, nil, fmt.Errorf("resume in %s: %w", s.Phase, ErrInvalidCommand)
	}
	next := s.clone()
	next.Phase = s.PausedFrom
	next.PausedFrom = ""
	return next, nil, nil
}

// Skip abandons the rest of the current phase and jumps straight to set 1
// of the next exercise, or completes the workout from the last exercise.
// The skipped exercise's completion flag is left as it was.
func (m *Machine) Skip(s State) (State, []Effect, error) {
	if !s.Phase.Running() && s.Phase != PhasePaused {
		return s, nil, fmt.Errorf("skip in %s: %w", s.Phase, ErrInvalidCommand)
	}
	next := s.clone()
	next.PausedFrom = ""
	next.LastSpoken = 0

	var effects []Effect
	if m.cfg.VoiceEnabled {
		effects = append(effects, StopSpeech{})
	}
	var more []Effect
	if m.isLastExercise(next) {
		next, more = m.complete(next)
		return next, append(effects, more...), nil
	}
	next.ExerciseIndex++
	next.Set = 1
	next, more = m.enterActive(next)
	return next, append(effects, more...), nil
}

func (m *Machine) phaseEnded(s State) (State, []Effect) {
	ex := m.Exercise(s)
	switch s.Phase {
	case PhaseActive:
		if s.Set < ex.Sets {
			return m.enterResting(s)
		}
		s.Completed[s.ExerciseIndex] = true
		if m.isLastExercise(s) {
			return m.complete(s)
		}
		return m.enterResting(s)
	case PhaseResting:
		if s.Set >= ex.Sets {
			s.ExerciseIndex++
			s.Set = 1
			s.Phase = PhaseReady
			s.TimeLeft = 0
			s.LastSpoken = 0
			return s, nil
		}
		s.Set++
		return m.enterActive(s)
	}
	return s, nil
}

func (m *Machine) enterActive(s State) (State, []Effect) {
	ex := m.Exercise(s)
	s.Phase = PhaseActive
	s.TimeLeft = m.setSeconds(ex)
	s.LastSpoken = 0
	return s, m.say(fmt.Sprintf("%s, set %d", ex.Name, s.Set), voice.Options{Rate: 1.0})
}

func (m *Machine) enterResting(s State) (State, []Effect) {
	rest := m.restSeconds(m.Exercise(s))
	s.Phase = PhaseResting
	s.TimeLeft = rest
	s.LastSpoken = 0
	return s, m.say(fmt.Sprintf("Rest for %d seconds", rest), voice.Options{Rate: 1.0})
}

func (m *Machine) complete(s State) (State, []Effect) {
	s.Phase = PhaseCompleted
	s.TimeLeft = 0
	s.LastSpoken = 0

	now := m.cfg.Now()
	completed := s.CompletedCount()
	total := len(m.workout.Exercises)
	record := models.HistoryRecord{
		ID:                 uuid.NewString(),
		WorkoutID:          m.workout.ID,
		WorkoutName:        m.workout.Name,
		Date:               now,
		Duration:           s.Elapsed / 60,
		CompletedExercises: completed,
		TotalExercises:     total,
		Notes:              fmt.Sprintf("Completed %d/%d exercises", completed, total),
	}

	effects := m.say(completedText, voice.Options{Rate: 1.0})
	effects = append(effects,
		SaveHistory{Record: record},
		SaveSnapshot{Snapshot: m.snapshot(s, &now)},
	)
	return s, effects
}

// say emits the cancel-before-speak pair, or nothing when voice is off.
func (m *Machine) say(text string, opts voice.Options) []Effect {
	if !m.cfg.VoiceEnabled {
		return nil
	}
	if opts.Language == "" {
		opts.Language = m.cfg.Language
	}
	return []Effect{StopSpeech{}, Speak{Text: text, Options: opts}}
}

func (m *Machine) snapshot(s State, end *time.Time) models.SessionSnapshot {
	return models.SessionSnapshot{
		ID:                 s.SessionID,
		WorkoutID:          m.workout.ID,
		WorkoutName:        m.workout.Name,
		StartTime:          s.StartedAt,
		EndTime:            end,
		CompletedExercises: s.CompletedCount(),
		TotalExercises:     len(m.workout.Exercises),
		IsCompleted:        end != nil,
	}
}
