package session

import (
	"errors"
	"testing"
	"time"

	"github.com/claude/workoutpal/internal/models"
)

var fixedNow = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func testWorkout(sets ...int) models.Workout {
	w := models.Workout{
		ID:         "w-test",
		Name:       "Test Circuit",
		Category:   models.CategoryMixed,
		Difficulty: models.DifficultyBeginner,
	}
	names := []string{"Push Ups", "Squats", "Plank", "Lunges", "Burpees", "Crunches"}
	for i, s := range sets {
		w.Exercises = append(w.Exercises, models.Exercise{
			ID:          names[i%len(names)],
			Name:        names[i%len(names)],
			Sets:        s,
			Reps:        10,
			DurationSec: 3,
			RestSec:     2,
		})
	}
	return w
}

func newTestMachine(t *testing.T, w models.Workout, voiceOn bool) (*Machine, State) {
	t.Helper()
	m, s, err := NewMachine(w, Config{VoiceEnabled: voiceOn, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m, s
}

func spoken(effects []Effect) []string {
	var out []string
	for _, e := range effects {
		if sp, ok := e.(Speak); ok {
			out = append(out, sp.Text)
		}
	}
	return out
}

// tickUntil ticks until the phase differs from the current one.
func tickUntil(t *testing.T, m *Machine, s State) (State, []Effect) {
	t.Helper()
	var all []Effect
	phase, idx, set := s.Phase, s.ExerciseIndex, s.Set
	for i := 0; i < 1000; i++ {
		var effects []Effect
		s, effects = m.Tick(s)
		all = append(all, effects...)
		if s.Phase != phase || s.ExerciseIndex != idx || s.Set != set {
			return s, all
		}
	}
	t.Fatal("phase never ended")
	return s, nil
}

// TestNewMachineInitialState verifies a fresh session starts ready at
// exercise 0, set 1, with one completion flag per exercise.
func TestNewMachineInitialState(t *testing.T) {
	_, s := newTestMachine(t, testWorkout(3, 2, 4), true)
	if s.Phase != PhaseReady {
		t.Errorf("phase = %s, want ready", s.Phase)
	}
	if s.Set != 1 || s.ExerciseIndex != 0 {
		t.Errorf("position = (%d, %d), want (0, 1)", s.ExerciseIndex, s.Set)
	}
	if len(s.Completed) != 3 {
		t.Errorf("completed flags = %d, want 3", len(s.Completed))
	}
	if s.SessionID == "" {
		t.Error("session id should be set")
	}
}

// TestNewMachineRejectsEmptyWorkout verifies the index invariant cannot be
// violated by a workout without exercises.
func TestNewMachineRejectsEmptyWorkout(t *testing.T) {
	_, _, err := NewMachine(testWorkout(), Config{})
	if err == nil {
		t.Fatal("expected error for workout without exercises")
	}
}

// TestStartAnnouncesFirstSet verifies the first start records a snapshot,
// cancels speech before announcing, and loads the set duration.
func TestStartAnnouncesFirstSet(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(2), true)
	s, effects, err := m.Start(s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Phase != PhaseActive {
		t.Errorf("phase = %s, want active", s.Phase)
	}
	if s.TimeLeft != 3 {
		t.Errorf("timeLeft = %d, want 3", s.TimeLeft)
	}
	if !s.StartedAt.Equal(fixedNow) {
		t.Errorf("startedAt = %v, want %v", s.StartedAt, fixedNow)
	}
	if len(effects) != 3 {
		t.Fatalf("effects = %d, want 3", len(effects))
	}
	if _, ok := effects[0].(SaveSnapshot); !ok {
		t.Errorf("effects[0] = %T, want SaveSnapshot", effects[0])
	}
	if _, ok := effects[1].(StopSpeech); !ok {
		t.Errorf("effects[1] = %T, want StopSpeech", effects[1])
	}
	if sp, ok := effects[2].(Speak); !ok || sp.Text != "Push Ups, set 1" {
		t.Errorf("effects[2] = %#v, want Speak(Push Ups, set 1)", effects[2])
	}
}

// TestCountdownCueOptions verifies countdown digits are spoken faster than
// announcements and leave pitch to the speaker default.
func TestCountdownCueOptions(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(1), true)
	s, _, _ = m.Start(s)

	s, effects := m.Tick(s)
	if s.TimeLeft != 2 {
		t.Fatalf("timeLeft = %d, want 2", s.TimeLeft)
	}
	if len(effects) != 2 {
		t.Fatalf("effects = %d, want StopSpeech and Speak", len(effects))
	}
	if _, ok := effects[0].(StopSpeech); !ok {
		t.Errorf("effects[0] = %T, want StopSpeech", effects[0])
	}
	sp, ok := effects[1].(Speak)
	if !ok {
		t.Fatalf("effects[1] = %T, want Speak", effects[1])
	}
	if sp.Text != "2" || sp.Options.Rate != 1.2 || sp.Options.Pitch != 0 {
		t.Errorf("countdown cue = %+v, want text 2 at rate 1.2 with default pitch", sp)
	}
}

// TestDefaultSetAndRestDurations verifies the 30s/60s fallbacks for
// exercises without a fixed duration or rest.
func TestDefaultSetAndRestDurations(t *testing.T) {
	w := testWorkout(2)
	w.Exercises[0].DurationSec = 0
	w.Exercises[0].RestSec = 0
	m, s := newTestMachine(t, w, false)

	s, _, _ = m.Start(s)
	if s.TimeLeft != DefaultSetSeconds {
		t.Errorf("set timeLeft = %d, want %d", s.TimeLeft, DefaultSetSeconds)
	}
	s, _ = tickUntil(t, m, s)
	if s.Phase != PhaseResting || s.TimeLeft != DefaultRestSeconds {
		t.Errorf("after set: phase %s timeLeft %d, want resting %d", s.Phase, s.TimeLeft, DefaultRestSeconds)
	}
}

// TestStartTwiceIsInvalid verifies commands are rejected outside their phase.
func TestStartTwiceIsInvalid(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(1), false)
	s, _, _ = m.Start(s)
	got, effects, err := m.Start(s)
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("err = %v, want ErrInvalidCommand", err)
	}
	if effects != nil {
		t.Errorf("effects = %v, want none", effects)
	}
	if got.Phase != PhaseActive {
		t.Errorf("phase = %s, state must be unchanged", got.Phase)
	}

	if _, _, err := m.Resume(s); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("resume while active: err = %v", err)
	}
}

// TestSetToSetPassesThroughRest verifies a finished set that is not the
// exercise's last goes to resting and then to the next set.
func TestSetToSetPassesThroughRest(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(2, 1), true)
	s, _, _ = m.Start(s)

	s, effects := tickUntil(t, m, s)
	if s.Phase != PhaseResting || s.Set != 1 {
		t.Fatalf("after set 1: phase %s set %d, want resting set 1", s.Phase, s.Set)
	}
	if s.Completed[0] {
		t.Error("exercise must not be complete after first of two sets")
	}
	if got := spoken(effects); got[len(got)-1] != "Rest for 2 seconds" {
		t.Errorf("last cue = %q, want rest announcement", got[len(got)-1])
	}

	s, effects = tickUntil(t, m, s)
	if s.Phase != PhaseActive || s.Set != 2 {
		t.Fatalf("after rest: phase %s set %d, want active set 2", s.Phase, s.Set)
	}
	if got := spoken(effects); got[len(got)-1] != "Push Ups, set 2" {
		t.Errorf("last cue = %q, want set 2 announcement", got[len(got)-1])
	}
}

// TestExerciseToExerciseRestsThenWaitsReady verifies the last set of a
// non-final exercise flags it, rests, and then waits in ready for set 1 of
// the next exercise.
func TestExerciseToExerciseRestsThenWaitsReady(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(1, 2), false)
	s, _, _ = m.Start(s)

	s, _ = tickUntil(t, m, s)
	if s.Phase != PhaseResting || !s.Completed[0] {
		t.Fatalf("phase %s completed %v, want resting with exercise 0 flagged", s.Phase, s.Completed)
	}

	s, _ = tickUntil(t, m, s)
	if s.Phase != PhaseReady || s.ExerciseIndex != 1 || s.Set != 1 {
		t.Fatalf("got phase %s idx %d set %d, want ready at (1, 1)", s.Phase, s.ExerciseIndex, s.Set)
	}

	elapsed := s.Elapsed
	s, _ = m.Tick(s)
	if s.Elapsed != elapsed {
		t.Error("elapsed must not advance while ready")
	}

	s, effects, err := m.Start(s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, e := range effects {
		if _, ok := e.(SaveSnapshot); ok {
			t.Error("second start must not write a new snapshot")
		}
	}
	if s.Phase != PhaseActive || s.ExerciseIndex != 1 {
		t.Errorf("phase %s idx %d, want active at exercise 1", s.Phase, s.ExerciseIndex)
	}
}

// TestCompletionEmitsHistoryRecord verifies the record built when the last
// set of the last exercise finishes.
func TestCompletionEmitsHistoryRecord(t *testing.T) {
	w := testWorkout(1)
	w.Exercises[0].DurationSec = 125
	m, s := newTestMachine(t, w, true)
	s, _, _ = m.Start(s)

	s, effects := tickUntil(t, m, s)
	if s.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", s.Phase)
	}
	if s.Elapsed != 125 {
		t.Errorf("elapsed = %d, want 125", s.Elapsed)
	}

	var rec *models.HistoryRecord
	var snap *models.SessionSnapshot
	for _, e := range effects {
		switch e := e.(type) {
		case SaveHistory:
			rec = &e.Record
		case SaveSnapshot:
			snap = &e.Snapshot
		}
	}
	if rec == nil {
		t.Fatal("no SaveHistory effect")
	}
	if rec.Duration != 2 {
		t.Errorf("duration = %d, want 2 (floor of 125s)", rec.Duration)
	}
	if rec.CompletedExercises != 1 || rec.TotalExercises != 1 {
		t.Errorf("completed %d/%d, want 1/1", rec.CompletedExercises, rec.TotalExercises)
	}
	if rec.Notes != "Completed 1/1 exercises" {
		t.Errorf("notes = %q", rec.Notes)
	}
	if rec.WorkoutID != "w-test" || rec.WorkoutName != "Test Circuit" {
		t.Errorf("workout = %s/%s", rec.WorkoutID, rec.WorkoutName)
	}
	if !rec.Date.Equal(fixedNow) {
		t.Errorf("date = %v, want %v", rec.Date, fixedNow)
	}
	if snap == nil || !snap.IsCompleted || snap.EndTime == nil {
		t.Errorf("final snapshot = %+v, want completed with end time", snap)
	}

	cues := spoken(effects)
	if cues[len(cues)-1] != "Workout completed! Great job!" {
		t.Errorf("last cue = %q", cues[len(cues)-1])
	}
}

// TestPauseResumeFromResting verifies resume returns to resting, not active.
func TestPauseResumeFromResting(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(2), true)
	s, _, _ = m.Start(s)
	s, _ = tickUntil(t, m, s)
	s, _ = m.Tick(s)
	left := s.TimeLeft

	s, effects, err := m.Pause(s)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("pause effects = %v, want a single StopSpeech", effects)
	}
	if _, ok := effects[0].(StopSpeech); !ok {
		t.Errorf("pause effect = %T, want StopSpeech", effects[0])
	}

	paused := s
	s, _ = m.Tick(s)
	if s.TimeLeft != left || s.Elapsed != paused.Elapsed {
		t.Error("tick while paused must not change time")
	}

	s, _, err = m.Resume(s)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.Phase != PhaseResting {
		t.Errorf("phase = %s, want resting", s.Phase)
	}
	if s.TimeLeft != left {
		t.Errorf("timeLeft = %d, want %d", s.TimeLeft, left)
	}
}

// TestSkipFromPausedGoesToNextExercise verifies skip works while paused and
// bypasses any rest.
func TestSkipFromPausedGoesToNextExercise(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(3, 2), true)
	s, _, _ = m.Start(s)
	s, _, _ = m.Pause(s)

	s, effects, err := m.Skip(s)
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if s.Phase != PhaseActive || s.ExerciseIndex != 1 || s.Set != 1 {
		t.Errorf("got phase %s idx %d set %d, want active (1, 1)", s.Phase, s.ExerciseIndex, s.Set)
	}
	if s.TimeLeft != 3 {
		t.Errorf("timeLeft = %d, want 3", s.TimeLeft)
	}
	if s.Completed[0] {
		t.Error("skipped exercise must not be flagged")
	}
	if got := spoken(effects); len(got) != 1 || got[0] != "Squats, set 1" {
		t.Errorf("cues = %v, want [Squats, set 1]", got)
	}
	if _, ok := effects[0].(StopSpeech); !ok {
		t.Errorf("skip must cancel speech first, got %T", effects[0])
	}
}

// TestSkipLastExerciseCompletes verifies skipping the final exercise ends the
// workout crediting only flags already set.
func TestSkipLastExerciseCompletes(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(1, 3), false)
	s, _, _ = m.Start(s)
	s, _ = tickUntil(t, m, s) // exercise 0 done, resting
	s, _ = tickUntil(t, m, s) // ready at exercise 1
	s, _, _ = m.Start(s)

	s, effects, err := m.Skip(s)
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if s.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", s.Phase)
	}
	var rec models.HistoryRecord
	for _, e := range effects {
		if h, ok := e.(SaveHistory); ok {
			rec = h.Record
		}
	}
	if rec.CompletedExercises != 1 || rec.TotalExercises != 2 {
		t.Errorf("completed %d/%d, want 1/2", rec.CompletedExercises, rec.TotalExercises)
	}
	if _, _, err := m.Skip(s); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("skip after completion: err = %v", err)
	}
}

// TestVoiceDisabledEmitsNoSpeech verifies no speech intents are produced
// when the preference is off.
func TestVoiceDisabledEmitsNoSpeech(t *testing.T) {
	w := testWorkout(2)
	w.Exercises[0].DurationSec = 12
	m, s := newTestMachine(t, w, false)

	var all []Effect
	s, effects, _ := m.Start(s)
	all = append(all, effects...)
	for s.Phase != PhaseCompleted {
		s, effects = m.Tick(s)
		all = append(all, effects...)
	}
	for _, e := range all {
		switch e.(type) {
		case Speak, StopSpeech:
			t.Fatalf("unexpected speech effect %T", e)
		}
	}
}

// TestTransitionsDoNotAliasFlags verifies the previous state's completion
// flags are untouched by a transition.
func TestTransitionsDoNotAliasFlags(t *testing.T) {
	m, s := newTestMachine(t, testWorkout(1, 1), false)
	s, _, _ = m.Start(s)
	before := s
	after, _ := tickUntil(t, m, s)
	if !after.Completed[0] {
		t.Fatal("exercise 0 should be complete")
	}
	if before.Completed[0] {
		t.Error("previous state was mutated")
	}
}
