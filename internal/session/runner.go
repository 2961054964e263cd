package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/voice"
)

// ErrClosed is returned by commands issued after the runner was torn down.
var ErrClosed = errors.New("session closed")

// HistoryWriter persists finished workouts.
type HistoryWriter interface {
	Save(ctx context.Context, rec models.HistoryRecord) error
}

// SnapshotWriter persists the current-session snapshot.
type SnapshotWriter interface {
	SaveCurrentSession(ctx context.Context, snap models.SessionSnapshot) error
	ClearCurrentSession(ctx context.Context) error
}

// Ticker is the cancellable one-second cadence driving a phase.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// WallTicker returns a Ticker backed by time.NewTicker.
func WallTicker(d time.Duration) Ticker { return wallTicker{t: time.NewTicker(d)} }

// Completion is reported once the history write for a finished workout returns.
type Completion struct {
	SessionID string
	Record    models.HistoryRecord
	Saved     bool
	Message   string
}

// CompletionMessage is the text of the completion dialog. A failed save still
// reports success, with a generic message.
func CompletionMessage(c Completion) string {
	if !c.Saved {
		return "Great job! Your workout has been completed."
	}
	return fmt.Sprintf("Great job! You completed %d out of %d exercises in %d minutes.",
		c.Record.CompletedExercises, c.Record.TotalExercises, c.Record.Duration)
}

// RunnerOptions wires a Runner to its collaborators. Only Speaker and History
// are needed for a normal session.
type RunnerOptions struct {
	Speaker     voice.Speaker
	History     HistoryWriter
	Snapshots   SnapshotWriter
	Log         *slog.Logger
	AutoAdvance bool
	NewTicker   func(time.Duration) Ticker
	OnChange    func(State)
	OnComplete  func(Completion)
}

// Runner owns one session: its state, the ticker for the current phase, and
// the execution of effect intents.
type Runner struct {
	id      string
	machine *Machine
	opts    RunnerOptions
	log     *slog.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	stopTimer func()
	closed    bool

	timers sync.WaitGroup
	writes sync.WaitGroup
}

// NewRunner creates a runner for m starting from initial.
func NewRunner(m *Machine, initial State, opts RunnerOptions) *Runner {
	if opts.NewTicker == nil {
		opts.NewTicker = WallTicker
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Runner{
		id:      initial.SessionID,
		machine: m,
		opts:    opts,
		log:     opts.Log.With("session", initial.SessionID, "workout", m.workout.ID),
		state:   initial,
	}
}

// ID returns the session id.
func (r *Runner) ID() string { return r.id }

// Machine returns the state machine the runner drives.
func (r *Runner) Machine() *Machine { return r.machine }

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (r *Runner) Start() error  { return r.command(r.machine.Start) }
func (r *Runner) Pause() error  { return r.command(r.machine.Pause) }
func (r *Runner) Resume() error { return r.command(r.machine.Resume) }
func (r *Runner) Skip() error   { return r.command(r.machine.Skip) }

func (r *Runner) command(fn func(State) (State, []Effect, error)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	next, effects, err := fn(r.state)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.applyLocked(next, effects)
	state := r.state.clone()
	r.mu.Unlock()

	r.notify(state)
	return nil
}

func (r *Runner) tick(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	next, effects := r.machine.Tick(r.state)
	r.applyLocked(next, effects)
	state := r.state.clone()
	r.mu.Unlock()

	r.notify(state)
}

func (r *Runner) applyLocked(next State, effects []Effect) {
	prev := r.state
	r.state = next
	r.execute(effects)

	entered := prev.Phase != next.Phase || prev.ExerciseIndex != next.ExerciseIndex || prev.Set != next.Set
	if entered {
		if next.Phase.Running() {
			r.restartTimerLocked()
		} else {
			r.stopTimerLocked()
		}
	}

	if next.Phase == PhaseReady && next.Started && r.opts.AutoAdvance {
		started, more, err := r.machine.Start(r.state)
		if err != nil {
			r.log.Error("auto-advance failed", "error", err)
			return
		}
		r.applyLocked(started, more)
	}
}

func (r *Runner) execute(effects []Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case StopSpeech:
			if r.opts.Speaker != nil {
				r.opts.Speaker.Stop()
			}
		case Speak:
			if r.opts.Speaker != nil {
				r.opts.Speaker.Speak(e.Text, e.Options)
			}
		case SaveHistory:
			r.saveHistory(e.Record)
		case SaveSnapshot:
			r.saveSnapshot(e.Snapshot)
		}
	}
}

// restartTimerLocked cancels the running ticker and arms a fresh one.
// Ticks from the old handle carry a stale generation and are dropped.
func (r *Runner) restartTimerLocked() {
	r.stopTimerLocked()
	r.gen++
	gen := r.gen
	t := r.opts.NewTicker(time.Second)
	done := make(chan struct{})
	r.stopTimer = func() {
		close(done)
		t.Stop()
	}

	r.timers.Add(1)
	go func() {
		defer r.timers.Done()
		for {
			select {
			case <-done:
				return
			case <-t.C():
				r.tick(gen)
			}
		}
	}()
}

func (r *Runner) stopTimerLocked() {
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
}

func (r *Runner) saveHistory(rec models.HistoryRecord) {
	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		c := Completion{SessionID: r.id, Record: rec}
		if r.opts.History != nil {
			ctx, cancel := contextWithTimeout()
			defer cancel()
			if err := r.opts.History.Save(ctx, rec); err != nil {
				r.log.Error("saving workout history", "record", rec.ID, "error", err)
			} else {
				c.Saved = true
			}
		}
		c.Message = CompletionMessage(c)
		r.log.Info("workout completed",
			"completed", rec.CompletedExercises,
			"total", rec.TotalExercises,
			"minutes", rec.Duration,
			"saved", c.Saved,
		)
		if r.opts.OnComplete != nil {
			r.opts.OnComplete(c)
		}
	}()
}

func (r *Runner) saveSnapshot(snap models.SessionSnapshot) {
	if r.opts.Snapshots == nil {
		return
	}
	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		ctx, cancel := contextWithTimeout()
		defer cancel()
		if err := r.opts.Snapshots.SaveCurrentSession(ctx, snap); err != nil {
			r.log.Warn("saving session snapshot", "error", err)
		}
	}()
}

func (r *Runner) notify(s State) {
	if r.opts.OnChange != nil {
		r.opts.OnChange(s)
	}
}

// Close tears the session down: the ticker is cancelled, speech is stopped
// and later commands fail with ErrClosed. In-flight writes keep running.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.gen++
	r.stopTimerLocked()
	if r.state.Phase != PhaseCompleted && r.machine.cfg.VoiceEnabled && r.opts.Speaker != nil {
		r.opts.Speaker.Stop()
	}
	r.mu.Unlock()

	r.timers.Wait()
}

// Flush waits for pending history and snapshot writes.
func (r *Runner) Flush() {
	r.writes.Wait()
}

// contextWithTimeout returns a background context with a 5-second timeout for async writes.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
