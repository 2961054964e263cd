package session

import (
	"sync"

	"github.com/claude/workoutpal/internal/models"
)

// Manager keeps at most one session per device. Beginning a new session
// abandons the previous one.
type Manager struct {
	opts RunnerOptions

	mu      sync.Mutex
	current *Runner
	last    *Completion
}

// NewManager creates a manager whose runners share opts. The most recent
// completion is kept until the next Begin.
func NewManager(opts RunnerOptions) *Manager {
	m := &Manager{}
	onComplete := opts.OnComplete
	opts.OnComplete = func(c Completion) {
		m.mu.Lock()
		if m.current != nil && m.current.ID() == c.SessionID {
			m.last = &c
		}
		m.mu.Unlock()
		if onComplete != nil {
			onComplete(c)
		}
	}
	m.opts = opts
	return m
}

// Begin builds a runner for w in the ready phase and makes it current.
func (m *Manager) Begin(w models.Workout, cfg Config) (*Runner, error) {
	machine, initial, err := NewMachine(w, cfg)
	if err != nil {
		return nil, err
	}
	r := NewRunner(machine, initial, m.opts)

	m.mu.Lock()
	old := m.current
	m.current = r
	m.last = nil
	m.mu.Unlock()

	if old != nil {
		m.abandon(old)
	}
	return r, nil
}

// Current returns the active runner, if any.
func (m *Manager) Current() (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// LastCompletion returns the completion of the current session once its
// history write has returned. Completions of abandoned sessions are dropped.
func (m *Manager) LastCompletion() (Completion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Completion{}, false
	}
	return *m.last, true
}

// End abandons the current session. It reports whether one existed.
func (m *Manager) End() bool {
	m.mu.Lock()
	r := m.current
	m.current = nil
	m.mu.Unlock()

	if r == nil {
		return false
	}
	m.abandon(r)
	return true
}

// abandon tears r down and drops its snapshot once its pending writes have
// landed, so nothing reports it as unfinished later.
func (m *Manager) abandon(r *Runner) {
	r.Close()
	r.Flush()
	if m.opts.Snapshots == nil {
		return
	}
	ctx, cancel := contextWithTimeout()
	defer cancel()
	if err := m.opts.Snapshots.ClearCurrentSession(ctx); err != nil {
		r.log.Warn("clearing session snapshot", "error", err)
	}
}

// Close stops the current session and waits for its pending writes. The
// snapshot is kept so the next start can report the unfinished session.
func (m *Manager) Close() {
	m.mu.Lock()
	r := m.current
	m.current = nil
	m.mu.Unlock()

	if r != nil {
		r.Close()
		r.Flush()
	}
}
