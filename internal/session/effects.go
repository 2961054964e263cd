package session

import (
	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/voice"
)

// Effect is a side-effect intent produced by a transition.
type Effect interface {
	effect()
}

// StopSpeech cancels any utterance still playing.
type StopSpeech struct{}

// Speak announces Text. It always follows a StopSpeech.
type Speak struct {
	Text    string
	Options voice.Options
}

// SaveHistory persists the record of a finished workout.
type SaveHistory struct {
	Record models.HistoryRecord
}

// SaveSnapshot stores the current-session snapshot.
type SaveSnapshot struct {
	Snapshot models.SessionSnapshot
}

func (StopSpeech) effect()   {}
func (Speak) effect()        {}
func (SaveHistory) effect()  {}
func (SaveSnapshot) effect() {}
