// Package voice adapts the platform text-to-speech service. Every call is
// fire-and-forget: callers never wait for an utterance and never see errors.
package voice

import (
	"log/slog"
	"sync"
)

// Options tune a single utterance.
type Options struct {
	Rate     float64 `json:"rate"`
	Pitch    float64 `json:"pitch"`
	Language string  `json:"language"`
	Voice    string  `json:"voice,omitempty"`
}

// DefaultLanguage is used when neither the utterance nor the speaker sets one.
const DefaultLanguage = "en-US"

// merge fills zero fields of o from base, then from the package defaults.
func (o Options) merge(base Options) Options {
	if o.Rate == 0 {
		o.Rate = base.Rate
	}
	if o.Pitch == 0 {
		o.Pitch = base.Pitch
	}
	if o.Language == "" {
		o.Language = base.Language
	}
	if o.Voice == "" {
		o.Voice = base.Voice
	}
	if o.Rate == 0 {
		o.Rate = 1.0
	}
	if o.Pitch == 0 {
		o.Pitch = 1.0
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	return o
}

// Speaker is the speech service consumed by the session runner.
type Speaker interface {
	Speak(text string, opts Options)
	Stop()
}

// LogSpeaker writes utterances to the structured log. Used by the terminal
// runner and whenever no TTS endpoint is configured.
type LogSpeaker struct {
	log      *slog.Logger
	defaults Options
}

// NewLogSpeaker creates a speaker that only logs.
func NewLogSpeaker(log *slog.Logger, defaults Options) *LogSpeaker {
	return &LogSpeaker{log: log, defaults: defaults}
}

func (s *LogSpeaker) Speak(text string, opts Options) {
	o := opts.merge(s.defaults)
	s.log.Info("speak", "text", text, "rate", o.Rate, "pitch", o.Pitch, "language", o.Language)
}

func (s *LogSpeaker) Stop() {
	s.log.Debug("speech stopped")
}

// Call is one recorded Speaker invocation.
type Call struct {
	Stop    bool
	Text    string
	Options Options
}

// Recorder captures speaker calls in order.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Speak(text string, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Text: text, Options: opts})
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Stop: true})
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Spoken returns only the texts that were spoken.
func (r *Recorder) Spoken() []string {
	var out []string
	for _, c := range r.Calls() {
		if !c.Stop {
			out = append(out, c.Text)
		}
	}
	return out
}
