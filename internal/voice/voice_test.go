package voice

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// TestOptionsMerge verifies utterance options fall back to speaker defaults
// and then to the package defaults.
func TestOptionsMerge(t *testing.T) {
	got := Options{Rate: 1.2}.merge(Options{Pitch: 0.9, Voice: "samantha"})
	if got.Rate != 1.2 {
		t.Errorf("rate = %v, want 1.2", got.Rate)
	}
	if got.Pitch != 0.9 {
		t.Errorf("pitch = %v, want 0.9", got.Pitch)
	}
	if got.Language != DefaultLanguage {
		t.Errorf("language = %q, want %q", got.Language, DefaultLanguage)
	}
	if got.Voice != "samantha" {
		t.Errorf("voice = %q, want samantha", got.Voice)
	}

	zero := Options{}.merge(Options{})
	if zero.Rate != 1.0 || zero.Pitch != 1.0 {
		t.Errorf("defaults = %+v, want rate and pitch 1.0", zero)
	}
}

// TestRecorder verifies calls are captured in order and Spoken filters stops.
func TestRecorder(t *testing.T) {
	var r Recorder
	r.Stop()
	r.Speak("Push Ups, set 1", Options{Rate: 1.0})
	r.Speak("3", Options{Rate: 1.2})

	calls := r.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(calls))
	}
	if !calls[0].Stop {
		t.Error("first call should be a stop")
	}
	spoken := r.Spoken()
	if len(spoken) != 2 || spoken[0] != "Push Ups, set 1" || spoken[1] != "3" {
		t.Errorf("spoken = %v", spoken)
	}
}

// TestHTTPSpeakerPostsUtterance verifies the request body carries the text
// and merged options, and that the API key header is sent.
func TestHTTPSpeakerPostsUtterance(t *testing.T) {
	var (
		mu   sync.Mutex
		got  speakRequest
		key  string
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		key = r.Header.Get("X-API-Key")
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewHTTPSpeaker(srv.URL+"/", "secret", Options{Language: "en-GB"}, slog.Default())
	s.Speak("Rest for 60 seconds", Options{Rate: 1.0})
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	if path != "/speak" {
		t.Errorf("path = %q, want /speak", path)
	}
	if key != "secret" {
		t.Errorf("api key = %q, want secret", key)
	}
	if got.Text != "Rest for 60 seconds" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Language != "en-GB" {
		t.Errorf("language = %q, want en-GB", got.Language)
	}
	if got.Pitch != 1.0 {
		t.Errorf("pitch = %v, want 1.0", got.Pitch)
	}
}

// TestHTTPSpeakerErrorIsSwallowed verifies a failing endpoint never panics
// or blocks the caller.
func TestHTTPSpeakerErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSpeaker(srv.URL, "", Options{}, slog.Default())
	s.Speak("hello", Options{})
	s.Stop()
	s.Close()
}

// recordingServer captures the path and text of every request in arrival
// order. slowStop delays /stop responses so unordered delivery would show.
func recordingServer(t *testing.T, slowStop time.Duration, onSpeak func(r *http.Request, text string)) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speakRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		entry := r.URL.Path
		if req.Text != "" {
			entry += " " + req.Text
		}
		mu.Lock()
		got = append(got, entry)
		mu.Unlock()

		if r.URL.Path == "/stop" {
			time.Sleep(slowStop)
		}
		if onSpeak != nil && r.URL.Path == "/speak" {
			onSpeak(r, req.Text)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}
}

// TestHTTPSpeakerStopPrecedesSpeak verifies the service sees a Stop before
// the Speak issued after it, even when the stop request is slow.
func TestHTTPSpeakerStopPrecedesSpeak(t *testing.T) {
	srv, requests := recordingServer(t, 10*time.Millisecond, nil)

	const rounds = 20
	for i := range rounds {
		s := NewHTTPSpeaker(srv.URL, "", Options{}, slog.Default())
		s.Stop()
		s.Speak(fmt.Sprintf("set %d", i), Options{})
		s.Close()
	}

	got := requests()
	if len(got) != 2*rounds {
		t.Fatalf("got %d requests, want %d: %v", len(got), 2*rounds, got)
	}
	for i := range rounds {
		if got[2*i] != "/stop" || got[2*i+1] != fmt.Sprintf("/speak set %d", i) {
			t.Fatalf("round %d: requests = %v, want /stop then /speak set %d", i, got[2*i:2*i+2], i)
		}
	}
}

// TestHTTPSpeakerStopCancelsInFlight verifies Stop aborts the utterance the
// service is still handling and the next one is delivered after the stop.
func TestHTTPSpeakerStopCancelsInFlight(t *testing.T) {
	received := make(chan struct{})
	aborted := make(chan struct{})
	srv, requests := recordingServer(t, 0, func(r *http.Request, text string) {
		if text != "first" {
			return
		}
		close(received)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
		}
	})

	s := NewHTTPSpeaker(srv.URL, "", Options{}, slog.Default())
	s.Speak("first", Options{})
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("first utterance never reached the service")
	}
	s.Stop()
	s.Speak("second", Options{})
	s.Close()

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight utterance was not cancelled")
	}
	got := requests()
	if len(got) != 3 || got[1] != "/stop" || got[2] != "/speak second" {
		t.Errorf("requests = %v, want [/speak first /stop /speak second]", got)
	}
}

// TestHTTPSpeakerIgnoresCallsAfterClose verifies a closed speaker drops
// requests instead of panicking on its closed queue.
func TestHTTPSpeakerIgnoresCallsAfterClose(t *testing.T) {
	srv, requests := recordingServer(t, 0, nil)

	s := NewHTTPSpeaker(srv.URL, "", Options{}, slog.Default())
	s.Close()
	s.Speak("late", Options{})
	s.Stop()
	s.Close()

	if got := requests(); len(got) != 0 {
		t.Errorf("requests = %v, want none", got)
	}
}
