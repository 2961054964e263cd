package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// queueSize bounds the utterances waiting behind the one in flight.
const queueSize = 32

// closeTimeout bounds how long Close waits for queued requests to drain.
const closeTimeout = 5 * time.Second

// HTTPSpeaker posts utterances to a TTS endpoint. Requests are sent in call
// order by a single worker, so a Stop always reaches the service before the
// Speak that follows it. Stop cancels the request in flight and drops
// anything still queued.
type HTTPSpeaker struct {
	endpoint   string
	apiKey     string
	defaults   Options
	httpClient *http.Client
	log        *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	jobs chan ttsJob
	done chan struct{}
}

type ttsJob struct {
	ctx  context.Context
	path string
	body []byte
	text string
}

// NewHTTPSpeaker creates a speaker targeting endpoint and starts its worker.
func NewHTTPSpeaker(endpoint, apiKey string, defaults Options, log *slog.Logger) *HTTPSpeaker {
	ctx, cancel := context.WithCancel(context.Background())
	s := &HTTPSpeaker{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		defaults:   defaults,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(chan ttsJob, queueSize),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

type speakRequest struct {
	Text string `json:"text"`
	Options
}

func (s *HTTPSpeaker) Speak(text string, opts Options) {
	body, err := json.Marshal(speakRequest{Text: text, Options: opts.merge(s.defaults)})
	if err != nil {
		s.log.Error("tts: marshal request", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(ttsJob{ctx: s.ctx, path: "/speak", body: body, text: text})
}

// Stop cancels in-flight and queued utterances and asks the service to go
// quiet.
func (s *HTTPSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.enqueueLocked(ttsJob{ctx: s.ctx, path: "/stop"})
}

// enqueueLocked never blocks: callers run under the session lock.
func (s *HTTPSpeaker) enqueueLocked(job ttsJob) {
	if s.closed {
		return
	}
	select {
	case s.jobs <- job:
	default:
		s.log.Warn("tts: queue full, dropping request", "path", job.path, "text", job.text)
	}
}

func (s *HTTPSpeaker) run() {
	defer close(s.done)
	for job := range s.jobs {
		if job.ctx.Err() != nil {
			continue
		}
		if err := s.post(job.ctx, job.path, job.body); err != nil && job.ctx.Err() == nil {
			s.log.Error("tts: request failed", "path", job.path, "text", job.text, "error", err)
		}
	}
}

// Close stops accepting requests and waits for the queue to drain. Requests
// still pending after closeTimeout are cancelled.
func (s *HTTPSpeaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		s.log.Warn("tts: close timed out, cancelling pending requests")
		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()
		<-s.done
	}

	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
}

func (s *HTTPSpeaker) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}
