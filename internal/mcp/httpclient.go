package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/workoutpal/internal/models"
)

// HTTPClient implements DataSource by calling the WorkoutPal REST API.
// Used for stdio MCP mode where the binary runs next to the assistant but
// the history lives on the service.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) ListWorkouts(ctx context.Context, category, difficulty string) ([]models.Workout, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if difficulty != "" {
		params.Set("difficulty", difficulty)
	}

	var workouts []models.Workout
	if err := c.get(ctx, "/api/v1/workouts", params, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

func (c *HTTPClient) WorkoutHistory(ctx context.Context, start, end time.Time) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	if err := c.get(ctx, "/api/v1/history", timeParams(start, end), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) RecentWorkouts(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var records []models.HistoryRecord
	if err := c.get(ctx, "/api/v1/history/recent", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) WorkoutStats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	if err := c.get(ctx, "/api/v1/stats", nil, &stats); err != nil {
		return models.Stats{}, err
	}
	return stats, nil
}
