package mcp

import (
	"context"
	"time"

	"github.com/claude/workoutpal/internal/catalog"
	"github.com/claude/workoutpal/internal/history"
	"github.com/claude/workoutpal/internal/models"
)

// DataSource abstracts the data layer for MCP tools. Both *Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context, category, difficulty string) ([]models.Workout, error)
	WorkoutHistory(ctx context.Context, start, end time.Time) ([]models.HistoryRecord, error)
	RecentWorkouts(ctx context.Context, limit int) ([]models.HistoryRecord, error)
	WorkoutStats(ctx context.Context) (models.Stats, error)
}

// Local serves MCP requests from the catalog and history store of the
// running service.
type Local struct {
	catalog *catalog.Catalog
	history *history.Store
}

// Compile-time check: *Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

func NewLocal(c *catalog.Catalog, h *history.Store) *Local {
	return &Local{catalog: c, history: h}
}

func (l *Local) ListWorkouts(_ context.Context, category, difficulty string) ([]models.Workout, error) {
	return l.catalog.List(catalog.Filter{
		Category:   models.Category(category),
		Difficulty: models.Difficulty(difficulty),
	}), nil
}

func (l *Local) WorkoutHistory(ctx context.Context, start, end time.Time) ([]models.HistoryRecord, error) {
	return l.history.ByDateRange(ctx, start, end), nil
}

func (l *Local) RecentWorkouts(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	return l.history.Recent(ctx, limit), nil
}

func (l *Local) WorkoutStats(ctx context.Context) (models.Stats, error) {
	return l.history.Stats(ctx), nil
}
