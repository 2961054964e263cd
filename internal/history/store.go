// Package history persists completed-workout records to the local cache and,
// for a signed-in user, to the remote document store, and derives statistics
// from them.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/claude/workoutpal/internal/models"
)

// DefaultRecentLimit is used by Recent when n is not positive.
const DefaultRecentLimit = 10

// Cache is the device-local copy of the history collection.
type Cache interface {
	History(ctx context.Context) ([]models.HistoryRecord, error)
	SaveHistory(ctx context.Context, records []models.HistoryRecord) error
	ClearHistory(ctx context.Context) error
}

// Remote is the per-user document store.
type Remote interface {
	AddHistoryDoc(ctx context.Context, userID string, rec models.HistoryRecord) (string, error)
	QueryHistoryDocs(ctx context.Context, userID string) ([]models.HistoryDoc, error)
	DeleteHistoryDoc(ctx context.Context, docID string) error
}

// Identity reports the signed-in user, if any.
type Identity interface {
	CurrentUserID() (string, bool)
}

// Store is the history store. Remote and Identity may be nil, in which case
// only the local cache is used.
type Store struct {
	cache    Cache
	remote   Remote
	identity Identity
	log      *slog.Logger
	now      func() time.Time

	// mu serializes the local read-modify-write cycle within this process.
	mu sync.Mutex
}

// New creates a Store.
func New(cache Cache, remote Remote, identity Identity, log *slog.Logger) *Store {
	return &Store{
		cache:    cache,
		remote:   remote,
		identity: identity,
		log:      log,
		now:      time.Now,
	}
}

func (s *Store) userID() (string, bool) {
	if s.remote == nil || s.identity == nil {
		return "", false
	}
	return s.identity.CurrentUserID()
}

// Save appends rec to the local collection and, when a user is signed in,
// adds a remote document for it. The two writes are independent; a failure
// of one does not undo the other. The returned error joins both failures and
// is meant for logging.
func (s *Store) Save(ctx context.Context, rec models.HistoryRecord) error {
	var errs []error

	if err := s.appendLocal(ctx, rec); err != nil {
		s.log.Error("saving history to local cache", "record", rec.ID, "error", err)
		errs = append(errs, fmt.Errorf("local: %w", err))
	}

	if uid, ok := s.userID(); ok {
		docID, err := s.remote.AddHistoryDoc(ctx, uid, rec)
		if err != nil {
			s.log.Error("saving history to remote", "record", rec.ID, "user", uid, "error", err)
			errs = append(errs, fmt.Errorf("remote: %w", err))
		} else {
			s.log.Debug("history mirrored", "record", rec.ID, "doc", docID)
		}
	}

	return errors.Join(errs...)
}

func (s *Store) appendLocal(ctx context.Context, rec models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.cache.History(ctx)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	updated := append(slices.Clip(existing), rec)
	if err := s.cache.SaveHistory(ctx, updated); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// List returns the full history. For a signed-in user the remote documents
// are authoritative and replace the local copy; otherwise the local cache is
// read. Any read failure yields an empty list.
func (s *Store) List(ctx context.Context) []models.HistoryRecord {
	if uid, ok := s.userID(); ok {
		docs, err := s.remote.QueryHistoryDocs(ctx, uid)
		if err != nil {
			s.log.Error("querying remote history", "user", uid, "error", err)
			return []models.HistoryRecord{}
		}
		records := make([]models.HistoryRecord, 0, len(docs))
		for _, d := range docs {
			rec := d.Record
			if rec.ID == "" {
				rec.ID = d.DocID
			}
			records = append(records, rec)
		}

		s.mu.Lock()
		err = s.cache.SaveHistory(ctx, records)
		s.mu.Unlock()
		if err != nil {
			s.log.Warn("refreshing local history cache", "error", err)
		}
		return records
	}

	records, err := s.cache.History(ctx)
	if err != nil {
		s.log.Error("reading local history", "error", err)
		return []models.HistoryRecord{}
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}
	return records
}

// Clear deletes every remote document of the signed-in user one by one, then
// clears the local cache. Remote failures are logged and do not stop the
// local clear.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error

	if uid, ok := s.userID(); ok {
		docs, err := s.remote.QueryHistoryDocs(ctx, uid)
		if err != nil {
			s.log.Error("listing remote history for clear", "user", uid, "error", err)
			errs = append(errs, fmt.Errorf("remote: %w", err))
		}
		failed := 0
		for _, d := range docs {
			if err := s.remote.DeleteHistoryDoc(ctx, d.DocID); err != nil {
				s.log.Error("deleting remote history doc", "doc", d.DocID, "error", err)
				errs = append(errs, fmt.Errorf("remote doc %s: %w", d.DocID, err))
				failed++
			}
		}
		s.log.Info("remote history cleared", "user", uid, "docs", len(docs), "failed", failed)
	}

	s.mu.Lock()
	err := s.cache.ClearHistory(ctx)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("clearing local history", "error", err)
		errs = append(errs, fmt.Errorf("local: %w", err))
	}

	return errors.Join(errs...)
}

// Recent returns the n most recent records, newest first. n <= 0 means
// DefaultRecentLimit.
func (s *Store) Recent(ctx context.Context, n int) []models.HistoryRecord {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	records := sortByDateDesc(s.List(ctx))
	if len(records) > n {
		records = records[:n]
	}
	return records
}

// ByDateRange returns the records whose date lies in [start, end], in
// history order.
func (s *Store) ByDateRange(ctx context.Context, start, end time.Time) []models.HistoryRecord {
	out := []models.HistoryRecord{}
	for _, r := range s.List(ctx) {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out
}

// Stats derives statistics from the full history.
func (s *Store) Stats(ctx context.Context) models.Stats {
	return ComputeStats(s.List(ctx), s.now())
}

func sortByDateDesc(records []models.HistoryRecord) []models.HistoryRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.HistoryRecord) int {
		return b.Date.Compare(a.Date)
	})
	return sorted
}
