package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/claude/workoutpal/internal/models"
	_ "modernc.org/sqlite"
)

// Keys in the local key-value cache.
const (
	KeyWorkoutHistory  = "workout_history"
	KeyUserPreferences = "user_preferences"
	KeyCurrentSession  = "current_session"
	KeyAuthEmail       = "auth_email"
	KeyAuthToken       = "auth_token"
)

// Local is the device-local cache: a string key-value table in SQLite with
// JSON-encoded values.
type Local struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenLocal opens (or creates) the SQLite cache at dir/cache.db.
func OpenLocal(dir string, log *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	// One writer keeps read-modify-write sequences from interleaving in SQLite.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	return &Local{db: db, log: log}, nil
}

// Close closes the cache database.
func (l *Local) Close() error {
	return l.db.Close()
}

// Get returns the raw value for key. ok is false when the key is absent.
func (l *Local) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = l.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (l *Local) Set(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (l *Local) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := l.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return l.Set(ctx, key, string(b))
}

// History returns the locally cached history collection in stored order.
func (l *Local) History(ctx context.Context) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	if _, err := l.getJSON(ctx, KeyWorkoutHistory, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveHistory replaces the cached history collection.
func (l *Local) SaveHistory(ctx context.Context, records []models.HistoryRecord) error {
	if records == nil {
		records = []models.HistoryRecord{}
	}
	return l.setJSON(ctx, KeyWorkoutHistory, records)
}

// ClearHistory removes the cached history collection.
func (l *Local) ClearHistory(ctx context.Context) error {
	return l.Delete(ctx, KeyWorkoutHistory)
}

// Preferences returns the stored preferences, or the defaults when nothing
// is stored or the stored value cannot be read.
func (l *Local) Preferences(ctx context.Context) models.Preferences {
	p := models.DefaultPreferences()
	ok, err := l.getJSON(ctx, KeyUserPreferences, &p)
	if err != nil {
		l.log.Warn("loading preferences, using defaults", "error", err)
		return models.DefaultPreferences()
	}
	if !ok {
		return models.DefaultPreferences()
	}
	return p
}

// SavePreferences stores p after validating it.
func (l *Local) SavePreferences(ctx context.Context, p models.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return l.setJSON(ctx, KeyUserPreferences, p)
}

// CurrentSession returns the stored session snapshot, if any.
func (l *Local) CurrentSession(ctx context.Context) (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	ok, err := l.getJSON(ctx, KeyCurrentSession, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// SaveCurrentSession overwrites the session snapshot.
func (l *Local) SaveCurrentSession(ctx context.Context, snap models.SessionSnapshot) error {
	return l.setJSON(ctx, KeyCurrentSession, snap)
}

// ClearCurrentSession removes the session snapshot.
func (l *Local) ClearCurrentSession(ctx context.Context) error {
	return l.Delete(ctx, KeyCurrentSession)
}

// Credentials returns the stored sign-in email and token. ok is false when
// either is missing.
func (l *Local) Credentials(ctx context.Context) (email, token string, ok bool, err error) {
	email, okEmail, err := l.Get(ctx, KeyAuthEmail)
	if err != nil {
		return "", "", false, err
	}
	token, okToken, err := l.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", "", false, err
	}
	return email, token, okEmail && okToken, nil
}

// SaveCredentials stores the sign-in email and token.
func (l *Local) SaveCredentials(ctx context.Context, email, token string) error {
	if err := l.Set(ctx, KeyAuthEmail, email); err != nil {
		return err
	}
	return l.Set(ctx, KeyAuthToken, token)
}

// ClearCredentials removes the stored sign-in email and token.
func (l *Local) ClearCredentials(ctx context.Context) error {
	return errors.Join(l.Delete(ctx, KeyAuthEmail), l.Delete(ctx, KeyAuthToken))
}
