package storage

import (
	"context"
	"fmt"

	"github.com/claude/workoutpal/internal/models"
	"github.com/google/uuid"
)

// AddHistoryDoc stores rec as a new document owned by userID and returns the
// document id.
func (db *DB) AddHistoryDoc(ctx context.Context, userID string, rec models.HistoryRecord) (string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("parsing user id: %w", err)
	}
	docID := uuid.New()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO workout_history_docs (doc_id, user_id, record_id, workout_id, workout_name,
			date, duration, completed_exercises, total_exercises, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, docID, uid, rec.ID, rec.WorkoutID, rec.WorkoutName,
		rec.Date, rec.Duration, rec.CompletedExercises, rec.TotalExercises, rec.Notes)
	if err != nil {
		return "", fmt.Errorf("inserting history doc: %w", err)
	}
	return docID.String(), nil
}

// QueryHistoryDocs returns every document owned by userID, newest first.
func (db *DB) QueryHistoryDocs(ctx context.Context, userID string) ([]models.HistoryDoc, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT doc_id, record_id, workout_id, workout_name, date, duration,
		       completed_exercises, total_exercises, notes
		FROM workout_history_docs
		WHERE user_id = $1
		ORDER BY date DESC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("querying history docs: %w", err)
	}
	defer rows.Close()

	var docs []models.HistoryDoc
	for rows.Next() {
		var (
			docID uuid.UUID
			r     models.HistoryRecord
		)
		if err := rows.Scan(&docID, &r.ID, &r.WorkoutID, &r.WorkoutName, &r.Date, &r.Duration,
			&r.CompletedExercises, &r.TotalExercises, &r.Notes); err != nil {
			return nil, fmt.Errorf("scanning history doc: %w", err)
		}
		docs = append(docs, models.HistoryDoc{DocID: docID.String(), UserID: userID, Record: r})
	}
	return docs, rows.Err()
}

// DeleteHistoryDoc removes one document.
func (db *DB) DeleteHistoryDoc(ctx context.Context, docID string) error {
	id, err := uuid.Parse(docID)
	if err != nil {
		return fmt.Errorf("parsing doc id: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workout_history_docs WHERE doc_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting history doc: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("history doc %s: %w", docID, ErrNotFound)
	}
	return nil
}
