package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/workoutpal/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// CreateUser inserts a new account. Returns ErrDuplicate if the email is taken.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	id := uuid.New()
	u := models.User{ID: id.String(), Email: email, PasswordHash: passwordHash}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, id, email, passwordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return models.User{}, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks an account up by its login email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return db.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

// GetUser looks an account up by id.
func (db *DB) GetUser(ctx context.Context, id string) (models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return models.User{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return db.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, uid)
}

func (db *DB) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var (
		u  models.User
		id uuid.UUID
	)
	err := db.Pool.QueryRow(ctx, query, arg).Scan(&id, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("querying user: %w", err)
	}
	u.ID = id.String()
	return u, nil
}
