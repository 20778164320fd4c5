// Package postgres provides pgx-backed persistence for workout records and
// local user accounts.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workouts/internal/credentials"
	"example.com/workouts/internal/domain"
	"example.com/workouts/internal/observability"
)

// Repository implements domain.RecordStore and credentials.UserRepository
// against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id UUID PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    confirmed BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
    token_hash TEXT PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS workouts (
    workout_id UUID PRIMARY KEY,
    owner_id TEXT NOT NULL,
    workout_date DATE NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    exercises JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS workouts_owner_date_idx
    ON workouts (owner_id, workout_date DESC, created_at DESC);`

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Create persists a workout record. The exercises list is stored as a JSONB
// blob preserving insertion order.
func (r *Repository) Create(ctx context.Context, record domain.WorkoutRecord) error {
	blob, err := json.Marshal(record.Exercises)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}

	const stmt = `INSERT INTO workouts (workout_id, owner_id, workout_date, notes, exercises, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`

	if _, err := r.pool.Exec(ctx, stmt,
		record.ID,
		record.OwnerID,
		record.Date,
		record.Notes,
		blob,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	observability.RecordWorkoutPersisted(record.CreatedAt)
	return nil
}

// ListByOwner returns the owner's records, newest date first, ties broken by
// creation time. A row with an unparseable exercises blob is skipped and
// counted, never aborting the listing.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, error) {
	const query = `SELECT workout_id, owner_id, workout_date, notes, exercises, created_at
        FROM workouts WHERE owner_id=$1
        ORDER BY workout_date DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	records := make([]domain.WorkoutRecord, 0)
	for rows.Next() {
		var record domain.WorkoutRecord
		var blob []byte
		if err := rows.Scan(&record.ID, &record.OwnerID, &record.Date, &record.Notes, &blob, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		if err := json.Unmarshal(blob, &record.Exercises); err != nil {
			observability.RecordMalformedRecord()
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return records, nil
}

// Delete removes a record scoped to its owner. Missing or non-owned rows are
// a no-op.
func (r *Repository) Delete(ctx context.Context, ownerID, recordID string) error {
	const stmt = `DELETE FROM workouts WHERE workout_id=$1 AND owner_id=$2`
	if _, err := r.pool.Exec(ctx, stmt, recordID, ownerID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// CreateUser inserts an account row, classifying email collisions.
func (r *Repository) CreateUser(ctx context.Context, user credentials.UserRecord) error {
	const stmt = `INSERT INTO users (user_id, email, password_hash, confirmed, created_at)
        VALUES ($1,$2,$3,$4,$5)`

	_, err := r.pool.Exec(ctx, stmt, user.ID, user.Email, user.PasswordHash, user.Confirmed, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// UserByEmail looks up an account by email, returning (nil, nil) on no match.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*credentials.UserRecord, error) {
	const query = `SELECT user_id, email, password_hash, confirmed, created_at FROM users WHERE email=$1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// UserByID looks up an account by id, returning (nil, nil) on no match.
func (r *Repository) UserByID(ctx context.Context, id string) (*credentials.UserRecord, error) {
	const query = `SELECT user_id, email, password_hash, confirmed, created_at FROM users WHERE user_id=$1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*credentials.UserRecord, error) {
	var user credentials.UserRecord
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Confirmed, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// SaveRefreshToken stores the hash of an issued refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, token credentials.RefreshTokenRecord) error {
	const stmt = `INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
        VALUES ($1,$2,$3,$4)`
	_, err := r.pool.Exec(ctx, stmt, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt)
	return err
}

// RefreshTokenByHash looks up a stored refresh token, (nil, nil) on no match.
func (r *Repository) RefreshTokenByHash(ctx context.Context, hash string) (*credentials.RefreshTokenRecord, error) {
	const query = `SELECT token_hash, user_id, expires_at, created_at FROM refresh_tokens WHERE token_hash=$1`

	var token credentials.RefreshTokenRecord
	err := r.pool.QueryRow(ctx, query, hash).Scan(&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// DeleteRefreshToken revokes a stored refresh token. Unknown hashes are a no-op.
func (r *Repository) DeleteRefreshToken(ctx context.Context, hash string) error {
	const stmt = `DELETE FROM refresh_tokens WHERE token_hash=$1`
	_, err := r.pool.Exec(ctx, stmt, hash)
	return err
}

// PruneExpiredRefreshTokens removes refresh tokens past their expiry. Intended
// for periodic housekeeping from main.
func (r *Repository) PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, stmt, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
