// Package sqlite provides an embedded database/sql backend for deployments
// without a managed PostgreSQL instance.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"example.com/workouts/internal/credentials"
	"example.com/workouts/internal/domain"
	"example.com/workouts/internal/observability"
)

const dateLayout = "2006-01-02"

// timeLayout keeps a fixed-width fraction so the created_at tie-break in
// ListByOwner stays correct under lexicographic TEXT comparison.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository implements domain.RecordStore and credentials.UserRepository
// against an embedded SQLite file. Dates are stored as ISO-8601 text so the
// date/created_at ordering works lexicographically.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database file and returns a Repository.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

// NewRepository wraps an existing handle, mainly for tests.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close releases the underlying handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    confirmed INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
    token_hash TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    expires_at TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS workouts (
    workout_id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    workout_date TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    exercises TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS workouts_owner_date_idx
    ON workouts (owner_id, workout_date DESC, created_at DESC);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Create persists a workout record with the exercises list as a JSON blob.
func (r *Repository) Create(ctx context.Context, record domain.WorkoutRecord) error {
	blob, err := json.Marshal(record.Exercises)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}

	const stmt = `INSERT INTO workouts (workout_id, owner_id, workout_date, notes, exercises, created_at)
        VALUES (?,?,?,?,?,?)`

	if _, err := r.db.ExecContext(ctx, stmt,
		record.ID,
		record.OwnerID,
		record.Date.Format(dateLayout),
		record.Notes,
		string(blob),
		record.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	observability.RecordWorkoutPersisted(record.CreatedAt)
	return nil
}

// ListByOwner returns the owner's records, newest date first. Rows with an
// unparseable exercises blob or date are skipped and counted.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, error) {
	const query = `SELECT workout_id, owner_id, workout_date, notes, exercises, created_at
        FROM workouts WHERE owner_id=?
        ORDER BY workout_date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	records := make([]domain.WorkoutRecord, 0)
	for rows.Next() {
		var record domain.WorkoutRecord
		var date, blob, created string
		if err := rows.Scan(&record.ID, &record.OwnerID, &date, &record.Notes, &blob, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		if record.Date, err = time.Parse(dateLayout, date); err != nil {
			observability.RecordMalformedRecord()
			continue
		}
		if record.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			observability.RecordMalformedRecord()
			continue
		}
		if err := json.Unmarshal([]byte(blob), &record.Exercises); err != nil {
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
	const stmt = `DELETE FROM workouts WHERE workout_id=? AND owner_id=?`
	if _, err := r.db.ExecContext(ctx, stmt, recordID, ownerID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// CreateUser inserts an account row, classifying email collisions.
func (r *Repository) CreateUser(ctx context.Context, user credentials.UserRecord) error {
	const stmt = `INSERT INTO users (user_id, email, password_hash, confirmed, created_at)
        VALUES (?,?,?,?,?)`

	_, err := r.db.ExecContext(ctx, stmt,
		user.ID,
		user.Email,
		user.PasswordHash,
		boolToInt(user.Confirmed),
		user.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// UserByEmail looks up an account by email, returning (nil, nil) on no match.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*credentials.UserRecord, error) {
	const query = `SELECT user_id, email, password_hash, confirmed, created_at FROM users WHERE email=?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UserByID looks up an account by id, returning (nil, nil) on no match.
func (r *Repository) UserByID(ctx context.Context, id string) (*credentials.UserRecord, error) {
	const query = `SELECT user_id, email, password_hash, confirmed, created_at FROM users WHERE user_id=?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) scanUser(row *sql.Row) (*credentials.UserRecord, error) {
	var user credentials.UserRecord
	var confirmed int
	var created string
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &confirmed, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.Confirmed = confirmed != 0
	if ts, err := time.Parse(timeLayout, created); err == nil {
		user.CreatedAt = ts
	}
	return &user, nil
}

// SaveRefreshToken stores the hash of an issued refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, token credentials.RefreshTokenRecord) error {
	const stmt = `INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
        VALUES (?,?,?,?)`
	_, err := r.db.ExecContext(ctx, stmt,
		token.TokenHash,
		token.UserID,
		token.ExpiresAt.UTC().Format(timeLayout),
		token.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

// RefreshTokenByHash looks up a stored refresh token, (nil, nil) on no match.
func (r *Repository) RefreshTokenByHash(ctx context.Context, hash string) (*credentials.RefreshTokenRecord, error) {
	const query = `SELECT token_hash, user_id, expires_at, created_at FROM refresh_tokens WHERE token_hash=?`

	var token credentials.RefreshTokenRecord
	var expires, created string
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&token.TokenHash, &token.UserID, &expires, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if token.ExpiresAt, err = time.Parse(timeLayout, expires); err != nil {
		return nil, fmt.Errorf("parse expiry: %w", err)
	}
	if ts, err := time.Parse(timeLayout, created); err == nil {
		token.CreatedAt = ts
	}
	return &token, nil
}

// DeleteRefreshToken revokes a stored refresh token. Unknown hashes are a no-op.
func (r *Repository) DeleteRefreshToken(ctx context.Context, hash string) error {
	const stmt = `DELETE FROM refresh_tokens WHERE token_hash=?`
	_, err := r.db.ExecContext(ctx, stmt, hash)
	return err
}

// PruneExpiredRefreshTokens removes refresh tokens past their expiry.
func (r *Repository) PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `DELETE FROM refresh_tokens WHERE expires_at < ?`
	res, err := r.db.ExecContext(ctx, stmt, now.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
