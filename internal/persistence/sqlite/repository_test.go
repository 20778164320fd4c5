package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/workouts/internal/credentials"
	"example.com/workouts/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "workouts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func record(ownerID, dateValue, notes string, createdAt time.Time) domain.WorkoutRecord {
	date, err := time.Parse(dateLayout, dateValue)
	if err != nil {
		panic(err)
	}
	return domain.WorkoutRecord{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Date:    date,
		Notes:   notes,
		Exercises: []domain.ExerciseEntry{
			{Exercise: "Squat", Sets: 5, Reps: 5, Weight: 225},
		},
		CreatedAt: createdAt,
	}
}

func TestCreateAndListRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	want := record("user-1", "2024-03-01", "heavy day", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, want))

	records, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, want.ID, records[0].ID)
	require.Equal(t, want.Notes, records[0].Notes)
	require.Equal(t, want.Exercises, records[0].Exercises)
	require.True(t, records[0].Date.Equal(want.Date))
}

func TestListOrdersByDateThenCreation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	january := record("user-1", "2024-01-01", "january", now)
	march := record("user-1", "2024-03-01", "march", now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, january))
	require.NoError(t, repo.Create(ctx, march))

	// Same date, later creation wins the tie.
	earlier := record("user-1", "2024-03-01", "march-earlier", now.Add(-2*time.Hour))
	require.NoError(t, repo.Create(ctx, earlier))

	records, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "march", records[0].Notes)
	require.Equal(t, "march-earlier", records[1].Notes)
	require.Equal(t, "january", records[2].Notes)
}

func TestListIsolatesOwners(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, record("user-1", "2024-03-01", "mine", now)))
	require.NoError(t, repo.Create(ctx, record("user-2", "2024-03-01", "theirs", now)))

	records, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "mine", records[0].Notes)

	records, err = repo.ListByOwner(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "theirs", records[0].Notes)
}

func TestListEmptyOwnerReturnsEmptySlice(t *testing.T) {
	repo := openTestRepo(t)

	records, err := repo.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestDeleteIsOwnerScopedAndIdempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	mine := record("user-1", "2024-03-01", "mine", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, mine))

	// Wrong owner: record survives.
	require.NoError(t, repo.Delete(ctx, "user-2", mine.ID))
	records, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, repo.Delete(ctx, "user-1", mine.ID))
	require.NoError(t, repo.Delete(ctx, "user-1", mine.ID))

	records, err = repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestListSkipsMalformedExerciseBlob(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	good := record("user-1", "2024-03-01", "good", now)
	require.NoError(t, repo.Create(ctx, good))

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO workouts (workout_id, owner_id, workout_date, notes, exercises, created_at) VALUES (?,?,?,?,?,?)`,
		uuid.NewString(), "user-1", "2024-04-01", "bad", "{not json", now.Format(timeLayout))
	require.NoError(t, err)

	records, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "good", records[0].Notes)
}

func TestCreateUserDetectsDuplicates(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	user := credentials.UserRecord{
		ID:           uuid.NewString(),
		Email:        "lifter@example.com",
		PasswordHash: "hash",
		Confirmed:    true,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	dupe := user
	dupe.ID = uuid.NewString()
	require.ErrorIs(t, repo.CreateUser(ctx, dupe), domain.ErrDuplicateAccount)
}

func TestUserLookups(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	missing, err := repo.UserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, missing)

	user := credentials.UserRecord{
		ID:           uuid.NewString(),
		Email:        "lifter@example.com",
		PasswordHash: "hash",
		Confirmed:    false,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	byEmail, err := repo.UserByEmail(ctx, "lifter@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	require.Equal(t, user.ID, byEmail.ID)
	require.False(t, byEmail.Confirmed)

	byID, err := repo.UserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Equal(t, user.Email, byID.Email)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	user := credentials.UserRecord{
		ID:           uuid.NewString(),
		Email:        "lifter@example.com",
		PasswordHash: "hash",
		Confirmed:    true,
		CreatedAt:    now,
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	token := credentials.RefreshTokenRecord{
		TokenHash: "hash-1",
		UserID:    user.ID,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, repo.SaveRefreshToken(ctx, token))

	stored, err := repo.RefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, user.ID, stored.UserID)
	require.True(t, stored.ExpiresAt.Equal(token.ExpiresAt))

	require.NoError(t, repo.DeleteRefreshToken(ctx, "hash-1"))
	stored, err = repo.RefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Nil(t, stored)

	// Unknown hashes delete as a no-op.
	require.NoError(t, repo.DeleteRefreshToken(ctx, "hash-1"))
}

func TestPruneExpiredRefreshTokens(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := credentials.UserRecord{
		ID:           uuid.NewString(),
		Email:        "lifter@example.com",
		PasswordHash: "hash",
		Confirmed:    true,
		CreatedAt:    now,
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	expired := credentials.RefreshTokenRecord{TokenHash: "old", UserID: user.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-48 * time.Hour)}
	live := credentials.RefreshTokenRecord{TokenHash: "new", UserID: user.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, repo.SaveRefreshToken(ctx, expired))
	require.NoError(t, repo.SaveRefreshToken(ctx, live))

	pruned, err := repo.PruneExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	stored, err := repo.RefreshTokenByHash(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, stored)
}
