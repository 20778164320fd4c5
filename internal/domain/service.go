package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordStore captures persistence operations for workout records. Every
// operation is owner-scoped: implementations must never return or touch a
// record whose owner differs from the one supplied.
type RecordStore interface {
	Create(ctx context.Context, record WorkoutRecord) error
	ListByOwner(ctx context.Context, ownerID string) ([]WorkoutRecord, error)
	Delete(ctx context.Context, ownerID, recordID string) error
}

// Service orchestrates workout record workflows on top of a RecordStore.
type Service struct {
	store   RecordStore
	timeout time.Duration
}

// NewService constructs a Service. Every store round-trip is bounded by the
// supplied timeout so a stalled backend cannot block a render cycle.
func NewService(store RecordStore, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{store: store, timeout: timeout}
}

// CreateWorkout validates and persists a new record, returning the assigned id.
// Notes-only records are allowed; a record with neither notes nor exercises is
// rejected because there is nothing to log.
func (s *Service) CreateWorkout(ctx context.Context, ownerID string, date time.Time, notes string, exercises []ExerciseEntry) (string, error) {
	if ownerID == "" {
		return "", ErrUnauthorized
	}
	if date.IsZero() {
		return "", fmt.Errorf("%w: date is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(notes) == "" && len(exercises) == 0 {
		return "", fmt.Errorf("%w: at least one exercise or a note is required", ErrInvalidRecord)
	}
	for _, entry := range exercises {
		if strings.TrimSpace(entry.Exercise) == "" {
			return "", fmt.Errorf("%w: exercise name is required", ErrInvalidRecord)
		}
		if entry.Sets < 0 || entry.Reps < 0 || entry.Weight < 0 {
			return "", fmt.Errorf("%w: sets, reps and weight must not be negative", ErrInvalidRecord)
		}
	}

	record := WorkoutRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Date:      truncateToDate(date),
		Notes:     strings.TrimSpace(notes),
		Exercises: exercises,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Create(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// ListWorkouts returns the owner's records ordered by date descending, ties
// broken by creation time descending. An owner with no records gets an empty
// slice, not an error.
func (s *Service) ListWorkouts(ctx context.Context, ownerID string) ([]WorkoutRecord, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.store.ListByOwner(ctx, ownerID)
}

// DeleteWorkout removes a record if it exists and is owned by ownerID.
// Deleting a missing or non-owned record is a no-op.
func (s *Service) DeleteWorkout(ctx context.Context, ownerID, recordID string) error {
	if ownerID == "" {
		return ErrUnauthorized
	}
	if recordID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidRecord)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.store.Delete(ctx, ownerID, recordID)
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
