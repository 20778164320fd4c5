// Package domain defines the core types and business logic for the workout tracker.
package domain

import (
	"errors"
	"time"
)

// Credential store failures, classified for the presentation layer.
var (
	// ErrInvalidCredentials is returned when the email/password pair does not match an account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnconfirmedAccount is returned when the account exists but has not confirmed its email.
	ErrUnconfirmedAccount = errors.New("account not confirmed")
	// ErrDuplicateAccount is returned when registering an email that already has an account.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrWeakPassword is returned when a registration password fails the provider's policy.
	ErrWeakPassword = errors.New("password too weak")
	// ErrProviderUnavailable wraps transport or backend failures of the credential store.
	ErrProviderUnavailable = errors.New("credential provider unavailable")
)

// Record store failures.
var (
	// ErrStoreUnavailable wraps connection failures against the record backend.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrUnauthorized is returned when an operation is attempted without a resolved identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedRecord marks a stored record whose exercise blob cannot be parsed.
	ErrMalformedRecord = errors.New("malformed workout record")
	// ErrInvalidRecord is returned when a workout fails validation before it reaches the store.
	ErrInvalidRecord = errors.New("invalid workout record")
)

// Identity is the authenticated user principal. It is issued by the credential
// store and never mutated by this service.
type Identity struct {
	ID    string
	Email string
}

// TokenPair holds the opaque access/refresh tokens for one authenticated session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether either token is missing.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" || p.RefreshToken == ""
}

// ExerciseEntry is one line of a logged workout. Order within a record is
// insertion order and is preserved on round-trip.
type ExerciseEntry struct {
	Exercise string  `json:"exercise"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Weight   float64 `json:"weight"`
}

// WorkoutRecord is one logged workout session.
type WorkoutRecord struct {
	ID        string
	OwnerID   string
	Date      time.Time
	Notes     string
	Exercises []ExerciseEntry
	CreatedAt time.Time
}
