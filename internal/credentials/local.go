package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"example.com/workouts/internal/auth"
	"example.com/workouts/internal/domain"
)

// UserRecord is an account row in the local user table.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Confirmed    bool
	CreatedAt    time.Time
}

// RefreshTokenRecord stores the hash of an issued refresh token. The plain
// token never touches the database.
type RefreshTokenRecord struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository captures the persistence operations behind the local
// credential store. CreateUser must return domain.ErrDuplicateAccount on an
// email collision; lookups return (nil, nil) when no row matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user UserRecord) error
	UserByEmail(ctx context.Context, email string) (*UserRecord, error)
	UserByID(ctx context.Context, id string) (*UserRecord, error)
	SaveRefreshToken(ctx context.Context, token RefreshTokenRecord) error
	RefreshTokenByHash(ctx context.Context, hash string) (*RefreshTokenRecord, error)
	DeleteRefreshToken(ctx context.Context, hash string) error
}

// LocalConfig tunes the local credential store.
type LocalConfig struct {
	Auth                auth.Config
	RefreshTTL          time.Duration
	MinPasswordLength   int
	RequireConfirmation bool
}

// dummyPasswordHash is compared against when no account matches the email.
// The plaintext is random per process, so it never matches a submitted
// password.
var dummyPasswordHash = func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
}()

// Local is a credential store backed by the service's own SQL backend:
// bcrypt password hashes, HS256 access tokens, hashed rotating refresh tokens.
type Local struct {
	repo UserRepository
	cfg  LocalConfig
}

// NewLocal constructs a Local store.
func NewLocal(repo UserRepository, cfg LocalConfig) *Local {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 6
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Auth.AccessTTL <= 0 {
		cfg.Auth.AccessTTL = time.Hour
	}
	return &Local{repo: repo, cfg: cfg}
}

// SignIn implements Store.
func (l *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := l.repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if user == nil {
		// Burn the same bcrypt cost as a real comparison so response timing
		// does not reveal whether the account exists.
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Confirmed {
		return nil, domain.ErrUnconfirmedAccount
	}
	return l.issueSession(ctx, user)
}

// SignUp implements Store.
func (l *Local) SignUp(ctx context.Context, email, password string) (*Registration, error) {
	if len(password) < l.cfg.MinPasswordLength {
		return nil, fmt.Errorf("%w: minimum length is %d", domain.ErrWeakPassword, l.cfg.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	user := UserRecord{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		Confirmed:    !l.cfg.RequireConfirmation,
		CreatedAt:    time.Now().UTC(),
	}

	if err := l.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	identity := domain.Identity{ID: user.ID, Email: user.Email}
	if l.cfg.RequireConfirmation {
		return &Registration{Identity: identity, ConfirmationRequired: true}, nil
	}

	session, err := l.issueSession(ctx, &user)
	if err != nil {
		return nil, err
	}
	return &Registration{Session: session, Identity: identity}, nil
}

// SetSession implements Store. An expired access token with a live refresh
// token yields a rotated pair; anything else fails.
func (l *Local) SetSession(ctx context.Context, tokens domain.TokenPair) (*Session, error) {
	claims, err := auth.Parse(tokens.AccessToken, l.cfg.Auth)
	if err == nil {
		return &Session{
			Identity: domain.Identity{ID: claims.Subject, Email: claims.Email},
			Tokens:   tokens,
		}, nil
	}
	if !errors.Is(err, auth.ErrExpiredToken) {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return l.refresh(ctx, tokens.RefreshToken)
}

// CurrentIdentity implements Store.
func (l *Local) CurrentIdentity(ctx context.Context, accessToken string) (*domain.Identity, error) {
	claims, err := auth.Parse(accessToken, l.cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return &domain.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// SignOut implements Store by revoking the refresh token.
func (l *Local) SignOut(ctx context.Context, tokens domain.TokenPair) error {
	if tokens.RefreshToken == "" {
		return nil
	}
	if err := l.repo.DeleteRefreshToken(ctx, hashToken(tokens.RefreshToken)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}

func (l *Local) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrUnauthorized
	}

	hash := hashToken(refreshToken)
	stored, err := l.repo.RefreshTokenByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if stored == nil || time.Now().UTC().After(stored.ExpiresAt) {
		return nil, domain.ErrUnauthorized
	}

	user, err := l.repo.UserByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if user == nil || !user.Confirmed {
		return nil, domain.ErrUnauthorized
	}

	// Rotate: the presented refresh token is single-use.
	if err := l.repo.DeleteRefreshToken(ctx, hash); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return l.issueSession(ctx, user)
}

func (l *Local) issueSession(ctx context.Context, user *UserRecord) (*Session, error) {
	now := time.Now().UTC()
	access, err := auth.Issue(user.ID, user.Email, now, l.cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	refresh := uuid.NewString()
	record := RefreshTokenRecord{
		TokenHash: hashToken(refresh),
		UserID:    user.ID,
		ExpiresAt: now.Add(l.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := l.repo.SaveRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	return &Session{
		Identity: domain.Identity{ID: user.ID, Email: user.Email},
		Tokens:   domain.TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
