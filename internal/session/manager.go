// Package session bridges stateless request cycles with a stateful
// authenticated identity, using an encrypted client-side token cache as the
// only durable channel between renders.
package session

import (
	"context"

	"go.uber.org/zap"

	"example.com/workouts/internal/credentials"
	"example.com/workouts/internal/domain"
	"example.com/workouts/internal/observability"
)

// Cache keys, namespaced by the cache implementation's prefix.
const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// TokenCache is the encrypted client-side key-value cache holding the session
// token pair. Writes must be visible to reads within the same request.
type TokenCache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
}

// SignOutResult reports the outcome of Invalidate. Local state is always
// cleared; ProviderErr records whether the provider-side sign-out also
// succeeded, for callers that want to surface it.
type SignOutResult struct {
	ProviderErr error
}

// Clean reports whether the provider sign-out succeeded as well.
func (r SignOutResult) Clean() bool { return r.ProviderErr == nil }

// Manager owns the session lifecycle: authenticate, persist, restore,
// invalidate. It holds no per-user state of its own; identity lives in the
// token cache between requests.
type Manager struct {
	store credentials.Store
	log   *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(store credentials.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, log: log}
}

// Authenticate exchanges credentials for a session. It does not persist the
// token pair; callers persist explicitly once they have a cache in hand.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*credentials.Session, error) {
	session, err := m.store.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Register creates an account, returning an active session when the provider
// has confirmation disabled.
func (m *Manager) Register(ctx context.Context, email, password string) (*credentials.Registration, error) {
	return m.store.SignUp(ctx, email, password)
}

// Persist writes both tokens into the cache. Writing the same pair twice is a
// no-op in effect.
func (m *Manager) Persist(cache TokenCache, tokens domain.TokenPair) error {
	if err := cache.Set(accessTokenKey, tokens.AccessToken); err != nil {
		return err
	}
	return cache.Set(refreshTokenKey, tokens.RefreshToken)
}

// Restore attempts to re-establish identity from the cache. An empty cache
// returns nil without any provider call. A failed validation clears the cache
// and returns nil; restoration failure is never escalated as an error. A
// refresh performed by the provider is written back to the cache before
// returning.
func (m *Manager) Restore(ctx context.Context, cache TokenCache) *domain.Identity {
	access, okA := cache.Get(accessTokenKey)
	refresh, okR := cache.Get(refreshTokenKey)
	if !okA || !okR || access == "" || refresh == "" {
		return nil
	}

	pair := domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	session, err := m.store.SetSession(ctx, pair)
	if err != nil {
		m.log.Debug("session restore failed, clearing cache", zap.Error(err))
		cache.Delete(accessTokenKey)
		cache.Delete(refreshTokenKey)
		observability.RecordRestoreFailure()
		return nil
	}

	if session.Tokens != pair {
		if err := m.Persist(cache, session.Tokens); err != nil {
			m.log.Warn("failed to persist refreshed token pair", zap.Error(err))
		}
	}

	observability.RecordRestore()
	return &session.Identity
}

// Invalidate signs out at the provider (best-effort) and unconditionally
// clears the cached token pair.
func (m *Manager) Invalidate(ctx context.Context, cache TokenCache) SignOutResult {
	var pair domain.TokenPair
	pair.AccessToken, _ = cache.Get(accessTokenKey)
	pair.RefreshToken, _ = cache.Get(refreshTokenKey)

	var result SignOutResult
	if pair.AccessToken != "" || pair.RefreshToken != "" {
		if err := m.store.SignOut(ctx, pair); err != nil {
			m.log.Warn("provider sign-out failed", zap.Error(err))
			result.ProviderErr = err
		}
	}

	cache.Delete(accessTokenKey)
	cache.Delete(refreshTokenKey)
	return result
}
