package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/workouts/internal/credentials"
	"example.com/workouts/internal/domain"
)

type mapCache struct {
	values map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]string)}
}

func (c *mapCache) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *mapCache) Set(key, value string) error {
	c.values[key] = value
	return nil
}

func (c *mapCache) Delete(key string) {
	delete(c.values, key)
}

type stubStore struct {
	session       *credentials.Session
	setSessionErr error
	signOutErr    error

	setSessionCalls int
	signOutCalls    int
}

func (s *stubStore) SignIn(context.Context, string, string) (*credentials.Session, error) {
	return s.session, nil
}

func (s *stubStore) SignUp(context.Context, string, string) (*credentials.Registration, error) {
	return &credentials.Registration{Session: s.session, Identity: s.session.Identity}, nil
}

func (s *stubStore) SetSession(_ context.Context, tokens domain.TokenPair) (*credentials.Session, error) {
	s.setSessionCalls++
	if s.setSessionErr != nil {
		return nil, s.setSessionErr
	}
	if s.session != nil {
		return s.session, nil
	}
	return &credentials.Session{Tokens: tokens}, nil
}

func (s *stubStore) CurrentIdentity(context.Context, string) (*domain.Identity, error) {
	return &s.session.Identity, nil
}

func (s *stubStore) SignOut(context.Context, domain.TokenPair) error {
	s.signOutCalls++
	return s.signOutErr
}

func testSession() *credentials.Session {
	return &credentials.Session{
		Identity: domain.Identity{ID: "user-1", Email: "lifter@example.com"},
		Tokens:   domain.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}
}

func TestRestoreWithEmptyCacheMakesNoProviderCall(t *testing.T) {
	store := &stubStore{session: testSession()}
	manager := NewManager(store, nil)

	identity := manager.Restore(context.Background(), newMapCache())
	require.Nil(t, identity)
	require.Zero(t, store.setSessionCalls)
}

func TestPersistThenRestore(t *testing.T) {
	store := &stubStore{session: testSession()}
	manager := NewManager(store, nil)
	cache := newMapCache()

	require.NoError(t, manager.Persist(cache, store.session.Tokens))

	identity := manager.Restore(context.Background(), cache)
	require.NotNil(t, identity)
	require.Equal(t, store.session.Identity, *identity)
	require.Equal(t, 1, store.setSessionCalls)
}

func TestPersistIsIdempotent(t *testing.T) {
	store := &stubStore{session: testSession()}
	manager := NewManager(store, nil)
	cache := newMapCache()

	require.NoError(t, manager.Persist(cache, store.session.Tokens))
	require.NoError(t, manager.Persist(cache, store.session.Tokens))
	require.Len(t, cache.values, 2)
}

func TestRestoreFailureClearsCacheSilently(t *testing.T) {
	store := &stubStore{session: testSession(), setSessionErr: domain.ErrUnauthorized}
	manager := NewManager(store, nil)
	cache := newMapCache()

	require.NoError(t, manager.Persist(cache, store.session.Tokens))

	identity := manager.Restore(context.Background(), cache)
	require.Nil(t, identity)
	require.Empty(t, cache.values)

	// A second restore short-circuits on the now-empty cache.
	identity = manager.Restore(context.Background(), cache)
	require.Nil(t, identity)
	require.Equal(t, 1, store.setSessionCalls)
}

func TestRestorePersistsRefreshedPair(t *testing.T) {
	refreshed := testSession()
	refreshed.Tokens = domain.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}
	store := &stubStore{session: refreshed}
	manager := NewManager(store, nil)
	cache := newMapCache()

	require.NoError(t, manager.Persist(cache, domain.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"}))

	identity := manager.Restore(context.Background(), cache)
	require.NotNil(t, identity)
	require.Equal(t, "access-2", cache.values[accessTokenKey])
	require.Equal(t, "refresh-2", cache.values[refreshTokenKey])
}

func TestInvalidateClearsCacheAndReportsProviderFailure(t *testing.T) {
	store := &stubStore{session: testSession(), signOutErr: errors.New("provider is down")}
	manager := NewManager(store, nil)
	cache := newMapCache()

	require.NoError(t, manager.Persist(cache, store.session.Tokens))

	result := manager.Invalidate(context.Background(), cache)
	require.False(t, result.Clean())
	require.Error(t, result.ProviderErr)
	require.Empty(t, cache.values)
	require.Equal(t, 1, store.signOutCalls)
}

func TestInvalidateWithoutSessionSkipsProvider(t *testing.T) {
	store := &stubStore{session: testSession()}
	manager := NewManager(store, nil)

	result := manager.Invalidate(context.Background(), newMapCache())
	require.True(t, result.Clean())
	require.Zero(t, store.signOutCalls)
}
