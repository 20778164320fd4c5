package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("cache-test-secret")
	require.NoError(t, err)

	sealed, err := codec.Seal("the-access-token")
	require.NoError(t, err)
	require.NotEqual(t, "the-access-token", sealed)

	opened, err := codec.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "the-access-token", opened)
}

func TestCodecRejectsTamperedValue(t *testing.T) {
	codec, err := NewCodec("cache-test-secret")
	require.NoError(t, err)

	sealed, err := codec.Seal("the-access-token")
	require.NoError(t, err)

	tampered := "A" + sealed[1:]
	_, err = codec.Open(tampered)
	require.ErrorIs(t, err, ErrCipherText)
}

func TestCodecRejectsOtherKey(t *testing.T) {
	codec, err := NewCodec("cache-test-secret")
	require.NoError(t, err)
	other, err := NewCodec("another-secret")
	require.NoError(t, err)

	sealed, err := codec.Seal("the-access-token")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrCipherText)
}

func TestCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("")
	require.Error(t, err)
}

func newTestCookieCache(t *testing.T, w http.ResponseWriter, r *http.Request) *CookieCache {
	t.Helper()
	codec, err := NewCodec("cache-test-secret")
	require.NoError(t, err)
	return NewCookieCache(codec, "wt_", false, 3600, w, r)
}

func TestCookieCacheSetGetWithinRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	cache := newTestCookieCache(t, w, r)

	require.NoError(t, cache.Set("access_token", "value-1"))

	got, ok := cache.Get("access_token")
	require.True(t, ok)
	require.Equal(t, "value-1", got)
}

func TestCookieCacheRoundTripAcrossRequests(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	w1 := httptest.NewRecorder()
	cache1 := newTestCookieCache(t, w1, r1)
	require.NoError(t, cache1.Set("access_token", "value-1"))

	cookies := w1.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "wt_access_token", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	cache2 := newTestCookieCache(t, httptest.NewRecorder(), r2)

	got, ok := cache2.Get("access_token")
	require.True(t, ok)
	require.Equal(t, "value-1", got)
}

func TestCookieCacheDelete(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	cache := newTestCookieCache(t, w, r)

	require.NoError(t, cache.Set("access_token", "value-1"))
	cache.Delete("access_token")

	_, ok := cache.Get("access_token")
	require.False(t, ok)

	cookies := w.Result().Cookies()
	last := cookies[len(cookies)-1]
	require.Equal(t, "wt_access_token", last.Name)
	require.Equal(t, -1, last.MaxAge)
}

func TestCookieCacheTreatsUndecryptableCookieAsAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "wt_access_token", Value: "not-ciphertext"})
	cache := newTestCookieCache(t, httptest.NewRecorder(), r)

	_, ok := cache.Get("access_token")
	require.False(t, ok)
}
