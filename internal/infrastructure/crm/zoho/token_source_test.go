package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/integration"
)

// memoryTokenStore is an in-memory TokenStore for adapter tests
type memoryTokenStore struct {
	mu      sync.Mutex
	entries map[integration.Platform]*integration.TokenCacheEntry
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{entries: make(map[integration.Platform]*integration.TokenCacheEntry)}
}

func (s *memoryTokenStore) Get(ctx context.Context, platform integration.Platform) (*integration.TokenCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[platform]
	if !ok {
		return nil, integration.ErrTokenNotCached
	}
	return entry, nil
}

func (s *memoryTokenStore) Put(ctx context.Context, entry *integration.TokenCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Platform] = entry
	return nil
}

func (s *memoryTokenStore) Delete(ctx context.Context, platform integration.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, platform)
	return nil
}

func testConfig(serverURL string) *Config {
	c := &Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		AccountsURL:  serverURL,
		APIBaseURL:   serverURL,
	}
	_ = c.Validate()
	return c
}

func TestTokenSource_Refresh(t *testing.T) {
	refreshCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		assert.Equal(t, "/oauth/v2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "fresh-token", ExpiresIn: 3600})
	}))
	defer server.Close()

	store := newMemoryTokenStore()
	source := NewTokenSource(testConfig(server.URL), store, zap.NewNop())

	token, err := source.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, refreshCalls)

	// Cached entry carries the skewed expiry
	entry, err := store.Get(context.Background(), integration.PlatformZoho)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", entry.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour-time.Minute), entry.ExpiresAt, 2*time.Second)
}

func TestTokenSource_TokenUsesCache(t *testing.T) {
	refreshCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "fresh-token", ExpiresIn: 3600})
	}))
	defer server.Close()

	store := newMemoryTokenStore()
	require.NoError(t, store.Put(context.Background(),
		integration.NewTokenCacheEntry(integration.PlatformZoho, "cached-token", time.Now().Add(30*time.Minute))))

	source := NewTokenSource(testConfig(server.URL), store, zap.NewNop())
	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
	assert.Zero(t, refreshCalls)
}

func TestTokenSource_TokenRefreshesExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "fresh-token", ExpiresIn: 3600})
	}))
	defer server.Close()

	store := newMemoryTokenStore()
	require.NoError(t, store.Put(context.Background(),
		integration.NewTokenCacheEntry(integration.PlatformZoho, "stale-token", time.Now().Add(-time.Minute))))

	source := NewTokenSource(testConfig(server.URL), store, zap.NewNop())
	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestTokenSource_OAuthErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Zoho answers OAuth failures with HTTP 200
		json.NewEncoder(w).Encode(tokenResponse{Error: "invalid_client"})
	}))
	defer server.Close()

	source := NewTokenSource(testConfig(server.URL), newMemoryTokenStore(), zap.NewNop())
	_, err := source.Token(context.Background())
	assert.ErrorIs(t, err, integration.ErrPlatformAuthFailed)
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestTokenSource_Invalidate(t *testing.T) {
	store := newMemoryTokenStore()
	require.NoError(t, store.Put(context.Background(),
		integration.NewTokenCacheEntry(integration.PlatformZoho, "cached-token", time.Now().Add(time.Hour))))

	source := NewTokenSource(testConfig("http://unused"), store, zap.NewNop())
	source.Invalidate(context.Background())

	_, err := store.Get(context.Background(), integration.PlatformZoho)
	assert.ErrorIs(t, err, integration.ErrTokenNotCached)
}
