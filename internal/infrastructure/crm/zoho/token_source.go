package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/integration"
)

// TokenSource exchanges the long-lived refresh token for short-lived
// access tokens and keeps the latest one in the token cache. Zoho access
// tokens expire after 60 minutes; the cached expiry is shortened by the
// configured skew so a token is never handed out moments before it dies.
// Concurrent refreshes are serialized; last writer wins in the cache.
type TokenSource struct {
	config     *Config
	store      integration.TokenStore
	httpClient *http.Client
	logger     *zap.Logger

	mu sync.Mutex
}

// NewTokenSource creates a token source backed by the given cache
func NewTokenSource(config *Config, store integration.TokenStore, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		config: config,
		store:  store,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Token returns a valid access token, refreshing through the OAuth
// endpoint when the cached one is missing or expired
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	entry, err := s.store.Get(ctx, integration.PlatformZoho)
	if err == nil && entry.Valid() {
		return entry.AccessToken, nil
	}
	return s.Refresh(ctx)
}

// Refresh forces a token exchange regardless of cache state and stores
// the result. Called on a 401 and by the maintenance beat ahead of expiry.
func (s *TokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form := url.Values{}
	form.Set("refresh_token", s.config.RefreshToken)
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.AccountsURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("zoho: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("zoho: failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: token refresh returned HTTP %d", integration.ErrPlatformAuthFailed, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("%w: failed to parse token response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	// Zoho reports OAuth failures with HTTP 200 and an error field
	if token.Error != "" {
		return "", fmt.Errorf("%w: %s", integration.ErrPlatformAuthFailed, token.Error)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", integration.ErrPlatformInvalidResponse)
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	expiresAt := time.Now().Add(time.Duration(expiresIn)*time.Second - s.config.TokenSkew)

	entry := integration.NewTokenCacheEntry(integration.PlatformZoho, token.AccessToken, expiresAt)
	if err := s.store.Put(ctx, entry); err != nil {
		s.logger.Warn("Failed to cache Zoho access token", zap.Error(err))
	}

	s.logger.Info("Zoho access token refreshed", zap.Time("expires_at", expiresAt))
	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next call refreshes
func (s *TokenSource) Invalidate(ctx context.Context) {
	if err := s.store.Delete(ctx, integration.PlatformZoho); err != nil {
		s.logger.Warn("Failed to invalidate Zoho token cache", zap.Error(err))
	}
}
