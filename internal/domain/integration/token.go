package integration

import (
	"context"
	"time"

	"github.com/nexus/backend/internal/domain/shared"
)

// TokenCacheEntry holds a short-lived OAuth access token for a platform.
// One row per platform; refreshes overwrite it in place.
type TokenCacheEntry struct {
	shared.BaseEntity
	Platform    Platform  `gorm:"type:varchar(20);not null;uniqueIndex"`
	AccessToken string    `gorm:"type:text;not null"`
	ExpiresAt   time.Time `gorm:"not null"`
}

// TableName returns the database table name
func (TokenCacheEntry) TableName() string {
	return "token_cache"
}

// NewTokenCacheEntry creates a cache entry for a freshly issued token
func NewTokenCacheEntry(platform Platform, accessToken string, expiresAt time.Time) *TokenCacheEntry {
	return &TokenCacheEntry{
		BaseEntity:  shared.NewBaseEntity(),
		Platform:    platform,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
	}
}

// Valid reports whether the token can still be used
func (e *TokenCacheEntry) Valid() bool {
	return time.Now().Before(e.ExpiresAt)
}

// TokenStore persists cached platform tokens
type TokenStore interface {
	// Get returns the cached entry for a platform or ErrTokenNotCached
	Get(ctx context.Context, platform Platform) (*TokenCacheEntry, error)

	// Put upserts the entry for a platform
	Put(ctx context.Context, entry *TokenCacheEntry) error

	// Delete drops the cached entry for a platform
	Delete(ctx context.Context, platform Platform) error
}
