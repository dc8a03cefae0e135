package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexus/backend/internal/domain/integration"
)

// GormTokenStore implements integration.TokenStore with one row per
// platform, atomically overwritten on refresh
type GormTokenStore struct {
	db *gorm.DB
}

// NewGormTokenStore creates a new GormTokenStore
func NewGormTokenStore(db *gorm.DB) *GormTokenStore {
	return &GormTokenStore{db: db}
}

// Get returns the cached entry for a platform. Expiry is the caller's
// concern; only a missing row is ErrTokenNotCached.
func (r *GormTokenStore) Get(ctx context.Context, platform integration.Platform) (*integration.TokenCacheEntry, error) {
	var entry integration.TokenCacheEntry
	if err := r.db.WithContext(ctx).
		Where("platform = ?", platform).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrTokenNotCached
		}
		return nil, err
	}
	return &entry, nil
}

// Put upserts the entry for a platform
func (r *GormTokenStore) Put(ctx context.Context, entry *integration.TokenCacheEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "expires_at", "updated_at"}),
		}).
		Create(entry).Error
}

// Delete drops the cached entry for a platform
func (r *GormTokenStore) Delete(ctx context.Context, platform integration.Platform) error {
	return r.db.WithContext(ctx).
		Delete(&integration.TokenCacheEntry{}, "platform = ?", platform).Error
}

// Ensure GormTokenStore implements TokenStore
var _ integration.TokenStore = (*GormTokenStore)(nil)
