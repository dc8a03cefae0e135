package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexus/backend/internal/domain/integration"
)

// GormDeadLetterRepository implements integration.DeadLetterRepository
type GormDeadLetterRepository struct {
	db *gorm.DB
}

// NewGormDeadLetterRepository creates a new GormDeadLetterRepository
func NewGormDeadLetterRepository(db *gorm.DB) *GormDeadLetterRepository {
	return &GormDeadLetterRepository{db: db}
}

// Record stores a new dead letter entry
func (r *GormDeadLetterRepository) Record(ctx context.Context, entry *integration.DeadLetterEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByID returns one entry by its ID
func (r *GormDeadLetterRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.DeadLetterEntry, error) {
	var entry integration.DeadLetterEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrDeadLetterNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListUnresolved returns up to limit unresolved entries, oldest first
func (r *GormDeadLetterRepository) ListUnresolved(ctx context.Context, limit int) ([]integration.DeadLetterEntry, error) {
	var entries []integration.DeadLetterEntry
	if err := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkResolved marks one entry resolved. Already-resolved entries are left
// untouched.
func (r *GormDeadLetterRepository) MarkResolved(ctx context.Context, id uuid.UUID) error {
	entry, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.Resolved {
		return nil
	}
	entry.MarkResolved()
	return r.db.WithContext(ctx).Save(entry).Error
}

// CountUnresolved returns the number of entries awaiting resolution
func (r *GormDeadLetterRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&integration.DeadLetterEntry{}).
		Where("resolved = ?", false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormDeadLetterRepository implements DeadLetterRepository
var _ integration.DeadLetterRepository = (*GormDeadLetterRepository)(nil)
