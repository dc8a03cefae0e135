package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexus/backend/internal/domain/integration"
)

// GormSyncRecordRepository implements integration.SyncRecordRepository
type GormSyncRecordRepository struct {
	db *gorm.DB
}

// NewGormSyncRecordRepository creates a new GormSyncRecordRepository
func NewGormSyncRecordRepository(db *gorm.DB) *GormSyncRecordRepository {
	return &GormSyncRecordRepository{db: db}
}

// GetOrCreate returns the ledger entry for a lead/platform pair, creating a
// pending one when none exists. The insert uses ON CONFLICT DO NOTHING on
// the pair's unique index and re-reads, so concurrent callers converge on
// the same row.
func (r *GormSyncRecordRepository) GetOrCreate(ctx context.Context, leadID uuid.UUID, platform integration.Platform) (*integration.SyncRecord, error) {
	record := integration.NewSyncRecord(leadID, platform)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lead_id"}, {Name: "platform"}},
			DoNothing: true,
		}).
		Create(record).Error; err != nil {
		return nil, err
	}
	return r.FindByLeadAndPlatform(ctx, leadID, platform)
}

// Save persists changes to an existing ledger entry
func (r *GormSyncRecordRepository) Save(ctx context.Context, record *integration.SyncRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// FindByLeadAndPlatform returns the entry for a lead/platform pair
func (r *GormSyncRecordRepository) FindByLeadAndPlatform(ctx context.Context, leadID uuid.UUID, platform integration.Platform) (*integration.SyncRecord, error) {
	var record integration.SyncRecord
	if err := r.db.WithContext(ctx).
		Where("lead_id = ? AND platform = ?", leadID, platform).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByExternalID resolves a platform-side ID back to the local ledger entry
func (r *GormSyncRecordRepository) FindByExternalID(ctx context.Context, platform integration.Platform, externalID string) (*integration.SyncRecord, error) {
	if externalID == "" {
		return nil, integration.ErrSyncRecordNotFound
	}
	var record integration.SyncRecord
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", platform, externalID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByLead returns all ledger entries for a lead
func (r *GormSyncRecordRepository) FindByLead(ctx context.Context, leadID uuid.UUID) ([]integration.SyncRecord, error) {
	var records []integration.SyncRecord
	if err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("platform ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByLead removes all ledger entries for a lead
func (r *GormSyncRecordRepository) DeleteByLead(ctx context.Context, leadID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&integration.SyncRecord{}, "lead_id = ?", leadID).Error
}

// Ensure GormSyncRecordRepository implements SyncRecordRepository
var _ integration.SyncRecordRepository = (*GormSyncRecordRepository)(nil)
