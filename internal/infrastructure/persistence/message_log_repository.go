package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/shared"
)

// GormMessageLogRepository implements integration.MessageLogRepository
type GormMessageLogRepository struct {
	db *gorm.DB
}

// NewGormMessageLogRepository creates a new GormMessageLogRepository
func NewGormMessageLogRepository(db *gorm.DB) *GormMessageLogRepository {
	return &GormMessageLogRepository{db: db}
}

// Save creates or updates a message log entry
func (r *GormMessageLogRepository) Save(ctx context.Context, log *integration.MessageLog) error {
	return r.db.WithContext(ctx).Save(log).Error
}

// FindByWAMessageID returns the log entry for a platform message ID
func (r *GormMessageLogRepository) FindByWAMessageID(ctx context.Context, waMessageID string) (*integration.MessageLog, error) {
	if waMessageID == "" {
		return nil, shared.ErrNotFound
	}
	var log integration.MessageLog
	if err := r.db.WithContext(ctx).
		Where("wa_message_id = ?", waMessageID).
		First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

// FindByLead returns all message logs for a lead, newest first
func (r *GormMessageLogRepository) FindByLead(ctx context.Context, leadID uuid.UUID) ([]integration.MessageLog, error) {
	var logs []integration.MessageLog
	if err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// UpdateStatus moves the log entry for a platform message ID to a new
// delivery status
func (r *GormMessageLogRepository) UpdateStatus(ctx context.Context, waMessageID string, status integration.MessageStatus) error {
	result := r.db.WithContext(ctx).
		Model(&integration.MessageLog{}).
		Where("wa_message_id = ?", waMessageID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormMessageLogRepository implements MessageLogRepository
var _ integration.MessageLogRepository = (*GormMessageLogRepository)(nil)
