package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
)

// MaxErrorMessageLength bounds stored error text so a pathological platform
// response cannot bloat the ledger
const MaxErrorMessageLength = 2000

// SyncRecord is the per-lead, per-platform sync ledger entry. There is at
// most one record per (lead, platform) pair; repeated attempts update it
// in place and bump SyncCount.
type SyncRecord struct {
	shared.BaseEntity
	LeadID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sync_records_lead_platform,priority:1"`
	Platform     Platform   `gorm:"type:varchar(20);not null;uniqueIndex:idx_sync_records_lead_platform,priority:2;index:idx_sync_records_platform_external,priority:1"`
	ExternalID   string     `gorm:"type:varchar(255);index:idx_sync_records_platform_external,priority:2"`
	Status       SyncStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	ErrorMessage string     `gorm:"type:varchar(2000)"`
	SyncCount    int        `gorm:"not null;default:0"`
	LastSyncedAt *time.Time
}

// TableName returns the database table name
func (SyncRecord) TableName() string {
	return "sync_records"
}

// NewSyncRecord creates a pending ledger entry for a lead/platform pair
func NewSyncRecord(leadID uuid.UUID, platform Platform) *SyncRecord {
	return &SyncRecord{
		BaseEntity: shared.NewBaseEntity(),
		LeadID:     leadID,
		Platform:   platform,
		Status:     SyncStatusPending,
	}
}

// MarkSuccess records a successful sync attempt. The external ID is set
// once and never changed afterwards so later partial failures cannot
// orphan the platform-side record.
func (r *SyncRecord) MarkSuccess(externalID string) {
	now := time.Now()
	r.Status = SyncStatusSuccess
	r.ErrorMessage = ""
	r.SyncCount++
	r.LastSyncedAt = &now
	r.UpdatedAt = now
	if r.ExternalID == "" && externalID != "" {
		r.ExternalID = externalID
	}
}

// MarkFailed records a failed sync attempt. The external ID from earlier
// successful attempts is kept.
func (r *SyncRecord) MarkFailed(errMsg string) {
	if len(errMsg) > MaxErrorMessageLength {
		errMsg = errMsg[:MaxErrorMessageLength]
	}
	r.Status = SyncStatusFailed
	r.ErrorMessage = errMsg
	r.SyncCount++
	r.UpdatedAt = time.Now()
}

// MarkSkipped records that the platform was not applicable for this lead
func (r *SyncRecord) MarkSkipped(reason string) {
	if len(reason) > MaxErrorMessageLength {
		reason = reason[:MaxErrorMessageLength]
	}
	r.Status = SyncStatusSkipped
	r.ErrorMessage = reason
	r.UpdatedAt = time.Now()
}

// SyncRecordRepository persists the sync ledger
type SyncRecordRepository interface {
	// GetOrCreate returns the ledger entry for the pair, creating a
	// pending one when none exists. Concurrent callers for the same pair
	// receive the same row.
	GetOrCreate(ctx context.Context, leadID uuid.UUID, platform Platform) (*SyncRecord, error)

	// Save persists changes to an existing entry
	Save(ctx context.Context, record *SyncRecord) error

	// FindByLeadAndPlatform returns the entry for the pair or ErrSyncRecordNotFound
	FindByLeadAndPlatform(ctx context.Context, leadID uuid.UUID, platform Platform) (*SyncRecord, error)

	// FindByExternalID resolves a platform-side ID back to the local lead
	FindByExternalID(ctx context.Context, platform Platform, externalID string) (*SyncRecord, error)

	// FindByLead returns all ledger entries for a lead
	FindByLead(ctx context.Context, leadID uuid.UUID) ([]SyncRecord, error)

	// DeleteByLead removes all ledger entries for a lead
	DeleteByLead(ctx context.Context, leadID uuid.UUID) error
}
