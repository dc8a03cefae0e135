package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
)

// DeadLetterEntry records a sync job that exhausted all retry attempts.
// The original job name and arguments are kept so the job can be
// resubmitted through the normal dispatch path.
type DeadLetterEntry struct {
	shared.BaseEntity
	LeadID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Platform     Platform  `gorm:"type:varchar(20);not null;index"`
	JobName      string    `gorm:"type:varchar(100);not null"`
	JobArgs      []byte    `gorm:"type:jsonb"`
	ErrorMessage string    `gorm:"type:varchar(2000)"`
	Attempts     int       `gorm:"not null"`
	Resolved     bool      `gorm:"not null;default:false;index"`
	ResolvedAt   *time.Time
}

// TableName returns the database table name
func (DeadLetterEntry) TableName() string {
	return "dead_letters"
}

// NewDeadLetterEntry creates an unresolved dead letter for an exhausted job
func NewDeadLetterEntry(leadID uuid.UUID, platform Platform, jobName string, jobArgs []byte, errMsg string, attempts int) *DeadLetterEntry {
	if len(errMsg) > MaxErrorMessageLength {
		errMsg = errMsg[:MaxErrorMessageLength]
	}
	return &DeadLetterEntry{
		BaseEntity:   shared.NewBaseEntity(),
		LeadID:       leadID,
		Platform:     platform,
		JobName:      jobName,
		JobArgs:      jobArgs,
		ErrorMessage: errMsg,
		Attempts:     attempts,
	}
}

// MarkResolved closes the entry after resubmission
func (e *DeadLetterEntry) MarkResolved() {
	if e.Resolved {
		return
	}
	now := time.Now()
	e.Resolved = true
	e.ResolvedAt = &now
	e.UpdatedAt = now
}

// DeadLetterRepository persists dead letter entries
type DeadLetterRepository interface {
	Record(ctx context.Context, entry *DeadLetterEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*DeadLetterEntry, error)
	ListUnresolved(ctx context.Context, limit int) ([]DeadLetterEntry, error)
	MarkResolved(ctx context.Context, id uuid.UUID) error
	CountUnresolved(ctx context.Context) (int64, error)
}
