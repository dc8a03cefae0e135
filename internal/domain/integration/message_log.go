package integration

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
)

// MessageType identifies which templated message was sent to a lead
type MessageType string

const (
	MessageTypeWelcome   MessageType = "welcome"
	MessageTypeBrochure  MessageType = "brochure"
	MessageTypeFollowup  MessageType = "followup"
	MessageTypeSiteVisit MessageType = "sitevisit"
	MessageTypeWin       MessageType = "win"
)

// MessageStatus tracks the delivery lifecycle of an outbound message
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusOptedOut  MessageStatus = "opted_out"
)

// MessageLog records one outbound messaging attempt. Delivery webhooks
// update the status after the fact using the platform message ID.
type MessageLog struct {
	shared.BaseEntity
	LeadID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	Type        MessageType   `gorm:"type:varchar(20);not null"`
	Template    string        `gorm:"type:varchar(100);not null"`
	WAMessageID string        `gorm:"type:varchar(255);index"`
	Status      MessageStatus `gorm:"type:varchar(20);not null"`
	Error       string        `gorm:"type:varchar(2000)"`
}

// TableName returns the database table name
func (MessageLog) TableName() string {
	return "message_logs"
}

// NewMessageLog creates a log entry for a send attempt
func NewMessageLog(leadID uuid.UUID, msgType MessageType, template string) *MessageLog {
	return &MessageLog{
		BaseEntity: shared.NewBaseEntity(),
		LeadID:     leadID,
		Type:       msgType,
		Template:   template,
		Status:     MessageStatusSent,
	}
}

// MarkSent records a successful handoff to the platform
func (m *MessageLog) MarkSent(waMessageID string) {
	m.Status = MessageStatusSent
	m.WAMessageID = waMessageID
}

// MarkFailed records a send failure
func (m *MessageLog) MarkFailed(errMsg string) {
	if len(errMsg) > MaxErrorMessageLength {
		errMsg = errMsg[:MaxErrorMessageLength]
	}
	m.Status = MessageStatusFailed
	m.Error = errMsg
}

// MarkOptedOut records that the send was suppressed by an opt-out
func (m *MessageLog) MarkOptedOut() {
	m.Status = MessageStatusOptedOut
}

// MessageLogRepository persists outbound message logs
type MessageLogRepository interface {
	Save(ctx context.Context, log *MessageLog) error
	FindByWAMessageID(ctx context.Context, waMessageID string) (*MessageLog, error)
	FindByLead(ctx context.Context, leadID uuid.UUID) ([]MessageLog, error)
	UpdateStatus(ctx context.Context, waMessageID string, status MessageStatus) error
}
