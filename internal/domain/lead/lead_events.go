package lead

import (
	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
)

// AggregateTypeLead is the aggregate type name used in events
const AggregateTypeLead = "Lead"

// Event types for the lead aggregate
const (
	EventTypeLeadCaptured      = "lead.captured"
	EventTypeLeadStatusChanged = "lead.status_changed"
)

// LeadCapturedEvent is raised when a new lead enters the pipeline
type LeadCapturedEvent struct {
	shared.BaseDomainEvent
	LeadID       uuid.UUID  `json:"lead_id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	Status       LeadStatus `json:"status"`
	Source       string     `json:"source,omitempty"`
	Project      string     `json:"project,omitempty"`
	BudgetBucket string     `json:"budget_bucket,omitempty"`
	UTMSource    string     `json:"utm_source,omitempty"`
	UTMMedium    string     `json:"utm_medium,omitempty"`
	UTMCampaign  string     `json:"utm_campaign,omitempty"`
	Score        int        `json:"score"`
}

// NewLeadCapturedEvent creates a LeadCapturedEvent from a lead
func NewLeadCapturedEvent(l *Lead) *LeadCapturedEvent {
	return &LeadCapturedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadCaptured, AggregateTypeLead, l.ID),
		LeadID:          l.ID,
		Name:            l.Name,
		Phone:           l.Phone,
		Email:           l.Email,
		Status:          l.Status,
		Source:          l.Source,
		Project:         l.Project,
		BudgetBucket:    l.BudgetBucket,
		UTMSource:       l.UTMSource,
		UTMMedium:       l.UTMMedium,
		UTMCampaign:     l.UTMCampaign,
		Score:           l.Score,
	}
}

// LeadStatusChangedEvent is raised when a lead moves to a new pipeline stage
type LeadStatusChangedEvent struct {
	shared.BaseDomainEvent
	LeadID         uuid.UUID  `json:"lead_id"`
	PreviousStatus LeadStatus `json:"previous_status"`
	NewStatus      LeadStatus `json:"new_status"`
	BudgetBucket   string     `json:"budget_bucket,omitempty"`
}

// NewLeadStatusChangedEvent creates a LeadStatusChangedEvent from a lead
// and the stage it moved away from
func NewLeadStatusChangedEvent(l *Lead, previous LeadStatus) *LeadStatusChangedEvent {
	return &LeadStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadStatusChanged, AggregateTypeLead, l.ID),
		LeadID:          l.ID,
		PreviousStatus:  previous,
		NewStatus:       l.Status,
		BudgetBucket:    l.BudgetBucket,
	}
}
