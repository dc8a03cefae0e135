package event

import (
	"github.com/nexus/backend/internal/domain/lead"
)

// RegisterAllEvents registers all domain event types with the serializer.
// This is required for the OutboxProcessor to deserialize events from the
// outbox table.
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(lead.EventTypeLeadCaptured, &lead.LeadCapturedEvent{})
	serializer.Register(lead.EventTypeLeadStatusChanged, &lead.LeadStatusChangedEvent{})
}
