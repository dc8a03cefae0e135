package lead

import "github.com/nexus/backend/internal/domain/shared"

// Detect compares two snapshots of a lead and returns the domain event that
// describes what happened between them, or nil when nothing changed.
//
// A nil previous snapshot means the lead was just captured. Snapshots with
// the same status produce no event, which makes reconciliation from external
// webhooks idempotent.
func Detect(previous, current *Lead) shared.DomainEvent {
	if current == nil {
		return nil
	}
	if previous == nil {
		return NewLeadCapturedEvent(current)
	}
	if previous.Status == current.Status {
		return nil
	}
	return NewLeadStatusChangedEvent(current, previous.Status)
}
