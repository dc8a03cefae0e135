package integration

import (
	"context"

	"github.com/nexus/backend/internal/domain/lead"
)

// ---------------------------------------------------------------------------
// Outcome
// ---------------------------------------------------------------------------

// OutcomeCode classifies the result of a sync attempt against a platform
type OutcomeCode string

const (
	// OutcomeSuccess indicates the platform accepted the operation
	OutcomeSuccess OutcomeCode = "SUCCESS"
	// OutcomeRetryable indicates a transient failure worth retrying
	OutcomeRetryable OutcomeCode = "RETRYABLE"
	// OutcomeTerminal indicates a failure retrying cannot fix
	OutcomeTerminal OutcomeCode = "TERMINAL"
	// OutcomeSkipped indicates the operation was not applicable
	OutcomeSkipped OutcomeCode = "SKIPPED"
)

// Outcome is the explicit result of one sync attempt. Job handlers return
// outcomes instead of raw errors so the worker can decide between retry,
// dead letter, and skip without inspecting error chains.
type Outcome struct {
	Code       OutcomeCode
	ExternalID string
	Reason     string
	Err        error
}

// Success builds a successful outcome carrying the platform-side ID
func Success(externalID string) Outcome {
	return Outcome{Code: OutcomeSuccess, ExternalID: externalID}
}

// Retry builds a retryable outcome from a transient error
func Retry(err error) Outcome {
	return Outcome{Code: OutcomeRetryable, Err: err}
}

// Terminal builds a non-retryable outcome from a permanent error
func Terminal(err error) Outcome {
	return Outcome{Code: OutcomeTerminal, Err: err}
}

// Skip builds a skipped outcome with a human-readable reason
func Skip(reason string) Outcome {
	return Outcome{Code: OutcomeSkipped, Reason: reason}
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// PlatformAdapter is the port CRM-style platforms implement. Adapters for
// platforms that are not configured report Configured() == false and are
// skipped at the job layer rather than treated as failures.
type PlatformAdapter interface {
	// Platform identifies which platform this adapter talks to
	Platform() Platform

	// Configured reports whether the adapter has working credentials
	Configured() bool

	// FindByPhone looks up an existing record by normalized phone and
	// returns its platform-side ID, or an empty string when none exists
	FindByPhone(ctx context.Context, phone string) (string, error)

	// CreateOrUpdate pushes the lead to the platform and returns the
	// platform-side ID of the created or updated record
	CreateOrUpdate(ctx context.Context, l *lead.Lead) (string, error)

	// UpdateStage moves the platform-side record to the stage that maps
	// to the given lead status
	UpdateStage(ctx context.Context, externalID string, status lead.LeadStatus) error
}

// TemplateSender is the port for template-based messaging platforms
type TemplateSender interface {
	// Platform identifies which platform this sender talks to
	Platform() Platform

	// Configured reports whether the sender has working credentials
	Configured() bool

	// SendTemplate delivers a pre-approved message template to the lead
	// and returns the platform-side message ID
	SendTemplate(ctx context.Context, l *lead.Lead, template string) (string, error)
}

// ConversionSender is the port for server-side attribution platforms
type ConversionSender interface {
	// Platform identifies which platform this sender talks to
	Platform() Platform

	// Configured reports whether the sender has working credentials
	Configured() bool

	// SendLeadEvent reports a lead capture conversion
	SendLeadEvent(ctx context.Context, l *lead.Lead) error

	// SendScheduleEvent reports a site visit scheduling conversion
	SendScheduleEvent(ctx context.Context, l *lead.Lead) error

	// SendPurchaseEvent reports a closed-won conversion with its value
	SendPurchaseEvent(ctx context.Context, l *lead.Lead, revenue int64) error
}
