package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/infrastructure/queue"
)

// SyncMetrics counts sync job outcomes and webhook deliveries. It plugs
// into the queue worker as its Metrics sink and into the webhook handlers
// for signature verification counts.
type SyncMetrics struct {
	jobsProcessed *Counter
	jobsRetried   *Counter
	jobsDead      *Counter
	webhooks      *Counter
}

// NewSyncMetrics creates the counters on the given meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	jobsProcessed, err := NewCounter(
		meter,
		"nexus_sync_jobs_processed_total",
		"Sync jobs processed by final outcome",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	jobsRetried, err := NewCounter(
		meter,
		"nexus_sync_jobs_retried_total",
		"Sync job attempts scheduled for retry",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	jobsDead, err := NewCounter(
		meter,
		"nexus_sync_jobs_dead_total",
		"Sync jobs moved to the dead letter store",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	webhooks, err := NewCounter(
		meter,
		"nexus_webhook_deliveries_total",
		"Webhook deliveries by platform and verification result",
		"{deliveries}",
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		jobsProcessed: jobsProcessed,
		jobsRetried:   jobsRetried,
		jobsDead:      jobsDead,
		webhooks:      webhooks,
	}, nil
}

// JobProcessed counts a finished job attempt by outcome
func (m *SyncMetrics) JobProcessed(ctx context.Context, name string, outcome integration.OutcomeCode) {
	m.jobsProcessed.Inc(ctx,
		AttrJob.String(name),
		AttrOutcome.String(string(outcome)),
	)
}

// JobRetried counts a job attempt scheduled for another try
func (m *SyncMetrics) JobRetried(ctx context.Context, name string) {
	m.jobsRetried.Inc(ctx, AttrJob.String(name))
}

// JobDead counts a job that exhausted its attempts
func (m *SyncMetrics) JobDead(ctx context.Context, name string) {
	m.jobsDead.Inc(ctx, AttrJob.String(name))
}

// WebhookVerified counts an accepted webhook delivery
func (m *SyncMetrics) WebhookVerified(ctx context.Context, platform string) {
	m.webhooks.Inc(ctx,
		AttrPlatform.String(platform),
		attribute.Bool("accepted", true),
	)
}

// WebhookRejected counts a delivery that failed signature verification
func (m *SyncMetrics) WebhookRejected(ctx context.Context, platform string) {
	m.webhooks.Inc(ctx,
		AttrPlatform.String(platform),
		attribute.Bool("accepted", false),
	)
}

var _ queue.Metrics = (*SyncMetrics)(nil)
