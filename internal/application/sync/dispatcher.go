package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/lead"
	"github.com/nexus/backend/internal/domain/shared"
	"github.com/nexus/backend/internal/infrastructure/queue"
)

// DispatcherConfig holds the relative delays of the capture messaging
// sequence
type DispatcherConfig struct {
	// BrochureDelay is how long after capture the brochure is sent
	BrochureDelay time.Duration

	// FollowupDelay is how long after capture the followup runs. The
	// followup job itself checks whether the lead is still new.
	FollowupDelay time.Duration
}

// DefaultDispatcherConfig returns the standard capture sequence timing
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BrochureDelay: 2 * time.Minute,
		FollowupDelay: 24 * time.Hour,
	}
}

// Dispatcher translates lead lifecycle events into per-platform sync jobs.
// It subscribes to the event bus and holds the full routing table: which
// jobs run on capture, which on each status change, and with what delay.
type Dispatcher struct {
	enqueuer queue.Enqueuer
	config   DispatcherConfig
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher enqueuing through the given queue
func NewDispatcher(enqueuer queue.Enqueuer, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		enqueuer: enqueuer,
		config:   config,
		logger:   logger,
	}
}

// EventTypes returns the event types this dispatcher subscribes to
func (d *Dispatcher) EventTypes() []string {
	return []string{
		lead.EventTypeLeadCaptured,
		lead.EventTypeLeadStatusChanged,
	}
}

// Handle routes one lead event to its sync jobs. Enqueue failures are
// collected so the bus can retry the event; already-enqueued jobs are
// idempotent at execution time.
func (d *Dispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *lead.LeadCapturedEvent:
		return d.dispatchCapture(ctx, e)
	case *lead.LeadStatusChangedEvent:
		return d.dispatchStatusChange(ctx, e)
	default:
		return nil
	}
}

// step is one routing table entry
type step struct {
	name  string
	args  Args
	delay time.Duration
}

func (d *Dispatcher) dispatchCapture(ctx context.Context, e *lead.LeadCapturedEvent) error {
	args := Args{LeadID: e.LeadID}

	plan := []step{
		{name: JobHubSpotPush, args: args},
		{name: JobZohoPush, args: args},
		{name: JobMetaLead, args: args},
		{name: JobWhatsAppWelcome, args: args},
		{name: JobWhatsAppBrochure, args: args, delay: d.config.BrochureDelay},
		{name: JobWhatsAppFollowup, args: args, delay: d.config.FollowupDelay},
	}

	errs := d.enqueueAll(ctx, plan)
	d.logger.Info("Dispatched capture sync jobs",
		zap.String("lead_id", e.LeadID.String()),
		zap.Int("jobs", len(plan)-len(errs)),
	)
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatchStatusChange(ctx context.Context, e *lead.LeadStatusChangedEvent) error {
	args := Args{LeadID: e.LeadID}

	plan := []step{
		{name: JobHubSpotUpdateStage, args: args},
		{name: JobZohoUpdateStage, args: args},
	}

	switch e.NewStatus {
	case lead.StatusSiteVisit:
		plan = append(plan,
			step{name: JobWhatsAppSiteVisit, args: args},
			step{name: JobMetaSchedule, args: args},
		)
	case lead.StatusClosedWon:
		plan = append(plan,
			step{name: JobWhatsAppWin, args: args},
			step{name: JobMetaPurchase, args: Args{
				LeadID:  e.LeadID,
				Revenue: EstimateRevenue(e.BudgetBucket),
			}},
		)
	}

	errs := d.enqueueAll(ctx, plan)
	d.logger.Info("Dispatched status change sync jobs",
		zap.String("lead_id", e.LeadID.String()),
		zap.String("previous", string(e.PreviousStatus)),
		zap.String("new", string(e.NewStatus)),
		zap.Int("jobs", len(plan)-len(errs)),
	)
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueueAll(ctx context.Context, plan []step) []error {
	var errs []error
	for _, s := range plan {
		if err := d.enqueuer.Enqueue(ctx, s.name, s.args, s.delay); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", s.name, err))
		}
	}
	return errs
}
