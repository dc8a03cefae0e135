package webhook

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	leadapp "github.com/nexus/backend/internal/application/lead"
	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
)

// StageResolver maps a platform-side pipeline stage back to a local lead
// status. Stages with no mapping are ignored.
type StageResolver func(stage string) (lead.LeadStatus, bool)

// DealStageChange is one stage movement reported by a CRM webhook
type DealStageChange struct {
	ObjectID int64
	Stage    string
}

// HubSpotReconciler applies deal stage changes made inside HubSpot back to
// the local pipeline. The lead is found through the sync ledger by the
// deal's object ID; the status change then runs through the normal write
// path, so the usual fan-out jobs fire.
type HubSpotReconciler struct {
	records integration.SyncRecordRepository
	leads   *leadapp.Service
	resolve StageResolver
	logger  *zap.Logger
}

// NewHubSpotReconciler creates a reconciler using the given reverse map
func NewHubSpotReconciler(
	records integration.SyncRecordRepository,
	leads *leadapp.Service,
	resolve StageResolver,
	logger *zap.Logger,
) *HubSpotReconciler {
	return &HubSpotReconciler{
		records: records,
		leads:   leads,
		resolve: resolve,
		logger:  logger,
	}
}

// Apply processes the stage changes of one webhook delivery. Unknown
// stages and deals with no local sync record are logged and skipped, not
// failed: HubSpot retries failed deliveries and these will never succeed.
// Duplicate deliveries are harmless because a same-status change is a
// no-op in the aggregate.
func (r *HubSpotReconciler) Apply(ctx context.Context, changes []DealStageChange) error {
	for _, change := range changes {
		if err := r.applyOne(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (r *HubSpotReconciler) applyOne(ctx context.Context, change DealStageChange) error {
	status, ok := r.resolve(change.Stage)
	if !ok {
		r.logger.Debug("Ignoring unmapped deal stage",
			zap.Int64("object_id", change.ObjectID),
			zap.String("stage", change.Stage),
		)
		return nil
	}

	externalID := strconv.FormatInt(change.ObjectID, 10)
	record, err := r.records.FindByExternalID(ctx, integration.PlatformHubSpot, externalID)
	if err != nil {
		if errors.Is(err, integration.ErrSyncRecordNotFound) {
			r.logger.Warn("Webhook for unknown deal",
				zap.String("external_id", externalID),
				zap.String("stage", change.Stage),
			)
			return nil
		}
		return err
	}

	if _, err := r.leads.ChangeStatus(ctx, record.LeadID, status); err != nil {
		return err
	}

	r.logger.Info("Applied CRM stage change",
		zap.String("lead_id", record.LeadID.String()),
		zap.String("status", string(status)),
	)
	return nil
}
