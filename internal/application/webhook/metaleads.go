package webhook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	leadapp "github.com/nexus/backend/internal/application/lead"
	"github.com/nexus/backend/internal/domain/shared"
)

// LeadSubmission is the form data of one Lead Ads submission fetched from
// the Graph API. The webhook itself only carries the leadgen ID.
type LeadSubmission struct {
	FullName string
	Phone    string
	Email    string
	FormID   string
	AdID     string
}

// LeadFetcher retrieves the full form data behind a leadgen ID
type LeadFetcher interface {
	FetchLeadForm(ctx context.Context, leadgenID string) (*LeadSubmission, error)
}

// MetaLeadsReconciler turns Lead Ads submissions into captured leads
// through the normal capture path, so the usual fan-out jobs fire
type MetaLeadsReconciler struct {
	fetcher LeadFetcher
	leads   *leadapp.Service
	logger  *zap.Logger
}

// NewMetaLeadsReconciler creates a reconciler for Lead Ads webhooks
func NewMetaLeadsReconciler(fetcher LeadFetcher, leads *leadapp.Service, logger *zap.Logger) *MetaLeadsReconciler {
	return &MetaLeadsReconciler{
		fetcher: fetcher,
		leads:   leads,
		logger:  logger,
	}
}

// HandleLeadgen fetches the submission behind a leadgen ID and captures
// it as a lead. Meta webhooks come from a trusted server channel, so
// captcha and IP limits do not apply; the submission implies consent per
// the Lead Ads terms shown on the form. Duplicate deliveries and repeat
// phones short-circuit on the dedup guard.
func (r *MetaLeadsReconciler) HandleLeadgen(ctx context.Context, leadgenID string) error {
	if leadgenID == "" {
		return nil
	}

	submission, err := r.fetcher.FetchLeadForm(ctx, leadgenID)
	if err != nil {
		return err
	}

	l, err := r.leads.CaptureFromPlatform(ctx, leadapp.CaptureInput{
		Name:        submission.FullName,
		Phone:       submission.Phone,
		Email:       submission.Email,
		Source:      "meta-ads",
		UTMSource:   "facebook",
		UTMMedium:   "lead-ad",
		UTMCampaign: submission.FormID,
		Consent:     true,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateSubmission) {
			r.logger.Info("Duplicate lead ad submission skipped",
				zap.String("leadgen_id", leadgenID),
			)
			return nil
		}
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			// A malformed submission (bad phone, empty name) will never
			// capture; retrying the webhook cannot fix it
			r.logger.Warn("Rejected lead ad submission",
				zap.String("leadgen_id", leadgenID),
				zap.String("code", domainErr.Code),
			)
			return nil
		}
		return err
	}

	r.logger.Info("Captured lead from lead ad",
		zap.String("leadgen_id", leadgenID),
		zap.String("lead_id", l.ID.String()),
	)
	return nil
}
