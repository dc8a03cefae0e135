package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
	"github.com/nexus/backend/internal/domain/shared"
)

// CaptchaVerifier validates a captcha token for a submission. A nil error
// means the submission may proceed; the failure policy on verifier outage
// lives in the implementation.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// RateLimiter bounds submissions per key within a time window
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// DedupGuard suppresses repeat submissions of the same key within a TTL
type DedupGuard interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// CaptureInput carries one lead form submission
type CaptureInput struct {
	Name         string
	Phone        string
	Email        string
	Source       string
	Project      string
	BudgetBucket string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
	City         string
	PageURL      string
	Notes        string
	Consent      bool
	CaptchaToken string
	RemoteIP     string
}

// Service is the lead write path. Every state change goes through the
// aggregate so the transition events land in the outbox atomically with
// the row.
type Service struct {
	leads   lead.Repository
	records integration.SyncRecordRepository
	captcha CaptchaVerifier
	limiter RateLimiter
	dedup   DedupGuard
	logger  *zap.Logger
}

// NewService creates the lead service. Captcha, rate limiter, and dedup
// guard may be nil; a nil guard simply does not run.
func NewService(
	leads lead.Repository,
	records integration.SyncRecordRepository,
	captcha CaptchaVerifier,
	limiter RateLimiter,
	dedup DedupGuard,
	logger *zap.Logger,
) *Service {
	return &Service{
		leads:   leads,
		records: records,
		captcha: captcha,
		limiter: limiter,
		dedup:   dedup,
		logger:  logger,
	}
}

// Capture validates a public form submission, runs the abuse guards, and
// persists the lead. The captured event is written to the outbox in the
// same transaction; integration failures never reach the caller.
func (s *Service) Capture(ctx context.Context, input CaptureInput) (*lead.Lead, error) {
	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, input.CaptchaToken, input.RemoteIP); err != nil {
			return nil, shared.NewDomainError("CAPTCHA_FAILED", "Captcha verification failed")
		}
	}

	if s.limiter != nil && input.RemoteIP != "" {
		allowed, err := s.limiter.Allow(ctx, input.RemoteIP)
		if err != nil {
			s.logger.Warn("Rate limiter unavailable, allowing submission", zap.Error(err))
		} else if !allowed {
			return nil, shared.ErrRateLimited
		}
	}

	return s.capture(ctx, input)
}

// CaptureFromPlatform persists a lead arriving through a trusted server
// channel such as a lead ads webhook. Captcha and IP limits do not apply;
// phone dedup still does.
func (s *Service) CaptureFromPlatform(ctx context.Context, input CaptureInput) (*lead.Lead, error) {
	return s.capture(ctx, input)
}

func (s *Service) capture(ctx context.Context, input CaptureInput) (*lead.Lead, error) {
	phone, err := lead.NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}

	if s.dedup != nil {
		first, err := s.dedup.FirstSeen(ctx, phone)
		if err != nil {
			s.logger.Warn("Dedup guard unavailable, allowing submission", zap.Error(err))
		} else if !first {
			return nil, shared.ErrDuplicateSubmission
		}
	}

	l, err := lead.NewLead(lead.NewLeadInput{
		Name:         input.Name,
		Phone:        phone,
		Email:        input.Email,
		Source:       input.Source,
		Project:      input.Project,
		BudgetBucket: input.BudgetBucket,
		UTMSource:    input.UTMSource,
		UTMMedium:    input.UTMMedium,
		UTMCampaign:  input.UTMCampaign,
		City:         input.City,
		PageURL:      input.PageURL,
		Notes:        input.Notes,
		Consent:      input.Consent,
	})
	if err != nil {
		return nil, err
	}

	if err := s.leads.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}

	s.logger.Info("Lead captured",
		zap.String("lead_id", l.ID.String()),
		zap.String("source", l.Source),
	)
	return l, nil
}

// ChangeStatus moves a lead to a new pipeline stage. Setting the current
// stage again is a no-op and emits nothing, which makes webhook-driven
// updates safe to replay.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status lead.LeadStatus) (*lead.Lead, error) {
	l, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := l.ChangeStatus(status); err != nil {
		return nil, err
	}
	if len(l.GetDomainEvents()) == 0 {
		return l, nil
	}

	if err := s.leads.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}

	s.logger.Info("Lead status changed",
		zap.String("lead_id", l.ID.String()),
		zap.String("status", string(status)),
	)
	return l, nil
}

// Get returns one lead by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	return s.leads.FindByID(ctx, id)
}

// List returns leads matching the filter with a total count
func (s *Service) List(ctx context.Context, filter shared.Filter) (shared.Paginated[lead.Lead], error) {
	leads, err := s.leads.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[lead.Lead]{}, err
	}
	total, err := s.leads.Count(ctx, filter)
	if err != nil {
		return shared.Paginated[lead.Lead]{}, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = len(leads)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	return shared.NewPaginated(leads, total, page, pageSize), nil
}

// SyncStatus returns the per-platform ledger entries for a lead
func (s *Service) SyncStatus(ctx context.Context, id uuid.UUID) ([]integration.SyncRecord, error) {
	if _, err := s.leads.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.records.FindByLead(ctx, id)
}

// Erase anonymises a lead's PII and drops its sync ledger entries. The
// pipeline row itself stays for reporting.
func (s *Service) Erase(ctx context.Context, id uuid.UUID) error {
	l, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if l.Erased {
		return nil
	}

	l.ErasePII()
	if err := s.leads.Save(ctx, l); err != nil {
		return fmt.Errorf("save erased lead: %w", err)
	}
	if err := s.records.DeleteByLead(ctx, id); err != nil {
		return fmt.Errorf("delete sync records: %w", err)
	}

	s.logger.Info("Lead PII erased", zap.String("lead_id", id.String()))
	return nil
}

// MarkOptedOutByPhone flags the lead behind a phone number as opted out.
// Unknown numbers are ignored.
func (s *Service) MarkOptedOutByPhone(ctx context.Context, phone string) error {
	l, err := s.leads.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if l.OptedOut {
		return nil
	}
	l.MarkOptedOut()
	return s.leads.Save(ctx, l)
}
