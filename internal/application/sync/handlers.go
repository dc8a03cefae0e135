package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
	"github.com/nexus/backend/internal/domain/shared"
	"github.com/nexus/backend/internal/infrastructure/queue"
)

// OptOutStore tracks phone numbers that asked to stop receiving messages
type OptOutStore interface {
	IsOptedOut(ctx context.Context, phone string) (bool, error)
	MarkOptedOut(ctx context.Context, phone string) error
}

// RetryPolicy carries the per-job-class retry and timeout settings
type RetryPolicy struct {
	MessagingBase        time.Duration
	CRMBase              time.Duration
	MessagingMaxAttempts int
	CRMMaxAttempts       int
	Timeout              time.Duration
	ConvertTimeout       time.Duration
}

// DefaultRetryPolicy returns the standard retry schedule: messaging jobs
// retry twice on a 30s base, CRM and attribution jobs three times on a
// 60s base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MessagingBase:        30 * time.Second,
		CRMBase:              60 * time.Second,
		MessagingMaxAttempts: 2,
		CRMMaxAttempts:       3,
		Timeout:              10 * time.Second,
		ConvertTimeout:       15 * time.Second,
	}
}

// HandlerSet implements every sync job. Each handler reloads the lead,
// talks to one platform through its port, and records the result in the
// sync ledger so repeated executions stay idempotent.
type HandlerSet struct {
	leads       lead.Repository
	records     integration.SyncRecordRepository
	messages    integration.MessageLogRepository
	optOuts     OptOutStore
	hubspot     integration.PlatformAdapter
	zoho        integration.PlatformAdapter
	messenger   integration.TemplateSender
	conversions integration.ConversionSender
	logger      *zap.Logger
}

// NewHandlerSet creates the job handlers for all platforms
func NewHandlerSet(
	leads lead.Repository,
	records integration.SyncRecordRepository,
	messages integration.MessageLogRepository,
	optOuts OptOutStore,
	hubspot integration.PlatformAdapter,
	zoho integration.PlatformAdapter,
	messenger integration.TemplateSender,
	conversions integration.ConversionSender,
	logger *zap.Logger,
) *HandlerSet {
	return &HandlerSet{
		leads:       leads,
		records:     records,
		messages:    messages,
		optOuts:     optOuts,
		hubspot:     hubspot,
		zoho:        zoho,
		messenger:   messenger,
		conversions: conversions,
		logger:      logger,
	}
}

// Register wires every job name to its handler with the retry settings of
// its job class
func (h *HandlerSet) Register(registry *queue.Registry, policy RetryPolicy) {
	crm := func(handler queue.HandlerFunc, timeout time.Duration) queue.HandlerSpec {
		return queue.HandlerSpec{
			Handler:     handler,
			MaxAttempts: policy.CRMMaxAttempts,
			BackoffBase: policy.CRMBase,
			Timeout:     timeout,
		}
	}
	messaging := func(handler queue.HandlerFunc) queue.HandlerSpec {
		return queue.HandlerSpec{
			Handler:     handler,
			MaxAttempts: policy.MessagingMaxAttempts,
			BackoffBase: policy.MessagingBase,
			Timeout:     policy.Timeout,
		}
	}

	registry.Register(JobHubSpotPush, crm(h.crmSync(h.hubspot), policy.Timeout))
	registry.Register(JobHubSpotUpdateStage, crm(h.crmSync(h.hubspot), policy.Timeout))
	registry.Register(JobZohoPush, crm(h.crmSync(h.zoho), policy.ConvertTimeout))
	registry.Register(JobZohoUpdateStage, crm(h.crmSync(h.zoho), policy.ConvertTimeout))

	registry.Register(JobWhatsAppWelcome, messaging(h.sendMessage(integration.MessageTypeWelcome)))
	registry.Register(JobWhatsAppBrochure, messaging(h.sendMessage(integration.MessageTypeBrochure)))
	registry.Register(JobWhatsAppFollowup, messaging(h.sendMessage(integration.MessageTypeFollowup)))
	registry.Register(JobWhatsAppSiteVisit, messaging(h.sendMessage(integration.MessageTypeSiteVisit)))
	registry.Register(JobWhatsAppWin, messaging(h.sendMessage(integration.MessageTypeWin)))

	registry.Register(JobMetaLead, crm(h.conversion(func(ctx context.Context, l *lead.Lead, args Args) error {
		return h.conversions.SendLeadEvent(ctx, l)
	}), policy.Timeout))
	registry.Register(JobMetaSchedule, crm(h.conversion(func(ctx context.Context, l *lead.Lead, args Args) error {
		return h.conversions.SendScheduleEvent(ctx, l)
	}), policy.Timeout))
	registry.Register(JobMetaPurchase, crm(h.conversion(func(ctx context.Context, l *lead.Lead, args Args) error {
		return h.conversions.SendPurchaseEvent(ctx, l, args.Revenue)
	}), policy.Timeout))
}

// ---------------------------------------------------------------------------
// CRM jobs
// ---------------------------------------------------------------------------

// crmSync serves both push and stage-update jobs. The ledger's external
// ID decides the action: unset means the lead has no platform-side record
// yet and one is created; set means the record exists and only its stage
// moves. Redelivered push jobs therefore never mint a second remote record.
func (h *HandlerSet) crmSync(adapter integration.PlatformAdapter) queue.HandlerFunc {
	return func(ctx context.Context, job *queue.Job) integration.Outcome {
		args, err := DecodeArgs(job)
		if err != nil {
			return integration.Terminal(err)
		}
		if !adapter.Configured() {
			h.markSkipped(ctx, args.LeadID, adapter.Platform(), "platform not configured")
			return integration.Skip("platform not configured")
		}

		l, outcome, ok := h.loadLead(ctx, args.LeadID)
		if !ok {
			return outcome
		}

		record, err := h.records.GetOrCreate(ctx, args.LeadID, adapter.Platform())
		if err != nil {
			return integration.Retry(err)
		}

		if record.ExternalID == "" {
			externalID, err := adapter.CreateOrUpdate(ctx, l)
			if err != nil {
				record.MarkFailed(err.Error())
				h.saveRecord(ctx, record)
				return classify(err)
			}
			record.MarkSuccess(externalID)
			if err := h.records.Save(ctx, record); err != nil {
				return integration.Retry(err)
			}
			return integration.Success(externalID)
		}

		if err := adapter.UpdateStage(ctx, record.ExternalID, l.Status); err != nil {
			record.MarkFailed(err.Error())
			h.saveRecord(ctx, record)
			return classify(err)
		}

		record.MarkSuccess("")
		if err := h.records.Save(ctx, record); err != nil {
			return integration.Retry(err)
		}
		return integration.Success(record.ExternalID)
	}
}

// ---------------------------------------------------------------------------
// Messaging jobs
// ---------------------------------------------------------------------------

func (h *HandlerSet) sendMessage(msgType integration.MessageType) queue.HandlerFunc {
	return func(ctx context.Context, job *queue.Job) integration.Outcome {
		args, err := DecodeArgs(job)
		if err != nil {
			return integration.Terminal(err)
		}
		if !h.messenger.Configured() {
			h.markSkipped(ctx, args.LeadID, h.messenger.Platform(), "platform not configured")
			return integration.Skip("platform not configured")
		}

		l, outcome, ok := h.loadLead(ctx, args.LeadID)
		if !ok {
			return outcome
		}

		// The followup only goes to leads nobody has contacted yet
		if msgType == integration.MessageTypeFollowup && l.Status != lead.StatusNew {
			return integration.Skip("lead no longer new")
		}

		if h.isOptedOut(ctx, l) {
			log := integration.NewMessageLog(l.ID, msgType, templateForMessage[msgType])
			log.MarkOptedOut()
			h.saveMessage(ctx, log)
			return integration.Skip("recipient opted out")
		}

		record, err := h.records.GetOrCreate(ctx, args.LeadID, h.messenger.Platform())
		if err != nil {
			return integration.Retry(err)
		}

		log := integration.NewMessageLog(l.ID, msgType, templateForMessage[msgType])
		waMessageID, err := h.messenger.SendTemplate(ctx, l, log.Template)
		if err != nil {
			if errors.Is(err, integration.ErrRecipientOptedOut) {
				h.recordOptOut(ctx, l)
				log.MarkOptedOut()
				h.saveMessage(ctx, log)
				record.MarkSkipped("recipient opted out")
				h.saveRecord(ctx, record)
				return integration.Skip("recipient opted out")
			}
			log.MarkFailed(err.Error())
			h.saveMessage(ctx, log)
			record.MarkFailed(err.Error())
			h.saveRecord(ctx, record)
			return classify(err)
		}

		log.MarkSent(waMessageID)
		h.saveMessage(ctx, log)
		record.MarkSuccess("")
		if err := h.records.Save(ctx, record); err != nil {
			return integration.Retry(err)
		}
		return integration.Success(waMessageID)
	}
}

// ---------------------------------------------------------------------------
// Attribution jobs
// ---------------------------------------------------------------------------

func (h *HandlerSet) conversion(send func(ctx context.Context, l *lead.Lead, args Args) error) queue.HandlerFunc {
	return func(ctx context.Context, job *queue.Job) integration.Outcome {
		args, err := DecodeArgs(job)
		if err != nil {
			return integration.Terminal(err)
		}
		if !h.conversions.Configured() {
			h.markSkipped(ctx, args.LeadID, h.conversions.Platform(), "platform not configured")
			return integration.Skip("platform not configured")
		}

		l, outcome, ok := h.loadLead(ctx, args.LeadID)
		if !ok {
			return outcome
		}

		record, err := h.records.GetOrCreate(ctx, args.LeadID, h.conversions.Platform())
		if err != nil {
			return integration.Retry(err)
		}

		if err := send(ctx, l, args); err != nil {
			record.MarkFailed(err.Error())
			h.saveRecord(ctx, record)
			return classify(err)
		}

		record.MarkSuccess("")
		if err := h.records.Save(ctx, record); err != nil {
			return integration.Retry(err)
		}
		return integration.Success("")
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// classify turns an adapter error into a worker outcome. Remote failures
// are worth retrying within the job class budget; only a vanished local
// record is beyond saving.
func classify(err error) integration.Outcome {
	if errors.Is(err, shared.ErrNotFound) {
		return integration.Terminal(err)
	}
	return integration.Retry(err)
}

func (h *HandlerSet) loadLead(ctx context.Context, id uuid.UUID) (*lead.Lead, integration.Outcome, bool) {
	l, err := h.leads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, integration.Terminal(err), false
		}
		return nil, integration.Retry(err), false
	}
	if l.Erased {
		return nil, integration.Skip("lead erased"), false
	}
	return l, integration.Outcome{}, true
}

func (h *HandlerSet) isOptedOut(ctx context.Context, l *lead.Lead) bool {
	if l.OptedOut {
		return true
	}
	if h.optOuts == nil {
		return false
	}
	opted, err := h.optOuts.IsOptedOut(ctx, l.Phone)
	if err != nil {
		h.logger.Warn("Opt-out lookup failed", zap.Error(err))
		return false
	}
	return opted
}

func (h *HandlerSet) recordOptOut(ctx context.Context, l *lead.Lead) {
	l.MarkOptedOut()
	if err := h.leads.Save(ctx, l); err != nil {
		h.logger.Error("Failed to persist opt-out",
			zap.String("lead_id", l.ID.String()),
			zap.Error(err),
		)
	}
	if h.optOuts != nil {
		if err := h.optOuts.MarkOptedOut(ctx, l.Phone); err != nil {
			h.logger.Warn("Failed to cache opt-out", zap.Error(err))
		}
	}
}

func (h *HandlerSet) markSkipped(ctx context.Context, leadID uuid.UUID, platform integration.Platform, reason string) {
	record, err := h.records.GetOrCreate(ctx, leadID, platform)
	if err != nil {
		h.logger.Warn("Failed to load sync record for skip",
			zap.String("lead_id", leadID.String()),
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
		return
	}
	record.MarkSkipped(reason)
	h.saveRecord(ctx, record)
}

func (h *HandlerSet) saveRecord(ctx context.Context, record *integration.SyncRecord) {
	if err := h.records.Save(ctx, record); err != nil {
		h.logger.Error("Failed to save sync record",
			zap.String("lead_id", record.LeadID.String()),
			zap.String("platform", string(record.Platform)),
			zap.Error(err),
		)
	}
}

func (h *HandlerSet) saveMessage(ctx context.Context, log *integration.MessageLog) {
	if err := h.messages.Save(ctx, log); err != nil {
		h.logger.Error("Failed to save message log",
			zap.String("lead_id", log.LeadID.String()),
			zap.Error(err),
		)
	}
}
