package webhook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	leadapp "github.com/nexus/backend/internal/application/lead"
	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/shared"
)

// optOutErrorCode is the Cloud API error for a recipient who blocked
// messages from this business
const optOutErrorCode = 131026

// MessageStatusUpdate is one delivery state change from a WhatsApp webhook
type MessageStatusUpdate struct {
	WAMessageID string
	Status      string
	Phone       string
	ErrorCode   int
}

// WhatsAppReconciler applies delivery receipts to the message log and
// turns recipient blocks into lead opt-outs
type WhatsAppReconciler struct {
	messages integration.MessageLogRepository
	leads    *leadapp.Service
	optOuts  OptOutCache
	logger   *zap.Logger
}

// OptOutCache mirrors opt-outs into the fast-path store the send handlers
// consult before every message
type OptOutCache interface {
	MarkOptedOut(ctx context.Context, phone string) error
}

// NewWhatsAppReconciler creates a reconciler. The opt-out cache may be nil.
func NewWhatsAppReconciler(
	messages integration.MessageLogRepository,
	leads *leadapp.Service,
	optOuts OptOutCache,
	logger *zap.Logger,
) *WhatsAppReconciler {
	return &WhatsAppReconciler{
		messages: messages,
		leads:    leads,
		optOuts:  optOuts,
		logger:   logger,
	}
}

// Apply processes the status updates of one webhook delivery. Updates for
// unknown message IDs are skipped; WhatsApp delivers receipts for
// messages sent outside this system too.
func (r *WhatsAppReconciler) Apply(ctx context.Context, updates []MessageStatusUpdate) error {
	for _, update := range updates {
		if err := r.applyOne(ctx, update); err != nil {
			return err
		}
	}
	return nil
}

func (r *WhatsAppReconciler) applyOne(ctx context.Context, update MessageStatusUpdate) error {
	status, ok := messageStatus(update)
	if !ok {
		r.logger.Debug("Ignoring unknown message status",
			zap.String("wa_message_id", update.WAMessageID),
			zap.String("status", update.Status),
		)
		return nil
	}

	if err := r.messages.UpdateStatus(ctx, update.WAMessageID, status); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.logger.Debug("Receipt for unknown message",
				zap.String("wa_message_id", update.WAMessageID),
			)
			return nil
		}
		return err
	}

	if update.ErrorCode == optOutErrorCode {
		return r.markOptedOut(ctx, update.Phone)
	}
	return nil
}

// markOptedOut flags the lead and the fast-path cache after a block
func (r *WhatsAppReconciler) markOptedOut(ctx context.Context, phone string) error {
	if phone == "" {
		return nil
	}
	if err := r.leads.MarkOptedOutByPhone(ctx, phone); err != nil {
		return err
	}
	if r.optOuts != nil {
		if err := r.optOuts.MarkOptedOut(ctx, phone); err != nil {
			r.logger.Warn("Failed to cache opt-out", zap.Error(err))
		}
	}
	r.logger.Info("Recipient opted out via delivery webhook", zap.String("phone", phone))
	return nil
}

// messageStatus maps a webhook status string to the log's state machine.
// A failed delivery caused by a block is recorded as opted_out.
func messageStatus(update MessageStatusUpdate) (integration.MessageStatus, bool) {
	if update.ErrorCode == optOutErrorCode {
		return integration.MessageStatusOptedOut, true
	}
	switch update.Status {
	case "sent":
		return integration.MessageStatusSent, true
	case "delivered":
		return integration.MessageStatusDelivered, true
	case "read":
		return integration.MessageStatusRead, true
	case "failed":
		return integration.MessageStatusFailed, true
	default:
		return "", false
	}
}
