package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	webhookapp "github.com/nexus/backend/internal/application/webhook"
	"github.com/nexus/backend/internal/infrastructure/attribution/meta"
	"github.com/nexus/backend/internal/infrastructure/crm/hubspot"
	"github.com/nexus/backend/internal/infrastructure/messaging/whatsapp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookMetrics counts verified and rejected webhook deliveries
type WebhookMetrics interface {
	WebhookVerified(ctx context.Context, platform string)
	WebhookRejected(ctx context.Context, platform string)
}

// nopWebhookMetrics is used when telemetry is disabled
type nopWebhookMetrics struct{}

func (nopWebhookMetrics) WebhookVerified(context.Context, string) {}
func (nopWebhookMetrics) WebhookRejected(context.Context, string) {}

// WebhookSecrets holds the verification material for inbound webhooks
type WebhookSecrets struct {
	HubSpotSecret   string
	WhatsAppToken   string
	WhatsAppSecret  string
	MetaVerifyToken string
	MetaAppSecret   string
}

// WebhookHandler receives platform callbacks. Every POST is verified
// against its platform signature before the body is parsed; a missing or
// wrong signature is a 401 and the payload is never touched.
type WebhookHandler struct {
	BaseHandler
	hubspot   *webhookapp.HubSpotReconciler
	whatsapp  *webhookapp.WhatsAppReconciler
	metaLeads *webhookapp.MetaLeadsReconciler
	secrets   WebhookSecrets
	metrics   WebhookMetrics
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	hubspotRec *webhookapp.HubSpotReconciler,
	whatsappRec *webhookapp.WhatsAppReconciler,
	metaRec *webhookapp.MetaLeadsReconciler,
	secrets WebhookSecrets,
	metrics WebhookMetrics,
	logger *zap.Logger,
) *WebhookHandler {
	if metrics == nil {
		metrics = nopWebhookMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		hubspot:   hubspotRec,
		whatsapp:  whatsappRec,
		metaLeads: metaRec,
		secrets:   secrets,
		metrics:   metrics,
		logger:    logger,
	}
}

// HubSpot handles deal stage change notifications
func (h *WebhookHandler) HubSpot(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	if !hubspot.VerifySignature(h.secrets.HubSpotSecret, body, c.GetHeader("X-HubSpot-Signature-v3")) {
		h.reject(c, "hubspot", "signature mismatch")
		return
	}
	h.metrics.WebhookVerified(c.Request.Context(), "hubspot")

	var events []hubspot.WebhookEvent
	if err := json.Unmarshal(body, &events); err != nil {
		h.BadRequest(c, "Malformed webhook payload")
		return
	}

	var changes []webhookapp.DealStageChange
	for _, e := range events {
		if e.PropertyName != "dealstage" || e.PropertyValue == "" {
			continue
		}
		changes = append(changes, webhookapp.DealStageChange{
			ObjectID: e.ObjectID,
			Stage:    e.PropertyValue,
		})
	}

	if err := h.hubspot.Apply(c.Request.Context(), changes); err != nil {
		h.logger.Error("HubSpot webhook reconciliation failed", zap.Error(err))
		h.InternalError(c, "Webhook processing failed")
		return
	}

	h.Success(c, gin.H{"received": len(changes)})
}

// WhatsAppVerify answers the Cloud API subscription handshake
func (h *WebhookHandler) WhatsAppVerify(c *gin.Context) {
	h.handshake(c, "whatsapp", h.secrets.WhatsAppToken)
}

// WhatsApp handles message delivery status webhooks
func (h *WebhookHandler) WhatsApp(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	if !whatsapp.VerifySignature(h.secrets.WhatsAppSecret, body, c.GetHeader("X-Hub-Signature-256")) {
		h.reject(c, "whatsapp", "signature mismatch")
		return
	}
	h.metrics.WebhookVerified(c.Request.Context(), "whatsapp")

	statuses, err := whatsapp.ParseStatusUpdates(body)
	if err != nil {
		h.BadRequest(c, "Malformed webhook payload")
		return
	}

	updates := make([]webhookapp.MessageStatusUpdate, 0, len(statuses))
	for _, s := range statuses {
		updates = append(updates, webhookapp.MessageStatusUpdate{
			WAMessageID: s.WAMessageID,
			Status:      s.Status,
			Phone:       s.Phone,
			ErrorCode:   s.ErrorCode,
		})
	}

	if err := h.whatsapp.Apply(c.Request.Context(), updates); err != nil {
		h.logger.Error("WhatsApp webhook reconciliation failed", zap.Error(err))
		h.InternalError(c, "Webhook processing failed")
		return
	}

	h.Success(c, gin.H{"received": len(updates)})
}

// MetaLeadsVerify answers the Lead Ads subscription handshake
func (h *WebhookHandler) MetaLeadsVerify(c *gin.Context) {
	h.handshake(c, "meta", h.secrets.MetaVerifyToken)
}

// MetaLeads handles Lead Ads submission notifications
func (h *WebhookHandler) MetaLeads(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	if !whatsapp.VerifySignature(h.secrets.MetaAppSecret, body, c.GetHeader("X-Hub-Signature-256")) {
		h.reject(c, "meta", "signature mismatch")
		return
	}
	h.metrics.WebhookVerified(c.Request.Context(), "meta")

	ids, err := meta.ParseLeadgenIDs(body)
	if err != nil {
		h.BadRequest(c, "Malformed webhook payload")
		return
	}

	for _, id := range ids {
		if err := h.metaLeads.HandleLeadgen(c.Request.Context(), id); err != nil {
			h.logger.Error("Lead Ads webhook reconciliation failed",
				zap.String("leadgen_id", id),
				zap.Error(err))
			h.InternalError(c, "Webhook processing failed")
			return
		}
	}

	h.Success(c, gin.H{"received": len(ids)})
}

func (h *WebhookHandler) handshake(c *gin.Context, platform, verifyToken string) {
	challenge, ok := whatsapp.VerifyHandshake(
		verifyToken,
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if !ok {
		h.reject(c, platform, "handshake token mismatch")
		return
	}
	h.metrics.WebhookVerified(c.Request.Context(), platform)
	c.String(http.StatusOK, challenge)
}

func (h *WebhookHandler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) reject(c *gin.Context, platform, reason string) {
	h.metrics.WebhookRejected(c.Request.Context(), platform)
	h.logger.Warn("Webhook delivery rejected",
		zap.String("platform", platform),
		zap.String("reason", reason),
	)
	h.Forbidden(c, "Webhook verification failed")
}
