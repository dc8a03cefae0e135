package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
)

// maxResponseSize is the maximum allowed response size from the Cloud API (1MB)
const maxResponseSize = 1 * 1024 * 1024

// errCodeOptedOut is the Cloud API error for a recipient who told
// WhatsApp to stop messages from this business
const errCodeOptedOut = 131026

// Template names pre-approved in Meta Business Manager
const (
	TemplateWelcome   = "lead_welcome"
	TemplateBrochure  = "brochure_share"
	TemplateFollowup  = "lead_followup"
	TemplateSiteVisit = "site_visit_confirm"
	TemplateWin       = "booking_congrats"
)

// Sender implements integration.TemplateSender against the WhatsApp
// Business Cloud API. Every message is a pre-approved template; free-form
// messages are not allowed outside the 24h customer service window.
type Sender struct {
	config     *Config
	httpClient *http.Client
}

// NewSender creates a WhatsApp Cloud API sender
func NewSender(config *Config) (*Sender, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Platform returns the platform code this sender handles
func (s *Sender) Platform() integration.Platform {
	return integration.PlatformWhatsApp
}

// Configured reports whether the credential set is complete
func (s *Sender) Configured() bool {
	return s.config.Configured()
}

// SendTemplate delivers the named template to the lead's phone and returns
// the WhatsApp message ID. A recipient-level block surfaces as
// integration.ErrRecipientOptedOut so callers can stop messaging the lead.
func (s *Sender) SendTemplate(ctx context.Context, l *lead.Lead, template string) (string, error) {
	req := sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               l.Phone,
		Type:             "template",
		Template: templatePayload{
			Name:       template,
			Language:   language{Code: s.config.TemplateLang},
			Components: s.componentsFor(template, l),
		},
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.BaseURL+"/"+s.config.PhoneNumberID+"/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("whatsapp: failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.config.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("whatsapp: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", s.apiErrorFor(resp.StatusCode, body)
	}

	var sent sendResponse
	if err := json.Unmarshal(body, &sent); err != nil {
		return "", fmt.Errorf("%w: failed to parse send response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(sent.Messages) == 0 {
		return "", fmt.Errorf("%w: send response missing message id", integration.ErrPlatformInvalidResponse)
	}
	return sent.Messages[0].ID, nil
}

// componentsFor builds the body parameters each template was approved with
func (s *Sender) componentsFor(template string, l *lead.Lead) []component {
	firstName := firstName(l.Name)

	var params []parameter
	switch template {
	case TemplateWelcome:
		params = textParams(firstName, orDefault(l.Project, "your chosen property"))
	case TemplateBrochure:
		params = textParams(firstName, orDefault(l.Project, "the property"), s.config.BrochureURL)
	case TemplateFollowup:
		params = textParams(firstName, orDefault(l.Project, "the property"), "our team")
	case TemplateSiteVisit:
		params = textParams(firstName, orDefault(l.Project, "the property"))
	case TemplateWin:
		params = textParams(firstName, orDefault(l.Project, "your new home"))
	default:
		return nil
	}

	return []component{{Type: "body", Parameters: params}}
}

// apiErrorFor maps a Cloud API failure to the matching platform sentinel
func (s *Sender) apiErrorFor(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error.Code == errCodeOptedOut {
			return fmt.Errorf("%w: %s", integration.ErrRecipientOptedOut, errResp.Error.Message)
		}
		if errResp.Error.Message != "" {
			return s.sentinelFor(statusCode, errResp.Error.Message)
		}
	}
	return s.sentinelFor(statusCode, http.StatusText(statusCode))
}

func (s *Sender) sentinelFor(statusCode int, message string) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformAuthFailed, statusCode, message)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", integration.ErrPlatformRateLimited, message)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformUnavailable, statusCode, message)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformRequestFailed, statusCode, message)
	}
}

// ParseStatusUpdates extracts message status changes from a delivery
// webhook body. The webhook batches entries; every status of every change
// is returned in order.
func ParseStatusUpdates(body []byte) ([]StatusUpdate, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("whatsapp: failed to parse webhook payload: %w", err)
	}

	var updates []StatusUpdate
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				update := StatusUpdate{
					WAMessageID: status.ID,
					Status:      status.Status,
					Phone:       status.RecipientID,
				}
				if len(status.Errors) > 0 {
					update.ErrorCode = status.Errors[0].Code
				}
				updates = append(updates, update)
			}
		}
	}
	return updates, nil
}

// IsOptOutError reports whether a webhook status error means the
// recipient blocked this business
func IsOptOutError(code int) bool {
	return code == errCodeOptedOut
}

// firstName returns the leading token of a full name
func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func textParams(values ...string) []parameter {
	params := make([]parameter, 0, len(values))
	for _, v := range values {
		params = append(params, parameter{Type: "text", Text: v})
	}
	return params
}

// Ensure Sender implements the messaging port
var _ integration.TemplateSender = (*Sender)(nil)
