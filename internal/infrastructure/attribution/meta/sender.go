package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
)

// maxResponseSize is the maximum allowed response size from the Graph API (1MB)
const maxResponseSize = 1 * 1024 * 1024

// event is one Conversions API event
type event struct {
	EventName      string                 `json:"event_name"`
	EventTime      int64                  `json:"event_time"`
	EventID        string                 `json:"event_id"`
	ActionSource   string                 `json:"action_source"`
	EventSourceURL string                 `json:"event_source_url,omitempty"`
	UserData       map[string][]string    `json:"user_data"`
	CustomData     map[string]interface{} `json:"custom_data,omitempty"`
}

// eventRequest is the body of POST /{pixel-id}/events
type eventRequest struct {
	Data          []event `json:"data"`
	AccessToken   string  `json:"access_token"`
	TestEventCode string  `json:"test_event_code,omitempty"`
}

// eventResponse reports how many events the API accepted
type eventResponse struct {
	EventsReceived int `json:"events_received"`
}

// errorResponse is the Graph API error envelope
type errorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Sender implements integration.ConversionSender against the Meta
// Conversions API. Events close the attribution loop from ad click to
// captured lead to closed deal; each carries a deterministic event_id so
// replays and browser pixel duplicates deduplicate on Meta's side.
type Sender struct {
	config     *Config
	httpClient *http.Client

	// now is swappable for deterministic event_time in tests
	now func() time.Time
}

// NewSender creates a Conversions API sender
func NewSender(config *Config) (*Sender, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		now: time.Now,
	}, nil
}

// Platform returns the platform code this sender handles
func (s *Sender) Platform() integration.Platform {
	return integration.PlatformMeta
}

// Configured reports whether the credential set is complete
func (s *Sender) Configured() bool {
	return s.config.Configured()
}

// SendLeadEvent reports a captured lead so Meta learns which ad clicks
// turn into form submissions
func (s *Sender) SendLeadEvent(ctx context.Context, l *lead.Lead) error {
	sourceURL := l.PageURL
	if sourceURL == "" {
		sourceURL = "https://www.nexusrealty.in"
	}

	return s.send(ctx, event{
		EventName:      "Lead",
		EventTime:      s.now().Unix(),
		EventID:        "lead_" + l.ID.String(),
		ActionSource:   "website",
		EventSourceURL: sourceURL,
		UserData:       buildUserData(l),
		CustomData: map[string]interface{}{
			"lead_id":           l.ID.String(),
			"property_interest": l.Project,
			"lead_source":       l.Source,
			"budget":            l.BudgetBucket,
		},
	})
}

// SendScheduleEvent reports a booked site visit, a high-intent action
// worth optimising ad delivery for
func (s *Sender) SendScheduleEvent(ctx context.Context, l *lead.Lead) error {
	return s.send(ctx, event{
		EventName:    "Schedule",
		EventTime:    s.now().Unix(),
		EventID:      "schedule_" + l.ID.String(),
		ActionSource: "crm",
		UserData:     buildUserData(l),
		CustomData: map[string]interface{}{
			"content_name":     orDefault(l.Project, "Property"),
			"content_category": "Site Visit",
			"lead_id":          l.ID.String(),
		},
	})
}

// SendPurchaseEvent reports a closed deal with its value in INR, the
// event Meta Ads Manager uses for ROAS
func (s *Sender) SendPurchaseEvent(ctx context.Context, l *lead.Lead, revenue int64) error {
	return s.send(ctx, event{
		EventName:    "Purchase",
		EventTime:    s.now().Unix(),
		EventID:      "purchase_" + l.ID.String(),
		ActionSource: "crm",
		UserData:     buildUserData(l),
		CustomData: map[string]interface{}{
			"currency":         "INR",
			"value":            revenue,
			"content_name":     orDefault(l.Project, "Property"),
			"content_category": "Real Estate",
			"lead_id":          l.ID.String(),
			"order_id":         "deal_" + l.ID.String(),
		},
	})
}

// send posts one event to the pixel's events endpoint
func (s *Sender) send(ctx context.Context, e event) error {
	req := eventRequest{
		Data:          []event{e},
		AccessToken:   s.config.AccessToken,
		TestEventCode: s.config.TestEventCode,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("meta: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.BaseURL+"/"+s.config.PixelID+"/events", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("meta: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("meta: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return s.apiErrorFor(resp.StatusCode, body)
	}

	var result eventResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("%w: failed to parse events response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if result.EventsReceived == 0 {
		return fmt.Errorf("%w: no events received", integration.ErrPlatformRequestFailed)
	}
	return nil
}

// apiErrorFor maps a Graph API failure to the matching platform sentinel
func (s *Sender) apiErrorFor(statusCode int, body []byte) error {
	var errResp errorResponse
	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

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

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Ensure Sender implements the attribution port
var _ integration.ConversionSender = (*Sender)(nil)
