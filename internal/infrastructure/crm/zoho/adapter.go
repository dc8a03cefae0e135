package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
)

// maxResponseSize is the maximum allowed response size from the Zoho API (5MB)
const maxResponseSize = 5 * 1024 * 1024

// statusMap maps local pipeline stages to Zoho Lead Status picklist values
var statusMap = map[lead.LeadStatus]string{
	lead.StatusNew:         "New",
	lead.StatusContacted:   "Contacted",
	lead.StatusSiteVisit:   "Site Visit Scheduled",
	lead.StatusNegotiation: "Negotiation",
	lead.StatusClosedWon:   "Converted",
	lead.StatusClosedLost:  "Not Contacted",
}

// sourceMap maps capture sources to Zoho Lead Source picklist values
var sourceMap = map[string]string{
	"google-ads":   "Google AdWords",
	"meta-ads":     "Facebook",
	"organic":      "Web Site",
	"referral":     "Partner",
	"campaign":     "Google AdWords",
	"microsite":    "Web Site",
	"exit-intent":  "Web Site",
	"scroll-popup": "Web Site",
	"whatsapp":     "Chat",
	"walk-in":      "Trade Show",
}

// Adapter implements integration.PlatformAdapter for Zoho CRM. Leads are
// keyed by phone in the Zoho Leads module; a closed-won stage update also
// converts the Zoho lead into a contact.
type Adapter struct {
	config     *Config
	tokens     *TokenSource
	httpClient *http.Client
}

// NewAdapter creates a Zoho adapter using the given token source
func NewAdapter(config *Config, tokens *TokenSource) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	for _, status := range lead.AllStatuses {
		if _, ok := statusMap[status]; !ok {
			return nil, fmt.Errorf("zoho: no status mapping for %q", status)
		}
	}

	return &Adapter{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			// Conversion is the slowest call; per-job contexts enforce the
			// tighter budget on everything else.
			Timeout: config.ConvertTimeout,
		},
	}, nil
}

// Platform returns the platform code this adapter handles
func (a *Adapter) Platform() integration.Platform {
	return integration.PlatformZoho
}

// Configured reports whether the OAuth credential set is complete
func (a *Adapter) Configured() bool {
	return a.config.Configured()
}

// ---------------------------------------------------------------------------
// Lead Operations
// ---------------------------------------------------------------------------

// FindByPhone searches the Zoho Leads module by phone and returns the
// record ID, or an empty string when nothing matches. Zoho answers an
// empty search with 204 No Content.
func (a *Adapter) FindByPhone(ctx context.Context, phone string) (string, error) {
	query := url.Values{}
	query.Set("criteria", fmt.Sprintf("Phone:equals:%s", phone))

	status, body, err := a.doRequest(ctx, http.MethodGet, "/crm/v2/Leads/search?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNoContent {
		return "", nil
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse search response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].ID, nil
}

// CreateOrUpdate pushes the lead into the Zoho Leads module, updating the
// record matching the phone when one exists. Returns the Zoho record ID.
func (a *Adapter) CreateOrUpdate(ctx context.Context, l *lead.Lead) (string, error) {
	existingID, err := a.FindByPhone(ctx, l.Phone)
	if err != nil {
		return "", err
	}

	payload := a.leadPayload(l)
	if existingID != "" {
		if err := a.writeRecord(ctx, http.MethodPut, "/crm/v2/Leads/"+existingID, payload); err != nil {
			return "", err
		}
		return existingID, nil
	}

	return a.createRecord(ctx, payload)
}

// UpdateStage moves the Zoho lead to the status mapped from the new local
// stage. Closed-won additionally converts the lead into a contact.
func (a *Adapter) UpdateStage(ctx context.Context, externalID string, status lead.LeadStatus) error {
	zohoStatus, ok := statusMap[status]
	if !ok {
		return fmt.Errorf("zoho: no status mapping for %q", status)
	}

	err := a.writeRecord(ctx, http.MethodPut, "/crm/v2/Leads/"+externalID, map[string]interface{}{
		"Lead_Status": zohoStatus,
	})
	if err != nil {
		return err
	}

	if status == lead.StatusClosedWon {
		return a.convert(ctx, externalID)
	}
	return nil
}

// convert turns a won Zoho lead into a contact and deal
func (a *Adapter) convert(ctx context.Context, externalID string) error {
	payload := recordEnvelope{Data: []map[string]interface{}{{
		"overwrite":               true,
		"notify_lead_owner":       true,
		"notify_new_entity_owner": true,
	}}}

	status, _, err := a.doRequest(ctx, http.MethodPost, "/crm/v2/Leads/"+externalID+"/actions/convert", payload)
	if err != nil {
		// A lead that was already converted answers 400; the stage update
		// above still landed, so a replayed job must not keep failing.
		if status == http.StatusBadRequest {
			return nil
		}
		return err
	}
	return nil
}

// leadPayload builds the Zoho field map for a lead
func (a *Adapter) leadPayload(l *lead.Lead) map[string]interface{} {
	firstName, lastName := splitName(l.Name)
	if lastName == "" {
		// Last_Name is the only mandatory Leads field in Zoho
		lastName = firstName
	}

	source, ok := sourceMap[l.Source]
	if !ok {
		source = "Web Site"
	}

	return map[string]interface{}{
		"First_Name":        firstName,
		"Last_Name":         lastName,
		"Phone":             l.Phone,
		"Email":             l.Email,
		"Lead_Status":       statusMap[l.Status],
		"Lead_Source":       source,
		"City":              l.City,
		"Description":       fmt.Sprintf("Property Interest: %s\nBudget: %s", orNA(l.Project), orNA(l.BudgetBucket)),
		"Property_Interest": l.Project,
		"Budget_Range":      l.BudgetBucket,
		"Lead_Score":        l.Score,
		"UTM_Source":        l.UTMSource,
		"UTM_Campaign":      l.UTMCampaign,
	}
}

// createRecord posts a new record and returns its ID
func (a *Adapter) createRecord(ctx context.Context, payload map[string]interface{}) (string, error) {
	_, body, err := a.doRequest(ctx, http.MethodPost, "/crm/v2/Leads", recordEnvelope{Data: []map[string]interface{}{payload}})
	if err != nil {
		return "", err
	}

	var resp writeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse create response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("%w: create response missing record data", integration.ErrPlatformInvalidResponse)
	}
	if resp.Data[0].Status == "error" {
		return "", fmt.Errorf("%w: %s - %s", integration.ErrPlatformRequestFailed, resp.Data[0].Code, resp.Data[0].Message)
	}
	if resp.Data[0].Details.ID == "" {
		return "", fmt.Errorf("%w: create response missing record id", integration.ErrPlatformInvalidResponse)
	}
	return resp.Data[0].Details.ID, nil
}

// writeRecord sends an update and checks the per-record status
func (a *Adapter) writeRecord(ctx context.Context, method, path string, payload map[string]interface{}) error {
	_, body, err := a.doRequest(ctx, method, path, recordEnvelope{Data: []map[string]interface{}{payload}})
	if err != nil {
		return err
	}

	var resp writeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: failed to parse write response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(resp.Data) > 0 && resp.Data[0].Status == "error" {
		return fmt.Errorf("%w: %s - %s", integration.ErrPlatformRequestFailed, resp.Data[0].Code, resp.Data[0].Message)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated request. A 401 forces one token
// refresh and a single replay before the failure propagates.
func (a *Adapter) doRequest(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	status, body, err := a.send(ctx, method, path, payload, token)
	if err != nil {
		return status, body, err
	}
	if status == http.StatusUnauthorized {
		token, err = a.tokens.Refresh(ctx)
		if err != nil {
			return status, nil, err
		}
		status, body, err = a.send(ctx, method, path, payload, token)
		if err != nil {
			return status, body, err
		}
	}

	if status >= 400 {
		return status, body, a.apiErrorFor(status, body)
	}
	return status, body, nil
}

// send performs one HTTP round trip with the given token
func (a *Adapter) send(ctx context.Context, method, path string, payload interface{}, token string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("zoho: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("zoho: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("zoho: failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// apiErrorFor maps an HTTP failure to the matching platform sentinel
func (a *Adapter) apiErrorFor(statusCode int, body []byte) error {
	var apiErr apiError
	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformAuthFailed, statusCode, message)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", integration.ErrPlatformRateLimited, message)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformUnavailable, statusCode, message)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformRequestFailed, statusCode, message)
	}
}

// splitName splits a full name into Zoho first and last name fields
func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Ensure Adapter implements the platform port
var _ integration.PlatformAdapter = (*Adapter)(nil)
