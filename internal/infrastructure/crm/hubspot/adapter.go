package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
)

// maxResponseSize is the maximum allowed response size from the HubSpot API (5MB)
const maxResponseSize = 5 * 1024 * 1024

// stageMap maps local pipeline stages to HubSpot deal stage IDs.
// These are the default sales pipeline stage IDs; override in HubSpot
// settings if the portal uses a custom pipeline.
var stageMap = map[lead.LeadStatus]string{
	lead.StatusNew:         "appointmentscheduled",
	lead.StatusContacted:   "qualifiedtobuy",
	lead.StatusSiteVisit:   "presentationscheduled",
	lead.StatusNegotiation: "decisionmakerboughtin",
	lead.StatusClosedWon:   "closedwon",
	lead.StatusClosedLost:  "closedlost",
}

// dealAmounts maps budget buckets to deal amounts in INR. Unknown buckets
// create the deal with no amount, matching leads that skipped the budget
// question.
var dealAmounts = map[string]int64{
	"₹50L – ₹1 Cr":  7_500_000,
	"₹1 Cr – ₹2 Cr":  15_000_000,
	"₹2 Cr – ₹5 Cr":  35_000_000,
	"₹5 Cr – ₹10 Cr": 75_000_000,
}

// Adapter implements integration.PlatformAdapter for the HubSpot CRM.
// Contacts are keyed by phone; each pushed lead also gets a deal in the
// configured pipeline, and the deal ID is the platform-side external ID.
type Adapter struct {
	config     *Config
	httpClient *http.Client
}

// NewAdapter creates a HubSpot adapter. Every local pipeline stage must
// have a deal stage mapping; an incomplete map is a programming error
// caught here rather than at sync time.
func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	for _, status := range lead.AllStatuses {
		if _, ok := stageMap[status]; !ok {
			return nil, fmt.Errorf("hubspot: no deal stage mapping for status %q", status)
		}
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Platform returns the platform code this adapter handles
func (a *Adapter) Platform() integration.Platform {
	return integration.PlatformHubSpot
}

// Configured reports whether a private-app token is present
func (a *Adapter) Configured() bool {
	return a.config.AccessToken != ""
}

// ---------------------------------------------------------------------------
// Contact Operations
// ---------------------------------------------------------------------------

// FindByPhone searches for an existing contact by phone number and returns
// its object ID, or an empty string when no contact matches
func (a *Adapter) FindByPhone(ctx context.Context, phone string) (string, error) {
	req := searchRequest{
		FilterGroups: []filterGroup{{
			Filters: []filter{{PropertyName: "phone", Operator: "EQ", Value: phone}},
		}},
		Properties: []string{"hs_object_id", "phone", "email"},
		Limit:      1,
	}

	body, err := a.doRequest(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", req)
	if err != nil {
		return "", err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse search response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].ID, nil
}

// CreateOrUpdate pushes the lead to HubSpot: the contact is upserted by
// phone and a deal is created in the configured pipeline. The returned
// external ID is the deal ID, which stage updates patch later.
func (a *Adapter) CreateOrUpdate(ctx context.Context, l *lead.Lead) (string, error) {
	contactID, err := a.upsertContact(ctx, l)
	if err != nil {
		return "", err
	}
	return a.createDeal(ctx, l, contactID)
}

// upsertContact creates the contact or patches the one matching the phone
func (a *Adapter) upsertContact(ctx context.Context, l *lead.Lead) (string, error) {
	existingID, err := a.FindByPhone(ctx, l.Phone)
	if err != nil {
		return "", err
	}

	firstName, lastName := splitName(l.Name)
	leadStatus := "IN_PROGRESS"
	if l.Status == lead.StatusNew {
		leadStatus = "NEW"
	}
	props := map[string]string{
		"firstname":          firstName,
		"lastname":           lastName,
		"phone":              l.Phone,
		"email":              l.Email,
		"hs_lead_status":     leadStatus,
		"property_interest":  l.Project,
		"budget_range":       l.BudgetBucket,
		"lead_score":         strconv.Itoa(l.Score),
		"lead_source_detail": l.Source,
		"utm_source":         l.UTMSource,
		"utm_medium":         l.UTMMedium,
		"utm_campaign":       l.UTMCampaign,
	}

	if existingID != "" {
		_, err := a.doRequest(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+existingID, objectRequest{Properties: props})
		if err != nil {
			return "", err
		}
		return existingID, nil
	}

	body, err := a.doRequest(ctx, http.MethodPost, "/crm/v3/objects/contacts", objectRequest{Properties: props})
	if err != nil {
		return "", err
	}
	var resp objectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse contact response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return resp.ID, nil
}

// ---------------------------------------------------------------------------
// Deal Operations
// ---------------------------------------------------------------------------

// createDeal creates a deal associated to the contact and returns its ID
func (a *Adapter) createDeal(ctx context.Context, l *lead.Lead, contactID string) (string, error) {
	dealName := l.Name + " — Property Enquiry"
	if l.Project != "" {
		dealName = l.Name + " — " + l.Project
	}

	props := map[string]string{
		"dealname":  dealName,
		"dealstage": stageMap[l.Status],
		"pipeline":  a.config.PipelineID,
	}
	if amount, ok := dealAmounts[l.BudgetBucket]; ok {
		props["amount"] = decimal.NewFromInt(amount).String()
	}

	req := objectRequest{
		Properties: props,
		Associations: []association{{
			To: associationTarget{ID: contactID},
			// 3 is the HubSpot-defined deal-to-contact association
			Types: []associationType{{AssociationCategory: "HUBSPOT_DEFINED", AssociationTypeID: 3}},
		}},
	}

	body, err := a.doRequest(ctx, http.MethodPost, "/crm/v3/objects/deals", req)
	if err != nil {
		return "", err
	}
	var resp objectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse deal response: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return resp.ID, nil
}

// UpdateStage patches the deal to the stage mapped from the new lead status
func (a *Adapter) UpdateStage(ctx context.Context, externalID string, status lead.LeadStatus) error {
	stage, ok := stageMap[status]
	if !ok {
		return fmt.Errorf("hubspot: no deal stage mapping for status %q", status)
	}
	_, err := a.doRequest(ctx, http.MethodPatch, "/crm/v3/objects/deals/"+externalID, objectRequest{
		Properties: map[string]string{"dealstage": stage},
	})
	return err
}

// StatusForStage reverse-maps a HubSpot deal stage to the local pipeline
// status. Webhook reconciliation ignores stages with no mapping.
func StatusForStage(stage string) (lead.LeadStatus, bool) {
	for status, s := range stageMap {
		if s == stage {
			return status, true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated JSON request against the HubSpot API
func (a *Adapter) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("hubspot: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("hubspot: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("hubspot: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, a.apiErrorFor(resp.StatusCode, body)
	}
	return body, nil
}

// apiErrorFor maps an HTTP failure to the matching platform sentinel
func (a *Adapter) apiErrorFor(statusCode int, body []byte) error {
	var apiErr apiError
	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
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

// splitName splits a full name into HubSpot first and last name fields
func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// Ensure Adapter implements the platform port
var _ integration.PlatformAdapter = (*Adapter)(nil)
