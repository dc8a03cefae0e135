package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nexus/backend/internal/application/webhook"
	"github.com/nexus/backend/internal/domain/integration"
)

// leadgenResponse is the Graph API shape of a retrieved lead form
type leadgenResponse struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"created_time"`
	AdID        string         `json:"ad_id"`
	FormID      string         `json:"form_id"`
	FieldData   []leadgenField `json:"field_data"`
}

type leadgenField struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// FetchLeadForm retrieves the full form data behind a Lead Ads leadgen ID.
// The webhook only delivers the ID; names, phone, and email live behind
// this Graph API call.
func (s *Sender) FetchLeadForm(ctx context.Context, leadgenID string) (*webhook.LeadSubmission, error) {
	query := url.Values{}
	query.Set("access_token", s.config.AccessToken)
	query.Set("fields", "field_data,created_time,ad_id,form_id")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.config.BaseURL+"/"+leadgenID+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("meta: failed to create leadgen request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("meta: failed to read leadgen response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, s.apiErrorFor(resp.StatusCode, body)
	}

	var form leadgenResponse
	if err := json.Unmarshal(body, &form); err != nil {
		return nil, fmt.Errorf("%w: failed to parse leadgen response: %v", integration.ErrPlatformInvalidResponse, err)
	}

	submission := &webhook.LeadSubmission{
		FormID: form.FormID,
		AdID:   form.AdID,
	}
	for _, field := range form.FieldData {
		if len(field.Values) == 0 {
			continue
		}
		switch field.Name {
		case "full_name":
			submission.FullName = field.Values[0]
		case "phone_number":
			submission.Phone = field.Values[0]
		case "email":
			submission.Email = field.Values[0]
		}
	}
	return submission, nil
}

// leadgenWebhook mirrors the Lead Ads webhook envelope
type leadgenWebhook struct {
	Entry []leadgenEntry `json:"entry"`
}

type leadgenEntry struct {
	Changes []leadgenChange `json:"changes"`
}

type leadgenChange struct {
	Field string       `json:"field"`
	Value leadgenValue `json:"value"`
}

type leadgenValue struct {
	LeadgenID string `json:"leadgen_id"`
	FormID    string `json:"form_id"`
	PageID    string `json:"page_id"`
}

// ParseLeadgenIDs extracts the leadgen IDs from a Lead Ads webhook body.
// Entries for other subscription fields are ignored.
func ParseLeadgenIDs(body []byte) ([]string, error) {
	var payload leadgenWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("meta: failed to parse webhook payload: %w", err)
	}

	var ids []string
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field == "leadgen" && change.Value.LeadgenID != "" {
				ids = append(ids, change.Value.LeadgenID)
			}
		}
	}
	return ids, nil
}

// Ensure Sender implements the lead fetch port
var _ webhook.LeadFetcher = (*Sender)(nil)
