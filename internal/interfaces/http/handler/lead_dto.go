package handler

import (
	"time"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
)

// CaptureLeadRequest represents a public lead form submission
type CaptureLeadRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=200"`
	Phone        string `json:"phone" binding:"required,min=4,max=20"`
	Email        string `json:"email" binding:"omitempty,email,max=254"`
	Source       string `json:"source" binding:"max=100"`
	Project      string `json:"project" binding:"max=200"`
	BudgetBucket string `json:"budget_bucket" binding:"max=50"`
	UTMSource    string `json:"utm_source" binding:"max=100"`
	UTMMedium    string `json:"utm_medium" binding:"max=100"`
	UTMCampaign  string `json:"utm_campaign" binding:"max=200"`
	City         string `json:"city" binding:"max=100"`
	PageURL      string `json:"page_url" binding:"max=500"`
	Notes        string `json:"notes" binding:"max=2000"`
	Consent      bool   `json:"consent"`
	CaptchaToken string `json:"captcha_token"`
}

// ChangeLeadStatusRequest represents an admin status transition
type ChangeLeadStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// LeadResponse is the API projection of a lead
type LeadResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	Status       string     `json:"status"`
	Source       string     `json:"source,omitempty"`
	Project      string     `json:"project,omitempty"`
	BudgetBucket string     `json:"budget_bucket,omitempty"`
	UTMSource    string     `json:"utm_source,omitempty"`
	UTMMedium    string     `json:"utm_medium,omitempty"`
	UTMCampaign  string     `json:"utm_campaign,omitempty"`
	City         string     `json:"city,omitempty"`
	PageURL      string     `json:"page_url,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Score        int        `json:"score"`
	Consent      bool       `json:"consent"`
	ConsentAt    *time.Time `json:"consent_at,omitempty"`
	OptedOut     bool       `json:"opted_out"`
	Erased       bool       `json:"erased"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SyncRecordResponse is the API projection of one ledger entry
type SyncRecordResponse struct {
	Platform     string     `json:"platform"`
	ExternalID   string     `json:"external_id,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SyncCount    int        `json:"sync_count"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

func toLeadResponse(l *lead.Lead) LeadResponse {
	return LeadResponse{
		ID:           l.ID.String(),
		Name:         l.Name,
		Phone:        l.Phone,
		Email:        l.Email,
		Status:       string(l.Status),
		Source:       l.Source,
		Project:      l.Project,
		BudgetBucket: l.BudgetBucket,
		UTMSource:    l.UTMSource,
		UTMMedium:    l.UTMMedium,
		UTMCampaign:  l.UTMCampaign,
		City:         l.City,
		PageURL:      l.PageURL,
		Notes:        l.Notes,
		Score:        l.Score,
		Consent:      l.Consent,
		ConsentAt:    l.ConsentAt,
		OptedOut:     l.OptedOut,
		Erased:       l.Erased,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func toLeadResponses(leads []lead.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for i := range leads {
		out = append(out, toLeadResponse(&leads[i]))
	}
	return out
}

func toSyncRecordResponses(records []integration.SyncRecord) []SyncRecordResponse {
	out := make([]SyncRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, SyncRecordResponse{
			Platform:     string(r.Platform),
			ExternalID:   r.ExternalID,
			Status:       string(r.Status),
			ErrorMessage: r.ErrorMessage,
			SyncCount:    r.SyncCount,
			LastSyncedAt: r.LastSyncedAt,
		})
	}
	return out
}
