package handler

import (
	leadapp "github.com/nexus/backend/internal/application/lead"
	"github.com/nexus/backend/internal/domain/lead"
	"github.com/nexus/backend/internal/domain/shared"
	"github.com/nexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadHandler handles lead capture and pipeline API endpoints
type LeadHandler struct {
	BaseHandler
	leads *leadapp.Service
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(leads *leadapp.Service) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// Capture handles the public lead form submission
func (h *LeadHandler) Capture(c *gin.Context) {
	var req CaptureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input := leadapp.CaptureInput{
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Source:       req.Source,
		Project:      req.Project,
		BudgetBucket: req.BudgetBucket,
		UTMSource:    req.UTMSource,
		UTMMedium:    req.UTMMedium,
		UTMCampaign:  req.UTMCampaign,
		City:         req.City,
		PageURL:      req.PageURL,
		Notes:        req.Notes,
		Consent:      req.Consent,
		CaptchaToken: req.CaptchaToken,
		RemoteIP:     c.ClientIP(),
	}

	captured, err := h.leads.Capture(c.Request.Context(), input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toLeadResponse(captured))
}

// ChangeStatus moves a lead to another pipeline stage
func (h *LeadHandler) ChangeStatus(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	var req ChangeLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	status := lead.LeadStatus(req.Status)
	if !status.IsValid() {
		h.ErrorWithCode(c, dto.ErrCodeValidation, "Unknown lead status: "+req.Status)
		return
	}

	updated, err := h.leads.ChangeStatus(c.Request.Context(), id, status)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toLeadResponse(updated))
}

// Get returns a single lead
func (h *LeadHandler) Get(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	found, err := h.leads.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toLeadResponse(found))
}

// List returns a filtered page of leads
func (h *LeadHandler) List(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Search:   req.Search,
		Filters:  map[string]interface{}{},
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}
	if req.Source != "" {
		filter.Filters["source"] = req.Source
	}

	page, err := h.leads.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toLeadResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// SyncStatus returns the per-platform ledger entries for a lead
func (h *LeadHandler) SyncStatus(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	records, err := h.leads.SyncStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toSyncRecordResponses(records))
}

// Erase removes a lead's personal data and its sync ledger
func (h *LeadHandler) Erase(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	if err := h.leads.Erase(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

func (h *LeadHandler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lead ID")
		return uuid.Nil, false
	}
	return id, true
}
