package handler

import (
	"errors"
	"time"

	syncapp "github.com/nexus/backend/internal/application/sync"
	"github.com/nexus/backend/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultDeadLetterLimit = 50

// DeadLetterHandler exposes the dead-letter store to operators
type DeadLetterHandler struct {
	BaseHandler
	deadLetters *syncapp.DeadLetterService
}

// NewDeadLetterHandler creates a new DeadLetterHandler
func NewDeadLetterHandler(deadLetters *syncapp.DeadLetterService) *DeadLetterHandler {
	return &DeadLetterHandler{deadLetters: deadLetters}
}

// DeadLetterListRequest bounds the unresolved entry listing
type DeadLetterListRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// DeadLetterResponse is the API projection of one dead letter
type DeadLetterResponse struct {
	ID           string     `json:"id"`
	LeadID       string     `json:"lead_id"`
	Platform     string     `json:"platform"`
	JobName      string     `json:"job_name"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`
	Resolved     bool       `json:"resolved"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// List returns unresolved dead letters, oldest first
func (h *DeadLetterHandler) List(c *gin.Context) {
	var req DeadLetterListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultDeadLetterLimit
	}

	entries, err := h.deadLetters.List(c.Request.Context(), req.Limit)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	unresolved, err := h.deadLetters.CountUnresolved(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toDeadLetterResponses(entries), unresolved, 1, req.Limit)
}

// Resolve re-enqueues a dead letter's job and marks the entry resolved
func (h *DeadLetterHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dead letter ID")
		return
	}

	if err := h.deadLetters.Resolve(c.Request.Context(), id); err != nil {
		if errors.Is(err, integration.ErrDeadLetterNotFound) {
			h.NotFound(c, "Dead letter entry not found")
			return
		}
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

func toDeadLetterResponses(entries []integration.DeadLetterEntry) []DeadLetterResponse {
	out := make([]DeadLetterResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, DeadLetterResponse{
			ID:           e.ID.String(),
			LeadID:       e.LeadID.String(),
			Platform:     string(e.Platform),
			JobName:      e.JobName,
			ErrorMessage: e.ErrorMessage,
			Attempts:     e.Attempts,
			Resolved:     e.Resolved,
			ResolvedAt:   e.ResolvedAt,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}
