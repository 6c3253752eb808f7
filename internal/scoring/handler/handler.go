package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agency_portal_backend/internal/scoring/service"
	"agency_portal_backend/internal/scoring/transport"
	"agency_portal_backend/platform/httpkit"
	"agency_portal_backend/platform/validator"
)

// Handler handles HTTP requests for client performance scoring.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "invalid client ID"
)

// New creates a new scoring handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetPerformance returns the computed performance result for a client.
// GET /api/v1/clients/:id/performance
func (h *Handler) GetPerformance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Calculate(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Recompute computes and persists the client's performance score.
// POST /api/v1/clients/:id/performance/recompute
func (h *Handler) Recompute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	score, err := h.svc.UpdateScore(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RecomputeResponse{Score: score})
}

// GetHistory returns the client's score-history series.
// GET /api/v1/clients/:id/performance/history
func (h *Handler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var query transport.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	result, err := h.svc.History(c.Request.Context(), id, query.Days)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
