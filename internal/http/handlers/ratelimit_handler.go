package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// RateLimitHandler — административный доступ к доменному лимитеру.
type RateLimitHandler struct {
	svc *service.RateLimitService
}

func NewRateLimitHandler(s *service.RateLimitService) *RateLimitHandler {
	return &RateLimitHandler{svc: s}
}

// GetEntry GET /rate-limits/:caller_id/:kind
func (h *RateLimitHandler) GetEntry(c *gin.Context) {
	callerID, err := common.ParseUUIDParam(c, "caller_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	kind := c.Param("kind")

	entry, err := h.svc.Get(c.Request.Context(), callerID, kind)
	if err != nil {
		c.Error(err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"caller_id": callerID, "kind": kind, "current_calls": 0})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ResetEntry POST /rate-limits/:caller_id/:kind/reset
// Ручное снятие блокировки.
func (h *RateLimitHandler) ResetEntry(c *gin.Context) {
	callerID, err := common.ParseUUIDParam(c, "caller_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	kind := c.Param("kind")

	if err := h.svc.Reset(c.Request.Context(), callerID, kind); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetBypass GET /rate-limits/bypass/:caller_id
func (h *RateLimitHandler) GetBypass(c *gin.Context) {
	callerID, err := common.ParseUUIDParam(c, "caller_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	enabled, err := h.svc.GetBypass(c.Request.Context(), callerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"caller_id": callerID, "enabled": enabled})
}

// SetBypass PUT /rate-limits/bypass/:caller_id
func (h *RateLimitHandler) SetBypass(c *gin.Context) {
	callerID, err := common.ParseUUIDParam(c, "caller_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.SetBypass(c.Request.Context(), callerID, *req.Enabled); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"caller_id": callerID, "enabled": *req.Enabled})
}
