package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// DisputeHandler обслуживает реестр арбитража.
type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// Initialize POST /disputes/initialize
// Назначает арбитра реестра; выполняется один раз.
func (h *DisputeHandler) Initialize(c *gin.Context) {
	var req struct {
		ArbitratorID string `json:"arbitrator_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	arbitratorID, err := uuid.Parse(req.ArbitratorID)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.Initialize(c.Request.Context(), arbitratorID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"arbitrator_id": arbitratorID})
}

// OpenDispute POST /disputes
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	initiatorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		JobID  string `json:"job_id" binding:"required,uuid"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.Open(c.Request.Context(), jobID, initiatorID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

// GetDispute GET /disputes/:job_id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "job_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.Get(c.Request.Context(), jobID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// ResolveDispute POST /disputes/:job_id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "job_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Decision string `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.Resolve(c.Request.Context(), jobID, callerID, req.Decision)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// ListMyDisputes GET /disputes
func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.svc.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, disputes)
}
