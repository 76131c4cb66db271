package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

type EscrowHandler struct {
	svc *service.EscrowService
}

func NewEscrowHandler(s *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: s}
}

// CreateEscrow POST /escrows
// Плательщик — текущий пользователь.
func (h *EscrowHandler) CreateEscrow(c *gin.Context) {
	payerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		JobID   string `json:"job_id" binding:"required,uuid"`
		PayeeID string `json:"payee_id" binding:"required,uuid"`
		Amount  int64  `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	jobID, payeeID, err := parsePair(req.JobID, req.PayeeID)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.Init(c.Request.Context(), jobID, payerID, payeeID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, escrow)
}

// Deposit POST /escrows/:job_id/deposit
func (h *EscrowHandler) Deposit(c *gin.Context) {
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

	escrow, err := h.svc.Deposit(c.Request.Context(), jobID, callerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// Release POST /escrows/:job_id/release
func (h *EscrowHandler) Release(c *gin.Context) {
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

	escrow, breakdown, err := h.svc.Release(c.Request.Context(), jobID, callerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escrow": escrow, "fee": breakdown})
}

// RaiseDispute POST /escrows/:job_id/dispute
func (h *EscrowHandler) RaiseDispute(c *gin.Context) {
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

	escrow, err := h.svc.RaiseDispute(c.Request.Context(), jobID, callerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

// Resolve POST /escrows/:job_id/resolve
func (h *EscrowHandler) Resolve(c *gin.Context) {
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
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, settlement, err := h.svc.Resolve(c.Request.Context(), jobID, callerID, req.Outcome)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escrow": escrow, "settlement": settlement})
}

// GetState GET /escrows/:job_id
func (h *EscrowHandler) GetState(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "job_id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.GetState(c.Request.Context(), jobID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}
