package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// FeeHandler обслуживает движок комиссий.
type FeeHandler struct {
	svc *service.FeeService
}

func NewFeeHandler(s *service.FeeService) *FeeHandler {
	return &FeeHandler{svc: s}
}

// Initialize POST /fees/initialize
// Создаёт конфигурацию комиссий; выполняется один раз.
func (h *FeeHandler) Initialize(c *gin.Context) {
	var req struct {
		AdminID          string `json:"admin_id" binding:"required,uuid"`
		PlatformWalletID string `json:"platform_wallet_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	adminID, walletID, err := parsePair(req.AdminID, req.PlatformWalletID)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.Initialize(c.Request.Context(), adminID, walletID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"admin_id": adminID, "platform_wallet_id": walletID})
}

// GetConfig GET /fees/config
func (h *FeeHandler) GetConfig(c *gin.Context) {
	cfg, err := h.svc.GetConfig(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// SetRates PUT /fees/rates
func (h *FeeHandler) SetRates(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		EscrowFeeBP     *int64 `json:"escrow_fee_bp" binding:"required"`
		DisputeFeeBP    *int64 `json:"dispute_fee_bp" binding:"required"`
		ArbitratorFeeBP *int64 `json:"arbitrator_fee_bp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	cfg, err := h.svc.SetRates(c.Request.Context(), callerID, *req.EscrowFeeBP, *req.DisputeFeeBP, *req.ArbitratorFeeBP)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// AddPremiumUser POST /fees/premium/:id
func (h *FeeHandler) AddPremiumUser(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.AddPremiumUser(c.Request.Context(), callerID, userID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": userID})
}

// RemovePremiumUser DELETE /fees/premium/:id
func (h *FeeHandler) RemovePremiumUser(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.RemovePremiumUser(c.Request.Context(), callerID, userID); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Calculate POST /fees/calculate
// Чистый расчёт без изменения состояния: вызывающий видит, как именно
// получилась комиссия.
func (h *FeeHandler) Calculate(c *gin.Context) {
	var req struct {
		Amount   int64  `json:"amount" binding:"required"`
		CallerID string `json:"caller_id" binding:"required,uuid"`
		Kind     string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	breakdown, err := h.svc.Calculate(c.Request.Context(), req.Amount, callerID, req.Kind)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// Withdraw POST /fees/withdraw
func (h *FeeHandler) Withdraw(c *gin.Context) {
	callerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	remaining, err := h.svc.Withdraw(c.Request.Context(), callerID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawn": req.Amount, "remaining": remaining})
}

// History GET /fees/history
func (h *FeeHandler) History(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	records, err := h.svc.History(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Stats GET /fees/stats
func (h *FeeHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
