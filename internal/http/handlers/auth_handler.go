package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// AuthHandler выпускает access токены. Идентичности приходят из внешней
// системы (маркетплейса); в development доступна выдача токена напрямую.
type AuthHandler struct {
	tokens *service.TokenManager
}

func NewAuthHandler(tokens *service.TokenManager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// IssueToken POST /auth/token
// Только для development: выпускает токен для указанной идентичности.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required,uuid"`
		Role   string `json:"role" binding:"required,oneof=client freelancer arbitrator admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	token, err := h.tokens.Issue(userID, req.Role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}
