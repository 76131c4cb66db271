package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
)

func TestFeeHandler_SetRates_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &FeeHandler{svc: nil}
	r.PUT("/fees/rates", handler.SetRates)

	req, _ := http.NewRequest("PUT", "/fees/rates", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFeeHandler_Initialize_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &FeeHandler{svc: nil}
	r.POST("/fees/initialize", handler.Initialize)

	body := strings.NewReader(`{"admin_id":"not-a-uuid","platform_wallet_id":"also-bad"}`)
	req, _ := http.NewRequest("POST", "/fees/initialize", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeHandler_Calculate_MissingKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &FeeHandler{svc: nil}
	r.POST("/fees/calculate", handler.Calculate)

	body := strings.NewReader(`{"amount":1000,"caller_id":"` + validUUID + `"}`)
	req, _ := http.NewRequest("POST", "/fees/calculate", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeHandler_AddPremiumUser_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &FeeHandler{svc: nil}
	r.POST("/fees/premium/:id", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		handler.AddPremiumUser(c)
	})

	req, _ := http.NewRequest("POST", "/fees/premium/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
