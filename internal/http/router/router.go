package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers"
	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
	feeHandler *handlers.FeeHandler,
	rateLimitHandler *handlers.RateLimitHandler,
	walletHandler *handlers.WalletHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Выдача токенов напрямую доступна только в development.
	if cfg.Env == "development" {
		api.POST("/auth/token", authHandler.IssueToken)
	}

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	// Внешний IP-лимит на изменяющие вызовы
	mutating := middleware.RateLimitMiddleware(cfg.HTTPRateLimit, cfg.HTTPRatePeriod)

	escrows := protected.Group("/escrows")
	{
		escrows.POST("", mutating, escrowHandler.CreateEscrow)
		escrows.GET("/:job_id", middleware.UUIDValidator("job_id"), escrowHandler.GetState)
		escrows.POST("/:job_id/deposit", middleware.UUIDValidator("job_id"), mutating, escrowHandler.Deposit)
		escrows.POST("/:job_id/release", middleware.UUIDValidator("job_id"), mutating, escrowHandler.Release)
		escrows.POST("/:job_id/dispute", middleware.UUIDValidator("job_id"), mutating, escrowHandler.RaiseDispute)
		escrows.POST("/:job_id/resolve", middleware.UUIDValidator("job_id"), escrowHandler.Resolve)
	}

	disputes := protected.Group("/disputes")
	{
		disputes.POST("", mutating, disputeHandler.OpenDispute)
		disputes.GET("", disputeHandler.ListMyDisputes)
		disputes.GET("/:job_id", middleware.UUIDValidator("job_id"), disputeHandler.GetDispute)
		disputes.POST("/:job_id/resolve", middleware.UUIDValidator("job_id"), disputeHandler.ResolveDispute)
		disputes.POST("/initialize", middleware.RequireRole(service.RoleAdmin), disputeHandler.Initialize)
	}

	fees := protected.Group("/fees")
	{
		fees.GET("/config", feeHandler.GetConfig)
		fees.GET("/history", feeHandler.History)
		fees.GET("/stats", feeHandler.Stats)
		fees.POST("/calculate", feeHandler.Calculate)
		fees.POST("/initialize", middleware.RequireRole(service.RoleAdmin), feeHandler.Initialize)
		fees.PUT("/rates", feeHandler.SetRates)
		fees.POST("/premium/:id", middleware.UUIDValidator("id"), feeHandler.AddPremiumUser)
		fees.DELETE("/premium/:id", middleware.UUIDValidator("id"), feeHandler.RemovePremiumUser)
		fees.POST("/withdraw", feeHandler.Withdraw)
	}

	// Административный доступ к доменному лимитеру
	rateLimits := protected.Group("/rate-limits")
	rateLimits.Use(middleware.RequireRole(service.RoleAdmin))
	{
		rateLimits.GET("/bypass/:caller_id", middleware.UUIDValidator("caller_id"), rateLimitHandler.GetBypass)
		rateLimits.PUT("/bypass/:caller_id", middleware.UUIDValidator("caller_id"), rateLimitHandler.SetBypass)
		rateLimits.GET("/:caller_id/:kind", middleware.UUIDValidator("caller_id"), rateLimitHandler.GetEntry)
		rateLimits.POST("/:caller_id/:kind/reset", middleware.UUIDValidator("caller_id"), rateLimitHandler.ResetEntry)
	}

	wallet := protected.Group("/wallet")
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.POST("/topup", mutating, walletHandler.TopUp)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	return r
}
