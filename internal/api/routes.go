package api

import (
	"net/http"
	"time"

	"analyticaos/internal/invest"
	"analyticaos/internal/metrics"
	"analyticaos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds everything the handlers depend on
type Server struct {
	DB              *gorm.DB
	Redis           *redis.Client
	Invest          *invest.Service
	Reserver        invest.Reserver  // nil disables reserved accounts at sign-up
	Payer           invest.Disburser // nil disables withdrawals
	Monitor         Monitor
	MonitorInterval time.Duration
	JWTSecret       string
	WebhookSecret   string
	AuthLimiter     *middleware.RateLimiter // nil disables rate limiting
}

// Routes registers every endpoint on r
func (s *Server) Routes(r *gin.Engine) {
	r.Use(middleware.RequestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		if err := s.Redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "redis unavailable"})
			return
		}
		if sqlDB, err := s.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth routes
	auth := r.Group("/auth")
	if s.AuthLimiter != nil {
		auth.Use(s.AuthLimiter.Middleware())
	}
	auth.POST("/register", RegisterHandler(s.DB, s.Redis, s.Invest, s.Reserver)) // Registration endpoint
	auth.POST("/login", LoginHandler(s.DB, s.JWTSecret))                         // Login endpoint

	r.POST("/webhooks/payment", PaymentWebhookHandler(s.Redis, s.Invest, s.WebhookSecret))

	// Public catalog
	r.GET("/tokens", ListTokensHandler(s.DB, s.Redis))
	r.GET("/tokens/:symbol", GetTokenHandler(s.DB))
	r.GET("/search", SearchTokensHandler(s.DB, s.Redis))

	// Routes protected by JWT
	user := r.Group("")
	user.Use(middleware.JWTAuthMiddleware(s.JWTSecret))
	user.GET("/me", MeHandler(s.DB))
	user.GET("/wallet", GetWalletHandler(s.DB, s.Redis))
	user.POST("/wallet/reserved-account", ReserveAccountHandler(s.DB, s.Redis, s.Invest, s.Reserver))
	user.GET("/wallet/transactions", GetTransactionHistoryHandler(s.DB, s.Redis))
	user.POST("/wallet/withdraw", WithdrawHandler(s.Redis, s.Invest, s.Payer))
	user.POST("/tokens/:symbol/purchase", PurchaseHandler(s.Redis, s.Invest))
	user.GET("/holdings", HoldingsHandler(s.DB))
	user.GET("/portfolio", PortfolioHandler(s.Redis, s.Invest))
	user.GET("/watchlist", ListWatchlistHandler(s.DB))
	user.POST("/watchlist", AddWatchlistHandler(s.DB))
	user.DELETE("/watchlist/:symbol", RemoveWatchlistHandler(s.DB))
	user.GET("/notifications", ListNotificationsHandler(s.DB))
	user.GET("/notifications/unread-count", UnreadCountHandler(s.DB))
	user.POST("/notifications/read-all", MarkAllReadHandler(s.DB))
	user.POST("/notifications/:id/read", MarkReadHandler(s.DB))

	// Admin routes (protected, admin only)
	admin := r.Group("/admin")
	admin.Use(middleware.JWTAuthMiddleware(s.JWTSecret), middleware.AdminOnlyMiddleware(s.DB))
	admin.GET("/users", ListUsersHandler(s.DB, s.Redis))               // List users endpoint
	admin.DELETE("/users/:id", DeleteUserHandler(s.Redis, s.Invest))   // Delete user endpoint
	admin.GET("/transactions", ListTransactionsHandler(s.DB, s.Redis)) // List transactions endpoint
	admin.GET("/stats", StatsHandler(s.Invest))
	admin.POST("/tokens", CreateTokenHandler(s.DB, s.Redis))
	admin.PATCH("/tokens/:symbol", UpdateTokenHandler(s.DB, s.Redis))
	admin.POST("/tokens/sync", SyncTokensHandler(s.Redis, s.Monitor))
	admin.POST("/jobs/accrue", AccrueHandler(s.Redis, s.Invest))
	admin.POST("/jobs/repair-average-prices", RepairAveragePricesHandler(s.Redis, s.Invest))
	admin.POST("/jobs/reconcile-volumes", ReconcileVolumesHandler(s.Redis, s.Invest))
	admin.GET("/monitor", MonitorStatusHandler(s.Monitor))
	admin.POST("/monitor/start", StartMonitorHandler(s.Monitor, s.MonitorInterval))
	admin.POST("/monitor/stop", StopMonitorHandler(s.Monitor))
}
