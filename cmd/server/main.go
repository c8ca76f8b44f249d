package main

import (
	"context" // context package is needed for Redis operations and shutdown
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analyticaos/internal/api"        // Custom package for API handlers
	"analyticaos/internal/config"     // Custom package for configuration
	"analyticaos/internal/db"         // Database connection
	"analyticaos/internal/invest"     // Investment operations
	"analyticaos/internal/listing"    // Listing service client
	"analyticaos/internal/middleware" // Custom package for middleware
	"analyticaos/internal/monitor"    // Background jobs
	"analyticaos/internal/payment"    // Payment processor client
	"analyticaos/internal/utils"
	"analyticaos/internal/yield"

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}
	period, err := yield.ParsePeriod(cfg.YieldPeriod)
	if err != nil {
		logrus.Fatalf("invalid YIELD_PERIOD: %v", err)
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DSN(), cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	// Test Redis connection
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// External services
	httpClient := &http.Client{Timeout: 30 * time.Second}
	processor := payment.NewClient(payment.Config{
		BaseURL:       cfg.PaymentBaseURL,
		APIKey:        cfg.PaymentAPIKey,
		SecretKey:     cfg.PaymentSecretKey,
		ContractCode:  cfg.PaymentContractCode,
		SourceAccount: cfg.PaymentSourceAccount,
	}, httpClient)
	listings := listing.NewClient(cfg.ListingBaseURL, cfg.ListingAPIKey, httpClient)

	svc := invest.New(gdb, period)

	// Price monitor, started on boot when a listing service is configured
	priceMonitor := monitor.NewPriceMonitor(listings, svc, gdb, cfg.MonitorThresholdPct)
	priceMonitor.AfterSync = func(r *invest.SyncReport) {
		if r.Created > 0 || r.Updated > 0 {
			utils.InvalidateTokens(context.Background(), redisClient)
			utils.InvalidatePortfolios(context.Background(), redisClient)
		}
	}
	if listings.Configured() {
		priceMonitor.Start(cfg.MonitorInterval)
	}

	// Yield accrual on a cron schedule
	scheduler, err := monitor.NewScheduler(cfg.YieldCron, svc)
	if err != nil {
		logrus.Fatalf("failed to schedule accrual: %v", err)
	}
	scheduler.Start()
	logrus.WithFields(logrus.Fields{"period": string(period), "next": scheduler.Next()}).Info("Yield accrual scheduled")

	// Rate limiter for auth endpoints
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)

	server := &api.Server{
		DB:              gdb,
		Redis:           redisClient,
		Invest:          svc,
		Monitor:         priceMonitor,
		MonitorInterval: cfg.MonitorInterval,
		JWTSecret:       cfg.JWTSecret,
		WebhookSecret:   cfg.PaymentSecretKey,
		AuthLimiter:     limiter,
	}
	wirePayments(server, processor)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	server.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for interrupt, then drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server shutdown: %v", err)
	}
	priceMonitor.Stop()
	scheduler.Stop()
	close(stopCleanup)
	_ = redisClient.Close()
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// wirePayments hands the processor to the API only when it has credentials.
// Without it the payment routes answer 503 before touching a wallet.
func wirePayments(s *api.Server, processor *payment.Client) {
	if !processor.Configured() {
		logrus.Warn("Payment processor not configured, payments disabled")
		return
	}
	s.Reserver = processor
	s.Payer = processor
}
