package api

import (
	"context"
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"

	"analyticaos/internal/domain" // Importing domain models
	"analyticaos/internal/invest"
	"analyticaos/internal/metrics"
	"analyticaos/internal/monitor"
	"analyticaos/internal/utils" // Utility functions
	"analyticaos/internal/yield"

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm" // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID        uint           `json:"id"`         // User ID
	Email     string         `json:"email"`      // Email
	Name      string         `json:"name"`       // Full name
	Role      string         `json:"role"`       // User role
	CreatedAt time.Time      `json:"created_at"` // Sign-up time
	Wallet    *domain.Wallet `json:"wallet"`     // Associated wallet
}

type userPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p := utils.ParsePage(c)
		// Create a cache key based on pagination parameters
		cacheKey := utils.AdminUsersPrefix + "page=" + strconv.Itoa(p.Page) + ":size=" + strconv.Itoa(p.PageSize)
		var cached userPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"users": cached, "cached": true})
			return
		}
		resp := userPage{Page: p.Page, PageSize: p.PageSize}
		if err := db.WithContext(ctx).Model(&domain.User{}).Count(&resp.Total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"}) // Return on error
			return
		}
		var users []domain.User
		// Preload Wallet relation, apply offset and limit for pagination
		if err := db.WithContext(ctx).Preload("Wallet").Order("id").Offset(p.Offset()).Limit(p.PageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"}) // Return on error
			return
		}
		resp.Users = make([]UserAdminResponse, len(users))
		// Map users to response format
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:        u.ID,
				Email:     u.Email,
				Name:      u.FullName(),
				Role:      u.Role,
				CreatedAt: u.CreatedAt,
				Wallet:    u.Wallet,
			}
		}
		resp.TotalPages = p.TotalPages(resp.Total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{"users": resp, "cached": false})
	}
}

// DeleteUserHandler removes a user with their wallet, holdings and history
func DeleteUserHandler(rdb *redis.Client, svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		if err := svc.DeleteUser(c.Request.Context(), uint(id)); err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		utils.InvalidateUser(ctx, rdb, uint(id))
		utils.InvalidateTokens(ctx, rdb) // units went back to supply
		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, status or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p := utils.ParsePage(c)
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "status", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k))
		}
		keyParts = append(keyParts, "page="+strconv.Itoa(p.Page), "size="+strconv.Itoa(p.PageSize))
		cacheKey := utils.AdminTxsPrefix + strings.Join(keyParts, ":")
		var cached txPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"history": cached, "cached": true})
			return
		}
		query := db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("wallet_id IN (?)", db.Model(&domain.Wallet{}).Select("id").Where("user_id = ?", userID))
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		for param, op := range map[string]string{"from": ">=", "to": "<="} {
			v := c.Query(param)
			if v == "" {
				continue
			}
			t, err := parseDate(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param + " date"})
				return
			}
			query = query.Where("created_at "+op+" ?", t)
		}
		resp := txPage{Page: p.Page, PageSize: p.PageSize, Transactions: []domain.Transaction{}}
		if err := query.Count(&resp.Total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&resp.Transactions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp.TotalPages = p.TotalPages(resp.Total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{"history": resp, "cached": false})
	}
}

// parseDate accepts RFC 3339 timestamps or plain dates
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// StatsHandler returns platform-wide totals
func StatsHandler(svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": st})
	}
}

// TokenRequest creates a token; UnitPrice is kobo, AnnualYield is a percent
type TokenRequest struct {
	Symbol      string          `json:"symbol" binding:"required,alphanum,max=32"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	UnitPrice   int64           `json:"unit_price" binding:"required,gt=0"`
	TotalSupply int64           `json:"total_supply" binding:"required,gt=0"`
	AnnualYield decimal.Decimal `json:"annual_yield"`
	MaturityAt  *time.Time      `json:"maturity_at"`
}

// CreateTokenHandler lists a new token for sale
func CreateTokenHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.AnnualYield.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if _, ok := yield.Cost(req.TotalSupply, req.UnitPrice); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unit price times total supply is out of range"})
			return
		}
		token := domain.Token{
			Symbol:      normalizeSymbol(req.Symbol),
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			UnitPrice:   req.UnitPrice,
			TotalSupply: req.TotalSupply,
			AnnualYield: req.AnnualYield,
			MaturityAt:  req.MaturityAt,
			Status:      domain.TokenActive,
		}
		db := db.WithContext(c.Request.Context())
		var taken int64
		if err := db.Model(&domain.Token{}).Where("symbol = ?", token.Symbol).Count(&taken).Error; err != nil {
			respondError(c, err)
			return
		}
		if taken > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Symbol already exists"})
			return
		}
		if err := db.Create(&token).Error; err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{"token": token.Symbol, "price": token.UnitPrice}).Info("Token created")
		utils.InvalidateTokens(c.Request.Context(), rdb)
		c.JSON(http.StatusCreated, gin.H{"token": token})
	}
}

// TokenUpdateRequest changes token fields; absent fields are kept
type TokenUpdateRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	UnitPrice   *int64           `json:"unit_price"`
	TotalSupply *int64           `json:"total_supply"`
	AnnualYield *decimal.Decimal `json:"annual_yield"`
	MaturityAt  *time.Time       `json:"maturity_at"`
	Status      *string          `json:"status"`
}

// UpdateTokenHandler edits a token. Supply may not drop below units already sold.
func UpdateTokenHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		db := db.WithContext(c.Request.Context())
		var token domain.Token
		if err := db.Where("symbol = ?", normalizeSymbol(c.Param("symbol"))).First(&token).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.UnitPrice != nil {
			if *req.UnitPrice <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unit price must be positive"})
				return
			}
			updates["unit_price"] = *req.UnitPrice
		}
		if req.TotalSupply != nil {
			if *req.TotalSupply < token.SoldUnits {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Total supply is below units sold"})
				return
			}
			updates["total_supply"] = *req.TotalSupply
		}
		if req.AnnualYield != nil {
			if req.AnnualYield.IsNegative() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Annual yield must not be negative"})
				return
			}
			updates["annual_yield"] = *req.AnnualYield
		}
		if req.MaturityAt != nil {
			updates["maturity_at"] = *req.MaturityAt
		}
		if req.Status != nil {
			switch *req.Status {
			case domain.TokenActive, domain.TokenPaused, domain.TokenMatured:
				updates["status"] = *req.Status
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
				return
			}
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
			return
		}
		price, supply := token.UnitPrice, token.TotalSupply
		if req.UnitPrice != nil {
			price = *req.UnitPrice
		}
		if req.TotalSupply != nil {
			supply = *req.TotalSupply
		}
		if _, ok := yield.Cost(supply, price); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unit price times total supply is out of range"})
			return
		}
		if err := db.Model(&token).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
		if err := db.First(&token, token.ID).Error; err != nil {
			respondError(c, err)
			return
		}
		utils.InvalidateTokens(c.Request.Context(), rdb)
		if req.UnitPrice != nil {
			utils.InvalidatePortfolios(c.Request.Context(), rdb)
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// Monitor is the price monitor as seen by the admin API
type Monitor interface {
	Start(interval time.Duration) bool
	Stop() bool
	Status() monitor.Status
	RunOnce(ctx context.Context) (*invest.SyncReport, error)
}

// SyncTokensHandler pulls listings once, outside the monitor's schedule
func SyncTokensHandler(rdb *redis.Client, m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := m.RunOnce(c.Request.Context())
		if err != nil {
			logrus.WithField("error", err.Error()).Error("Token sync failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Token sync failed"})
			return
		}
		utils.InvalidateTokens(c.Request.Context(), rdb)
		utils.InvalidatePortfolios(c.Request.Context(), rdb)
		c.JSON(http.StatusOK, gin.H{"report": report})
	}
}

// runJob wraps an admin-triggered job with metrics and logging
func runJob(c *gin.Context, name string, job func(context.Context) (any, error)) {
	result, err := job(c.Request.Context())
	metrics.JobRun(name, err)
	if err != nil {
		logrus.WithFields(logrus.Fields{"job": name, "error": err.Error()}).Error("Job failed")
		respondError(c, err)
		return
	}
	logrus.WithField("job", name).Info("Job finished")
	c.JSON(http.StatusOK, gin.H{"job": name, "result": result})
}

// AccrueHandler runs yield accrual now
func AccrueHandler(rdb *redis.Client, svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		runJob(c, "accrue_yield", func(ctx context.Context) (any, error) {
			report, err := svc.AccrueAll(ctx)
			if err == nil {
				utils.InvalidatePortfolios(ctx, rdb)
			}
			return report, err
		})
	}
}

// RepairAveragePricesHandler recomputes holding cost basis from purchases
func RepairAveragePricesHandler(rdb *redis.Client, svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		runJob(c, "repair_average_prices", func(ctx context.Context) (any, error) {
			report, err := svc.RepairAveragePrices(ctx)
			if err == nil {
				utils.InvalidatePortfolios(ctx, rdb)
			}
			return report, err
		})
	}
}

// ReconcileVolumesHandler recomputes sold units from purchases
func ReconcileVolumesHandler(rdb *redis.Client, svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		runJob(c, "reconcile_volumes", func(ctx context.Context) (any, error) {
			changes, err := svc.ReconcileVolumes(ctx)
			if err == nil {
				utils.InvalidateTokens(ctx, rdb)
			}
			return gin.H{"changes": changes}, err
		})
	}
}

// MonitorStatusHandler reports the price monitor state
func MonitorStatusHandler(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"monitor": m.Status()})
	}
}

// StartMonitorHandler starts the price monitor; ?interval= overrides the default
func StartMonitorHandler(m Monitor, defaultInterval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		interval := defaultInterval
		if v := c.Query("interval"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < time.Second {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interval"})
				return
			}
			interval = d
		}
		if !m.Start(interval) {
			c.JSON(http.StatusOK, gin.H{"message": "Monitor already running", "monitor": m.Status()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Monitor started", "monitor": m.Status()})
	}
}

// StopMonitorHandler stops the price monitor
func StopMonitorHandler(m Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Stop() {
			c.JSON(http.StatusOK, gin.H{"message": "Monitor not running", "monitor": m.Status()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Monitor stopped", "monitor": m.Status()})
	}
}
