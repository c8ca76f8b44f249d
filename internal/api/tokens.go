package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"analyticaos/internal/domain"
	"analyticaos/internal/invest"
	"analyticaos/internal/metrics"
	"analyticaos/internal/middleware"
	"analyticaos/internal/utils"
	"analyticaos/internal/yield"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type tokenPage struct {
	Tokens     []domain.Token `json:"tokens"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// listTokens runs a filtered token query through the cache
func listTokens(c *gin.Context, rdb *redis.Client, cacheKey string, query *gorm.DB) {
	ctx := c.Request.Context()
	p := utils.ParsePage(c)
	cacheKey += ":page:" + strconv.Itoa(p.Page) + ":size:" + strconv.Itoa(p.PageSize)
	var cached tokenPage
	if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
		c.JSON(http.StatusOK, gin.H{"tokens": cached, "cached": true})
		return
	}
	resp := tokenPage{Page: p.Page, PageSize: p.PageSize, Tokens: []domain.Token{}}
	if err := query.Count(&resp.Total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count tokens"})
		return
	}
	if err := query.Order("symbol").Offset(p.Offset()).Limit(p.PageSize).Find(&resp.Tokens).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tokens"})
		return
	}
	resp.TotalPages = p.TotalPages(resp.Total)
	_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
	c.JSON(http.StatusOK, gin.H{"tokens": resp, "cached": false})
}

// ListTokensHandler lists tokens, active ones unless ?status= says otherwise
func ListTokensHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", domain.TokenActive)
		query := db.WithContext(c.Request.Context()).Model(&domain.Token{})
		if status != "all" {
			query = query.Where("status = ?", status)
		}
		listTokens(c, rdb, utils.TokenListPrefix+"list:"+status, query)
	}
}

// SearchTokensHandler matches ?q= against token symbols and names
func SearchTokensHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.ToLower(strings.TrimSpace(c.Query("q")))
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
			return
		}
		like := "%" + q + "%"
		query := db.WithContext(c.Request.Context()).Model(&domain.Token{}).
			Where("LOWER(symbol) LIKE ? OR LOWER(name) LIKE ?", like, like)
		listTokens(c, rdb, utils.TokenListPrefix+"search:"+q, query)
	}
}

// GetTokenHandler returns one token by symbol
func GetTokenHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token domain.Token
		err := db.WithContext(c.Request.Context()).Where("symbol = ?", normalizeSymbol(c.Param("symbol"))).First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "available_units": token.AvailableUnits()})
	}
}

// PurchaseRequest buys whole units of a token
type PurchaseRequest struct {
	Units int64 `json:"units" binding:"required,gt=0"`
}

// PurchaseHandler buys token units with the wallet balance
func PurchaseHandler(rdb *redis.Client, svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Units must be a positive whole number"})
			return
		}
		result, err := svc.Purchase(c.Request.Context(), userID, c.Param("symbol"), req.Units)
		if err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		utils.InvalidateUser(ctx, rdb, userID)
		utils.InvalidateTokens(ctx, rdb) // sold units changed
		metrics.MoneyMoved(domain.TxPurchase, result.Purchase.Amount)
		c.JSON(http.StatusCreated, gin.H{"message": "Purchase successful", "result": result})
	}
}

// HoldingsHandler lists the user's token holdings
func HoldingsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		holdings := []domain.TokenHolding{}
		if err := db.WithContext(c.Request.Context()).Preload("Token").
			Where("user_id = ? AND units > 0", userID).
			Order("id").Find(&holdings).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch holdings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"holdings": holdings})
	}
}

// PortfolioHandler returns the valued portfolio summary
func PortfolioHandler(rdb *redis.Client, svc *invest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		ctx := c.Request.Context()
		cacheKey := utils.PortfolioKey(userID)
		var summary yield.Summary
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &summary); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"portfolio": summary, "cached": true})
			return
		}
		s, err := svc.Portfolio(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, s, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{"portfolio": s, "cached": false})
	}
}
