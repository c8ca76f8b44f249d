package api

import (
	"errors"
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"analyticaos/internal/domain" // Importing domain models
	"analyticaos/internal/invest"
	"analyticaos/internal/metrics"
	"analyticaos/internal/middleware"
	"analyticaos/internal/payment"
	"analyticaos/internal/utils" // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// WalletResponse is a wallet with a display balance
type WalletResponse struct {
	domain.Wallet
	BalanceDisplay string `json:"balance_display"` // e.g. ₦1,250.50
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		ctx := c.Request.Context()
		cacheKey := utils.WalletKey(userID) // Cache key for wallet
		var resp WalletResponse
		// If found in cache, return it
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &resp); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": resp, "cached": true})
			return
		}
		// If not in cache, fetch from DB
		if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&resp.Wallet).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		resp.BalanceDisplay = utils.FormatNaira(resp.Balance)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": resp, "cached": false})
	}
}

// ReserveAccountHandler requests a reserved account for a wallet that has none
func ReserveAccountHandler(db *gorm.DB, rdb *redis.Client, svc *invest.Service, reserver invest.Reserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reserver == nil {
			respondError(c, payment.ErrNotConfigured)
			return
		}
		userID, _ := middleware.UserID(c)
		var user domain.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		wallet, err := svc.ReserveAccount(c.Request.Context(), reserver, user)
		if err != nil {
			respondError(c, err)
			return
		}
		utils.InvalidateUser(c.Request.Context(), rdb, userID) // Invalidate wallet cache
		c.JSON(http.StatusOK, gin.H{"wallet": wallet})
	}
}

type txPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// GetTransactionHistoryHandler returns the authenticated user's wallet transactions, newest first
func GetTransactionHistoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		ctx := c.Request.Context()
		p := utils.ParsePage(c)
		// Redis cache key
		cacheKey := utils.TxHistoryKey(userID) + ":page:" + strconv.Itoa(p.Page) + ":size:" + strconv.Itoa(p.PageSize)
		var cached txPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"history": cached, "cached": true})
			return
		}
		var wallet domain.Wallet // Get user's wallet
		if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		resp := txPage{Page: p.Page, PageSize: p.PageSize, Transactions: []domain.Transaction{}}
		query := db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", wallet.ID)
		// Count total transactions for pagination
		if err := query.Count(&resp.Total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		// Fetch paginated transactions
		if err := query.Order("created_at desc, id desc").
			Offset(p.Offset()).
			Limit(p.PageSize).
			Find(&resp.Transactions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp.TotalPages = p.TotalPages(resp.Total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{"history": resp, "cached": false})
	}
}

// WithdrawRequest represents a payout to a bank account
type WithdrawRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"` // kobo
	BankCode      string `json:"bank_code" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required,len=10,numeric"`
	Narration     string `json:"narration"`
}

// WithdrawHandler debits the wallet and pays out through the processor
func WithdrawHandler(rdb *redis.Client, svc *invest.Service, payer invest.Disburser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if payer == nil {
			respondError(c, payment.ErrNotConfigured)
			return
		}
		userID, _ := middleware.UserID(c)
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		record, err := svc.Withdraw(c.Request.Context(), payer, userID, invest.Withdrawal{
			Amount:        req.Amount,
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
			Narration:     req.Narration,
		})
		utils.InvalidateUser(c.Request.Context(), rdb, userID) // A failed payout still moved money twice
		if err != nil {
			respondError(c, err)
			return
		}
		metrics.MoneyMoved(domain.TxWithdrawal, record.Amount)
		if record.Status == domain.TxPending {
			c.JSON(http.StatusAccepted, gin.H{"message": "Withdrawal processing", "transaction": record})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Withdrawal submitted", "transaction": record})
	}
}

// PaymentWebhookHandler credits wallets for collections and settles payouts
// reported by the processor
func PaymentWebhookHandler(rdb *redis.Client, svc *invest.Service, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !payment.VerifySignature(secret, body, c.GetHeader(payment.SignatureHeader)) {
			logrus.WithField("ip", c.ClientIP()).Warn("Webhook signature rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
		if payment.IsDisbursement(payment.EventType(body)) {
			settleDisbursement(c, rdb, svc, body)
			return
		}
		event, err := payment.ParseCollection(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
			return
		}
		// Acknowledge events we do not act on so the processor stops retrying
		if !event.Paid() {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		record, wallet, err := svc.CreditDeposit(c.Request.Context(), invest.Deposit{
			AccountReference: event.AccountReference,
			AccountNumber:    event.AccountNumber,
			Reference:        event.TransactionReference,
			Amount:           event.Amount,
			Description:      event.PaymentReference,
		})
		if errors.Is(err, domain.ErrDuplicateReference) {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		utils.InvalidateUser(c.Request.Context(), rdb, wallet.UserID)
		metrics.MoneyMoved(domain.TxDeposit, record.Amount)
		c.JSON(http.StatusOK, gin.H{"status": "credited", "reference": record.Reference})
	}
}

// settleDisbursement confirms or refunds a withdrawal left pending
func settleDisbursement(c *gin.Context, rdb *redis.Client, svc *invest.Service, body []byte) {
	event, err := payment.ParseDisbursement(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
		return
	}
	record, userID, err := svc.SettleWithdrawal(c.Request.Context(), event.Reference, event.Succeeded())
	if errors.Is(err, domain.ErrDuplicateReference) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	utils.InvalidateUser(c.Request.Context(), rdb, userID)
	if record.Status == domain.TxFailed {
		metrics.MoneyMoved(domain.TxRefund, record.Amount)
	}
	c.JSON(http.StatusOK, gin.H{"status": record.Status, "reference": record.Reference})
}
