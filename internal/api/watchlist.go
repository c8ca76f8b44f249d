package api

import (
	"errors"
	"net/http"

	"analyticaos/internal/domain"
	"analyticaos/internal/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WatchRequest adds a token to the watchlist
type WatchRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// ListWatchlistHandler returns the tokens the user watches
func ListWatchlistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		items := []domain.WatchlistItem{}
		if err := db.WithContext(c.Request.Context()).Preload("Token").
			Where("user_id = ?", userID).Order("id").Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch watchlist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"watchlist": items})
	}
}

// AddWatchlistHandler watches a token; watching it twice is a no-op
func AddWatchlistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var req WatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		db := db.WithContext(c.Request.Context())
		var token domain.Token
		if err := db.Where("symbol = ?", normalizeSymbol(req.Symbol)).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
				return
			}
			respondError(c, err)
			return
		}
		item := domain.WatchlistItem{UserID: userID, TokenID: token.ID}
		if err := db.Omit(clause.Associations).Where(&item).FirstOrCreate(&item).Error; err != nil {
			respondError(c, err)
			return
		}
		item.Token = token
		c.JSON(http.StatusCreated, gin.H{"item": item})
	}
}

// RemoveWatchlistHandler stops watching a token
func RemoveWatchlistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		db := db.WithContext(c.Request.Context())
		res := db.Where("user_id = ? AND token_id IN (?)", userID,
			db.Model(&domain.Token{}).Select("id").Where("symbol = ?", normalizeSymbol(c.Param("symbol")))).
			Delete(&domain.WatchlistItem{})
		if res.Error != nil {
			respondError(c, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token is not on your watchlist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Removed from watchlist"})
	}
}
