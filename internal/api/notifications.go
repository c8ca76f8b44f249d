package api

import (
	"net/http"
	"strconv"

	"analyticaos/internal/domain"
	"analyticaos/internal/middleware"
	"analyticaos/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListNotificationsHandler pages through the user's notifications, newest first
func ListNotificationsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		p := utils.ParsePage(c)
		query := db.WithContext(c.Request.Context()).Model(&domain.Notification{}).Where("user_id = ?", userID)
		if c.Query("unread_only") == "true" {
			query = query.Where("is_read = ?", false)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
			return
		}
		items := []domain.Notification{}
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"notifications": items,
			"page":          p.Page,
			"page_size":     p.PageSize,
			"total":         total,
			"total_pages":   p.TotalPages(total),
		})
	}
}

// UnreadCountHandler returns how many notifications are unread
func UnreadCountHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var n int64
		if err := db.WithContext(c.Request.Context()).Model(&domain.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": n})
	}
}

// MarkReadHandler marks one of the user's notifications read
func MarkReadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
			return
		}
		res := db.WithContext(c.Request.Context()).Model(&domain.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("is_read", true)
		if res.Error != nil {
			respondError(c, res.Error)
			return
		}
		// Another user's notification looks the same as a missing one
		if res.RowsAffected == 0 {
			var n int64
			db.WithContext(c.Request.Context()).Model(&domain.Notification{}).Where("id = ? AND user_id = ?", id, userID).Count(&n)
			if n == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
	}
}

// MarkAllReadHandler marks every unread notification of the user read
func MarkAllReadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		res := db.WithContext(c.Request.Context()).Model(&domain.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Update("is_read", true)
		if res.Error != nil {
			respondError(c, res.Error)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
	}
}
