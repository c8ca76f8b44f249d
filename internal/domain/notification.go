package domain

import "time"

// Notification types
const (
	NotifyDeposit    = "deposit"
	NotifyWithdrawal = "withdrawal"
	NotifyPurchase   = "purchase"
	NotifyPrice      = "price_alert"
)

// Notification Model
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:191;not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Type      string    `gorm:"size:32;index" json:"type"`
	Read      bool      `gorm:"column:is_read;index;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// WatchlistItem Model
type WatchlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_watch_user_token;not null" json:"user_id"`
	TokenID   uint      `gorm:"uniqueIndex:idx_watch_user_token;not null" json:"token_id"`
	Token     Token     `gorm:"constraint:OnDelete:CASCADE;" json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
