package domain

import "time"

// Purchase statuses
const (
	PurchaseCompleted = "completed"
)

// TokenHolding Model. One row per user and token.
type TokenHolding struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"uniqueIndex:idx_holding_user_token;not null" json:"user_id"`
	TokenID       uint       `gorm:"uniqueIndex:idx_holding_user_token;not null" json:"token_id"`
	Token         Token      `gorm:"constraint:OnDelete:CASCADE;" json:"token"`
	Units         int64      `gorm:"not null" json:"units"`
	TotalCost     int64      `gorm:"not null" json:"total_cost"`    // kobo invested
	AveragePrice  int64      `gorm:"not null" json:"average_price"` // weighted-average kobo per unit
	AccruedYield  int64      `gorm:"not null;default:0" json:"accrued_yield"`
	LastAccruedAt *time.Time `json:"last_accrued_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TokenPurchase Model. Each purchase is a cost-basis lot.
type TokenPurchase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenID   uint      `gorm:"index;not null" json:"token_id"`
	Units     int64     `gorm:"not null" json:"units"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Reference string    `gorm:"size:100;uniqueIndex;not null" json:"reference"`
	Status    string    `gorm:"size:20;index;default:completed" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
