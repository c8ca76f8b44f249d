package domain

import "time"

// Transaction types
const (
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
	TxPurchase   = "purchase"
	TxRefund     = "refund"
)

// Transaction statuses
const (
	TxPending = "pending"
	TxSuccess = "success"
	TxFailed  = "failed"
)

// Transaction Model. Amount is always positive kobo; Type gives the direction.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                           // Primary key
	WalletID    uint      `gorm:"index;not null" json:"wallet_id"`                // Foreign key to Wallet
	Type        string    `gorm:"size:20;index;not null" json:"type"`             // deposit, withdrawal, purchase, refund
	Amount      int64     `gorm:"not null" json:"amount"`                         // Amount in kobo
	Status      string    `gorm:"size:20;index;not null" json:"status"`           // pending, success, failed
	Reference   string    `gorm:"size:100;uniqueIndex;not null" json:"reference"` // Unique reference, idempotency key for deposits
	Description string    `gorm:"size:255" json:"description"`                    // Human readable detail
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                        // Timestamp of creation
}
