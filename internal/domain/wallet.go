package domain

import "time"

// Wallet Model. Balance is in kobo.
type Wallet struct {
	ID               uint      `gorm:"primaryKey" json:"id"`                         // Primary key
	UserID           uint      `gorm:"uniqueIndex" json:"user_id"`                   // Foreign key to User
	Balance          int64     `gorm:"not null;default:0" json:"balance"`            // Wallet balance in kobo
	AccountReference string    `gorm:"size:64;uniqueIndex" json:"account_reference"` // Stable reference sent to the payment processor
	AccountNumber    string    `gorm:"size:20;index" json:"account_number"`          // Reserved virtual account number
	BankName         string    `gorm:"size:100" json:"bank_name"`                    // Bank issuing the reserved account
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasReservedAccount reports whether a virtual account is already attached
func (w Wallet) HasReservedAccount() bool {
	return w.AccountNumber != ""
}
