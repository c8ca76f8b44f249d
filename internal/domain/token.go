package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token statuses
const (
	TokenActive  = "active"
	TokenPaused  = "paused"
	TokenMatured = "matured"
)

// Token Model. A tokenized fixed-income instrument sold in whole units.
type Token struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Symbol      string          `gorm:"size:32;uniqueIndex;not null" json:"symbol"`
	Name        string          `gorm:"size:191;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	UnitPrice   int64           `gorm:"not null" json:"unit_price"` // kobo per unit
	TotalSupply int64           `gorm:"not null" json:"total_supply"`
	SoldUnits   int64           `gorm:"not null;default:0" json:"sold_units"`
	AnnualYield decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"annual_yield"` // APY in percent
	MaturityAt  *time.Time      `json:"maturity_at,omitempty"`
	Status      string          `gorm:"size:20;index;default:active" json:"status"`
	ExternalID  *string         `gorm:"size:64;uniqueIndex" json:"external_id,omitempty"` // Listing service id
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AvailableUnits is the unsold supply, never negative
func (t Token) AvailableUnits() int64 {
	if t.SoldUnits >= t.TotalSupply {
		return 0
	}
	return t.TotalSupply - t.SoldUnits
}
