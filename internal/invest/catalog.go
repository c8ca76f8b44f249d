package invest

import (
	"context"
	"errors"

	"analyticaos/internal/domain"
	"analyticaos/internal/listing"
	"analyticaos/internal/yield"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PriceChange records a token whose unit price moved during a sync
type PriceChange struct {
	Token     domain.Token    `json:"token"`
	OldPrice  int64           `json:"old_price"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// SyncReport summarises a listing sync
type SyncReport struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Changes []PriceChange `json:"changes"`
}

// SyncListings upserts tokens from the listing service, matching on the
// external id first and the symbol second. Status and sold units are local
// and never overwritten.
func (s *Service) SyncListings(ctx context.Context, listings []listing.Listing) (*SyncReport, error) {
	report := &SyncReport{Changes: []PriceChange{}}
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range listings {
			var token domain.Token
			err := tx.Where("external_id = ?", l.ExternalID).First(&token).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = tx.Where("symbol = ?", l.Symbol).First(&token).Error
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if !valuable(l.Price, l.Supply) {
					report.Skipped++
					continue
				}
				ext := l.ExternalID
				token = domain.Token{
					Symbol:      l.Symbol,
					Name:        l.Name,
					Description: l.Description,
					UnitPrice:   l.Price,
					TotalSupply: l.Supply,
					AnnualYield: l.AnnualYield,
					MaturityAt:  l.MaturityAt,
					Status:      domain.TokenActive,
				}
				if ext != "" {
					token.ExternalID = &ext
				}
				if err := tx.Create(&token).Error; err != nil {
					return err
				}
				report.Created++
				continue
			}
			if err != nil {
				return err
			}

			supply := token.TotalSupply
			if l.Supply > 0 && l.Supply >= token.SoldUnits {
				supply = l.Supply
			}
			if !valuable(l.Price, supply) {
				report.Skipped++
				continue
			}

			oldPrice := token.UnitPrice
			updates := map[string]any{
				"name":         l.Name,
				"unit_price":   l.Price,
				"annual_yield": l.AnnualYield,
			}
			if l.ExternalID != "" {
				updates["external_id"] = l.ExternalID
			}
			if l.Description != "" {
				updates["description"] = l.Description
			}
			if supply != token.TotalSupply {
				updates["total_supply"] = supply
			}
			if l.MaturityAt != nil {
				updates["maturity_at"] = *l.MaturityAt
			}
			if err := tx.Model(&token).Updates(updates).Error; err != nil {
				return err
			}
			report.Updated++
			if oldPrice != l.Price && oldPrice > 0 {
				token.UnitPrice = l.Price
				report.Changes = append(report.Changes, PriceChange{
					Token:     token,
					OldPrice:  oldPrice,
					ChangePct: decimal.NewFromInt(l.Price - oldPrice).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(oldPrice)).Round(2),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"created": report.Created,
		"updated": report.Updated,
		"skipped": report.Skipped,
		"moved":   len(report.Changes),
	}).Info("Listings synced")
	return report, nil
}

// valuable reports whether a listing's full supply can be priced in kobo
func valuable(price, supply int64) bool {
	if _, ok := yield.Cost(supply, price); !ok {
		logrus.WithFields(logrus.Fields{"price": price, "supply": supply}).Warn("Listing valuation out of range, skipped")
		return false
	}
	return true
}
