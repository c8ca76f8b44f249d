package invest

import (
	"context"

	"analyticaos/internal/domain"
	"analyticaos/internal/yield"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RepairReport lists holdings rebuilt from purchases
type RepairReport struct {
	Checked int `json:"checked"`
	Fixed   int `json:"fixed"`
	Created int `json:"created"`
}

// RepairAveragePrices rebuilds units, total cost and average price of every
// holding from its purchase lots, creating holdings that are missing.
func (s *Service) RepairAveragePrices(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{}
	var tokens []domain.Token
	if err := s.withContext(ctx).Find(&tokens).Error; err != nil {
		return nil, err
	}
	for _, token := range tokens {
		err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
			lots, err := lotsByUser(tx, token.ID)
			if err != nil {
				return err
			}
			var holdings []domain.TokenHolding
			if err := tx.Where("token_id = ?", token.ID).Find(&holdings).Error; err != nil {
				return err
			}
			seen := make(map[uint]bool, len(holdings))
			for _, h := range holdings {
				seen[h.UserID] = true
				report.Checked++
				units, cost, avg := yield.WeightedAverage(lots[h.UserID])
				if units == h.Units && cost == h.TotalCost && avg == h.AveragePrice {
					continue
				}
				logrus.WithFields(logrus.Fields{
					"holding_id": h.ID,
					"token":      token.Symbol,
					"old_avg":    h.AveragePrice,
					"new_avg":    avg,
				}).Warn("Holding out of line with purchases")
				err := tx.Model(&domain.TokenHolding{}).Where("id = ?", h.ID).Updates(map[string]any{
					"units":         units,
					"total_cost":    cost,
					"average_price": avg,
				}).Error
				if err != nil {
					return err
				}
				report.Fixed++
			}
			for userID, userLots := range lots {
				if seen[userID] {
					continue
				}
				units, cost, avg := yield.WeightedAverage(userLots)
				first := userLots[0].At
				h := domain.TokenHolding{UserID: userID, TokenID: token.ID, Units: units, TotalCost: cost, AveragePrice: avg, LastAccruedAt: &first}
				if err := tx.Omit(clause.Associations).Create(&h).Error; err != nil {
					return err
				}
				report.Created++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	logrus.WithFields(logrus.Fields{"checked": report.Checked, "fixed": report.Fixed, "created": report.Created}).Info("Average prices repaired")
	return report, nil
}

// VolumeChange is one token whose sold units were corrected
type VolumeChange struct {
	Symbol   string `json:"symbol"`
	Before   int64  `json:"before"`
	After    int64  `json:"after"`
	Oversold bool   `json:"oversold"`
}

// ReconcileVolumes recomputes sold units of every token from completed purchases
func (s *Service) ReconcileVolumes(ctx context.Context) ([]VolumeChange, error) {
	changes := []VolumeChange{}
	var tokens []domain.Token
	if err := s.withContext(ctx).Find(&tokens).Error; err != nil {
		return nil, err
	}
	for _, token := range tokens {
		var units []int64
		if err := s.withContext(ctx).Model(&domain.TokenPurchase{}).
			Where("token_id = ? AND status = ?", token.ID, domain.PurchaseCompleted).
			Pluck("units", &units).Error; err != nil {
			return nil, err
		}
		v := yield.ReconcileVolume(token.TotalSupply, units)
		if v.Sold == token.SoldUnits && !v.Oversold {
			continue
		}
		if v.Sold != token.SoldUnits {
			if err := s.withContext(ctx).Model(&domain.Token{}).Where("id = ?", token.ID).
				Update("sold_units", v.Sold).Error; err != nil {
				return nil, err
			}
		}
		changes = append(changes, VolumeChange{Symbol: token.Symbol, Before: token.SoldUnits, After: v.Sold, Oversold: v.Oversold})
	}
	logrus.WithField("changed", len(changes)).Info("Token volumes reconciled")
	return changes, nil
}
