package invest

import (
	"context"
	"time"

	"analyticaos/internal/domain"
	"analyticaos/internal/yield"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AccrualReport summarises one accrual run
type AccrualReport struct {
	Holdings int       `json:"holdings"`
	Updated  int       `json:"updated"`
	Delta    int64     `json:"delta"` // kobo added across all holdings
	AsOf     time.Time `json:"as_of"`
}

// AccrueAll recomputes accrued yield of every holding as of now
func (s *Service) AccrueAll(ctx context.Context) (*AccrualReport, error) {
	return s.AccrueAt(ctx, s.now())
}

// AccrueAt recomputes accrued yield of every holding as of asOf. The value is
// rebuilt from the purchase lots each time, so repeated runs do not drift.
func (s *Service) AccrueAt(ctx context.Context, asOf time.Time) (*AccrualReport, error) {
	report := &AccrualReport{AsOf: asOf}
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
			for _, h := range holdings {
				accrued := yield.AccruedYield(lots[h.UserID], token.AnnualYield, s.period, asOf, token.MaturityAt)
				report.Holdings++
				if accrued != h.AccruedYield {
					report.Updated++
					report.Delta += accrued - h.AccruedYield
				}
				err := tx.Model(&domain.TokenHolding{}).Where("id = ?", h.ID).Updates(map[string]any{
					"accrued_yield":   accrued,
					"last_accrued_at": asOf,
				}).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{"token": token.Symbol, "error": err.Error()}).Error("Yield accrual failed")
			return nil, err
		}
	}
	logrus.WithFields(logrus.Fields{
		"holdings": report.Holdings,
		"updated":  report.Updated,
		"delta":    report.Delta,
		"period":   s.period,
	}).Info("Yield accrued")
	return report, nil
}

// lotsByUser loads the completed purchases of a token grouped by buyer
func lotsByUser(tx *gorm.DB, tokenID uint) (map[uint][]yield.Lot, error) {
	var purchases []domain.TokenPurchase
	if err := tx.Where("token_id = ? AND status = ?", tokenID, domain.PurchaseCompleted).
		Order("created_at").Find(&purchases).Error; err != nil {
		return nil, err
	}
	lots := make(map[uint][]yield.Lot)
	for _, p := range purchases {
		lots[p.UserID] = append(lots[p.UserID], yield.Lot{Units: p.Units, Cost: p.Amount, At: p.CreatedAt})
	}
	return lots, nil
}
