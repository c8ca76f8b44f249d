package invest

import (
	"context"
	"fmt"
	"time"

	"analyticaos/internal/domain"
	"analyticaos/internal/notify"
	"analyticaos/internal/yield"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseResult is what a successful purchase produced
type PurchaseResult struct {
	Purchase domain.TokenPurchase `json:"purchase"`
	Holding  domain.TokenHolding  `json:"holding"`
	Balance  int64                `json:"balance"`
}

// Purchase buys units of a token with wallet funds. Supply and balance are
// checked by conditional updates, so concurrent purchases cannot oversell a
// token or overdraw a wallet.
func (s *Service) Purchase(ctx context.Context, userID uint, symbol string, units int64) (*PurchaseResult, error) {
	if units <= 0 {
		return nil, domain.ErrInvalidUnits
	}
	var result PurchaseResult
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := findToken(tx, symbol)
		if err != nil {
			return err
		}
		if token.Status != domain.TokenActive || (token.MaturityAt != nil && !s.now().Before(*token.MaturityAt)) {
			return domain.ErrTokenInactive
		}
		wallet, err := findWallet(tx, userID)
		if err != nil {
			return err
		}
		amount, ok := yield.Cost(units, token.UnitPrice)
		if !ok {
			return domain.ErrAmountTooLarge
		}

		res := tx.Model(&domain.Token{}).
			Where("id = ? AND sold_units + ? <= total_supply", token.ID, units).
			Update("sold_units", gorm.Expr("sold_units + ?", units))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientSupply
		}
		if err := debit(tx, wallet.ID, amount); err != nil {
			return err
		}

		ref := newReference("PUR")
		result.Purchase = domain.TokenPurchase{
			UserID:    userID,
			TokenID:   token.ID,
			Units:     units,
			UnitPrice: token.UnitPrice,
			Amount:    amount,
			Reference: ref,
			Status:    domain.PurchaseCompleted,
		}
		if err := tx.Create(&result.Purchase).Error; err != nil {
			return err
		}
		record := domain.Transaction{
			WalletID:    wallet.ID,
			Type:        domain.TxPurchase,
			Amount:      amount,
			Status:      domain.TxSuccess,
			Reference:   ref,
			Description: fmt.Sprintf("%d %s @ %d", units, token.Symbol, token.UnitPrice),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		holding, err := addToHolding(tx, userID, token, units, amount, s.now())
		if err != nil {
			return err
		}
		result.Holding = holding
		if err := tx.Model(&domain.Wallet{}).Select("balance").Where("id = ?", wallet.ID).Scan(&result.Balance).Error; err != nil {
			return err
		}
		return notify.Purchase(tx, userID, token.Symbol, units, amount)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"token":     symbol,
		"units":     units,
		"amount":    result.Purchase.Amount,
		"reference": result.Purchase.Reference,
	}).Info("Token purchase")
	return &result, nil
}

// addToHolding creates or grows the user's holding and recomputes its average price
func addToHolding(tx *gorm.DB, userID uint, token domain.Token, units, amount int64, now time.Time) (domain.TokenHolding, error) {
	var holding domain.TokenHolding
	err := tx.Attrs(domain.TokenHolding{LastAccruedAt: &now}).
		FirstOrInit(&holding, domain.TokenHolding{UserID: userID, TokenID: token.ID}).Error
	if err != nil {
		return holding, err
	}
	holding.Units, holding.TotalCost, holding.AveragePrice = yield.WeightedAverage([]yield.Lot{
		{Units: holding.Units, Cost: holding.TotalCost},
		{Units: units, Cost: amount},
	})
	if err := tx.Omit(clause.Associations).Save(&holding).Error; err != nil {
		return holding, err
	}
	holding.Token = token
	return holding, nil
}
