package invest

import (
	"context"
	"errors"

	"analyticaos/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DeleteUser removes a user and every row that points at them, returning
// their purchased units to token supply.
func (s *Service) DeleteUser(ctx context.Context, userID uint) error {
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}

		var sold []struct {
			TokenID uint
			Units   int64
		}
		if err := tx.Model(&domain.TokenPurchase{}).
			Select("token_id, SUM(units) AS units").
			Where("user_id = ? AND status = ?", userID, domain.PurchaseCompleted).
			Group("token_id").Scan(&sold).Error; err != nil {
			return err
		}
		for _, row := range sold {
			if err := tx.Model(&domain.Token{}).Where("id = ?", row.TokenID).
				Update("sold_units", gorm.Expr("CASE WHEN sold_units >= ? THEN sold_units - ? ELSE 0 END", row.Units, row.Units)).Error; err != nil {
				return err
			}
		}

		walletIDs := tx.Model(&domain.Wallet{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("wallet_id IN (?)", walletIDs).Delete(&domain.Transaction{}).Error; err != nil {
			return err
		}
		for _, model := range []any{&domain.TokenHolding{}, &domain.TokenPurchase{}, &domain.Notification{}, &domain.WatchlistItem{}, &domain.Wallet{}} {
			if err := tx.Where("user_id = ?", userID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}
	logrus.WithField("user_id", userID).Warn("User deleted")
	return nil
}
