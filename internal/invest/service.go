// Package invest carries out every operation that moves money or units:
// purchases, deposits, withdrawals, yield accrual and the maintenance jobs
// that rebuild derived columns from the purchase ledger.
package invest

import (
	"context"
	"errors"
	"strings"
	"time"

	"analyticaos/internal/domain"
	"analyticaos/internal/yield"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service runs investment operations against the database
type Service struct {
	db     *gorm.DB
	period yield.Period
	now    func() time.Time
}

// New creates a Service accruing yield per period
func New(db *gorm.DB, period yield.Period) *Service {
	return &Service{db: db, period: period, now: time.Now}
}

// newReference returns a unique reference with a readable prefix
func newReference(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// findToken loads a token by symbol (case-insensitive)
func findToken(tx *gorm.DB, symbol string) (domain.Token, error) {
	var token domain.Token
	err := tx.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return token, domain.ErrTokenNotFound
	}
	return token, err
}

// findWallet loads the wallet of a user
func findWallet(tx *gorm.DB, userID uint) (domain.Wallet, error) {
	var wallet domain.Wallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wallet, domain.ErrWalletNotFound
	}
	return wallet, err
}

// debit removes amount from the wallet only if the balance covers it
func debit(tx *gorm.DB, walletID uint, amount int64) error {
	res := tx.Model(&domain.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// credit adds amount to the wallet
func credit(tx *gorm.DB, walletID uint, amount int64) error {
	return tx.Model(&domain.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

func (s *Service) withContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
