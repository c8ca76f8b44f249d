package invest

import (
	"context"

	"analyticaos/internal/domain"

	"gorm.io/gorm"
)

// Stats is the admin dashboard overview. Amounts are kobo.
type Stats struct {
	Users          int64 `json:"users"`
	Tokens         int64 `json:"tokens"`
	ActiveTokens   int64 `json:"active_tokens"`
	WalletBalances int64 `json:"wallet_balances"`
	TotalInvested  int64 `json:"total_invested"`
	AccruedYield   int64 `json:"accrued_yield"`
	Deposits       int64 `json:"deposits"`
	Withdrawals    int64 `json:"withdrawals"`
	Purchases      int64 `json:"purchases"`
}

// Stats aggregates platform totals
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.withContext(ctx)
	var st Stats
	steps := []func() error{
		func() error { return db.Model(&domain.User{}).Count(&st.Users).Error },
		func() error { return db.Model(&domain.Token{}).Count(&st.Tokens).Error },
		func() error {
			return db.Model(&domain.Token{}).Where("status = ?", domain.TokenActive).Count(&st.ActiveTokens).Error
		},
		func() error {
			return db.Model(&domain.Wallet{}).Select("COALESCE(SUM(balance), 0)").Scan(&st.WalletBalances).Error
		},
		func() error {
			return db.Model(&domain.TokenHolding{}).Select("COALESCE(SUM(total_cost), 0)").Scan(&st.TotalInvested).Error
		},
		func() error {
			return db.Model(&domain.TokenHolding{}).Select("COALESCE(SUM(accrued_yield), 0)").Scan(&st.AccruedYield).Error
		},
		func() error { return sumTx(db, domain.TxDeposit, &st.Deposits) },
		func() error { return sumTx(db, domain.TxWithdrawal, &st.Withdrawals) },
		func() error { return sumTx(db, domain.TxPurchase, &st.Purchases) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// sumTx totals successful transactions of one type
func sumTx(db *gorm.DB, kind string, dest *int64) error {
	return db.Model(&domain.Transaction{}).
		Where("type = ? AND status = ?", kind, domain.TxSuccess).
		Select("COALESCE(SUM(amount), 0)").Scan(dest).Error
}
