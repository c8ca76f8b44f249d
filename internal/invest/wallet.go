package invest

import (
	"context"
	"errors"
	"fmt"

	"analyticaos/internal/domain"
	"analyticaos/internal/notify"
	"analyticaos/internal/payment"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reserver issues reserved bank accounts
type Reserver interface {
	ReserveAccount(ctx context.Context, r payment.ReservedAccountRequest) (*payment.ReservedAccount, error)
}

// Disburser pays out to bank accounts
type Disburser interface {
	Disburse(ctx context.Context, d payment.Disbursement) (*payment.DisbursementResult, error)
}

// ReserveAccount attaches a reserved account to the user's wallet. A wallet
// that already has one is returned unchanged.
func (s *Service) ReserveAccount(ctx context.Context, r Reserver, user domain.User) (*domain.Wallet, error) {
	wallet, err := findWallet(s.withContext(ctx), user.ID)
	if err != nil {
		return nil, err
	}
	if wallet.HasReservedAccount() {
		return &wallet, nil
	}
	acct, err := r.ReserveAccount(ctx, payment.ReservedAccountRequest{
		AccountReference: wallet.AccountReference,
		AccountName:      user.FullName(),
		CustomerEmail:    user.Email,
		CustomerName:     user.FullName(),
	})
	if err != nil {
		return nil, err
	}
	wallet.AccountNumber = acct.AccountNumber
	wallet.BankName = acct.BankName
	if err := s.withContext(ctx).Model(&wallet).Updates(map[string]any{
		"account_number": acct.AccountNumber,
		"bank_name":      acct.BankName,
	}).Error; err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "wallet_id": wallet.ID}).Info("Reserved account attached")
	return &wallet, nil
}

// Deposit is a confirmed collection into a reserved account
type Deposit struct {
	AccountReference string
	AccountNumber    string
	Reference        string // processor transaction reference, the idempotency key
	Amount           int64
	Description      string
}

// CreditDeposit credits a wallet once per reference. Replays return
// ErrDuplicateReference and change nothing.
func (s *Service) CreditDeposit(ctx context.Context, d Deposit) (*domain.Transaction, *domain.Wallet, error) {
	if d.Amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}
	var (
		record domain.Transaction
		wallet domain.Wallet
	)
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("account_reference = ?", d.AccountReference)
		if d.AccountReference == "" {
			q = tx.Where("account_number = ? AND account_number <> ''", d.AccountNumber)
		}
		if err := q.First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWalletNotFound
			}
			return err
		}
		var count int64
		if err := tx.Model(&domain.Transaction{}).Where("reference = ?", d.Reference).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrDuplicateReference
		}
		if err := credit(tx, wallet.ID, d.Amount); err != nil {
			return err
		}
		record = domain.Transaction{
			WalletID:    wallet.ID,
			Type:        domain.TxDeposit,
			Amount:      d.Amount,
			Status:      domain.TxSuccess,
			Reference:   d.Reference,
			Description: d.Description,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		wallet.Balance += d.Amount
		return notify.Deposit(tx, wallet.UserID, d.Amount)
	})
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   wallet.UserID,
		"amount":    d.Amount,
		"reference": d.Reference,
		"type":      domain.TxDeposit,
	}).Info("Deposit transaction")
	return &record, &wallet, nil
}

// Withdrawal is a payout request from a user
type Withdrawal struct {
	Amount        int64
	BankCode      string
	AccountNumber string
	Narration     string
}

// Withdraw debits the wallet, then asks the processor to pay out. A payout
// the processor rejects marks the withdrawal failed and refunds the wallet.
// When the outcome is unknown the withdrawal stays pending until a
// disbursement event settles it.
func (s *Service) Withdraw(ctx context.Context, payer Disburser, userID uint, w Withdrawal) (*domain.Transaction, error) {
	if w.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	var record domain.Transaction
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := findWallet(tx, userID)
		if err != nil {
			return err
		}
		if err := debit(tx, wallet.ID, w.Amount); err != nil {
			return err
		}
		record = domain.Transaction{
			WalletID:    wallet.ID,
			Type:        domain.TxWithdrawal,
			Amount:      w.Amount,
			Status:      domain.TxPending,
			Reference:   newReference("WD"),
			Description: fmt.Sprintf("to %s/%s", w.BankCode, w.AccountNumber),
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}

	narration := w.Narration
	if narration == "" {
		narration = "AnalyticaOS wallet withdrawal"
	}
	// The wallet is already debited; a client hanging up must not abandon the payout
	ctx = context.WithoutCancel(ctx)
	res, payErr := payer.Disburse(ctx, payment.Disbursement{
		Amount:        w.Amount,
		Reference:     record.Reference,
		Narration:     narration,
		BankCode:      w.BankCode,
		AccountNumber: w.AccountNumber,
	})
	fields := logrus.Fields{
		"user_id":   userID,
		"amount":    w.Amount,
		"reference": record.Reference,
		"type":      domain.TxWithdrawal,
	}

	status := domain.TxSuccess
	switch {
	case payErr != nil && !payment.Rejected(payErr):
		logrus.WithFields(fields).WithField("error", payErr.Error()).Warn("Withdrawal outcome unknown, left pending")
		status = domain.TxPending
	case payErr != nil || res.Status == payment.StatusFailed:
		if payErr == nil {
			payErr = fmt.Errorf("disbursement %s reported failed", record.Reference)
		}
		logrus.WithFields(fields).WithField("error", payErr.Error()).Error("Withdrawal failed")
		if err := s.refund(ctx, userID, &record); err != nil {
			return nil, fmt.Errorf("refund after failed payout: %w", err)
		}
		return &record, fmt.Errorf("withdrawal: %w", payErr)
	case res.Status != payment.StatusSuccess:
		status = domain.TxPending
	}

	err = s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&record).Update("status", status).Error; err != nil {
			return err
		}
		return notify.Withdrawal(tx, userID, w.Amount, status)
	})
	if err != nil {
		return nil, err
	}
	record.Status = status
	logrus.WithFields(fields).WithField("status", status).Info("Withdrawal transaction")
	return &record, nil
}

// SettleWithdrawal applies the processor's final outcome for a payout. A
// success confirms a pending withdrawal. A failure or reversal refunds it,
// even after it was reported successful. Outcomes already applied return
// ErrDuplicateReference.
func (s *Service) SettleWithdrawal(ctx context.Context, reference string, succeeded bool) (*domain.Transaction, uint, error) {
	var record domain.Transaction
	var wallet domain.Wallet
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("reference = ? AND type = ?", reference, domain.TxWithdrawal).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrTxNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.First(&wallet, record.WalletID).Error; err != nil {
			return err
		}
		if !succeeded {
			return refundTx(tx, wallet.UserID, &record)
		}
		res := tx.Model(&domain.Transaction{}).
			Where("id = ? AND status = ?", record.ID, domain.TxPending).
			Update("status", domain.TxSuccess)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrDuplicateReference
		}
		record.Status = domain.TxSuccess
		return notify.Withdrawal(tx, wallet.UserID, record.Amount, domain.TxSuccess)
	})
	if err != nil {
		return nil, 0, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   wallet.UserID,
		"reference": reference,
		"status":    record.Status,
	}).Info("Withdrawal settled")
	return &record, wallet.UserID, nil
}

// refund marks a withdrawal failed and returns its amount to the wallet
func (s *Service) refund(ctx context.Context, userID uint, record *domain.Transaction) error {
	return s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		return refundTx(tx, userID, record)
	})
}

// refundTx moves a withdrawal that is not yet failed to failed and credits the
// wallet. A withdrawal already failed returns ErrDuplicateReference.
func refundTx(tx *gorm.DB, userID uint, record *domain.Transaction) error {
	res := tx.Model(&domain.Transaction{}).
		Where("id = ? AND status <> ?", record.ID, domain.TxFailed).
		Update("status", domain.TxFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDuplicateReference
	}
	if err := credit(tx, record.WalletID, record.Amount); err != nil {
		return err
	}
	refund := domain.Transaction{
		WalletID:    record.WalletID,
		Type:        domain.TxRefund,
		Amount:      record.Amount,
		Status:      domain.TxSuccess,
		Reference:   record.Reference + "-RF",
		Description: "refund of " + record.Reference,
	}
	if err := tx.Create(&refund).Error; err != nil {
		return err
	}
	record.Status = domain.TxFailed
	return notify.Withdrawal(tx, userID, record.Amount, domain.TxFailed)
}
