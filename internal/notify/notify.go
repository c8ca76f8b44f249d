// Package notify writes in-app notifications. Callers pass the *gorm.DB of an
// open transaction so the notification commits with the money movement.
package notify

import (
	"fmt"

	"analyticaos/internal/domain"
	"analyticaos/internal/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Send stores one notification
func Send(db *gorm.DB, userID uint, kind, title, message string) error {
	n := domain.Notification{UserID: userID, Type: kind, Title: title, Message: message}
	if err := db.Create(&n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func Deposit(db *gorm.DB, userID uint, amount int64) error {
	return Send(db, userID, domain.NotifyDeposit, "Wallet funded",
		fmt.Sprintf("Your wallet was credited with %s.", utils.FormatNaira(amount)))
}

func Purchase(db *gorm.DB, userID uint, symbol string, units, amount int64) error {
	return Send(db, userID, domain.NotifyPurchase, "Purchase successful",
		fmt.Sprintf("You bought %d %s for %s.", units, symbol, utils.FormatNaira(amount)))
}

// Withdrawal reports a payout by its transaction status
func Withdrawal(db *gorm.DB, userID uint, amount int64, status string) error {
	switch status {
	case domain.TxSuccess:
		return Send(db, userID, domain.NotifyWithdrawal, "Withdrawal sent",
			fmt.Sprintf("%s is on its way to your bank account.", utils.FormatNaira(amount)))
	case domain.TxPending:
		return Send(db, userID, domain.NotifyWithdrawal, "Withdrawal processing",
			fmt.Sprintf("Your withdrawal of %s is being processed. We will let you know once the bank confirms it.", utils.FormatNaira(amount)))
	default:
		return Send(db, userID, domain.NotifyWithdrawal, "Withdrawal failed",
			fmt.Sprintf("Your withdrawal of %s failed and the funds were returned to your wallet.", utils.FormatNaira(amount)))
	}
}

// PriceMove tells every user watching the token that its price changed
func PriceMove(db *gorm.DB, token domain.Token, oldPrice int64, change decimal.Decimal) (int, error) {
	var userIDs []uint
	if err := db.Model(&domain.WatchlistItem{}).Where("token_id = ?", token.ID).Pluck("user_id", &userIDs).Error; err != nil {
		return 0, fmt.Errorf("load watchers: %w", err)
	}
	direction := "up"
	if change.IsNegative() {
		direction = "down"
	}
	msg := fmt.Sprintf("%s moved %s %s%% from %s to %s.", token.Symbol, direction,
		change.Abs().StringFixed(2), utils.FormatNaira(oldPrice), utils.FormatNaira(token.UnitPrice))
	for _, id := range userIDs {
		if err := Send(db, id, domain.NotifyPrice, token.Symbol+" price alert", msg); err != nil {
			return 0, err
		}
	}
	return len(userIDs), nil
}
