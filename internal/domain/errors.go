package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTxNotFound         = errors.New("transaction not found")
	ErrTokenInactive      = errors.New("token is not open for purchase")
	ErrInvalidUnits       = errors.New("units must be greater than zero")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientSupply = errors.New("not enough units available")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrAmountTooLarge     = errors.New("amount exceeds the supported range")
)

// Models lists every table for migration and cascading cleanup
func Models() []any {
	return []any{
		&User{}, &Wallet{}, &Transaction{}, &Token{},
		&TokenHolding{}, &TokenPurchase{}, &Notification{}, &WatchlistItem{},
	}
}
