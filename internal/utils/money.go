package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// NairaToKobo converts a Naira decimal amount to kobo, rounding half-up
func NairaToKobo(naira decimal.Decimal) int64 {
	return naira.Shift(2).Round(0).IntPart()
}

// KoboToNaira converts kobo to a Naira decimal amount
func KoboToNaira(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// FormatNaira renders kobo as a display string such as ₦1,250.00
func FormatNaira(kobo int64) string {
	return money.New(kobo, money.NGN).Display()
}
