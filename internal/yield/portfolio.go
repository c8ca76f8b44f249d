package yield

import "github.com/shopspring/decimal"

// Position is a holding together with its token's live price.
type Position struct {
	TokenID      uint            `json:"token_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Units        int64           `json:"units"`
	TotalCost    int64           `json:"total_cost"`
	AveragePrice int64           `json:"average_price"`
	CurrentPrice int64           `json:"current_price"`
	AccruedYield int64           `json:"accrued_yield"`
	AnnualYield  decimal.Decimal `json:"annual_yield"`
}

// PositionSummary adds valuation to a Position.
type PositionSummary struct {
	Position
	CurrentValue   int64           `json:"current_value"`
	UnrealizedGain int64           `json:"unrealized_gain"`
	GainPercent    decimal.Decimal `json:"gain_percent"`
	Allocation     decimal.Decimal `json:"allocation"` // share of total value, percent
}

// Summary is the portfolio view returned to an investor.
type Summary struct {
	WalletBalance  int64             `json:"wallet_balance"`
	TotalInvested  int64             `json:"total_invested"`
	CurrentValue   int64             `json:"current_value"`
	AccruedYield   int64             `json:"accrued_yield"`
	UnrealizedGain int64             `json:"unrealized_gain"`
	GainPercent    decimal.Decimal   `json:"gain_percent"`
	NetWorth       int64             `json:"net_worth"`
	Positions      []PositionSummary `json:"positions"`
}

// Summarize values every position and aggregates the totals.
func Summarize(walletBalance int64, positions []Position) Summary {
	s := Summary{WalletBalance: walletBalance, Positions: make([]PositionSummary, 0, len(positions))}
	for _, p := range positions {
		ps := PositionSummary{Position: p, CurrentValue: p.Units * p.CurrentPrice}
		ps.UnrealizedGain = ps.CurrentValue - p.TotalCost
		ps.GainPercent = percent(ps.UnrealizedGain, p.TotalCost)
		s.TotalInvested += p.TotalCost
		s.CurrentValue += ps.CurrentValue
		s.AccruedYield += p.AccruedYield
		s.Positions = append(s.Positions, ps)
	}
	for i := range s.Positions {
		s.Positions[i].Allocation = percent(s.Positions[i].CurrentValue, s.CurrentValue)
	}
	s.UnrealizedGain = s.CurrentValue - s.TotalInvested
	s.GainPercent = percent(s.UnrealizedGain, s.TotalInvested)
	s.NetWorth = s.WalletBalance + s.CurrentValue + s.AccruedYield
	return s
}

// percent returns part/whole as a percentage with two decimals, 0 when whole is 0.
func percent(part, whole int64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).Round(2)
}
