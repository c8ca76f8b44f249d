package invest

import (
	"context"

	"analyticaos/internal/domain"
	"analyticaos/internal/yield"
)

// Portfolio values a user's holdings at current token prices
func (s *Service) Portfolio(ctx context.Context, userID uint) (*yield.Summary, error) {
	db := s.withContext(ctx)
	wallet, err := findWallet(db, userID)
	if err != nil {
		return nil, err
	}
	var holdings []domain.TokenHolding
	if err := db.Preload("Token").Where("user_id = ? AND units > 0", userID).Order("id").Find(&holdings).Error; err != nil {
		return nil, err
	}
	positions := make([]yield.Position, 0, len(holdings))
	for _, h := range holdings {
		positions = append(positions, yield.Position{
			TokenID:      h.TokenID,
			Symbol:       h.Token.Symbol,
			Name:         h.Token.Name,
			Units:        h.Units,
			TotalCost:    h.TotalCost,
			AveragePrice: h.AveragePrice,
			CurrentPrice: h.Token.UnitPrice,
			AccruedYield: h.AccruedYield,
			AnnualYield:  h.Token.AnnualYield,
		})
	}
	summary := yield.Summarize(wallet.Balance, positions)
	return &summary, nil
}
