package store

import (
	"context"

	"github.com/tradecore/bot/internal/wshub"
)

// PortfolioProvider adapts PositionRepo to wshub.PortfolioProvider for one
// account, wired by cmd/server into the portfolio stream.
type PortfolioProvider struct {
	positions *PositionRepo
	accountID int64
}

func NewPortfolioProvider(s *Store, accountID int64) *PortfolioProvider {
	return &PortfolioProvider{positions: s.Positions, accountID: accountID}
}

func (p *PortfolioProvider) Snapshot(ctx context.Context) (wshub.PortfolioData, error) {
	open, err := p.positions.OpenPositions(ctx, p.accountID)
	if err != nil {
		return wshub.PortfolioData{}, err
	}

	data := wshub.PortfolioData{Positions: make(map[string]wshub.PositionSummary, len(open))}
	for _, pos := range open {
		data.Positions[pos.Symbol] = wshub.PositionSummary{
			Quantity:      pos.Quantity,
			AveragePrice:  pos.AveragePrice.InexactFloat64(),
			CurrentPrice:  pos.CurrentPrice.InexactFloat64(),
			UnrealizedPnL: pos.UnrealizedPnL.InexactFloat64(),
		}
		data.TotalPnL += pos.UnrealizedPnL.InexactFloat64()
	}
	data.PositionCount = len(open)
	return data, nil
}
