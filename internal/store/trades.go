package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// TradeRepo implements risk.TradeRepository.
type TradeRepo struct{ db *sql.DB }

func (r *TradeRepo) InsertTrade(ctx context.Context, t domain.Trade) (int64, error) {
	var realizedPnL interface{}
	if t.RealizedPnL != nil {
		realizedPnL = t.RealizedPnL.String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (account_id, symbol, side, quantity, price, executed_at,
			broker_order_id, strategy_id, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, t.Symbol, string(t.Side), t.Quantity, t.Price.String(), t.ExecutedAt.Unix(),
		t.BrokerOrderID, t.StrategyID, realizedPnL)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *TradeRepo) CountTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE account_id = ? AND executed_at >= ?`,
		accountID, since.Unix()).Scan(&n)
	return n, err
}
