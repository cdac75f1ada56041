package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// DayTradeRepo implements risk.DayTradeRepository.
type DayTradeRepo struct{ db *sql.DB }

func (r *DayTradeRepo) InsertDayTrade(ctx context.Context, dt domain.DayTrade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO day_trades (account_id, symbol, opened_trade_id, closed_trade_id, executed_date)
		VALUES (?, ?, ?, ?, ?)`,
		dt.AccountID, dt.Symbol, dt.OpenedTradeID, dt.ClosedTradeID, dt.ExecutedDate.Unix())
	return err
}

func (r *DayTradeRepo) CountDayTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM day_trades WHERE account_id = ? AND executed_date >= ?`,
		accountID, since.Unix()).Scan(&n)
	return n, err
}

// PurgeOlderThan deletes day-trade rows outside the rolling PDT window,
// run by the maintenance GC job so the table doesn't grow unbounded.
func (r *DayTradeRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM day_trades WHERE executed_date < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
