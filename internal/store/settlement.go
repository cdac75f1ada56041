package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// SettlementRepo implements risk.SettlementRepository.
type SettlementRepo struct{ db *sql.DB }

func (r *SettlementRepo) InsertSettlementRow(ctx context.Context, row domain.SettlementRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settlement_rows (account_id, trade_id, amount, settlement_date, settled)
		VALUES (?, ?, ?, ?, ?)`,
		row.AccountID, row.TradeID, row.Amount.String(), row.SettlementDate.Unix(), boolToInt(row.Settled))
	return err
}

// UnsettledAmountsAbsSum sums the absolute value of every not-yet-settled
// row for the account, the pool of cash the buy-side settlement gate
// checks against.
func (r *SettlementRepo) UnsettledAmountsAbsSum(ctx context.Context, accountID int64) (domain.Money, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM settlement_rows WHERE account_id = ? AND settled = 0`, accountID)
	if err != nil {
		return domain.Zero(), err
	}
	defer rows.Close()

	sum := domain.Zero()
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return domain.Zero(), err
		}
		m, err := domain.MoneyFromString(amount)
		if err != nil {
			return domain.Zero(), err
		}
		if m.IsNegative() {
			m = m.Neg()
		}
		sum = sum.Add(m)
	}
	return sum, rows.Err()
}

// HasUnsettledBuyFor reports whether the account holds an unsettled buy
// (a negative settlement amount) for symbol, the good-faith-violation
// check on sells.
func (r *SettlementRepo) HasUnsettledBuyFor(ctx context.Context, accountID int64, symbol string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM settlement_rows sr
		JOIN trades t ON t.id = sr.trade_id
		WHERE sr.account_id = ? AND t.symbol = ? AND t.side = 'buy' AND sr.settled = 0`,
		accountID, symbol).Scan(&n)
	return n > 0, err
}

// SettleDue marks every row whose settlement_date has passed as settled;
// the maintenance GC job runs this on its cron schedule.
func (r *SettlementRepo) SettleDue(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE settlement_rows SET settled = 1 WHERE settled = 0 AND settlement_date <= ?`, asOf.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
