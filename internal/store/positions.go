package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// PositionRepo implements risk.PositionRepository, the position-reading
// half of positionsync.Repository, and scheduler.PositionLookup.
type PositionRepo struct{ db *sql.DB }

func (r *PositionRepo) GetOpenPosition(ctx context.Context, accountID int64, symbol string) (*domain.Position, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, symbol, quantity, average_price, current_price,
			unrealized_pnl, unrealized_pnl_pct, status, opened_at, closed_at,
			last_synced_at, realized_pnl
		FROM positions WHERE account_id = ? AND symbol = ? AND status = 'open'`,
		accountID, symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepo) OpenPositions(ctx context.Context, accountID int64) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, symbol, quantity, average_price, current_price,
			unrealized_pnl, unrealized_pnl_pct, status, opened_at, closed_at,
			last_synced_at, realized_pnl
		FROM positions WHERE account_id = ? AND status = 'open'`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PositionRepo) CountOpenPositions(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE account_id = ? AND status = 'open'`, accountID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var p domain.Position
	var avg, cur, unrealized string
	var status string
	var openedAt, lastSyncedAt int64
	var closedAt sql.NullInt64
	var realizedPnL sql.NullString
	if err := row.Scan(&p.ID, &p.AccountID, &p.Symbol, &p.Quantity, &avg, &cur,
		&unrealized, &p.UnrealizedPnLPct, &status, &openedAt, &closedAt, &lastSyncedAt, &realizedPnL); err != nil {
		return domain.Position{}, err
	}

	var err error
	if p.AveragePrice, err = domain.MoneyFromString(avg); err != nil {
		return domain.Position{}, err
	}
	if p.CurrentPrice, err = domain.MoneyFromString(cur); err != nil {
		return domain.Position{}, err
	}
	if p.UnrealizedPnL, err = domain.MoneyFromString(unrealized); err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionStatus(status)
	p.OpenedAt = time.Unix(openedAt, 0).UTC()
	p.LastSyncedAt = time.Unix(lastSyncedAt, 0).UTC()
	if closedAt.Valid {
		t := time.Unix(closedAt.Int64, 0).UTC()
		p.ClosedAt = &t
	}
	if realizedPnL.Valid {
		v, err := domain.MoneyFromString(realizedPnL.String)
		if err != nil {
			return domain.Position{}, err
		}
		p.RealizedPnL = &v
	}
	return p, nil
}

// positionTx implements positionsync.Tx against a single *sql.Tx, so every
// mutation from one reconciliation pass commits or rolls back together.
type positionTx struct{ tx *sql.Tx }

func (t *positionTx) InsertPosition(ctx context.Context, p domain.Position) error {
	var closedAt interface{}
	if p.ClosedAt != nil {
		closedAt = p.ClosedAt.Unix()
	}
	var realizedPnL interface{}
	if p.RealizedPnL != nil {
		realizedPnL = p.RealizedPnL.String()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO positions (account_id, symbol, quantity, average_price, current_price,
			unrealized_pnl, unrealized_pnl_pct, status, opened_at, closed_at, last_synced_at, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.AccountID, p.Symbol, p.Quantity, p.AveragePrice.String(), p.CurrentPrice.String(),
		p.UnrealizedPnL.String(), p.UnrealizedPnLPct, string(p.Status), p.OpenedAt.Unix(),
		closedAt, p.LastSyncedAt.Unix(), realizedPnL)
	return err
}

func (t *positionTx) UpdatePosition(ctx context.Context, p domain.Position) error {
	var closedAt interface{}
	if p.ClosedAt != nil {
		closedAt = p.ClosedAt.Unix()
	}
	var realizedPnL interface{}
	if p.RealizedPnL != nil {
		realizedPnL = p.RealizedPnL.String()
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE positions SET quantity = ?, average_price = ?, current_price = ?,
			unrealized_pnl = ?, unrealized_pnl_pct = ?, status = ?, closed_at = ?,
			last_synced_at = ?, realized_pnl = ?
		WHERE id = ?`,
		p.Quantity, p.AveragePrice.String(), p.CurrentPrice.String(), p.UnrealizedPnL.String(),
		p.UnrealizedPnLPct, string(p.Status), closedAt, p.LastSyncedAt.Unix(), realizedPnL, p.ID)
	return err
}
