package store

import (
	"context"
	"database/sql"

	"github.com/tradecore/bot/internal/domain"
)

// AccountRepo implements risk.AccountRepository.
type AccountRepo struct{ db *sql.DB }

func (r *AccountRepo) GetAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, balance, cash, currency, mode FROM accounts WHERE id = ?`, accountID)
	return scanAccount(row)
}

// Upsert writes the latest balance snapshot fetched from the broker.
func (r *AccountRepo) Upsert(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, cash, currency, mode)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET balance = excluded.balance, cash = excluded.cash,
			currency = excluded.currency, mode = excluded.mode`,
		a.ID, a.Balance.String(), a.Cash.String(), a.Currency, string(a.Mode))
	return err
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var balance, cash, mode string
	if err := row.Scan(&a.ID, &balance, &cash, &a.Currency, &mode); err != nil {
		return domain.Account{}, err
	}
	bal, err := domain.MoneyFromString(balance)
	if err != nil {
		return domain.Account{}, err
	}
	c, err := domain.MoneyFromString(cash)
	if err != nil {
		return domain.Account{}, err
	}
	a.Balance = bal
	a.Cash = c
	a.Mode = domain.AccountMode(mode)
	return a, nil
}
