// Package store implements the C8 durable store: a single SQLite-backed
// database exposing typed, narrow repositories per entity, grounded on
// trader-go/internal/database/db.go's connection/pragma/pool-tuning
// pattern. Migrations are embedded the same way the teacher embeds static
// assets in pkg/embedded/embedded.go, generalized here from serving files
// over HTTP to bootstrapping schema at startup.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/positionsync"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store wraps the connection pool and exposes one typed repository per
// entity named in spec.md §4.8.
type Store struct {
	db *sql.DB

	Accounts   *AccountRepo
	Positions  *PositionRepo
	Trades     *TradeRepo
	Settlement *SettlementRepo
	DayTrades  *DayTradeRepo
}

// Open connects to a SQLite database file at path, creating its parent
// directory and applying the embedded schema if necessary, and tunes the
// connection pool the way the teacher does for its primary app database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{
		db:         db,
		Accounts:   &AccountRepo{db: db},
		Positions:  &PositionRepo{db: db},
		Trades:     &TradeRepo{db: db},
		Settlement: &SettlementRepo{db: db},
		DayTrades:  &DayTradeRepo{db: db},
	}, nil
}

func migrate(db *sql.DB) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(schema))
	return err
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OpenPositions delegates to Positions so Store itself satisfies
// positionsync.Repository without a separate adapter type.
func (s *Store) OpenPositions(ctx context.Context, accountID int64) ([]domain.Position, error) {
	return s.Positions.OpenPositions(ctx, accountID)
}

// RunInTx satisfies positionsync.Repository: it opens a transaction,
// wraps it in a Tx adapter scoped to PositionRepo's SQL, and commits only
// if fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx positionsync.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&positionTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}
