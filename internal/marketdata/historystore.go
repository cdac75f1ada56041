package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, dedicated to the bars cache
	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/domain"
)

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// HistoryStore is a small OHLCV cache backed by
// mattn/go-sqlite3, kept in its own database file distinct from the
// primary application store (internal/store) — grounded in the teacher's
// own split between the app database and a per-symbol history database
// (trader-go/internal/modules/universe/history_db.go).
type HistoryStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryStore opens (creating if absent) the bars cache database at
// path and ensures its schema exists.
func NewHistoryStore(path string, log zerolog.Logger) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer cgo driver; avoid concurrent-write SQLITE_BUSY

	h := &HistoryStore{db: db, log: log.With().Str("component", "history_store").Logger()}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *HistoryStore) migrate() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			t INTEGER NOT NULL,
			o REAL NOT NULL,
			hi REAL NOT NULL,
			lo REAL NOT NULL,
			c REAL NOT NULL,
			v INTEGER NOT NULL,
			PRIMARY KEY (symbol, timeframe, t)
		);
		CREATE INDEX IF NOT EXISTS idx_bars_symbol_tf_t ON bars(symbol, timeframe, t);
	`)
	return err
}

// Store appends or replaces bars for symbol/timeframe.
func (h *HistoryStore) Store(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, t, o, hi, lo, c, v)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		o, _ := b.O.Float64()
		hi, _ := b.H.Float64()
		lo, _ := b.L.Float64()
		c, _ := b.C.Float64()
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, b.T.Unix(), o, hi, lo, c, b.V); err != nil {
			return fmt.Errorf("insert bar: %w", err)
		}
	}
	return tx.Commit()
}

// RecentBars implements HistoryProvider: up to n bars, ascending,
// ending at or before now.
func (h *HistoryStore) RecentBars(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT t, o, hi, lo, c, v FROM bars
		WHERE symbol = ? AND timeframe = ?
		ORDER BY t DESC LIMIT ?
	`, symbol, timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var ts int64
		var o, hi, lo, c float64
		var v int64
		if err := rows.Scan(&ts, &o, &hi, &lo, &c, &v); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, domain.Bar{
			T: unixTime(ts),
			O: domain.NewMoney(o), H: domain.NewMoney(hi), L: domain.NewMoney(lo), C: domain.NewMoney(c),
			V: v,
		})
	}
	// reverse: query is DESC for LIMIT, caller wants ascending
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, rows.Err()
}

// Close releases the underlying database handle.
func (h *HistoryStore) Close() error { return h.db.Close() }
