// Package domain holds the core entities shared by every component of the
// trading runtime: accounts, positions, trades, settlement rows, and the
// signal/subscription types that flow between the strategy evaluator, the
// risk engine and the WebSocket hub.
package domain

import "github.com/shopspring/decimal"

// Money is represented internally as a fixed-point decimal to avoid float
// drift across settlement and P&L arithmetic. It is converted to float64
// at the broker wire boundary, and also in the risk engine's sizing and
// threshold checks, the strategies' indicator math, the history store's
// REAL columns and the WebSocket message payloads.
type Money = decimal.Decimal

// Zero is the canonical zero Money value.
func Zero() Money { return decimal.Zero }

// NewMoney builds a Money from a float64, the representation used at the
// broker boundary.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MoneyFromString parses a decimal string, used when reading amounts back
// out of storage.
func MoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}
