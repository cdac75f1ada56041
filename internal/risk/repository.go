// Package risk implements the C4 Risk & Compliance Engine: an ordered
// gate pipeline (account refresh, PDT, settlement/GFV, trade frequency,
// position sizing), grounded directly in the teacher's TradeSafetyService
// layered-gate idiom (internal/modules/trading/safety_service.go).
package risk

import (
	"context"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// AccountRepository is the narrow persistence contract the engine needs
// for account balance refreshes.
type AccountRepository interface {
	GetAccount(ctx context.Context, accountID int64) (domain.Account, error)
}

// PositionRepository looks up an account's open position in a symbol. The
// Engine holds one, but none of its gates reads it; scheduler.PositionLookup
// embeds this interface.
type PositionRepository interface {
	GetOpenPosition(ctx context.Context, accountID int64, symbol string) (*domain.Position, error)
}

// TradeRepository provides the trade history the frequency gate needs,
// plus the write path for post-trade bookkeeping.
type TradeRepository interface {
	InsertTrade(ctx context.Context, t domain.Trade) (int64, error)
	CountTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error)
}

// SettlementRepository tracks unsettled cash.
type SettlementRepository interface {
	InsertSettlementRow(ctx context.Context, row domain.SettlementRow) error
	UnsettledAmountsAbsSum(ctx context.Context, accountID int64) (domain.Money, error)
	HasUnsettledBuyFor(ctx context.Context, accountID int64, symbol string) (bool, error)
}

// DayTradeRepository tracks and writes day-trade rows for PDT counting.
type DayTradeRepository interface {
	InsertDayTrade(ctx context.Context, dt domain.DayTrade) error
	CountDayTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error)
}
