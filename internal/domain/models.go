package domain

import "time"

// AccountMode classifies an account as PDT/settlement-restricted (cash) or
// exempt (margin), per spec §3.
type AccountMode string

const (
	AccountModeCash   AccountMode = "cash"
	AccountModeMargin AccountMode = "margin"
)

// Account is recomputed on each balance refresh and cached with a short
// TTL by the risk engine; it is mutated only by balance-refresh.
type Account struct {
	ID       int64
	Balance  Money
	Cash     Money
	Currency string
	Mode     AccountMode
}

// PositionStatus is either open or closed; invariant:
// status = closed ⇔ quantity = 0 ∧ closed_at != nil.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is the single source of truth about what the account holds
// between syncs. An open position for (account_id, symbol) is unique.
type Position struct {
	ID               int64
	AccountID        int64
	Symbol           string
	Quantity         int64 // signed: negative denotes a short
	AveragePrice     Money
	CurrentPrice     Money
	UnrealizedPnL    Money
	UnrealizedPnLPct float64
	Status           PositionStatus
	OpenedAt         time.Time
	ClosedAt         *time.Time
	LastSyncedAt     time.Time
	RealizedPnL      *Money
}

// TradeSide is the direction of an executed trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade is immutable after write; a sell trade may carry realized P&L for
// the closed portion.
type Trade struct {
	ID            int64
	AccountID     int64
	Symbol        string
	Side          TradeSide
	Quantity      int64
	Price         Money
	ExecutedAt    time.Time
	BrokerOrderID string
	StrategyID    string
	RealizedPnL   *Money
}

// DayTrade records an open-then-close of the same symbol within the same
// UTC trading date, for PDT counting.
type DayTrade struct {
	ID            int64
	AccountID     int64
	Symbol        string
	OpenedTradeID int64
	ClosedTradeID int64
	ExecutedDate  time.Time // truncated to the UTC trading date
}

// SettlementRow tracks T+N cash availability. Amount is signed: negative
// for a buy outflow, positive for sell proceeds.
type SettlementRow struct {
	ID             int64
	AccountID      int64
	TradeID        int64
	Amount         Money
	SettlementDate time.Time
	Settled        bool
}

// TradeFrequencyCounter is reconstructable from Trade rows. The risk engine
// does not use it: its frequency gate counts trades from the trades table
// on every validate call.
type TradeFrequencyCounter struct {
	AccountID  int64
	DailyCount int
	WeeklyCount int
}
