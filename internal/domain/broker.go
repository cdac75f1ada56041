package domain

import (
	"context"
	"time"
)

// OrderType is the order style accepted by PlaceOrder.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderRequest describes an order submission; LimitPrice is only
// meaningful when Type == OrderLimit.
type OrderRequest struct {
	Symbol     string
	Side       TradeSide
	Quantity   int64
	Type       OrderType
	LimitPrice *Money
}

// OrderResult is returned on successful submission; it does not guarantee
// a fill.
type OrderResult struct {
	BrokerOrderID string
}

// BrokerPosition is a point-in-time snapshot as reported by the gateway.
type BrokerPosition struct {
	Symbol        string
	Quantity      int64
	AveragePrice  Money
	MarketPrice   Money
	UnrealizedPnL Money
}

// AccountSummary is the broker's view of account-level figures.
type AccountSummary struct {
	NetLiquidation Money
	TotalCash      Money
}

// Quote is a market-data snapshot; may be stale outside market hours.
type Quote struct {
	Symbol string
	Last   Money
	Bid    Money
	Ask    Money
	High   Money
	Low    Money
	Volume int64
}

// Bar is one OHLCV candle.
type Bar struct {
	T time.Time
	O, H, L, C Money
	V int64
}

// BrokerClient is the narrow, broker-agnostic contract the scheduler,
// risk engine and position-sync service depend on; a second
// implementation (paper broker, alternate gateway) can be substituted
// without the core depending on it.
type BrokerClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error

	Positions(ctx context.Context) ([]BrokerPosition, error)
	AccountSummary(ctx context.Context) (AccountSummary, error)
	MarketData(ctx context.Context, symbol string) (Quote, error)

	// OnOrderFilled, OnPositionUpdate and OnError register callbacks
	// invoked from the client's dispatch goroutine; callbacks must be
	// cheap (spec §5/§9) — anything non-trivial is enqueued elsewhere.
	OnOrderFilled(fn func(Trade))
	OnPositionUpdate(fn func(BrokerPosition))
	OnError(fn func(err error))
}

// MarketDataFacade exposes recent bars for a symbol/timeframe (C2).
type MarketDataFacade interface {
	Bars(ctx context.Context, symbol, timeframe string, n int) ([]Bar, error)
}
