// Package wshub implements the C7 WebSocket Hub & Streams: a client
// registry guarded by a mutex with snapshot-before-broadcast iteration,
// grounded on the teacher's nhooyr.io/websocket usage in
// internal/clients/tradernet/websocket_client.go (there used client-side
// via websocket.Dial; here used server-side via websocket.Accept, same
// conn.Read/Write/Close idiom).
package wshub

import "time"

// PriceUpdateMsg batches every symbol whose price changed since the last
// tick (spec §4.7).
type PriceUpdateMsg struct {
	Type      string                 `json:"type"`
	Symbols   map[string]SymbolPrice `json:"symbols"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
}

type SymbolPrice struct {
	Price     float64  `json:"price"`
	Change    float64  `json:"change"`
	ChangePct float64  `json:"change_pct"`
	Volume    *int64   `json:"volume,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Open      *float64 `json:"open,omitempty"`
	Close     *float64 `json:"close,omitempty"`
}

// SignalMsg mirrors a generated (or order-enriched) strategy signal.
type SignalMsg struct {
	Type       string    `json:"type"`
	SignalType string    `json:"signal_type"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Quantity   *int64    `json:"quantity,omitempty"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// TradeExecutedMsg fires on every fill.
type TradeExecutedMsg struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PortfolioUpdateMsg fires when positions or aggregate P&L change.
type PortfolioUpdateMsg struct {
	Type      string        `json:"type"`
	Channel   string        `json:"channel"`
	Timestamp time.Time     `json:"timestamp"`
	Data      PortfolioData `json:"data"`
}

type PortfolioData struct {
	Positions     map[string]PositionSummary `json:"positions"`
	TotalPnL      float64                    `json:"total_pnl"`
	PositionCount int                        `json:"position_count"`
}

type PositionSummary struct {
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PongMsg is the hub's application-level keep-alive reply, sent when a
// client sends {"type":"ping"} (decoded into pingEnvelope).
type PongMsg struct {
	Type string `json:"type"`
}

type pingEnvelope struct {
	Type string `json:"type"`
}

// ErrorMsg is sent to a single client on a protocol-level problem.
type ErrorMsg struct {
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
