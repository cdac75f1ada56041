package domain

import "time"

// SignalKind is the action a strategy recommends.
type SignalKind string

const (
	SignalBuy  SignalKind = "buy"
	SignalSell SignalKind = "sell"
	SignalHold SignalKind = "hold"
	SignalExit SignalKind = "exit"
)

// Signal is ephemeral: it is never persisted on its own, only as the
// influence behind a Trade it causes.
type Signal struct {
	Kind        SignalKind
	Symbol      string
	Price       Money
	Quantity    *int64
	Confidence  float64 // in [0,1]
	Reason      string
	GeneratedAt time.Time
	StrategyID  string

	// Enriched by Evaluator.Evaluate; nil unless the strategy set them.
	EntryLevel *Money
	StopLoss   *Money
	TakeProfit *Money
}

// Topic is a named channel in the WebSocket hub.
type Topic string

const (
	TopicPriceUpdates Topic = "price_updates"
	TopicSignals      Topic = "signals"
	TopicTrades       Topic = "trades"
	TopicPortfolio    Topic = "portfolio"
)

// AllTopics is the default subscription set a client is granted at MVP.
var AllTopics = []Topic{TopicPriceUpdates, TopicSignals, TopicTrades, TopicPortfolio}

// Subscription is the ephemeral per-client topic set held by the hub.
type Subscription struct {
	ClientID string
	Topics   map[Topic]bool
}
