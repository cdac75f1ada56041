// Package strategy implements the C3 Strategy Registry & Evaluator: a
// closed capability set over strategy kinds (spec §9 redesign note —
// duck-typed strategies become a sum of concrete types satisfying one
// interface, sharing logic through composition rather than inheritance),
// plus the Evaluator that ticks them and dispatches signal callbacks.
package strategy

import (
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// Strategy is the closed capability set every strategy kind implements.
type Strategy interface {
	ID() string
	Symbol() string
	Timeframe() string
	OnBars(bars []domain.Bar, open *domain.Position) domain.Signal
	ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string)
}

// base carries the identity fields every concrete strategy embeds,
// sharing the boilerplate (ID/Symbol/Timeframe accessors) across kinds.
type base struct {
	id        string
	symbol    string
	timeframe string
}

func (b base) ID() string        { return b.id }
func (b base) Symbol() string    { return b.symbol }
func (b base) Timeframe() string { return b.timeframe }

func holdSignal(strategyID, symbol string) domain.Signal {
	return domain.Signal{Kind: domain.SignalHold, Symbol: symbol, StrategyID: strategyID, GeneratedAt: time.Now()}
}

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.C.Float64()
	}
	return out
}

func highs(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.H.Float64()
	}
	return out
}

func lows(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.L.Float64()
	}
	return out
}

func volumes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.V)
	}
	return out
}

func avgVolume(bars []domain.Bar, lookback int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if lookback > len(bars) {
		lookback = len(bars)
	}
	var sum float64
	for _, b := range bars[len(bars)-lookback:] {
		sum += float64(b.V)
	}
	return sum / float64(lookback)
}
