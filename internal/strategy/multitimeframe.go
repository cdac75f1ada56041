package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/tradecore/bot/internal/domain"
)

// MultiTimeframeConfig configures the higher-timeframe trend gate and
// lower-timeframe timing strategy.
type MultiTimeframeConfig struct {
	HigherTimeframe string
	HigherEMAPeriod int
	LowerRSIPeriod  int
	LowerRSIBuyBelow float64
}

// barsFetcher is the narrow dependency used to pull the higher-timeframe
// series; cmd/server passes the Bars method of the same MarketDataFacade
// used for the strategy's own (lower) timeframe.
type barsFetcher func(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error)

// MultiTimeframeStrategy only times entries on its own (lower) timeframe
// when the higher timeframe confirms an uptrend (EMA slope positive).
type MultiTimeframeStrategy struct {
	base
	cfg   MultiTimeframeConfig
	fetch barsFetcher
}

func NewMultiTimeframeStrategy(id, symbol, timeframe string, cfg MultiTimeframeConfig, fetch barsFetcher) *MultiTimeframeStrategy {
	return &MultiTimeframeStrategy{base: base{id: id, symbol: symbol, timeframe: timeframe}, cfg: cfg, fetch: fetch}
}

func (s *MultiTimeframeStrategy) higherTrendUp(ctx context.Context) bool {
	bars, err := s.fetch(ctx, s.symbol, s.cfg.HigherTimeframe, s.cfg.HigherEMAPeriod*3)
	if err != nil || len(bars) < s.cfg.HigherEMAPeriod+1 {
		return false
	}
	ema := talib.Ema(closes(bars), s.cfg.HigherEMAPeriod)
	i := len(ema) - 1
	return ema[i] == ema[i] && ema[i-1] == ema[i-1] && ema[i] > ema[i-1]
}

func (s *MultiTimeframeStrategy) OnBars(bars []domain.Bar, open *domain.Position) domain.Signal {
	if open != nil || len(bars) < s.cfg.LowerRSIPeriod+1 {
		return holdSignal(s.id, s.symbol)
	}
	if !s.higherTrendUp(context.Background()) {
		return holdSignal(s.id, s.symbol)
	}

	rsi := talib.Rsi(closes(bars), s.cfg.LowerRSIPeriod)
	i := len(rsi) - 1
	if rsi[i] != rsi[i] || rsi[i] > s.cfg.LowerRSIBuyBelow {
		return holdSignal(s.id, s.symbol)
	}

	last := bars[len(bars)-1]
	return domain.Signal{
		Kind: domain.SignalBuy, Symbol: s.symbol, Price: last.C, Confidence: 0.7,
		Reason:      fmt.Sprintf("higher-tf uptrend, lower-tf rsi=%.1f pullback", rsi[i]),
		GeneratedAt: time.Now(), StrategyID: s.id,
	}
}

func (s *MultiTimeframeStrategy) ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string) {
	if open == nil {
		return false, ""
	}
	if !s.higherTrendUp(context.Background()) {
		return true, "higher timeframe trend reversed"
	}
	return false, ""
}
