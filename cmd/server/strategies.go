package main

import (
	"context"

	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/strategy"
)

// registerDefaultStrategies wires one instance of every strategy kind per
// watchlist symbol, the same fixed-roster idiom the teacher's
// registerJobs helper in trader-go/cmd/server/main.go uses for its cron
// jobs — a small, explicit list rather than a config-driven registry,
// since spec.md's StrategyInstance set is operator-curated, not dynamic.
func registerDefaultStrategies(e *strategy.Evaluator, symbols []string, fetch func(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error)) {
	for _, sym := range symbols {
		e.Register(strategy.NewRangeStrategy("range-"+sym, sym, "5m", strategy.RangeConfig{
			ProximityPct:      0.005,
			StopLossPct:       0.01,
			VolumeConfirmMult: 1.5,
		}))
		e.Register(strategy.NewMomentumStrategy("momentum-"+sym, sym, "5m", strategy.MomentumConfig{
			RSIPeriod:         14,
			RSIBuyBelow:       35,
			MACDFast:          12,
			MACDSlow:          26,
			MACDSignal:        9,
			VolumeConfirmMult: 1.2,
		}))
		e.Register(strategy.NewMeanReversionStrategy("meanreversion-"+sym, sym, "15m", strategy.MeanReversionConfig{
			Period:      20,
			NumStdDev:   2.0,
			ZScoreBuyAt: 2.0,
		}))
		e.Register(strategy.NewBreakoutStrategy("breakout-"+sym, sym, "15m", strategy.BreakoutConfig{
			RangeLookback:     20,
			ATRPeriod:         14,
			ATRStopMultiple:   2.0,
			VolumeConfirmMult: 1.5,
		}))
		e.Register(strategy.NewMultiTimeframeStrategy("multitimeframe-"+sym, sym, "5m", strategy.MultiTimeframeConfig{
			HigherTimeframe: "1h",
			HigherEMAPeriod: 20,
			LowerRSIPeriod:  14,
			LowerRSIBuyBelow: 40,
		}, fetch))
	}
}
