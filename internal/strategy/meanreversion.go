package strategy

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/tradecore/bot/internal/domain"
)

// MeanReversionConfig configures the Bollinger/Z-score strategy.
type MeanReversionConfig struct {
	Period       int
	NumStdDev    float64
	ZScoreBuyAt  float64 // buy when z-score <= -ZScoreBuyAt (e.g. -2.0)
}

// MeanReversionStrategy buys when price is statistically far below its
// rolling mean (Bollinger lower band / z-score), grounded in the
// teacher's `gonum.org/v1/gonum/stat` usage for mean/stddev helpers
// (`trader-go/internal/modules/evaluation/advanced.go`) supplementing
// go-talib's Bollinger band implementation.
type MeanReversionStrategy struct {
	base
	cfg MeanReversionConfig
}

func NewMeanReversionStrategy(id, symbol, timeframe string, cfg MeanReversionConfig) *MeanReversionStrategy {
	return &MeanReversionStrategy{base: base{id: id, symbol: symbol, timeframe: timeframe}, cfg: cfg}
}

func (s *MeanReversionStrategy) zscore(c []float64) (z, lowerBand float64, ok bool) {
	if len(c) < s.cfg.Period {
		return 0, 0, false
	}
	window := c[len(c)-s.cfg.Period:]
	mean := stat.Mean(window, nil)
	std := stat.StdDev(window, nil)
	if std == 0 {
		return 0, 0, false
	}
	last := c[len(c)-1]
	return (last - mean) / std, mean - s.cfg.NumStdDev*std, true
}

func (s *MeanReversionStrategy) OnBars(bars []domain.Bar, open *domain.Position) domain.Signal {
	if open != nil {
		return holdSignal(s.id, s.symbol)
	}
	c := closes(bars)
	z, lowerBand, ok := s.zscore(c)
	if !ok || z > -s.cfg.ZScoreBuyAt {
		return holdSignal(s.id, s.symbol)
	}

	upper, _, lower := talib.BBands(c, s.cfg.Period, s.cfg.NumStdDev, s.cfg.NumStdDev, talib.SMA)
	i := len(c) - 1
	belowBand := c[i] <= lower[i]
	if !belowBand {
		return holdSignal(s.id, s.symbol)
	}

	last := bars[len(bars)-1]
	confidence := 0.55
	if z <= -s.cfg.ZScoreBuyAt*1.5 {
		confidence = 0.8
	}
	target := domain.NewMoney(upper[i])
	_ = lowerBand

	return domain.Signal{
		Kind: domain.SignalBuy, Symbol: s.symbol, Price: last.C, Confidence: confidence,
		Reason:      fmt.Sprintf("z-score=%.2f below lower band", z),
		GeneratedAt: time.Now(), StrategyID: s.id,
		TakeProfit: &target,
	}
}

func (s *MeanReversionStrategy) ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string) {
	if open == nil {
		return false, ""
	}
	c := closes(bars)
	z, _, ok := s.zscore(c)
	if !ok {
		return false, ""
	}
	if z >= 0 {
		return true, "reverted to mean"
	}
	return false, ""
}
