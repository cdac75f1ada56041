package strategy

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/tradecore/bot/internal/domain"
)

// BreakoutConfig configures the range+volume+ATR breakout strategy.
type BreakoutConfig struct {
	RangeLookback     int
	ATRPeriod         int
	ATRStopMultiple   float64
	VolumeConfirmMult float64
}

// BreakoutStrategy buys when price closes above its recent range high on
// above-average volume, sizing the stop off ATR.
type BreakoutStrategy struct {
	base
	cfg BreakoutConfig
}

func NewBreakoutStrategy(id, symbol, timeframe string, cfg BreakoutConfig) *BreakoutStrategy {
	return &BreakoutStrategy{base: base{id: id, symbol: symbol, timeframe: timeframe}, cfg: cfg}
}

func (s *BreakoutStrategy) rangeHigh(bars []domain.Bar) (float64, bool) {
	lookback := s.cfg.RangeLookback
	if len(bars) <= lookback {
		return 0, false
	}
	window := bars[len(bars)-lookback-1 : len(bars)-1]
	high, _ := window[0].H.Float64()
	for _, b := range window[1:] {
		h, _ := b.H.Float64()
		if h > high {
			high = h
		}
	}
	return high, true
}

func (s *BreakoutStrategy) OnBars(bars []domain.Bar, open *domain.Position) domain.Signal {
	if open != nil || len(bars) < s.cfg.ATRPeriod+1 {
		return holdSignal(s.id, s.symbol)
	}
	rangeHigh, ok := s.rangeHigh(bars)
	if !ok {
		return holdSignal(s.id, s.symbol)
	}
	last := bars[len(bars)-1]
	price, _ := last.C.Float64()
	if price <= rangeHigh {
		return holdSignal(s.id, s.symbol)
	}

	avg := avgVolume(bars, s.cfg.RangeLookback)
	if s.cfg.VolumeConfirmMult > 0 && avg > 0 && float64(last.V) < avg*s.cfg.VolumeConfirmMult {
		return holdSignal(s.id, s.symbol)
	}

	atr := talib.Atr(highs(bars), lows(bars), closes(bars), s.cfg.ATRPeriod)
	lastATR := atr[len(atr)-1]
	if lastATR != lastATR {
		return holdSignal(s.id, s.symbol)
	}
	stop := domain.NewMoney(price - lastATR*s.cfg.ATRStopMultiple)

	breakoutPct := (price - rangeHigh) / rangeHigh
	confidence := 0.6
	if breakoutPct > 0.01 {
		confidence = 0.8
	}

	return domain.Signal{
		Kind: domain.SignalBuy, Symbol: s.symbol, Price: last.C, Confidence: confidence,
		Reason:      fmt.Sprintf("breakout above %.2f on volume", rangeHigh),
		GeneratedAt: time.Now(), StrategyID: s.id,
		StopLoss: &stop,
	}
}

func (s *BreakoutStrategy) ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string) {
	if open == nil || len(bars) < s.cfg.ATRPeriod+1 {
		return false, ""
	}
	atr := talib.Atr(highs(bars), lows(bars), closes(bars), s.cfg.ATRPeriod)
	lastATR := atr[len(atr)-1]
	if lastATR != lastATR {
		return false, ""
	}
	last := bars[len(bars)-1]
	price, _ := last.C.Float64()
	avgEntry, _ := open.AveragePrice.Float64()
	if price < avgEntry-lastATR*s.cfg.ATRStopMultiple {
		return true, "atr stop hit"
	}
	return false, ""
}
