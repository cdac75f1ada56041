package strategy

import (
	"fmt"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

// RangeConfig configures the level-bounded range strategy.
type RangeConfig struct {
	ProximityPct     float64 // how close to a level counts as "at" it, e.g. 0.005
	StopLossPct      float64 // fixed % below the entry level
	VolumeConfirmMult float64 // bar volume must be >= avg volume * this to confirm, 0 disables
}

// RangeStrategy identifies the previous session's high/low as key levels
// and trades bounces off them, per spec §4.3(1).
type RangeStrategy struct {
	base
	cfg RangeConfig
}

func NewRangeStrategy(id, symbol, timeframe string, cfg RangeConfig) *RangeStrategy {
	return &RangeStrategy{base: base{id: id, symbol: symbol, timeframe: timeframe}, cfg: cfg}
}

// sessionLevels returns the prior session's high/low, identified as the
// high/low of every bar before the most recent one (the "new session").
func sessionLevels(bars []domain.Bar) (high, low float64, ok bool) {
	if len(bars) < 2 {
		return 0, 0, false
	}
	prior := bars[:len(bars)-1]
	hs, ls := highs(prior), lows(prior)
	high, low = hs[0], ls[0]
	for i := 1; i < len(hs); i++ {
		if hs[i] > high {
			high = hs[i]
		}
		if ls[i] < low {
			low = ls[i]
		}
	}
	return high, low, true
}

func (s *RangeStrategy) OnBars(bars []domain.Bar, open *domain.Position) domain.Signal {
	if open != nil {
		return holdSignal(s.id, s.symbol)
	}
	high, low, ok := sessionLevels(bars)
	if !ok {
		return holdSignal(s.id, s.symbol)
	}
	last := bars[len(bars)-1]
	price, _ := last.C.Float64()

	nearLow := price <= low*(1+s.cfg.ProximityPct)
	if !nearLow {
		return holdSignal(s.id, s.symbol)
	}
	if s.cfg.VolumeConfirmMult > 0 {
		avg := avgVolume(bars, 20)
		if avg > 0 && float64(last.V) < avg*s.cfg.VolumeConfirmMult {
			return holdSignal(s.id, s.symbol)
		}
	}

	stop := domain.NewMoney(low * (1 - s.cfg.StopLossPct))
	target := domain.NewMoney(high)
	confidence := 0.6
	if nearLow && float64(last.V) > avgVolume(bars, 20) {
		confidence = 0.75
	}

	return domain.Signal{
		Kind: domain.SignalBuy, Symbol: s.symbol, Price: last.C,
		Confidence: confidence, Reason: fmt.Sprintf("price %.2f near session low %.2f", price, low),
		GeneratedAt: time.Now(), StrategyID: s.id,
		EntryLevel: &last.C, StopLoss: &stop, TakeProfit: &target,
	}
}

func (s *RangeStrategy) ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string) {
	if open == nil || len(bars) == 0 {
		return false, ""
	}
	high, _, ok := sessionLevels(bars)
	if !ok {
		return false, ""
	}
	last := bars[len(bars)-1]
	price, _ := last.C.Float64()
	if price >= high*(1-s.cfg.ProximityPct) {
		return true, "approaching opposite level"
	}
	return false, ""
}
