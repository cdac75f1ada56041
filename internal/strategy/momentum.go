package strategy

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/tradecore/bot/internal/domain"
)

// MomentumConfig configures the RSI+MACD+volume momentum strategy.
type MomentumConfig struct {
	RSIPeriod      int
	RSIBuyBelow    float64 // RSI must have been oversold and be recovering
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	VolumeConfirmMult float64
}

// MomentumStrategy buys when RSI is recovering from oversold or MACD
// crosses above its signal line, provided volume backs the move;
// confidence is highest when both happen together. Grounded in
// `trader-go/pkg/formulas/rsi.go`'s go-talib usage.
type MomentumStrategy struct {
	base
	cfg MomentumConfig
}

func NewMomentumStrategy(id, symbol, timeframe string, cfg MomentumConfig) *MomentumStrategy {
	return &MomentumStrategy{base: base{id: id, symbol: symbol, timeframe: timeframe}, cfg: cfg}
}

func (s *MomentumStrategy) OnBars(bars []domain.Bar, open *domain.Position) domain.Signal {
	if open != nil || len(bars) < s.cfg.MACDSlow+s.cfg.MACDSignal {
		return holdSignal(s.id, s.symbol)
	}
	c := closes(bars)
	rsi := talib.Rsi(c, s.cfg.RSIPeriod)
	macd, signal, _ := talib.Macd(c, s.cfg.MACDFast, s.cfg.MACDSlow, s.cfg.MACDSignal)

	i := len(c) - 1
	lastRSI := rsi[i]
	if lastRSI != lastRSI { // NaN guard, insufficient warmup
		return holdSignal(s.id, s.symbol)
	}
	bullishCross := macd[i] > signal[i] && macd[i-1] <= signal[i-1]
	recoveringFromOversold := lastRSI > s.cfg.RSIBuyBelow && rsi[i-1] <= s.cfg.RSIBuyBelow

	if !bullishCross && !recoveringFromOversold {
		return holdSignal(s.id, s.symbol)
	}

	last := bars[len(bars)-1]
	if s.cfg.VolumeConfirmMult > 0 {
		avg := avgVolume(bars, 20)
		if avg > 0 && float64(last.V) < avg*s.cfg.VolumeConfirmMult {
			return holdSignal(s.id, s.symbol)
		}
	}

	confidence := 0.5
	if bullishCross && recoveringFromOversold {
		confidence = 0.85
	} else if bullishCross {
		confidence = 0.65
	}

	return domain.Signal{
		Kind: domain.SignalBuy, Symbol: s.symbol, Price: last.C, Confidence: confidence,
		Reason:      fmt.Sprintf("rsi=%.1f macd_cross=%v", lastRSI, bullishCross),
		GeneratedAt: time.Now(), StrategyID: s.id,
	}
}

func (s *MomentumStrategy) ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string) {
	if open == nil || len(bars) < s.cfg.RSIPeriod+1 {
		return false, ""
	}
	rsi := talib.Rsi(closes(bars), s.cfg.RSIPeriod)
	last := rsi[len(rsi)-1]
	if last != last {
		return false, ""
	}
	if last > 70 {
		return true, "rsi overbought"
	}
	return false, ""
}
