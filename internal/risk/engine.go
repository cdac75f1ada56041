package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
)

const accountCacheTTL = 5 * time.Minute

// pdtWindow is the lookback used for counting day-trades toward the PDT
// rule; spec §4.4 gate 2 calls this "last 5 UTC trading days" and leaves
// the calendar-vs-trading-day distinction to the implementer — this
// engine approximates it with a fixed 5-calendar-day window, consistent
// with the holiday-calendar Non-goal recorded in DESIGN.md.
const pdtWindow = 5 * 24 * time.Hour

type cachedAccount struct {
	account   domain.Account
	fetchedAt time.Time
}

// Engine implements the C4 ordered gate pipeline against the narrow
// repository interfaces in repository.go, grounded directly in the
// teacher's TradeSafetyService (internal/modules/trading/safety_service.go):
// the same layered "evaluate each rule, accumulate warnings, first block
// wins" shape, generalized from the teacher's hard-coded position-size and
// volatility rules to the PDT/settlement/frequency/sizing gates spec §4.4
// defines.
type Engine struct {
	log zerolog.Logger
	cfg config.RiskConfig

	accounts   AccountRepository
	positions  PositionRepository
	trades     TradeRepository
	settlement SettlementRepository
	daytrades  DayTradeRepository

	accountMu    sync.Mutex
	accountCache map[int64]cachedAccount

	now func() time.Time
}

// New builds a risk Engine. now defaults to time.Now; tests may override
// it via WithClock.
func New(log zerolog.Logger, cfg config.RiskConfig, accounts AccountRepository, positions PositionRepository, trades TradeRepository, settlement SettlementRepository, daytrades DayTradeRepository) *Engine {
	return &Engine{
		log:          log.With().Str("component", "risk").Logger(),
		cfg:          cfg,
		accounts:     accounts,
		positions:    positions,
		trades:       trades,
		settlement:   settlement,
		daytrades:    daytrades,
		accountCache: make(map[int64]cachedAccount),
		now:          time.Now,
	}
}

// WithClock overrides the engine's time source, for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ProfitLevels returns the three configured profit-take thresholds, for
// building a ProfitPlan without duplicating config.RiskConfig elsewhere.
func (e *Engine) ProfitLevels() [3]float64 {
	return [3]float64{e.cfg.ProfitTakeLevel1, e.cfg.ProfitTakeLevel2, e.cfg.ProfitTakeLevel3}
}

// PartialExitFractions returns the two configured partial-exit fractions
// (the third is always the remainder).
func (e *Engine) PartialExitFractions() [2]float64 {
	return [2]float64{e.cfg.PartialExitLevel1Pct, e.cfg.PartialExitLevel2Pct}
}

// refreshAccount returns a cached account if fresher than accountCacheTTL,
// otherwise refreshes from the repository. The cache is read and written
// under accountMu, but the repository fetch runs outside the lock, so
// concurrent validations that all find a stale entry each perform their
// own refresh.
func (e *Engine) refreshAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	e.accountMu.Lock()
	if c, ok := e.accountCache[accountID]; ok && e.now().Sub(c.fetchedAt) < accountCacheTTL {
		e.accountMu.Unlock()
		return c.account, nil
	}
	e.accountMu.Unlock()

	acct, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Account{}, domain.NewError(domain.KindUnavailable, "account refresh failed", err)
	}

	if acct.Balance.InexactFloat64() < e.cfg.CashAccountThreshold {
		acct.Mode = domain.AccountModeCash
	} else {
		acct.Mode = domain.AccountModeMargin
	}

	e.accountMu.Lock()
	e.accountCache[accountID] = cachedAccount{account: acct, fetchedAt: e.now()}
	e.accountMu.Unlock()
	return acct, nil
}

// Validate runs the five ordered gates of spec §4.4 against req. The
// first gate that blocks short-circuits the remaining ones; warnings
// from earlier gates are preserved in the returned message when a later
// gate allows.
func (e *Engine) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	account, err := e.refreshAccount(ctx, req.AccountID)
	if err != nil {
		return ValidateResult{}, err
	}
	cashMode := account.Mode == domain.AccountModeCash

	var warnings []string

	// Gate 2: PDT.
	if cashMode && req.WillCreateDayTrade {
		since := e.now().Add(-pdtWindow)
		count, err := e.daytrades.CountDayTradesSince(ctx, req.AccountID, since)
		if err != nil {
			return ValidateResult{}, domain.NewError(domain.KindUnavailable, "day-trade count lookup failed", err)
		}
		if count >= 3 {
			msg := fmt.Sprintf("pattern day trader threshold reached (%d day-trades in 5 days)", count)
			if e.cfg.PDTEnforcementMode == "strict" {
				return blocked(msg, "pdt"), nil
			}
			warnings = append(warnings, msg)
		}
	}

	// Gate 3: Settlement / GFV.
	unsettledAbsSum, err := e.settlement.UnsettledAmountsAbsSum(ctx, req.AccountID)
	if err != nil {
		return ValidateResult{}, domain.NewError(domain.KindUnavailable, "settlement lookup failed", err)
	}
	availableSettledCash := account.Cash.Sub(unsettledAbsSum)

	switch req.Side {
	case domain.SideBuy:
		if cashMode && req.Quantity > 0 {
			cost := req.Price.Mul(domain.NewMoney(float64(req.Quantity)))
			if cost.GreaterThan(availableSettledCash) {
				msg := "insufficient settled cash for buy"
				if e.cfg.GFVEnforcementMode == "strict" {
					return blocked(msg, "settlement"), nil
				}
				warnings = append(warnings, msg)
			}
		}
	case domain.SideSell:
		hasUnsettledBuy, err := e.settlement.HasUnsettledBuyFor(ctx, req.AccountID, req.Symbol)
		if err != nil {
			return ValidateResult{}, domain.NewError(domain.KindUnavailable, "GFV lookup failed", err)
		}
		if hasUnsettledBuy {
			msg := fmt.Sprintf("selling %s may trigger a good-faith violation: position funded by unsettled cash", req.Symbol)
			if e.cfg.GFVEnforcementMode == "strict" {
				return blocked(msg, "gfv"), nil
			}
			warnings = append(warnings, msg)
		}
	}

	// Gate 4: trade frequency.
	if cashMode {
		dayStart := startOfUTCDay(e.now())
		dailyCount, err := e.trades.CountTradesSince(ctx, req.AccountID, dayStart)
		if err != nil {
			return ValidateResult{}, domain.NewError(domain.KindUnavailable, "daily trade count lookup failed", err)
		}
		if dailyCount >= e.cfg.DailyTradeLimit {
			return blocked(fmt.Sprintf("daily trade limit reached (%d)", e.cfg.DailyTradeLimit), "daily_frequency"), nil
		}
		weeklyCount, err := e.trades.CountTradesSince(ctx, req.AccountID, e.now().Add(-7*24*time.Hour))
		if err != nil {
			return ValidateResult{}, domain.NewError(domain.KindUnavailable, "weekly trade count lookup failed", err)
		}
		if weeklyCount >= e.cfg.WeeklyTradeLimit {
			return blocked(fmt.Sprintf("weekly trade limit reached (%d)", e.cfg.WeeklyTradeLimit), "weekly_frequency"), nil
		}
	}

	// Gate 5: position sizing.
	var sizeShares *int64
	if req.Confidence != nil {
		pct := e.sizePctFor(*req.Confidence)
		if pct > e.cfg.MaxPositionSizePct {
			pct = e.cfg.MaxPositionSizePct
		}
		sizeUSD := account.Balance.InexactFloat64() * pct
		if cashMode {
			avail := availableSettledCash.InexactFloat64()
			if sizeUSD > avail {
				sizeUSD = avail
			}
		}
		priceF := req.Price.InexactFloat64()
		var shares int64
		if priceF > 0 {
			shares = int64(math.Floor(sizeUSD / priceF))
		}
		if shares <= 0 {
			return blocked("computed position size is zero shares", "insufficient_size"), nil
		}
		sizeShares = &shares
	}

	result := allowed()
	if len(warnings) > 0 {
		result.ComplianceResult = Warning
		result.ComplianceMessage = joinWarnings(warnings)
	}
	result.PositionSizeShares = sizeShares
	return result, nil
}

func (e *Engine) sizePctFor(confidence float64) float64 {
	switch {
	case confidence < 0.4:
		return e.cfg.SizeLowPct
	case confidence < 0.7:
		return e.cfg.SizeMediumPct
	default:
		return e.cfg.SizeHighPct
	}
}

func startOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func joinWarnings(warnings []string) string {
	out := warnings[0]
	for _, w := range warnings[1:] {
		out += "; " + w
	}
	return out
}

// RecordFill performs the post-trade bookkeeping of spec §4.4: writes the
// trade, the settlement row, and (when applicable) the day-trade row.
func (e *Engine) RecordFill(ctx context.Context, t domain.Trade, createsDayTrade bool, openedTradeID int64) (int64, error) {
	tradeID, err := e.trades.InsertTrade(ctx, t)
	if err != nil {
		return 0, domain.NewError(domain.KindInternal, "trade insert failed", err)
	}

	amount := t.Price.Mul(domain.NewMoney(float64(t.Quantity)))
	if t.Side == domain.SideBuy {
		amount = amount.Neg()
	}
	row := domain.SettlementRow{
		AccountID:      t.AccountID,
		TradeID:        tradeID,
		Amount:         amount,
		SettlementDate: settlementDate(t.ExecutedAt, e.cfg.SettlementDays),
	}
	if err := e.settlement.InsertSettlementRow(ctx, row); err != nil {
		return tradeID, domain.NewError(domain.KindInternal, "settlement row insert failed", err)
	}

	if createsDayTrade {
		dt := domain.DayTrade{
			AccountID:     t.AccountID,
			Symbol:        t.Symbol,
			OpenedTradeID: openedTradeID,
			ClosedTradeID: tradeID,
			ExecutedDate:  startOfUTCDay(t.ExecutedAt),
		}
		if err := e.daytrades.InsertDayTrade(ctx, dt); err != nil {
			return tradeID, domain.NewError(domain.KindInternal, "day-trade insert failed", err)
		}
	}
	return tradeID, nil
}

// settlementDate advances n business days from executedAt, skipping
// weekends (spec §4.4's settlement_days, default T+2). Holidays are a
// declared Non-goal.
func settlementDate(executedAt time.Time, days int) time.Time {
	d := executedAt
	remaining := days
	for remaining > 0 {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			remaining--
		}
	}
	return d
}
