package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/positionsync"
	"github.com/tradecore/bot/internal/risk"
	"github.com/tradecore/bot/internal/strategy"
)

const historyLookback = 100
const failurePauseDuration = 60 * time.Second
const failurePauseThreshold = 3

// Stats mirrors the rollup spec §4.6 names.
type Stats struct {
	EvaluationsRun     int64
	SignalsGenerated   int64
	TradesExecuted     int64
	TradesRejected     int64
	Errors             int64
	MonitoredPositions int
	LastEvaluation     time.Time
	LastTrade          time.Time
	startedAt          time.Time
}

// UptimeSeconds reports seconds since Start, zero if never started.
func (s Stats) UptimeSeconds() float64 {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt).Seconds()
}

// Scheduler drives the evaluation and exit loops against one trading
// account, wiring C1–C5 together the way spec §4.6 describes.
type Scheduler struct {
	log       zerolog.Logger
	cfg       config.SchedulerConfig
	accountID int64
	nyLoc     *time.Location

	broker     domain.BrokerClient
	marketData domain.MarketDataFacade
	evaluator  *strategy.Evaluator
	riskEngine *risk.Engine
	sync       *positionsync.Service
	positions  PositionLookup

	onSignal          func(domain.Signal)
	onTradeExecuted   func(domain.Trade)
	onPortfolioUpdate func()

	stateMu sync.Mutex
	state   State
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats

	failureMu        sync.Mutex
	lastFailureKind  string
	consecutiveCount int

	planMu sync.Mutex
	plans  map[string]*risk.ProfitPlan
}

// New builds a Scheduler in the stopped state.
func New(log zerolog.Logger, cfg config.SchedulerConfig, accountID int64, broker domain.BrokerClient, marketData domain.MarketDataFacade, evaluator *strategy.Evaluator, riskEngine *risk.Engine, sync *positionsync.Service, positions PositionLookup) *Scheduler {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	s := &Scheduler{
		log:        log.With().Str("component", "scheduler").Logger(),
		cfg:        cfg,
		accountID:  accountID,
		nyLoc:      loc,
		broker:     broker,
		marketData: marketData,
		evaluator:  evaluator,
		riskEngine: riskEngine,
		sync:       sync,
		positions:  positions,
		state:      StateStopped,
		plans:      make(map[string]*risk.ProfitPlan),
	}
	broker.OnOrderFilled(s.handleFill)
	return s
}

// OnSignal registers the hook invoked with an enriched (post-sizing)
// signal after a successful order placement — the scheduler's side of
// publishing to the WebSocket hub's signal topic (spec §4.6 step 6).
func (s *Scheduler) OnSignal(fn func(domain.Signal)) { s.onSignal = fn }

// OnTradeExecuted registers the hook invoked on every fill.
func (s *Scheduler) OnTradeExecuted(fn func(domain.Trade)) { s.onTradeExecuted = fn }

// OnPortfolioUpdate registers the hook invoked on every fill, right after
// the fill-triggered sync is started; it does not wait for that sync.
func (s *Scheduler) OnPortfolioUpdate(fn func()) { s.onPortfolioUpdate = fn }

func (s *Scheduler) currentState() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Start transitions stopped → starting → running and launches both loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.stateMu.Lock()
	if s.state != StateStopped {
		s.stateMu.Unlock()
		return domain.NewError(domain.KindConflict, "scheduler is not stopped", nil)
	}
	s.state = StateStarting
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateRunning
	s.stateMu.Unlock()

	s.statsMu.Lock()
	s.stats.startedAt = time.Now()
	s.statsMu.Unlock()

	s.wg.Add(2)
	go s.evaluationLoop(runCtx)
	go s.exitLoop(runCtx)
	s.log.Info().Msg("scheduler started")
	return nil
}

// Stop transitions running/paused → stopping → stopped, cancels both
// loops and awaits their exit.
func (s *Scheduler) Stop() error {
	s.stateMu.Lock()
	if s.state == StateStopped {
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateStopping
	cancel := s.cancel
	s.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.stateMu.Lock()
	s.state = StateStopped
	s.stateMu.Unlock()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// Pause moves running → paused; both loops keep ticking but skip work.
func (s *Scheduler) Pause() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != StateRunning {
		return domain.NewError(domain.KindConflict, "scheduler is not running", nil)
	}
	s.state = StatePaused
	return nil
}

// Resume moves paused → running.
func (s *Scheduler) Resume() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != StatePaused {
		return domain.NewError(domain.KindConflict, "scheduler is not paused", nil)
	}
	s.state = StateRunning
	return nil
}

// Status returns the current state.
func (s *Scheduler) Status() State { return s.currentState() }

// StatsSnapshot returns a copy of the running counters.
func (s *Scheduler) StatsSnapshot() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Scheduler) evaluationLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.EvaluationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.currentState() != StateRunning {
				continue
			}
			if !s.preconditionsOK() {
				continue
			}
			s.evaluationTick(ctx)
		}
	}
}

func (s *Scheduler) exitLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.ExitCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.currentState() != StateRunning {
				continue
			}
			if !s.preconditionsOK() {
				continue
			}
			s.exitTick(ctx)
		}
	}
}

func (s *Scheduler) preconditionsOK() bool {
	if s.cfg.RequireBrokerConnected && !s.broker.IsConnected() {
		return false
	}
	if s.cfg.MarketHoursOnly && !isMarketHours(time.Now(), s.nyLoc) {
		return false
	}
	return true
}

func isMarketHours(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)
	closeT := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, loc)
	return !local.Before(open) && !local.After(closeT)
}

func (s *Scheduler) evaluationTick(ctx context.Context) {
	for _, st := range s.evaluator.Strategies() {
		bars, err := s.marketData.Bars(ctx, st.Symbol(), st.Timeframe(), historyLookback)
		if err != nil {
			s.recordFailure("marketdata")
			continue
		}
		open, err := s.positions.GetOpenPosition(ctx, s.accountID, st.Symbol())
		if err != nil {
			s.recordFailure("store")
			continue
		}
		sig, err := s.evaluator.Evaluate(st.ID(), bars, open)
		s.incrStat(func(st *Stats) { st.EvaluationsRun++ })
		if err != nil {
			continue
		}
		if sig.Kind == domain.SignalHold {
			continue
		}
		s.incrStat(func(st *Stats) { st.SignalsGenerated++ })
		if sig.Confidence < s.cfg.MinConfidence {
			continue
		}

		openCount, err := s.positions.CountOpenPositions(ctx, s.accountID)
		if err != nil {
			s.recordFailure("store")
			continue
		}
		if openCount >= s.cfg.MaxConcurrentTrades {
			s.incrStat(func(st *Stats) { st.TradesRejected++ })
			continue
		}

		s.attemptTrade(ctx, st, sig, open)
	}
	s.statsMu.Lock()
	s.stats.LastEvaluation = time.Now()
	s.statsMu.Unlock()
}

func (s *Scheduler) attemptTrade(ctx context.Context, st strategy.Strategy, sig domain.Signal, open *domain.Position) {
	side := domain.SideBuy
	if sig.Kind == domain.SignalSell || sig.Kind == domain.SignalExit {
		side = domain.SideSell
	}
	willCreateDayTrade := side == domain.SideSell && open != nil && isSameUTCDate(open.OpenedAt, time.Now())
	confidence := sig.Confidence

	result, err := s.riskEngine.Validate(ctx, risk.ValidateRequest{
		AccountID: s.accountID, Symbol: st.Symbol(), Side: side,
		Price: sig.Price, Confidence: &confidence, WillCreateDayTrade: willCreateDayTrade,
	})
	if err != nil {
		s.recordFailure("risk")
		return
	}
	if !result.OK {
		s.incrStat(func(stt *Stats) { stt.TradesRejected++ })
		return
	}

	var qty int64
	if result.PositionSizeShares != nil {
		qty = *result.PositionSizeShares
	}
	if qty <= 0 {
		s.incrStat(func(stt *Stats) { stt.TradesRejected++ })
		return
	}

	_, err = s.broker.PlaceOrder(ctx, domain.OrderRequest{Symbol: st.Symbol(), Side: side, Quantity: qty, Type: domain.OrderMarket})
	if err != nil {
		s.recordFailure("broker")
		return
	}
	s.recordSuccess()
	s.incrStat(func(stt *Stats) { stt.TradesExecuted++; stt.LastTrade = time.Now() })

	enriched := sig
	enriched.Quantity = &qty
	if s.onSignal != nil {
		s.onSignal(enriched)
	}
	s.triggerSyncNonBlocking()
}

func (s *Scheduler) exitTick(ctx context.Context) {
	for _, st := range s.evaluator.Strategies() {
		open, err := s.positions.GetOpenPosition(ctx, s.accountID, st.Symbol())
		if err != nil || open == nil {
			continue
		}
		bars, err := s.marketData.Bars(ctx, st.Symbol(), st.Timeframe(), historyLookback)
		if err != nil {
			s.recordFailure("marketdata")
			continue
		}

		if sig, err := s.evaluator.CheckExit(st.ID(), open, bars); err == nil && sig != nil {
			s.attemptTrade(ctx, st, *sig, open)
			continue
		}

		if len(bars) == 0 {
			continue
		}
		plan := s.profitPlanFor(st.Symbol(), *open)
		currentPrice := bars[len(bars)-1].C.InexactFloat64()
		check := risk.CheckProfitLevels(currentPrice, plan, open.Quantity)
		if !check.ShouldExit {
			continue
		}
		exitSig := domain.Signal{
			Kind: domain.SignalExit, Symbol: st.Symbol(), Price: bars[len(bars)-1].C,
			Confidence: 1.0, Reason: "profit target reached", StrategyID: st.ID(), GeneratedAt: time.Now(),
		}
		s.attemptTrade(ctx, st, exitSig, open)
	}
}

func (s *Scheduler) profitPlanFor(symbol string, open domain.Position) *risk.ProfitPlan {
	s.planMu.Lock()
	defer s.planMu.Unlock()
	key := symbol
	if plan, ok := s.plans[key]; ok {
		return plan
	}
	plan := risk.NewProfitPlan(open.AveragePrice, s.riskProfitLevels()[0], s.riskProfitLevels()[1], s.riskProfitLevels()[2], s.riskPartialExits()[0], s.riskPartialExits()[1])
	s.plans[key] = plan
	return plan
}

// riskProfitLevels/riskPartialExits read the risk engine's configured
// thresholds; exposed narrowly so the scheduler doesn't need its own copy
// of config.RiskConfig.
func (s *Scheduler) riskProfitLevels() [3]float64 { return s.riskEngine.ProfitLevels() }
func (s *Scheduler) riskPartialExits() [2]float64 { return s.riskEngine.PartialExitFractions() }

func (s *Scheduler) handleFill(t domain.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	willCreateDayTrade := false
	if t.Side == domain.SideSell {
		if open, err := s.positions.GetOpenPosition(ctx, t.AccountID, t.Symbol); err == nil && open != nil {
			willCreateDayTrade = isSameUTCDate(open.OpenedAt, t.ExecutedAt)
		}
	}

	if _, err := s.riskEngine.RecordFill(ctx, t, willCreateDayTrade, 0); err != nil {
		s.log.Error().Err(err).Str("symbol", t.Symbol).Msg("post-trade bookkeeping failed")
	}

	s.triggerSyncNonBlocking()
	if s.onTradeExecuted != nil {
		s.onTradeExecuted(t)
	}
	if s.onPortfolioUpdate != nil {
		s.onPortfolioUpdate()
	}
}

// triggerSyncNonBlocking fires C5.sync without blocking the caller; a
// failed sync does not affect the tick (spec §4.6).
func (s *Scheduler) triggerSyncNonBlocking() {
	if s.sync == nil {
		return
	}
	go func() {
		if _, err := s.sync.Sync(context.Background(), s.accountID); err != nil {
			s.log.Warn().Err(err).Msg("trade-triggered sync failed")
		}
	}()
}

func (s *Scheduler) recordFailure(kind string) {
	s.incrStat(func(st *Stats) { st.Errors++ })

	s.failureMu.Lock()
	if kind == s.lastFailureKind {
		s.consecutiveCount++
	} else {
		s.lastFailureKind = kind
		s.consecutiveCount = 1
	}
	count := s.consecutiveCount
	s.failureMu.Unlock()

	if count >= failurePauseThreshold {
		s.autoPauseFor(failurePauseDuration)
	}
}

func (s *Scheduler) recordSuccess() {
	s.failureMu.Lock()
	s.lastFailureKind = ""
	s.consecutiveCount = 0
	s.failureMu.Unlock()
}

func (s *Scheduler) autoPauseFor(d time.Duration) {
	s.stateMu.Lock()
	if s.state != StateRunning {
		s.stateMu.Unlock()
		return
	}
	s.state = StatePaused
	s.stateMu.Unlock()
	s.log.Warn().Dur("pause", d).Msg("pausing after repeated same-kind failures")

	time.AfterFunc(d, func() {
		s.stateMu.Lock()
		if s.state == StatePaused {
			s.state = StateRunning
		}
		s.stateMu.Unlock()
		s.failureMu.Lock()
		s.lastFailureKind = ""
		s.consecutiveCount = 0
		s.failureMu.Unlock()
	})
}

func (s *Scheduler) incrStat(fn func(*Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

func isSameUTCDate(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month() && au.Day() == bu.Day()
}
