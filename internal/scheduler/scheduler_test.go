package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/risk"
	"github.com/tradecore/bot/internal/strategy"
)

type fakeBroker struct {
	domain.BrokerClient
	mu        sync.Mutex
	connected bool
	onFilled  func(domain.Trade)
	orders    int
}

func (f *fakeBroker) IsConnected() bool { return f.connected }
func (f *fakeBroker) OnOrderFilled(fn func(domain.Trade)) { f.onFilled = fn }
func (f *fakeBroker) OnPositionUpdate(fn func(domain.BrokerPosition)) {}
func (f *fakeBroker) OnError(fn func(error))                         {}
func (f *fakeBroker) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	f.mu.Lock()
	f.orders++
	f.mu.Unlock()
	return domain.OrderResult{BrokerOrderID: "x"}, nil
}

type fakeMarketData struct{ err error }

func (f *fakeMarketData) Bars(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Bar{{C: domain.NewMoney(100)}}, nil
}

type fakePositions struct{}

func (f *fakePositions) GetOpenPosition(ctx context.Context, accountID int64, symbol string) (*domain.Position, error) {
	return nil, nil
}
func (f *fakePositions) CountOpenPositions(ctx context.Context, accountID int64) (int, error) {
	return 0, nil
}

type fakeAccounts struct{}

func (f *fakeAccounts) GetAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	return domain.Account{ID: accountID, Balance: domain.NewMoney(100000), Cash: domain.NewMoney(100000)}, nil
}

type fakeTrades struct{}

func (f *fakeTrades) InsertTrade(ctx context.Context, t domain.Trade) (int64, error) { return 1, nil }
func (f *fakeTrades) CountTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	return 0, nil
}

type fakeSettlement struct{}

func (f *fakeSettlement) InsertSettlementRow(ctx context.Context, row domain.SettlementRow) error {
	return nil
}
func (f *fakeSettlement) UnsettledAmountsAbsSum(ctx context.Context, accountID int64) (domain.Money, error) {
	return domain.Zero(), nil
}
func (f *fakeSettlement) HasUnsettledBuyFor(ctx context.Context, accountID int64, symbol string) (bool, error) {
	return false, nil
}

type fakeDayTrades struct{}

func (f *fakeDayTrades) InsertDayTrade(ctx context.Context, dt domain.DayTrade) error { return nil }
func (f *fakeDayTrades) CountDayTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	return 0, nil
}

func newTestScheduler(t *testing.T, cfg config.SchedulerConfig) (*Scheduler, *fakeBroker) {
	broker := &fakeBroker{connected: true}
	riskCfg := config.RiskConfig{
		CashAccountThreshold: 25000, PDTEnforcementMode: "strict", GFVEnforcementMode: "strict",
		DailyTradeLimit: 5, WeeklyTradeLimit: 20, SizeLowPct: 0.01, SizeMediumPct: 0.025, SizeHighPct: 0.04,
		MaxPositionSizePct: 0.10, SettlementDays: 2, ProfitTakeLevel1: 0.05, ProfitTakeLevel2: 0.10, ProfitTakeLevel3: 0.20,
		PartialExitLevel1Pct: 0.25, PartialExitLevel2Pct: 0.50,
	}
	engine := risk.New(zerolog.Nop(), riskCfg, &fakeAccounts{}, &fakePositions{}, &fakeTrades{}, &fakeSettlement{}, &fakeDayTrades{})
	evaluator := strategy.New(zerolog.Nop())
	t.Cleanup(evaluator.Close)
	s := New(zerolog.Nop(), cfg, 1, broker, &fakeMarketData{}, evaluator, engine, nil, &fakePositions{})
	return s, broker
}

func TestStartStopTransitions(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{EvaluationInterval: time.Hour, ExitCheckInterval: time.Hour})
	require.Equal(t, StateStopped, s.Status())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.Status())

	err := s.Start(context.Background())
	assert.Error(t, err, "starting twice must be rejected")

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.Status())
}

func TestPauseResumeRequiresRunning(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{EvaluationInterval: time.Hour, ExitCheckInterval: time.Hour})

	assert.Error(t, s.Pause(), "pausing a stopped scheduler must fail")

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Pause())
	assert.Equal(t, StatePaused, s.Status())

	assert.Error(t, s.Start(context.Background()), "start is only valid from stopped")

	require.NoError(t, s.Resume())
	assert.Equal(t, StateRunning, s.Status())

	require.NoError(t, s.Stop())
}

func TestMarketHoursGatingBlocksOutsideSession(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{EvaluationInterval: time.Hour, ExitCheckInterval: time.Hour, MarketHoursOnly: true})
	loc, _ := time.LoadLocation("America/New_York")
	sunday := time.Date(2026, 8, 2, 10, 0, 0, 0, loc)
	assert.False(t, isMarketHours(sunday, s.nyLoc))

	wedNoon := time.Date(2026, 7, 29, 12, 0, 0, 0, loc)
	assert.True(t, isMarketHours(wedNoon, s.nyLoc))

	wedEvening := time.Date(2026, 7, 29, 20, 0, 0, 0, loc)
	assert.False(t, isMarketHours(wedEvening, s.nyLoc))
}

func TestThreeConsecutiveSameKindFailuresTriggersPause(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{EvaluationInterval: time.Hour, ExitCheckInterval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.recordFailure("marketdata")
	assert.Equal(t, StateRunning, s.Status())
	s.recordFailure("marketdata")
	assert.Equal(t, StateRunning, s.Status())
	s.recordFailure("marketdata")
	assert.Equal(t, StatePaused, s.Status(), "third consecutive same-kind failure must pause")
}

func TestDifferentFailureKindsDoNotAccumulate(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{EvaluationInterval: time.Hour, ExitCheckInterval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.recordFailure("marketdata")
	s.recordFailure("broker")
	s.recordFailure("marketdata")
	assert.Equal(t, StateRunning, s.Status(), "non-consecutive same-kind failures must not pause")
}
