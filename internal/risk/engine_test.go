package risk

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
)

type fakeAccounts struct {
	account domain.Account
}

func (f *fakeAccounts) GetAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	return f.account, nil
}

type fakePositions struct{ pos *domain.Position }

func (f *fakePositions) GetOpenPosition(ctx context.Context, accountID int64, symbol string) (*domain.Position, error) {
	return f.pos, nil
}

type fakeTrades struct {
	dailyCount  int
	weeklyCount int
	inserted    []domain.Trade
}

func (f *fakeTrades) InsertTrade(ctx context.Context, t domain.Trade) (int64, error) {
	f.inserted = append(f.inserted, t)
	return int64(len(f.inserted)), nil
}

func (f *fakeTrades) CountTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	// crude: treat anything >1 day lookback as the weekly count
	if time.Now().Sub(since) > 24*time.Hour {
		return f.weeklyCount, nil
	}
	return f.dailyCount, nil
}

type fakeSettlement struct {
	unsettledAbsSum  domain.Money
	hasUnsettledBuy  bool
	insertedRows     []domain.SettlementRow
}

func (f *fakeSettlement) InsertSettlementRow(ctx context.Context, row domain.SettlementRow) error {
	f.insertedRows = append(f.insertedRows, row)
	return nil
}

func (f *fakeSettlement) UnsettledAmountsAbsSum(ctx context.Context, accountID int64) (domain.Money, error) {
	return f.unsettledAbsSum, nil
}

func (f *fakeSettlement) HasUnsettledBuyFor(ctx context.Context, accountID int64, symbol string) (bool, error) {
	return f.hasUnsettledBuy, nil
}

type fakeDayTrades struct {
	count    int
	inserted []domain.DayTrade
}

func (f *fakeDayTrades) InsertDayTrade(ctx context.Context, dt domain.DayTrade) error {
	f.inserted = append(f.inserted, dt)
	return nil
}

func (f *fakeDayTrades) CountDayTradesSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	return f.count, nil
}

func testConfig() config.RiskConfig {
	return config.RiskConfig{
		CashAccountThreshold: 25000,
		PDTEnforcementMode:   "strict",
		GFVEnforcementMode:   "strict",
		DailyTradeLimit:      5,
		WeeklyTradeLimit:     20,
		SizeLowPct:           0.01,
		SizeMediumPct:        0.025,
		SizeHighPct:          0.04,
		MaxPositionSizePct:   0.10,
		SettlementDays:       2,
	}
}

func newTestEngine(cfg config.RiskConfig, acct domain.Account, trades *fakeTrades, settlement *fakeSettlement, daytrades *fakeDayTrades) *Engine {
	return New(zerolog.Nop(), cfg, &fakeAccounts{account: acct}, &fakePositions{}, trades, settlement, daytrades)
}

func TestBalanceEqualToThresholdIsMarginMode(t *testing.T) {
	e := newTestEngine(testConfig(), domain.Account{ID: 1, Balance: domain.NewMoney(25000), Cash: domain.NewMoney(25000)}, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.Zero()}, &fakeDayTrades{})

	result, err := e.Validate(context.Background(), ValidateRequest{AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: domain.NewMoney(10)})
	require.NoError(t, err)
	assert.Equal(t, Allowed, result.ComplianceResult)

	acct, err := e.refreshAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountModeMargin, acct.Mode, "balance == threshold must not trigger cash-account mode")
}

func TestPDTBlocksAtThreeDayTradesInStrictMode(t *testing.T) {
	cfg := testConfig()
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(5000), Cash: domain.NewMoney(5000)}
	e := newTestEngine(cfg, acct, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.Zero()}, &fakeDayTrades{count: 3})

	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: domain.NewMoney(10), WillCreateDayTrade: true,
	})
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.ComplianceResult)
	assert.Equal(t, "pdt", result.ReasonCode())
}

func TestPDTWarnsInWarningMode(t *testing.T) {
	cfg := testConfig()
	cfg.PDTEnforcementMode = "warning"
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(5000), Cash: domain.NewMoney(5000)}
	e := newTestEngine(cfg, acct, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.Zero()}, &fakeDayTrades{count: 3})

	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: domain.NewMoney(10), WillCreateDayTrade: true,
	})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, Warning, result.ComplianceResult)
}

func TestSettlementBlocksBuyExceedingAvailableCash(t *testing.T) {
	cfg := testConfig()
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(1000), Cash: domain.NewMoney(1000)}
	// $900 unsettled (from a prior sell+buy): only $100 available.
	e := newTestEngine(cfg, acct, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.NewMoney(900)}, &fakeDayTrades{})

	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, Price: domain.NewMoney(50), // cost $500 > $100 available
	})
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.ComplianceResult)
	assert.Equal(t, "settlement", result.ReasonCode())
}

func TestGFVBlocksSellOfUnsettledPosition(t *testing.T) {
	cfg := testConfig()
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(5000), Cash: domain.NewMoney(5000)}
	e := newTestEngine(cfg, acct, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.Zero(), hasUnsettledBuy: true}, &fakeDayTrades{})

	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideSell, Quantity: 10, Price: domain.NewMoney(50),
	})
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.ComplianceResult)
	assert.Equal(t, "gfv", result.ReasonCode())
}

func TestDailyTradeLimitBlocks(t *testing.T) {
	cfg := testConfig()
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(5000), Cash: domain.NewMoney(5000)}
	e := newTestEngine(cfg, acct, &fakeTrades{dailyCount: 5}, &fakeSettlement{unsettledAbsSum: domain.Zero()}, &fakeDayTrades{})

	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: domain.NewMoney(10),
	})
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.ComplianceResult)
	assert.Equal(t, "daily_frequency", result.ReasonCode())
}

func TestSizingConfidenceBoundaries(t *testing.T) {
	cfg := testConfig()
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(100000), Cash: domain.NewMoney(100000)}
	e := newTestEngine(cfg, acct, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.Zero()}, &fakeDayTrades{})

	medium := 0.4
	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: domain.NewMoney(100), Confidence: &medium,
	})
	require.NoError(t, err)
	require.NotNil(t, result.PositionSizeShares)
	// balance 100000 * medium pct 0.025 = 2500 / 100 = 25 shares
	assert.Equal(t, int64(25), *result.PositionSizeShares)

	high := 0.7
	result, err = e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: domain.NewMoney(100), Confidence: &high,
	})
	require.NoError(t, err)
	require.NotNil(t, result.PositionSizeShares)
	// balance 100000 * high pct 0.04 = 4000 / 100 = 40 shares
	assert.Equal(t, int64(40), *result.PositionSizeShares)
}

func TestSizingZeroSharesBlocksInsufficientSize(t *testing.T) {
	cfg := testConfig()
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(10), Cash: domain.NewMoney(10)}
	e := newTestEngine(cfg, acct, &fakeTrades{}, &fakeSettlement{unsettledAbsSum: domain.Zero()}, &fakeDayTrades{})

	low := 0.1
	result, err := e.Validate(context.Background(), ValidateRequest{
		AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 0, Price: domain.NewMoney(1000), Confidence: &low,
	})
	require.NoError(t, err)
	assert.Equal(t, Blocked, result.ComplianceResult)
	assert.Equal(t, "insufficient_size", result.ReasonCode())
}

func TestSettlementDateSkipsWeekend(t *testing.T) {
	friday := time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC) // a Friday
	require.Equal(t, time.Friday, friday.Weekday())

	got := settlementDate(friday, 2)
	assert.Equal(t, time.Tuesday, got.Weekday())
}

func TestRecordFillWritesTradeSettlementAndDayTrade(t *testing.T) {
	cfg := testConfig()
	trades := &fakeTrades{}
	settlement := &fakeSettlement{unsettledAbsSum: domain.Zero()}
	daytrades := &fakeDayTrades{}
	acct := domain.Account{ID: 1, Balance: domain.NewMoney(5000), Cash: domain.NewMoney(5000)}
	e := newTestEngine(cfg, acct, trades, settlement, daytrades)

	trade := domain.Trade{AccountID: 1, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, Price: domain.NewMoney(50), ExecutedAt: time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC)}
	id, err := e.RecordFill(context.Background(), trade, true, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.Len(t, settlement.insertedRows, 1)
	assert.True(t, settlement.insertedRows[0].Amount.IsNegative(), "buy settlement amount must be negative")
	require.Len(t, daytrades.inserted, 1)
	assert.Equal(t, int64(7), daytrades.inserted[0].OpenedTradeID)
}

func TestCheckProfitLevelsIdempotentPerLevel(t *testing.T) {
	plan := NewProfitPlan(domain.NewMoney(100), 0.05, 0.10, 0.20, 0.25, 0.50)

	result := CheckProfitLevels(106, plan, 100) // +6% crosses level 1 (5%)
	require.True(t, result.ShouldExit)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, int64(25), result.QtyToExit)

	result = CheckProfitLevels(106, plan, 75)
	assert.False(t, result.ShouldExit, "re-calling at the same level after exit must not fire again")

	result = CheckProfitLevels(112, plan, 75) // +12% crosses level 2 (10%)
	require.True(t, result.ShouldExit)
	assert.Equal(t, 2, result.Level)
	assert.Equal(t, int64(37), result.QtyToExit) // floor(75*0.5)

	result = CheckProfitLevels(121, plan, 38) // +21% crosses level 3, remainder
	require.True(t, result.ShouldExit)
	assert.Equal(t, 3, result.Level)
	assert.Equal(t, int64(38), result.QtyToExit)
	assert.Equal(t, int64(0), result.RemainingQtyAfter)
}
