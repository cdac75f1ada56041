package positionsync

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
)

type fakeBroker struct {
	domain.BrokerClient
	connected bool
	positions []domain.BrokerPosition
	err       error
}

func (f *fakeBroker) IsConnected() bool { return f.connected }
func (f *fakeBroker) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.positions, nil
}

type fakeRepo struct {
	mu        sync.Mutex
	open      []domain.Position
	inserted  []domain.Position
	updated   []domain.Position
}

func (f *fakeRepo) OpenPositions(ctx context.Context, accountID int64) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Position, len(f.open))
	copy(out, f.open)
	return out, nil
}

func (f *fakeRepo) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return fn(f)
}

func (f *fakeRepo) InsertPosition(ctx context.Context, p domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, p)
	return nil
}

func (f *fakeRepo) UpdatePosition(ctx context.Context, p domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, p)
	return nil
}

func TestSyncReturnsDisconnectedWithoutMutatingStore(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{}, &fakeBroker{connected: false}, repo)

	_, err := svc.Sync(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindDisconnected, domain.ErrorKind(err))
	assert.Empty(t, repo.inserted)
	assert.Empty(t, repo.updated)
}

func TestSyncCreatesNewPositionForUnmatchedBrokerPosition(t *testing.T) {
	broker := &fakeBroker{connected: true, positions: []domain.BrokerPosition{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: domain.NewMoney(100), MarketPrice: domain.NewMoney(110)},
	}}
	repo := &fakeRepo{}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{}, broker, repo)

	result, err := svc.Sync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "AAPL", repo.inserted[0].Symbol)
}

func TestSyncIncreasesPositionRecomputesWeightedAverage(t *testing.T) {
	broker := &fakeBroker{connected: true, positions: []domain.BrokerPosition{
		{Symbol: "AAPL", Quantity: 20, AveragePrice: domain.NewMoney(120), MarketPrice: domain.NewMoney(120)},
	}}
	repo := &fakeRepo{open: []domain.Position{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: domain.NewMoney(100), Status: domain.PositionOpen},
	}}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{}, broker, repo)

	result, err := svc.Sync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, repo.updated, 1)
	// (100*10 + 120*10) / 20 = 110
	assert.True(t, repo.updated[0].AveragePrice.Equal(domain.NewMoney(110)))
}

func TestSyncPartialCloseTracksRealizedPnL(t *testing.T) {
	broker := &fakeBroker{connected: true, positions: []domain.BrokerPosition{
		{Symbol: "AAPL", Quantity: 5, AveragePrice: domain.NewMoney(100), MarketPrice: domain.NewMoney(150)},
	}}
	repo := &fakeRepo{open: []domain.Position{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: domain.NewMoney(100), Status: domain.PositionOpen},
	}}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{}, broker, repo)

	result, err := svc.Sync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	require.NotNil(t, repo.updated[0].RealizedPnL)
	// (150-100) * 5 closed shares = 250
	assert.True(t, repo.updated[0].RealizedPnL.Equal(domain.NewMoney(250)))
}

func TestSyncMissingPositionWarnsButDoesNotCloseByDefault(t *testing.T) {
	broker := &fakeBroker{connected: true, positions: nil}
	repo := &fakeRepo{open: []domain.Position{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: domain.NewMoney(100), Status: domain.PositionOpen},
	}}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{MarkMissingAsClosed: false}, broker, repo)

	result, err := svc.Sync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Closed)
	assert.Contains(t, result.Warned, "AAPL")
	assert.Empty(t, repo.updated)
}

func TestSyncMissingPositionClosesWhenConfigured(t *testing.T) {
	broker := &fakeBroker{connected: true, positions: nil}
	repo := &fakeRepo{open: []domain.Position{
		{Symbol: "AAPL", Quantity: 10, AveragePrice: domain.NewMoney(100), Status: domain.PositionOpen},
	}}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{MarkMissingAsClosed: true}, broker, repo)

	result, err := svc.Sync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closed)
	require.Len(t, repo.updated, 1)
	require.NotNil(t, repo.updated[0].RealizedPnL)
	assert.True(t, repo.updated[0].RealizedPnL.IsZero())
}

func TestConcurrentSyncReturnsConflictWhenBusy(t *testing.T) {
	block := make(chan struct{})
	broker := &slowBroker{block: block}
	repo := &fakeRepo{}
	svc := New(zerolog.Nop(), config.PositionSyncConfig{}, broker, repo)

	done := make(chan struct{})
	go func() {
		_, _ = svc.Sync(context.Background(), 1)
		close(done)
	}()

	require.Eventually(t, func() bool { return broker.started() }, time.Second, 5*time.Millisecond)

	_, err := svc.Sync(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.ErrorKind(err))

	close(block)
	<-done
}

type slowBroker struct {
	domain.BrokerClient
	block   chan struct{}
	mu      sync.Mutex
	began   bool
}

func (f *slowBroker) IsConnected() bool { return true }
func (f *slowBroker) started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.began
}
func (f *slowBroker) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	f.mu.Lock()
	f.began = true
	f.mu.Unlock()
	<-f.block
	return nil, nil
}
