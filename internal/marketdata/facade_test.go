package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/bot/internal/domain"
)

type fakeHistory struct {
	calls int
	bars  []domain.Bar
	err   error
}

func (f *fakeHistory) RecentBars(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error) {
	f.calls++
	return f.bars, f.err
}

func TestFacadeCachesWithinTTL(t *testing.T) {
	hist := &fakeHistory{bars: []domain.Bar{{T: time.Now(), C: domain.NewMoney(100)}}}
	f := New(nil, hist)

	ctx := context.Background()
	_, err := f.Bars(ctx, "AAPL", "1d", 10)
	require.NoError(t, err)
	_, err = f.Bars(ctx, "AAPL", "1d", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, hist.calls, "second call within TTL should hit the cache")
}

func TestFacadeReturnsUnavailableOnHistoryError(t *testing.T) {
	hist := &fakeHistory{err: assertErr{}}
	f := New(nil, hist)

	_, err := f.Bars(context.Background(), "AAPL", "1d", 10)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnavailable, domain.ErrorKind(err))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestFacadeWithNilHistoryReturnsEmpty(t *testing.T) {
	f := New(nil, nil)
	bars, err := f.Bars(context.Background(), "AAPL", "1d", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
}
