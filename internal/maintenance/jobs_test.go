package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettlementRepo struct {
	settledCalls int
	err          error
}

func (f *fakeSettlementRepo) SettleDue(ctx context.Context, asOf time.Time) (int64, error) {
	f.settledCalls++
	return 3, f.err
}

func TestSettlementRolloverJobSettlesDueRows(t *testing.T) {
	repo := &fakeSettlementRepo{}
	job := NewSettlementRolloverJob(zerolog.Nop(), repo)
	require.Equal(t, "settlement_rollover", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, repo.settledCalls)
}

type fakeDayTradeRepo struct {
	cutoff time.Time
}

func (f *fakeDayTradeRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 2, nil
}

func TestDayTradeGCJobPurgesOutsideRetention(t *testing.T) {
	repo := &fakeDayTradeRepo{}
	now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	job := NewDayTradeGCJob(zerolog.Nop(), repo)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "day_trade_gc", job.Name())
	assert.Equal(t, now.Add(-dayTradeRetention), repo.cutoff)
}

func TestRunnerRegistersJobAndStarts(t *testing.T) {
	r := New(zerolog.Nop())
	repo := &fakeSettlementRepo{}
	job := NewSettlementRolloverJob(zerolog.Nop(), repo)
	require.NoError(t, r.AddJob("@every 1h", job))
	r.Start()
	defer r.Stop()
}
