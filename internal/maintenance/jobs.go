package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SettlementRepo is the narrow contract the rollover job needs.
type SettlementRepo interface {
	SettleDue(ctx context.Context, asOf time.Time) (int64, error)
}

// SettlementRolloverJob marks every settlement row whose T+N date has
// passed as settled, so the risk engine's available-cash calculation
// stops counting it against the buy-side gate.
type SettlementRolloverJob struct {
	log  zerolog.Logger
	repo SettlementRepo
	now  func() time.Time
}

func NewSettlementRolloverJob(log zerolog.Logger, repo SettlementRepo) *SettlementRolloverJob {
	return &SettlementRolloverJob{log: log.With().Str("job", "settlement_rollover").Logger(), repo: repo, now: time.Now}
}

func (j *SettlementRolloverJob) Name() string { return "settlement_rollover" }

func (j *SettlementRolloverJob) Run(ctx context.Context) error {
	n, err := j.repo.SettleDue(ctx, j.now())
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info().Int64("rows_settled", n).Msg("settled due rows")
	}
	return nil
}

// DayTradeRepo is the narrow contract the day-trade GC job needs.
type DayTradeRepo interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// dayTradeRetention exceeds the 5-day PDT lookback window so a count
// query started just before the GC runs still sees its rows.
const dayTradeRetention = 14 * 24 * time.Hour

// DayTradeGCJob purges day-trade rows old enough that no PDT window can
// ever reference them again, keeping the table from growing unbounded.
type DayTradeGCJob struct {
	log  zerolog.Logger
	repo DayTradeRepo
	now  func() time.Time
}

func NewDayTradeGCJob(log zerolog.Logger, repo DayTradeRepo) *DayTradeGCJob {
	return &DayTradeGCJob{log: log.With().Str("job", "day_trade_gc").Logger(), repo: repo, now: time.Now}
}

func (j *DayTradeGCJob) Name() string { return "day_trade_gc" }

func (j *DayTradeGCJob) Run(ctx context.Context) error {
	n, err := j.repo.PurgeOlderThan(ctx, j.now().Add(-dayTradeRetention))
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info().Int64("rows_purged", n).Msg("purged stale day-trade rows")
	}
	return nil
}
