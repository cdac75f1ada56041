// Package scheduler implements the C6 Trading Scheduler: a state machine
// with two cooperative loops (evaluation and exit), generalized from the
// teacher's internal/queue/scheduler.go ticker/select/stop/waitgroup idiom
// to spec §4.6's evaluation/exit cadence and market-hours gating.
package scheduler

import (
	"context"

	"github.com/tradecore/bot/internal/risk"
)

// PositionLookup narrows to what the scheduler needs to find a symbol's
// open position and to count how many are open account-wide.
type PositionLookup interface {
	risk.PositionRepository
	CountOpenPositions(ctx context.Context, accountID int64) (int, error)
}
