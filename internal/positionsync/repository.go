// Package positionsync implements the C5 reconciliation pass between
// broker-reported positions and the durable store, grounded on the
// teacher's queue.Scheduler ticker/select/stop/waitgroup idiom
// (internal/queue/scheduler.go) for its debounce loop and on
// TradeSafetyService's transactional bookkeeping for the single-tx
// mutation requirement.
package positionsync

import (
	"context"

	"github.com/tradecore/bot/internal/domain"
)

// Repository is the narrow persistence contract the sync service needs;
// RunInTx scopes every mutation of a single pass to one transaction
// (spec §4.5/§5).
type Repository interface {
	OpenPositions(ctx context.Context, accountID int64) ([]domain.Position, error)
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional handle passed to RunInTx's callback. Closing a
// position is expressed as an UpdatePosition call with Status/ClosedAt/
// RealizedPnL already set on p — there is no separate close operation.
type Tx interface {
	InsertPosition(ctx context.Context, p domain.Position) error
	UpdatePosition(ctx context.Context, p domain.Position) error
}
