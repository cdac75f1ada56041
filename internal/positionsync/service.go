package positionsync

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
)

const brokerFetchTimeout = 30 * time.Second
const debounceWindow = 5 * time.Second

// Stats mirrors the rollup spec §4.5 names.
type Stats struct {
	Total             int64
	Success           int64
	Failed            int64
	Created           int64
	Updated           int64
	Closed            int64
	CallbackTriggers  int64
	LastSyncAt        time.Time
	LastError         string
}

// SyncResult is returned from a single reconciliation pass.
type SyncResult struct {
	Created int
	Updated int
	Closed  int
	Warned  []string // symbols present in the store but missing from the broker
}

// Service runs the C5 reconciliation pass. A single instance handles one
// account at a time under its sync lock; running it per-account requires
// one Service per account_id, matching spec §5's "per-service lock".
type Service struct {
	log    zerolog.Logger
	cfg    config.PositionSyncConfig
	broker domain.BrokerClient
	repo   Repository

	syncMu sync.Mutex // held for the duration of one sync pass

	debounceMu      sync.Mutex
	lastSyncAt      time.Time
	followupPending bool

	statsMu sync.Mutex
	stats   Stats

	now func() time.Time
}

// New builds a position-sync Service for a single account.
func New(log zerolog.Logger, cfg config.PositionSyncConfig, broker domain.BrokerClient, repo Repository) *Service {
	return &Service{
		log:    log.With().Str("component", "positionsync").Logger(),
		cfg:    cfg,
		broker: broker,
		repo:   repo,
		now:    time.Now,
	}
}

// Stats returns a snapshot of the running counters.
func (s *Service) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Sync performs one reconciliation pass for accountID. Concurrent calls
// while a pass is already running return a conflict error (spec §5's
// "sync calls that cannot acquire [the lock] return busy").
func (s *Service) Sync(ctx context.Context, accountID int64) (SyncResult, error) {
	if !s.syncMu.TryLock() {
		return SyncResult{}, domain.NewError(domain.KindConflict, "sync already in progress", nil)
	}
	defer s.syncMu.Unlock()
	return s.run(ctx, accountID)
}

// NotifyPositionUpdate is the broker-callback entry point (spec §5): if a
// sync ran within the last 5 seconds, this call is skipped and a single
// follow-up is scheduled instead of running inline.
func (s *Service) NotifyPositionUpdate(accountID int64) {
	if !s.cfg.SyncOnPositionUpdate {
		return
	}
	s.statsMu.Lock()
	s.stats.CallbackTriggers++
	s.statsMu.Unlock()

	s.debounceMu.Lock()
	sinceLast := s.now().Sub(s.lastSyncAt)
	if sinceLast < debounceWindow {
		if !s.followupPending {
			s.followupPending = true
			wait := debounceWindow - sinceLast
			time.AfterFunc(wait, func() {
				s.debounceMu.Lock()
				s.followupPending = false
				s.debounceMu.Unlock()
				_, _ = s.Sync(context.Background(), accountID)
			})
		}
		s.debounceMu.Unlock()
		return
	}
	s.debounceMu.Unlock()
	go func() { _, _ = s.Sync(context.Background(), accountID) }()
}

func (s *Service) run(ctx context.Context, accountID int64) (SyncResult, error) {
	s.statsMu.Lock()
	s.stats.Total++
	s.statsMu.Unlock()

	if !s.broker.IsConnected() {
		s.recordFailure("broker not connected")
		return SyncResult{}, domain.NewError(domain.KindDisconnected, "broker not connected", nil)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, brokerFetchTimeout)
	defer cancel()
	brokerPositions, err := s.broker.Positions(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.recordFailure("broker positions fetch timed out")
			return SyncResult{}, domain.NewError(domain.KindTimeout, "broker positions fetch timed out", err)
		}
		s.recordFailure(err.Error())
		return SyncResult{}, domain.NewError(domain.KindUnavailable, "broker positions fetch failed", err)
	}

	dbPositions, err := s.repo.OpenPositions(ctx, accountID)
	if err != nil {
		s.recordFailure(err.Error())
		return SyncResult{}, domain.NewError(domain.KindUnavailable, "open position lookup failed", err)
	}
	byBrokerSymbol := make(map[string]domain.BrokerPosition, len(brokerPositions))
	for _, bp := range brokerPositions {
		byBrokerSymbol[bp.Symbol] = bp
	}
	byDBSymbol := make(map[string]domain.Position, len(dbPositions))
	for _, dp := range dbPositions {
		byDBSymbol[dp.Symbol] = dp
	}

	result := SyncResult{}
	now := s.now()

	txErr := s.repo.RunInTx(ctx, func(tx Tx) error {
		for _, bp := range brokerPositions {
			dp, matched := byDBSymbol[bp.Symbol]

			if bp.Quantity == 0 {
				if matched && dp.Status == domain.PositionOpen {
					closePosition(&dp, bp.MarketPrice, now)
					if err := tx.UpdatePosition(ctx, dp); err != nil {
						return err
					}
					result.Closed++
				}
				continue
			}

			if !matched {
				np := domain.Position{
					AccountID:    accountID,
					Symbol:       bp.Symbol,
					Quantity:     bp.Quantity,
					AveragePrice: bp.AveragePrice,
					CurrentPrice: bp.MarketPrice,
					Status:       domain.PositionOpen,
					OpenedAt:     now,
					LastSyncedAt: now,
				}
				np.UnrealizedPnL, np.UnrealizedPnLPct = unrealized(np.AveragePrice, np.CurrentPrice, np.Quantity)
				if err := tx.InsertPosition(ctx, np); err != nil {
					return err
				}
				result.Created++
				continue
			}

			switch {
			case bp.Quantity > dp.Quantity:
				dp.AveragePrice = weightedAverage(dp.AveragePrice, dp.Quantity, bp.AveragePrice, bp.Quantity-dp.Quantity)
				dp.Quantity = bp.Quantity
				dp.CurrentPrice = bp.MarketPrice
			case bp.Quantity < dp.Quantity:
				closedQty := dp.Quantity - bp.Quantity
				realized := bp.MarketPrice.Sub(dp.AveragePrice).Mul(domain.NewMoney(float64(closedQty)))
				if dp.RealizedPnL == nil {
					dp.RealizedPnL = &realized
				} else {
					sum := dp.RealizedPnL.Add(realized)
					dp.RealizedPnL = &sum
				}
				dp.Quantity = bp.Quantity
				dp.CurrentPrice = bp.MarketPrice
			default:
				dp.CurrentPrice = bp.MarketPrice
			}
			dp.UnrealizedPnL, dp.UnrealizedPnLPct = unrealized(dp.AveragePrice, dp.CurrentPrice, dp.Quantity)
			dp.LastSyncedAt = now
			if err := tx.UpdatePosition(ctx, dp); err != nil {
				return err
			}
			result.Updated++
		}

		for _, dp := range dbPositions {
			if _, present := byBrokerSymbol[dp.Symbol]; present {
				continue
			}
			result.Warned = append(result.Warned, dp.Symbol)
			s.log.Warn().Str("symbol", dp.Symbol).Msg("open position missing from broker report")
			if s.cfg.MarkMissingAsClosed {
				closePosition(&dp, dp.CurrentPrice, now)
				zero := domain.Zero()
				dp.RealizedPnL = &zero
				if err := tx.UpdatePosition(ctx, dp); err != nil {
					return err
				}
				result.Closed++
			}
		}
		return nil
	})

	if txErr != nil {
		s.recordFailure(txErr.Error())
		return SyncResult{}, domain.NewError(domain.KindInternal, "position sync transaction failed", txErr)
	}

	s.statsMu.Lock()
	s.stats.Success++
	s.stats.Created += int64(result.Created)
	s.stats.Updated += int64(result.Updated)
	s.stats.Closed += int64(result.Closed)
	s.stats.LastSyncAt = now
	s.statsMu.Unlock()

	s.debounceMu.Lock()
	s.lastSyncAt = now
	s.debounceMu.Unlock()

	return result, nil
}

func (s *Service) recordFailure(msg string) {
	s.statsMu.Lock()
	s.stats.Failed++
	s.stats.LastError = msg
	s.statsMu.Unlock()
}

func closePosition(p *domain.Position, exitPrice domain.Money, now time.Time) {
	realized := exitPrice.Sub(p.AveragePrice).Mul(domain.NewMoney(float64(p.Quantity)))
	if p.RealizedPnL != nil {
		realized = realized.Add(*p.RealizedPnL)
	}
	p.RealizedPnL = &realized
	p.Quantity = 0
	p.CurrentPrice = exitPrice
	p.Status = domain.PositionClosed
	p.ClosedAt = &now
	p.LastSyncedAt = now
}

func weightedAverage(avgA domain.Money, qtyA int64, avgB domain.Money, qtyB int64) domain.Money {
	totalQty := qtyA + qtyB
	if totalQty == 0 {
		return avgA
	}
	weighted := avgA.Mul(domain.NewMoney(float64(qtyA))).Add(avgB.Mul(domain.NewMoney(float64(qtyB))))
	return weighted.Div(domain.NewMoney(float64(totalQty)))
}

func unrealized(avg, current domain.Money, qty int64) (domain.Money, float64) {
	pnl := current.Sub(avg).Mul(domain.NewMoney(float64(qty)))
	avgF := avg.InexactFloat64()
	pct := 0.0
	if avgF != 0 {
		pct = (current.InexactFloat64() - avgF) / math.Abs(avgF) * 100
	}
	return pnl, pct
}
