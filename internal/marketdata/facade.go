// Package marketdata implements the C2 Market Data Facade: bars come from
// a pluggable history provider, the last bar's close is updated from the
// broker client's MarketData quote, and results sit in a small in-memory
// TTL cache. The broker client has no historical-bars RPC. Grounded in the teacher's
// MarketStatusWebSocket cache pattern (cacheMu + snapshot-on-read).
package marketdata

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/tradecore/bot/internal/domain"
)

const defaultTTL = 5 * time.Second

type cacheEntry struct {
	bars    []domain.Bar
	cachedAt time.Time
}

// barsSource is the subset of domain.BrokerClient the facade depends on,
// kept narrow so it can be faked in tests without a full broker client.
type barsSource interface {
	MarketData(ctx context.Context, symbol string) (domain.Quote, error)
}

// Facade implements domain.MarketDataFacade over a broker client and a
// short-lived cache so repeated evaluator ticks for the same
// symbol/timeframe within a few seconds don't each round-trip to the
// gateway.
type Facade struct {
	source barsSource
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	// history supplies the bars themselves; the broker gateway modeled
	// here only streams live quotes, so a pluggable history provider
	// (e.g. the bars cache store in internal/marketdata/historystore.go)
	// fills in the OHLCV series.
	history HistoryProvider
}

// HistoryProvider returns up to n recent bars for symbol/timeframe,
// ascending, ending at or before now.
type HistoryProvider interface {
	RecentBars(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error)
}

// New builds a Facade. history may be nil, in which case Bars always
// returns an empty slice (no partial results, per spec §4.2).
func New(source barsSource, history HistoryProvider) *Facade {
	return &Facade{
		source:  source,
		ttl:     defaultTTL,
		cache:   make(map[string]cacheEntry),
		history: history,
	}
}

var _ domain.MarketDataFacade = (*Facade)(nil)

// Bars returns up to n contiguous, ascending bars ending at or before
// now. If fewer than n are returnable it returns what exists (possibly
// empty); failures surface as KindUnavailable without partial results.
func (f *Facade) Bars(ctx context.Context, symbol, timeframe string, n int) ([]domain.Bar, error) {
	key := symbol + "|" + timeframe + "|" + strconv.Itoa(n)

	f.mu.Lock()
	if entry, ok := f.cache[key]; ok && time.Since(entry.cachedAt) < f.ttl {
		f.mu.Unlock()
		return entry.bars, nil
	}
	f.mu.Unlock()

	if f.history == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	bars, err := f.history.RecentBars(ctx, symbol, timeframe, n)
	if err != nil {
		return nil, domain.NewError(domain.KindUnavailable, "market data unavailable for "+symbol, err)
	}

	// Patch the close of the most recent bar with a live quote when one
	// is available, so an in-progress period reflects current price
	// rather than its last-stored close.
	if f.source != nil && len(bars) > 0 {
		if q, err := f.source.MarketData(ctx, symbol); err == nil && !q.Last.IsZero() {
			bars[len(bars)-1].C = q.Last
		}
	}

	f.mu.Lock()
	f.cache[key] = cacheEntry{bars: bars, cachedAt: time.Now()}
	f.mu.Unlock()

	return bars, nil
}
