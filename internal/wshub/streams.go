package wshub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/domain"
)

// PriceStream polls the broker for quotes on a fixed symbol set and
// broadcasts a single price_update batching every symbol whose price
// changed since the previous tick (spec §4.7).
type PriceStream struct {
	log      zerolog.Logger
	hub      *Hub
	broker   domain.BrokerClient
	symbols  []string
	interval time.Duration

	mu         sync.Mutex
	lastPrices map[string]float64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPriceStream(log zerolog.Logger, hub *Hub, broker domain.BrokerClient, symbols []string, interval time.Duration) *PriceStream {
	return &PriceStream{
		log:        log.With().Str("component", "price_stream").Logger(),
		hub:        hub,
		broker:     broker,
		symbols:    symbols,
		interval:   interval,
		lastPrices: make(map[string]float64),
		stopCh:     make(chan struct{}),
	}
}

func (p *PriceStream) Start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *PriceStream) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *PriceStream) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *PriceStream) tick() {
	changed := make(map[string]SymbolPrice)
	for _, sym := range p.symbols {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		quote, err := p.broker.MarketData(ctx, sym)
		cancel()
		if err != nil {
			p.log.Warn().Err(err).Str("symbol", sym).Msg("price stream quote fetch failed")
			continue
		}
		last := quote.Last.InexactFloat64()

		p.mu.Lock()
		prev, seen := p.lastPrices[sym]
		p.lastPrices[sym] = last
		p.mu.Unlock()

		if seen && prev == last {
			continue
		}
		change := 0.0
		changePct := 0.0
		if seen && prev != 0 {
			change = last - prev
			changePct = change / prev * 100
		}
		volume := quote.Volume
		changed[sym] = SymbolPrice{
			Price: last, Change: change, ChangePct: changePct,
			Volume: &volume,
		}
	}
	if len(changed) == 0 {
		return
	}
	now := time.Now()
	p.hub.Broadcast(context.Background(), PriceUpdateMsg{Type: "price_update", Symbols: changed, Timestamp: &now}, domain.TopicPriceUpdates)
}

// SignalStream forwards scheduler-published signals to the signals topic.
// Its Publish method is the callback; cmd/server registers it with the
// scheduler's OnSignal hook.
type SignalStream struct {
	hub *Hub
}

func NewSignalStream(hub *Hub) *SignalStream { return &SignalStream{hub: hub} }

// Publish is the callback to register with the signal source.
func (s *SignalStream) Publish(sig domain.Signal) {
	msg := SignalMsg{
		Type: "signal", SignalType: string(sig.Kind), Symbol: sig.Symbol,
		Price: sig.Price.InexactFloat64(), Quantity: sig.Quantity,
		Confidence: sig.Confidence, Timestamp: sig.GeneratedAt,
	}
	s.hub.Broadcast(context.Background(), msg, domain.TopicSignals)
}

// PortfolioProvider computes the current positions/P&L snapshot; the
// store package implements this against its position repository.
type PortfolioProvider interface {
	Snapshot(ctx context.Context) (PortfolioData, error)
}

// PortfolioStream emits on an explicit Notify() (broker position
// callback) and/or a fixed poll interval, but only broadcasts when the
// snapshot actually changed (spec §4.7).
type PortfolioStream struct {
	log      zerolog.Logger
	hub      *Hub
	provider PortfolioProvider
	interval time.Duration

	mu   sync.Mutex
	last PortfolioData

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPortfolioStream(log zerolog.Logger, hub *Hub, provider PortfolioProvider, interval time.Duration) *PortfolioStream {
	return &PortfolioStream{
		log: log.With().Str("component", "portfolio_stream").Logger(), hub: hub, provider: provider,
		interval: interval, stopCh: make(chan struct{}),
	}
}

func (p *PortfolioStream) Start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *PortfolioStream) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// Notify triggers an immediate emit check (e.g. from a broker position
// callback), without blocking the caller.
func (p *PortfolioStream) Notify() {
	go p.emitIfChanged()
}

func (p *PortfolioStream) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.emitIfChanged()
		}
	}
}

func (p *PortfolioStream) emitIfChanged() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snapshot, err := p.provider.Snapshot(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("portfolio snapshot failed")
		return
	}

	p.mu.Lock()
	unchanged := portfolioEqual(p.last, snapshot)
	p.last = snapshot
	p.mu.Unlock()
	if unchanged {
		return
	}

	p.hub.Broadcast(context.Background(), PortfolioUpdateMsg{
		Type: "portfolio_update", Channel: "portfolio", Timestamp: time.Now(), Data: snapshot,
	}, domain.TopicPortfolio)
}

func portfolioEqual(a, b PortfolioData) bool {
	if a.PositionCount != b.PositionCount || a.TotalPnL != b.TotalPnL {
		return false
	}
	if len(a.Positions) != len(b.Positions) {
		return false
	}
	for sym, pa := range a.Positions {
		pb, ok := b.Positions[sym]
		if !ok || pa != pb {
			return false
		}
	}
	return true
}

// TradePublisher broadcasts trade_executed on every fill; Publish is the
// callback to register with the scheduler's OnTradeExecuted hook.
type TradePublisher struct {
	hub *Hub
}

func NewTradePublisher(hub *Hub) *TradePublisher { return &TradePublisher{hub: hub} }

func (t *TradePublisher) Publish(trade domain.Trade) {
	msg := TradeExecutedMsg{
		Type: "trade_executed", Symbol: trade.Symbol, Side: string(trade.Side),
		Quantity: trade.Quantity, Price: trade.Price.InexactFloat64(), Timestamp: trade.ExecutedAt,
	}
	t.hub.Broadcast(context.Background(), msg, domain.TopicTrades)
}
