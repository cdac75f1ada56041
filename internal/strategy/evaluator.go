package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/domain"
)

const callbackWorkers = 4
const callbackQueueCapacity = 256

// Evaluator holds the set of enabled strategy instances and ticks them,
// dispatching every non-hold signal to registered callbacks on a worker
// pool so a slow subscriber never throttles evaluation (spec §4.3/§9).
type Evaluator struct {
	log zerolog.Logger

	mu         sync.RWMutex
	strategies map[string]Strategy

	callbacks   []func(domain.Signal)
	callbacksMu sync.RWMutex

	work chan domain.Signal
	wg   sync.WaitGroup
}

// New builds an Evaluator and starts its callback worker pool.
func New(log zerolog.Logger) *Evaluator {
	e := &Evaluator{
		log:        log.With().Str("component", "evaluator").Logger(),
		strategies: make(map[string]Strategy),
		work:       make(chan domain.Signal, callbackQueueCapacity),
	}
	for i := 0; i < callbackWorkers; i++ {
		e.wg.Add(1)
		go e.callbackWorker()
	}
	return e
}

func (e *Evaluator) callbackWorker() {
	defer e.wg.Done()
	for sig := range e.work {
		e.callbacksMu.RLock()
		fns := append([]func(domain.Signal){}, e.callbacks...)
		e.callbacksMu.RUnlock()
		for _, fn := range fns {
			e.invokeSafely(fn, sig)
		}
	}
}

func (e *Evaluator) invokeSafely(fn func(domain.Signal), sig domain.Signal) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("symbol", sig.Symbol).Msg("signal callback panicked")
		}
	}()
	fn(sig)
}

// Register adds or replaces a strategy instance by ID.
func (e *Evaluator) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.ID()] = s
}

// Unregister removes a strategy instance.
func (e *Evaluator) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.strategies, id)
}

// Strategies returns a snapshot of enabled strategy instances.
func (e *Evaluator) Strategies() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		out = append(out, s)
	}
	return out
}

// RegisterSignalCallback registers fn to be invoked for every non-hold
// signal, on the worker pool — never on the evaluating goroutine.
func (e *Evaluator) RegisterSignalCallback(fn func(domain.Signal)) {
	e.callbacksMu.Lock()
	defer e.callbacksMu.Unlock()
	e.callbacks = append(e.callbacks, fn)
}

// Evaluate runs strategyID's OnBars and dispatches the result if it's
// not a hold.
func (e *Evaluator) Evaluate(strategyID string, bars []domain.Bar, open *domain.Position) (domain.Signal, error) {
	e.mu.RLock()
	s, ok := e.strategies[strategyID]
	e.mu.RUnlock()
	if !ok {
		return domain.Signal{}, fmt.Errorf("unknown strategy %q", strategyID)
	}

	sig := s.OnBars(bars, open)
	sig.StrategyID = strategyID
	if sig.Symbol == "" {
		sig.Symbol = s.Symbol()
	}

	if sig.Kind != domain.SignalHold {
		e.dispatch(sig)
	}
	return sig, nil
}

// CheckExit runs strategyID's ShouldExit and, if it fires, synthesizes
// and dispatches an exit signal.
func (e *Evaluator) CheckExit(strategyID string, open *domain.Position, bars []domain.Bar) (*domain.Signal, error) {
	e.mu.RLock()
	s, ok := e.strategies[strategyID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", strategyID)
	}

	exit, reason := s.ShouldExit(open, bars)
	if !exit {
		return nil, nil
	}
	var price domain.Money
	if len(bars) > 0 {
		price = bars[len(bars)-1].C
	}
	sig := domain.Signal{
		Kind: domain.SignalExit, Symbol: s.Symbol(), Price: price,
		Confidence: 1.0, Reason: reason, StrategyID: strategyID, GeneratedAt: time.Now(),
	}
	e.dispatch(sig)
	return &sig, nil
}

func (e *Evaluator) dispatch(sig domain.Signal) {
	select {
	case e.work <- sig:
	default:
		e.log.Warn().Str("symbol", sig.Symbol).Msg("signal callback queue full, dropping dispatch")
	}
}

// Close stops the worker pool; no more callbacks fire after this returns.
func (e *Evaluator) Close() {
	close(e.work)
	e.wg.Wait()
}
