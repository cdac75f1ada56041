package strategy

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/bot/internal/domain"
)

type stubStrategy struct {
	base
	signal domain.Signal
	exit   bool
	reason string
}

func (s *stubStrategy) OnBars(bars []domain.Bar, open *domain.Position) domain.Signal { return s.signal }
func (s *stubStrategy) ShouldExit(open *domain.Position, bars []domain.Bar) (bool, string) {
	return s.exit, s.reason
}

func TestEvaluateDispatchesNonHoldSignals(t *testing.T) {
	e := New(zerolog.Nop())
	defer e.Close()

	var mu sync.Mutex
	var received []domain.Signal
	e.RegisterSignalCallback(func(sig domain.Signal) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, sig)
	})

	s := &stubStrategy{base: base{id: "s1", symbol: "AAPL"}, signal: domain.Signal{Kind: domain.SignalBuy, Confidence: 0.9}}
	e.Register(s)

	sig, err := e.Evaluate("s1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalBuy, sig.Kind)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEvaluateHoldSignalsAreNotDispatched(t *testing.T) {
	e := New(zerolog.Nop())
	defer e.Close()

	dispatched := false
	e.RegisterSignalCallback(func(sig domain.Signal) { dispatched = true })

	s := &stubStrategy{base: base{id: "s1", symbol: "AAPL"}, signal: domain.Signal{Kind: domain.SignalHold}}
	e.Register(s)

	_, err := e.Evaluate("s1", nil, nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, dispatched)
}

func TestEvaluateUnknownStrategyErrors(t *testing.T) {
	e := New(zerolog.Nop())
	defer e.Close()

	_, err := e.Evaluate("missing", nil, nil)
	assert.Error(t, err)
}

func TestCheckExitSynthesizesExitSignal(t *testing.T) {
	e := New(zerolog.Nop())
	defer e.Close()

	s := &stubStrategy{base: base{id: "s1", symbol: "AAPL"}, exit: true, reason: "target hit"}
	e.Register(s)

	sig, err := e.CheckExit("s1", &domain.Position{}, nil)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalExit, sig.Kind)
	assert.Equal(t, "target hit", sig.Reason)
}

func TestCallbackPanicDoesNotCrashWorker(t *testing.T) {
	e := New(zerolog.Nop())
	defer e.Close()

	e.RegisterSignalCallback(func(sig domain.Signal) { panic("boom") })

	var mu sync.Mutex
	secondCalled := false
	e.RegisterSignalCallback(func(sig domain.Signal) {
		mu.Lock()
		defer mu.Unlock()
		secondCalled = true
	})

	s := &stubStrategy{base: base{id: "s1", symbol: "AAPL"}, signal: domain.Signal{Kind: domain.SignalBuy}}
	e.Register(s)
	_, err := e.Evaluate("s1", nil, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return secondCalled
	}, time.Second, 10*time.Millisecond)
}
