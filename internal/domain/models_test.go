package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionClosedIffZero(t *testing.T) {
	now := time.Now()
	p := Position{Quantity: 0, Status: PositionClosed, ClosedAt: &now}
	assert.Equal(t, PositionClosed, p.Status)
	assert.Zero(t, p.Quantity)
	assert.NotNil(t, p.ClosedAt)
}

func TestKindErrorUnwrapsToSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(KindTimeout, "rpc timed out", cause)

	require.True(t, errors.Is(err, ErrTimeout))
	require.True(t, errors.Is(err, cause))
	assert.Equal(t, KindTimeout, ErrorKind(err))
}

func TestErrorKindDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, ErrorKind(errors.New("unclassified")))
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	a := NewMoney(0.1)
	b := NewMoney(0.2)
	sum := a.Add(b)
	assert.True(t, sum.Equal(NewMoney(0.3)), "expected exact decimal sum, got %s", sum)
}
