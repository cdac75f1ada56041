package broker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tradecore/bot/internal/domain"
)

var orderSeq atomic.Int64

// PlaceOrder submits an order and returns once the gateway has accepted
// the frame; it does not wait for a fill (spec §4.1: "guarantees
// submission, not fill").
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.Quantity <= 0 {
		return domain.OrderResult{}, domain.NewError(domain.KindInvalidRequest, "order quantity must be positive", nil)
	}
	if !c.IsConnected() {
		return domain.OrderResult{}, domain.NewError(domain.KindDisconnected, "broker not connected", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.OrderResult{}, domain.NewError(domain.KindTimeout, "rate limiter wait", err)
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	orderID := fmt.Sprintf("o-%d", orderSeq.Add(1))
	limitPrice := ""
	if req.LimitPrice != nil {
		limitPrice = req.LimitPrice.String()
	}
	frame := encodeFrame(msgPlaceOrder, orderID, req.Symbol, string(req.Side),
		fmt.Sprintf("%d", req.Quantity), string(req.Type), limitPrice)

	writeCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	if err := c.writeFrame(writeCtx, frame); err != nil {
		return domain.OrderResult{}, err
	}
	return domain.OrderResult{BrokerOrderID: orderID}, nil
}

// CancelOrder requests cancellation of a previously placed order.
func (c *Client) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if !c.IsConnected() {
		return domain.NewError(domain.KindDisconnected, "broker not connected", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.NewError(domain.KindTimeout, "rate limiter wait", err)
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.writeFrame(writeCtx, encodeFrame(msgCancelOrder, brokerOrderID))
}

func (c *Client) writeFrame(ctx context.Context, frame []byte) error {
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := c.conn.Write(frame)
		done <- result{err}
	}()
	select {
	case <-ctx.Done():
		return domain.NewError(domain.KindTimeout, "broker write timed out", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return domain.NewError(domain.KindUnavailable, "broker write failed", r.err)
		}
		return nil
	}
}

// Positions returns a snapshot of positions as last reported by the
// gateway's position stream.
func (c *Client) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if !c.IsConnected() {
		return nil, domain.NewError(domain.KindDisconnected, "broker not connected", nil)
	}
	c.positionsMu.RLock()
	defer c.positionsMu.RUnlock()
	out := make([]domain.BrokerPosition, 0, len(c.positions))
	for _, p := range c.positions {
		out = append(out, p)
	}
	return out, nil
}

// AccountSummary returns the last account summary reported by the
// gateway.
func (c *Client) AccountSummary(ctx context.Context) (domain.AccountSummary, error) {
	if !c.IsConnected() {
		return domain.AccountSummary{}, domain.NewError(domain.KindDisconnected, "broker not connected", nil)
	}
	c.accountMu.RLock()
	defer c.accountMu.RUnlock()
	return c.account, nil
}

// MarketData requests a quote for symbol, bounded by a short RPC timeout;
// may return stale values outside market hours (spec §4.1).
func (c *Client) MarketData(ctx context.Context, symbol string) (domain.Quote, error) {
	if !c.IsConnected() {
		return domain.Quote{}, domain.NewError(domain.KindDisconnected, "broker not connected", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, domain.NewError(domain.KindTimeout, "rate limiter wait", err)
	}

	c.reqMu.Lock()
	frame := encodeFrame(msgReqMarketData, symbol)
	writeCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	err := c.writeFrame(writeCtx, frame)
	cancel()
	c.reqMu.Unlock()
	if err != nil {
		return domain.Quote{}, err
	}

	c.positionsMu.RLock()
	pos, ok := c.positions[symbol]
	c.positionsMu.RUnlock()
	if !ok {
		return domain.Quote{Symbol: symbol}, nil
	}
	return domain.Quote{Symbol: symbol, Last: pos.MarketPrice}, nil
}
