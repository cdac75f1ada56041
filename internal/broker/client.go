package broker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
)

// connState mirrors the IB-style client's atomic state enum.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

const (
	healthProbeInterval = 30 * time.Second
	maxReconnectAttempts = 5
	reconnectDelay       = 5 * time.Second
	rpcTimeout           = 10 * time.Second
	eventQueueCapacity   = 1024
)

// Client is a TCP session to a broker gateway. It implements
// domain.BrokerClient: callers serialize all RPCs through reqMu to match
// the gateway's single-threaded ABI (spec §5), while asynchronous
// callbacks (fills, position updates, errors) are funnelled through a
// bounded channel read by a single dispatch goroutine so the session
// reader never blocks on a slow subscriber.
type Client struct {
	cfg config.BrokerConfig
	log zerolog.Logger

	conn    net.Conn
	state   atomic.Int32
	reqMu   sync.Mutex // serializes RPC round trips (single-threaded gateway ABI)

	limiter *rate.Limiter

	events    chan brokerEvent
	done      chan struct{}
	wg        sync.WaitGroup

	audit *auditLog

	mu               sync.Mutex
	onOrderFilled    func(domain.Trade)
	onPositionUpdate func(domain.BrokerPosition)
	onError          func(error)

	positionsMu sync.RWMutex
	positions   map[string]domain.BrokerPosition

	accountMu sync.RWMutex
	account   domain.AccountSummary
}

type brokerEvent struct {
	kind string // "fill" | "position" | "error"
	at   time.Time
	trade    *domain.Trade
	position *domain.BrokerPosition
	err      error
}

// New creates a broker client ready to Connect. auditPath, if non-empty,
// enables the msgpack-encoded diagnostic event ring log (see events.go).
func New(cfg config.BrokerConfig, log zerolog.Logger, auditPath string) *Client {
	c := &Client{
		cfg:       cfg,
		log:       log.With().Str("component", "broker").Logger(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPCPerSec), int(cfg.RPCPerSec)+1),
		events:    make(chan brokerEvent, eventQueueCapacity),
		done:      make(chan struct{}),
		positions: make(map[string]domain.BrokerPosition),
	}
	if auditPath != "" {
		c.audit = newAuditLog(auditPath, 256)
	}
	c.state.Store(int32(stateDisconnected))
	return c
}

var _ domain.BrokerClient = (*Client)(nil)

func (c *Client) State() connState { return connState(c.state.Load()) }

func (c *Client) IsConnected() bool { return c.State() == stateConnected }

// Connect dials the gateway, performs the handshake, and starts the
// session reader and health-probe supervisor goroutines.
func (c *Client) Connect(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.IsConnected() {
		return nil
	}
	c.state.Store(int32(stateConnecting))

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.state.Store(int32(stateDisconnected))
		return domain.NewError(domain.KindUnavailable, "dial broker gateway", err)
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		_ = conn.Close()
		c.state.Store(int32(stateDisconnected))
		return domain.NewError(domain.KindUnavailable, "broker handshake", err)
	}

	c.state.Store(int32(stateConnected))
	c.done = make(chan struct{})

	c.wg.Add(2)
	go c.dispatchLoop()
	go c.readLoop()
	go c.healthSupervisor()

	c.log.Info().Str("addr", addr).Msg("connected to broker gateway")
	return nil
}

func (c *Client) handshake() error {
	if _, err := c.conn.Write(append([]byte("API\x00"), append([]byte(apiVersionRange), 0)...)); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 512)
	if _, err := c.conn.Read(buf); err != nil {
		return fmt.Errorf("read handshake response: %w", err)
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	start := encodeFrame(msgStartAPI, "2", c.cfg.ClientID)
	if _, err := c.conn.Write(start); err != nil {
		return fmt.Errorf("write startAPI: %w", err)
	}
	return nil
}

// Disconnect tears down the session and stops the supervisor/reader
// goroutines; it is idempotent.
func (c *Client) Disconnect(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	close(c.done)
	c.state.Store(int32(stateDisconnected))
	err := c.conn.Close()
	c.wg.Wait()
	if c.audit != nil {
		c.audit.Close()
	}
	return err
}

// readLoop owns the socket: it polls with a short read deadline so it can
// observe c.done, parses complete frames, and converts them into bounded
// dispatch-channel events. It never calls a registered callback directly.
func (c *Client) readLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		default:
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		fields, err := readFrame(c.conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.publish(brokerEvent{kind: "error", at: time.Now(), err: domain.NewError(domain.KindDisconnected, "broker session lost", err)})
			c.handleDisconnect()
			return
		}
		if len(fields) == 0 {
			continue
		}
		c.processFrame(fields)
	}
}

func (c *Client) processFrame(fields []string) {
	msgID := atoiOr(fields[0], -1)
	switch msgID {
	case msgAccountSummary:
		c.handleAccountSummary(fields)
	case msgPosition:
		c.handlePosition(fields)
	case msgOrderStatus:
		c.handleOrderStatus(fields)
	case msgErrMsg:
		if len(fields) > 2 {
			c.publish(brokerEvent{kind: "error", at: time.Now(), err: fmt.Errorf("gateway error %s: %s", fields[1], fields[2])})
		}
	}
}

func (c *Client) handleAccountSummary(fields []string) {
	if len(fields) < 6 {
		return
	}
	tag, valueStr := fields[3], fields[4]
	value := domain.NewMoney(parseFloatOr(valueStr, 0))
	c.accountMu.Lock()
	switch tag {
	case "NetLiquidation":
		c.account.NetLiquidation = value
	case "TotalCashValue":
		c.account.TotalCash = value
	}
	c.accountMu.Unlock()
}

func (c *Client) handlePosition(fields []string) {
	if len(fields) < 6 {
		return
	}
	symbol := fields[2]
	qty := int64(atoiOr(fields[3], 0))
	avgCost := domain.NewMoney(parseFloatOr(fields[4], 0))
	pos := domain.BrokerPosition{Symbol: symbol, Quantity: qty, AveragePrice: avgCost}

	c.positionsMu.Lock()
	c.positions[symbol] = pos
	c.positionsMu.Unlock()

	c.publish(brokerEvent{kind: "position", at: time.Now(), position: &pos})
}

func (c *Client) handleOrderStatus(fields []string) {
	if len(fields) < 6 {
		return
	}
	symbol := fields[2]
	side := domain.TradeSide(fields[3])
	qty := int64(atoiOr(fields[4], 0))
	price := domain.NewMoney(parseFloatOr(fields[5], 0))
	trade := domain.Trade{Symbol: symbol, Side: side, Quantity: qty, Price: price, ExecutedAt: time.Now(), BrokerOrderID: fields[1]}
	c.publish(brokerEvent{kind: "fill", at: time.Now(), trade: &trade})
}

// publish enqueues an event without blocking the reader: a full queue
// drops the oldest pending event and logs a warning, matching the
// bounded-channel overflow policy in spec §5/§7.
func (c *Client) publish(ev brokerEvent) {
	if c.audit != nil {
		c.audit.Append(ev)
	}
	select {
	case c.events <- ev:
	default:
		select {
		case <-c.events:
			c.log.Warn().Msg("broker event queue full, dropped oldest event")
		default:
		}
		select {
		case c.events <- ev:
		default:
			c.log.Warn().Msg("broker event queue still full, dropping event")
		}
	}
}

// dispatchLoop is the single consumer of the bounded event channel; it is
// the only goroutine that invokes registered callbacks, keeping them off
// the session reader's stack (spec §9: avoid re-entrancy through the
// broker event thread).
func (c *Client) dispatchLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.mu.Lock()
			onFill, onPos, onErr := c.onOrderFilled, c.onPositionUpdate, c.onError
			c.mu.Unlock()
			switch ev.kind {
			case "fill":
				if onFill != nil && ev.trade != nil {
					onFill(*ev.trade)
				}
			case "position":
				if onPos != nil && ev.position != nil {
					onPos(*ev.position)
				}
			case "error":
				if onErr != nil {
					onErr(ev.err)
				}
			}
		}
	}
}

func (c *Client) handleDisconnect() {
	if !c.IsConnected() {
		return
	}
	c.state.Store(int32(stateDisconnected))
	c.log.Warn().Msg("broker session lost, reconnect supervisor will retry")
}

// healthSupervisor probes the session every 30s and, on loss, reconnects
// with bounded backoff (5 attempts, 5s apart) and re-registers callbacks
// — they're held on c, not the connection, so nothing to re-register but
// the socket itself.
func (c *Client) healthSupervisor() {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.IsConnected() {
				continue
			}
			c.attemptReconnect()
		}
	}
}

func (c *Client) attemptReconnect() {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			c.log.Info().Int("attempt", attempt).Msg("broker reconnected")
			return
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("broker reconnect attempt failed")
		time.Sleep(reconnectDelay)
	}
	c.log.Error().Msg("broker reconnect attempts exhausted")
}

func (c *Client) OnOrderFilled(fn func(domain.Trade)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOrderFilled = fn
}

func (c *Client) OnPositionUpdate(fn func(domain.BrokerPosition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPositionUpdate = fn
}

func (c *Client) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func parseFloatOr(s string, def float64) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return def
	}
	return f
}
