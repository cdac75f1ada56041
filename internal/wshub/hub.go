package wshub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
)

const writeTimeout = 2 * time.Second

type client struct {
	id     string
	conn   *websocket.Conn
	topics map[domain.Topic]bool

	writeMu sync.Mutex // nhooyr connections are not safe for concurrent writes
}

func (c *client) subscribed(topic domain.Topic) bool { return c.topics[topic] }

func (c *client) send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

// Hub maintains the client registry and dispatches broadcasts; one
// instance serves the whole /ws endpoint.
type Hub struct {
	log zerolog.Logger
	cfg config.WebSocketConfig

	mu      sync.RWMutex
	clients map[string]*client

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Hub; call Start to launch the keep-alive loop.
func New(log zerolog.Logger, cfg config.WebSocketConfig) *Hub {
	return &Hub{
		log:     log.With().Str("component", "wshub").Logger(),
		cfg:     cfg,
		clients: make(map[string]*client),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the keep-alive ping loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.pingLoop()
}

// Stop closes every client with a reason and halts the keep-alive loop.
func (h *Hub) Stop() {
	close(h.stopCh)

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "hub shutting down")
	}
	h.wg.Wait()
}

// Accept upgrades r to a WebSocket connection, subscribes it to every
// topic (MVP, spec §4.7), and starts its read loop. Returns
// error(capacity) if max_connections is already reached.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) (string, error) {
	h.mu.RLock()
	full := len(h.clients) >= h.cfg.MaxConnections
	h.mu.RUnlock()
	if full {
		http.Error(w, "too many websocket connections", http.StatusServiceUnavailable)
		return "", domain.NewError(domain.KindCapacity, "max websocket connections reached", nil)
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return "", domain.NewError(domain.KindInternal, "websocket accept failed", err)
	}

	id := uuid.NewString()
	topics := make(map[domain.Topic]bool, len(domain.AllTopics))
	for _, t := range domain.AllTopics {
		topics[t] = true
	}
	c := &client{id: id, conn: conn, topics: topics}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	h.wg.Add(1)
	go h.readLoop(c)

	h.log.Info().Str("client_id", id).Msg("websocket client connected")
	return id, nil
}

// Close removes and closes a single client connection.
func (h *Hub) Close(clientID string) {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	delete(h.clients, clientID)
	h.mu.Unlock()
	if ok {
		c.conn.Close(websocket.StatusNormalClosure, "closed by server")
	}
}

func (h *Hub) removeClient(id string, reason string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.conn.Close(websocket.StatusNormalClosure, reason)
	}
}

// Broadcast sends msg (marshaled once) to every client subscribed to
// topic. A failed send removes that client; no failure aborts the rest
// (spec §4.7).
func (h *Hub) Broadcast(ctx context.Context, msg interface{}, topic domain.Topic) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal broadcast message")
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.subscribed(topic) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(ctx, data); err != nil {
			h.log.Warn().Err(err).Str("client_id", c.id).Msg("broadcast send failed, dropping client")
			h.removeClient(c.id, "send failure")
		}
	}
}

// ClientCount reports the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			h.removeClientSilently(c.id)
			return
		}
		var env pingEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			errMsg, _ := json.Marshal(ErrorMsg{Type: "error", Error: "invalid JSON", Timestamp: time.Now()})
			_ = c.send(ctx, errMsg)
			continue
		}
		if env.Type == "ping" {
			pong, _ := json.Marshal(PongMsg{Type: "pong"})
			_ = c.send(ctx, pong)
		} else {
			errMsg, _ := json.Marshal(ErrorMsg{Type: "error", Error: "unknown message type", Timestamp: time.Now()})
			_ = c.send(ctx, errMsg)
		}
	}
}

func (h *Hub) removeClientSilently(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// pingLoop is the hub-initiated liveness check: a protocol-level ping
// every PingInterval, distinct from the client-originated JSON
// ping/pong exchanged in readLoop. A client that fails to respond is
// closed (spec §4.7).
func (h *Hub) pingLoop() {
	defer h.wg.Done()
	interval := h.cfg.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.pingAll(interval)
		}
	}
}

func (h *Hub) pingAll(interval time.Duration) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		err := c.conn.Ping(ctx)
		cancel()
		if err != nil {
			h.log.Warn().Str("client_id", c.id).Msg("client failed to respond to keep-alive ping, closing")
			h.removeClient(c.id, "ping timeout")
		}
	}
}
