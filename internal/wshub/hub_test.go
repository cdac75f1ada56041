package wshub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := hub.Accept(w, r)
		if err != nil {
			return
		}
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

func TestAcceptAndBroadcastDeliversToSubscribedClient(t *testing.T) {
	hub := New(zerolog.Nop(), config.WebSocketConfig{MaxConnections: 10, PingInterval: time.Hour})
	srv := newTestServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	now := time.Now()
	hub.Broadcast(context.Background(), PriceUpdateMsg{Type: "price_update", Symbols: map[string]SymbolPrice{"AAPL": {Price: 100}}, Timestamp: &now}, domain.TopicPriceUpdates)

	var got PriceUpdateMsg
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, "price_update", got.Type)
	assert.Contains(t, got.Symbols, "AAPL")
}

func TestAcceptRejectsBeyondCapacity(t *testing.T) {
	hub := New(zerolog.Nop(), config.WebSocketConfig{MaxConnections: 1, PingInterval: time.Hour})
	srv := newTestServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn1, _, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn1.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestClientPingReceivesApplicationLevelPong(t *testing.T) {
	hub := New(zerolog.Nop(), config.WebSocketConfig{MaxConnections: 10, PingInterval: time.Hour})
	srv := newTestServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"type": "ping"}))

	var pong PongMsg
	require.NoError(t, wsjson.Read(ctx, conn, &pong))
	assert.Equal(t, "pong", pong.Type)
}

func TestCloseRemovesClient(t *testing.T) {
	hub := New(zerolog.Nop(), config.WebSocketConfig{MaxConnections: 10, PingInterval: time.Hour})
	srv := newTestServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.mu.RLock()
	var id string
	for cid := range hub.clients {
		id = cid
	}
	hub.mu.RUnlock()

	hub.Close(id)
	assert.Equal(t, 0, hub.ClientCount())
}
