package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/positionsync"
	"github.com/tradecore/bot/internal/wshub"
)

type fakeBroker struct {
	connected  bool
	connectErr error
}

func (f *fakeBroker) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}
func (f *fakeBroker) Disconnect(ctx context.Context) error { f.connected = false; return nil }
func (f *fakeBroker) IsConnected() bool                    { return f.connected }
func (f *fakeBroker) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, id string) error           { return nil }
func (f *fakeBroker) Positions(ctx context.Context) ([]domain.BrokerPosition, error) { return nil, nil }
func (f *fakeBroker) AccountSummary(ctx context.Context) (domain.AccountSummary, error) {
	return domain.AccountSummary{}, nil
}
func (f *fakeBroker) MarketData(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, nil
}
func (f *fakeBroker) OnOrderFilled(fn func(domain.Trade))            {}
func (f *fakeBroker) OnPositionUpdate(fn func(domain.BrokerPosition)) {}
func (f *fakeBroker) OnError(fn func(err error))                      {}

type fakeSyncRepo struct{}

func (f *fakeSyncRepo) OpenPositions(ctx context.Context, accountID int64) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakeSyncRepo) RunInTx(ctx context.Context, fn func(tx positionsync.Tx) error) error {
	return fn(f)
}
func (f *fakeSyncRepo) InsertPosition(ctx context.Context, p domain.Position) error { return nil }
func (f *fakeSyncRepo) UpdatePosition(ctx context.Context, p domain.Position) error { return nil }

func newTestServer(t *testing.T, broker *fakeBroker) (*Server, *httptest.Server) {
	hub := wshub.New(zerolog.Nop(), config.WebSocketConfig{MaxConnections: 10, PingInterval: time.Hour})
	sync := positionsync.New(zerolog.Nop(), config.PositionSyncConfig{}, broker, &fakeSyncRepo{})

	srv := New(Config{
		Log: zerolog.Nop(), Port: 0, DevMode: true,
		Broker: broker, PositionSync: sync, Hub: hub, AccountID: 1,
	})
	httpSrv := httptest.NewServer(srv.router)
	t.Cleanup(httpSrv.Close)
	return srv, httpSrv
}

func TestHealthEndpoint(t *testing.T) {
	_, httpSrv := newTestServer(t, &fakeBroker{})
	resp, err := http.Get(httpSrv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBrokerConnectDisconnect(t *testing.T) {
	broker := &fakeBroker{}
	_, httpSrv := newTestServer(t, broker)

	resp, err := http.Post(httpSrv.URL+"/broker/connect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, broker.connected)

	resp, err = http.Post(httpSrv.URL+"/broker/disconnect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, broker.connected)
}

func TestPositionsSyncReturnsDisconnectedAsConflict(t *testing.T) {
	broker := &fakeBroker{connected: false}
	_, httpSrv := newTestServer(t, broker)

	resp, err := http.Post(httpSrv.URL+"/positions/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStatusEndpointReportsComponentState(t *testing.T) {
	broker := &fakeBroker{connected: true}
	_, httpSrv := newTestServer(t, broker)

	resp, err := http.Get(httpSrv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
