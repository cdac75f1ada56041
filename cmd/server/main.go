// Command server is the A5 entry point: explicit constructor wiring from
// config down through storage, broker, market data, strategies, risk,
// position sync, scheduler and the websocket hub to the admin HTTP
// server, grounded on trader-go/cmd/server/main.go's sequential wiring
// (no DI container) rather than the root teacher's di.Wire approach.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tradecore/bot/internal/config"
	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/maintenance"
	"github.com/tradecore/bot/internal/marketdata"
	"github.com/tradecore/bot/internal/positionsync"
	"github.com/tradecore/bot/internal/risk"
	"github.com/tradecore/bot/internal/scheduler"
	"github.com/tradecore/bot/internal/server"
	"github.com/tradecore/bot/internal/store"
	"github.com/tradecore/bot/internal/strategy"
	"github.com/tradecore/bot/internal/wshub"
	brokerpkg "github.com/tradecore/bot/internal/broker"
	"github.com/tradecore/bot/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting trading bot")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	db, err := store.Open(filepath.Join(cfg.DataDir, "trading.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	broker := brokerpkg.New(cfg.Broker, log, filepath.Join(cfg.DataDir, "broker-events.log"))

	history, err := marketdata.NewHistoryStore(filepath.Join(cfg.DataDir, "bars.db"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open bars history store")
	}
	defer history.Close()
	marketData := marketdata.New(broker, history)

	evaluator := strategy.New(log)
	registerDefaultStrategies(evaluator, cfg.Symbols, marketData.Bars)
	defer evaluator.Close()

	riskEngine := risk.New(log, cfg.Risk, db.Accounts, db.Positions, db.Trades, db.Settlement, db.DayTrades)

	syncService := positionsync.New(log, cfg.PositionSync, broker, db)

	sched := scheduler.New(log, cfg.Scheduler, cfg.AccountID, broker, marketData, evaluator, riskEngine, syncService, db.Positions)

	hub := wshub.New(log, cfg.WebSocket)
	priceStream := wshub.NewPriceStream(log, hub, broker, cfg.Symbols, cfg.WebSocket.PriceUpdateInterval)
	signalStream := wshub.NewSignalStream(hub)
	portfolioProvider := store.NewPortfolioProvider(db, cfg.AccountID)
	portfolioStream := wshub.NewPortfolioStream(log, hub, portfolioProvider, cfg.WebSocket.PortfolioUpdateInterval)
	tradePublisher := wshub.NewTradePublisher(hub)

	sched.OnSignal(signalStream.Publish)
	sched.OnTradeExecuted(tradePublisher.Publish)
	sched.OnPortfolioUpdate(portfolioStream.Notify)
	broker.OnPositionUpdate(func(_ domain.BrokerPosition) {
		syncService.NotifyPositionUpdate(cfg.AccountID)
		portfolioStream.Notify()
	})

	maintRunner := maintenance.New(log)
	if err := maintRunner.AddJob(cfg.MaintenanceCron, maintenance.NewSettlementRolloverJob(log, db.Settlement)); err != nil {
		log.Fatal().Err(err).Msg("failed to register settlement rollover job")
	}
	if err := maintRunner.AddJob(cfg.MaintenanceCron, maintenance.NewDayTradeGCJob(log, db.DayTrades)); err != nil {
		log.Fatal().Err(err).Msg("failed to register day-trade GC job")
	}
	maintRunner.Start()
	defer maintRunner.Stop()

	if cfg.WebSocket.Enabled {
		hub.Start()
		defer hub.Stop()
		priceStream.Start()
		defer priceStream.Stop()
		portfolioStream.Start()
		defer portfolioStream.Stop()
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Log: log, Port: cfg.Port, DevMode: cfg.DevMode,
		Broker: broker, Scheduler: sched, PositionSync: syncService, Hub: hub,
		AccountID: cfg.AccountID,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("admin server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}
	log.Info().Msg("shutdown complete")
}
