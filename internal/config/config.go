// Package config loads typed application configuration from environment
// variables (with optional .env file support).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every option named in the external-interfaces surface:
// scheduler cadence, broker session parameters, risk thresholds,
// position-sync behavior and websocket limits.
type Config struct {
	Port     int
	DevMode  bool
	LogLevel string
	DataDir  string

	Scheduler    SchedulerConfig
	Broker       BrokerConfig
	Risk         RiskConfig
	PositionSync PositionSyncConfig
	WebSocket    WebSocketConfig

	MaintenanceCron string // cron expression for settlement/day-trade GC, e.g. "0 5 * * *"

	AccountID int64
	Symbols   []string // watchlist driving both the price stream and the default strategy instances
}

type SchedulerConfig struct {
	Enabled                bool
	EvaluationInterval     time.Duration
	ExitCheckInterval      time.Duration
	MinConfidence          float64
	MaxConcurrentTrades    int
	RequireBrokerConnected bool
	MarketHoursOnly        bool
}

type BrokerConfig struct {
	Host       string
	Port       int
	ClientID   string
	Timeout    time.Duration
	RPCPerSec  float64// outbound RPC rate limit
}

type RiskConfig struct {
	CashAccountThreshold float64
	PDTEnforcementMode   string // "strict" | "warning"
	GFVEnforcementMode   string // "strict" | "warning"
	DailyTradeLimit      int
	WeeklyTradeLimit     int
	SizeLowPct           float64
	SizeMediumPct        float64
	SizeHighPct          float64
	MaxPositionSizePct   float64
	ProfitTakeLevel1     float64
	ProfitTakeLevel2     float64
	ProfitTakeLevel3     float64
	PartialExitLevel1Pct float64
	PartialExitLevel2Pct float64
	SettlementDays       int
}

type PositionSyncConfig struct {
	SyncInterval          time.Duration
	SyncOnTrade           bool
	SyncOnPositionUpdate  bool
	MarkMissingAsClosed   bool
}

type WebSocketConfig struct {
	Enabled                bool
	PingInterval           time.Duration
	MaxConnections         int
	PriceUpdateInterval    time.Duration
	PortfolioUpdateInterval time.Duration
}

// Load reads configuration from environment variables, loading a .env file
// first when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("BOT_DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  dataDir,

		Scheduler: SchedulerConfig{
			Enabled:                getEnvAsBool("SCHEDULER_ENABLED", true),
			EvaluationInterval:     getEnvAsSeconds("SCHEDULER_EVALUATION_INTERVAL", 60),
			ExitCheckInterval:      getEnvAsSeconds("SCHEDULER_EXIT_CHECK_INTERVAL", 30),
			MinConfidence:          getEnvAsFloat("SCHEDULER_MIN_CONFIDENCE", 0.5),
			MaxConcurrentTrades:    getEnvAsInt("SCHEDULER_MAX_CONCURRENT_TRADES", 10),
			RequireBrokerConnected: getEnvAsBool("SCHEDULER_REQUIRE_BROKER_CONNECTION", true),
			MarketHoursOnly:        getEnvAsBool("SCHEDULER_MARKET_HOURS_ONLY", true),
		},
		Broker: BrokerConfig{
			Host:      getEnv("BROKER_HOST", "127.0.0.1"),
			Port:      getEnvAsInt("BROKER_PORT", 7497),
			ClientID:  getEnv("BROKER_CLIENT_ID", "trading-bot"),
			Timeout:   getEnvAsSeconds("BROKER_TIMEOUT", 10),
			RPCPerSec: getEnvAsFloat("BROKER_RPC_PER_SEC", 20),
		},
		Risk: RiskConfig{
			CashAccountThreshold: getEnvAsFloat("RISK_CASH_ACCOUNT_THRESHOLD", 25000),
			PDTEnforcementMode:   getEnv("RISK_PDT_ENFORCEMENT_MODE", "strict"),
			GFVEnforcementMode:   getEnv("RISK_GFV_ENFORCEMENT_MODE", "strict"),
			DailyTradeLimit:      getEnvAsInt("RISK_DAILY_TRADE_LIMIT", 5),
			WeeklyTradeLimit:     getEnvAsInt("RISK_WEEKLY_TRADE_LIMIT", 20),
			SizeLowPct:           getEnvAsFloat("RISK_POSITION_SIZE_LOW_CONFIDENCE", 0.01),
			SizeMediumPct:        getEnvAsFloat("RISK_POSITION_SIZE_MEDIUM_CONFIDENCE", 0.025),
			SizeHighPct:          getEnvAsFloat("RISK_POSITION_SIZE_HIGH_CONFIDENCE", 0.04),
			MaxPositionSizePct:   getEnvAsFloat("RISK_MAX_POSITION_SIZE_PCT", 0.10),
			ProfitTakeLevel1:     getEnvAsFloat("RISK_PROFIT_TAKE_LEVEL_1", 0.05),
			ProfitTakeLevel2:     getEnvAsFloat("RISK_PROFIT_TAKE_LEVEL_2", 0.10),
			ProfitTakeLevel3:     getEnvAsFloat("RISK_PROFIT_TAKE_LEVEL_3", 0.20),
			PartialExitLevel1Pct: getEnvAsFloat("RISK_PARTIAL_EXIT_LEVEL_1_PCT", 0.25),
			PartialExitLevel2Pct: getEnvAsFloat("RISK_PARTIAL_EXIT_LEVEL_2_PCT", 0.50),
			SettlementDays:       getEnvAsInt("RISK_SETTLEMENT_DAYS", 2),
		},
		PositionSync: PositionSyncConfig{
			SyncInterval:         getEnvAsSeconds("POSITION_SYNC_INTERVAL", 300),
			SyncOnTrade:          getEnvAsBool("POSITION_SYNC_ON_TRADE", true),
			SyncOnPositionUpdate: getEnvAsBool("POSITION_SYNC_ON_POSITION_UPDATE", true),
			MarkMissingAsClosed:  getEnvAsBool("POSITION_SYNC_MARK_MISSING_AS_CLOSED", false),
		},
		WebSocket: WebSocketConfig{
			Enabled:                 getEnvAsBool("WEBSOCKET_ENABLED", true),
			PingInterval:            getEnvAsSeconds("WEBSOCKET_PING_INTERVAL", 30),
			MaxConnections:          getEnvAsInt("WEBSOCKET_MAX_CONNECTIONS", 100),
			PriceUpdateInterval:     getEnvAsSeconds("WEBSOCKET_PRICE_UPDATE_INTERVAL", 3),
			PortfolioUpdateInterval: getEnvAsSeconds("WEBSOCKET_PORTFOLIO_UPDATE_INTERVAL", 5),
		},
		MaintenanceCron: getEnv("MAINTENANCE_CRON", "0 5 * * *"),

		AccountID: int64(getEnvAsInt("ACCOUNT_ID", 1)),
		Symbols:   getEnvAsStringSlice("SYMBOLS", []string{"AAPL", "MSFT"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants that can't be expressed as a
// single env-var default.
func (c *Config) Validate() error {
	if c.Scheduler.EvaluationInterval <= 0 {
		return fmt.Errorf("scheduler.evaluation_interval must be positive")
	}
	if c.Scheduler.ExitCheckInterval <= 0 {
		return fmt.Errorf("scheduler.exit_check_interval must be positive")
	}
	if c.Risk.PDTEnforcementMode != "strict" && c.Risk.PDTEnforcementMode != "warning" {
		return fmt.Errorf("risk.pdt_enforcement_mode must be 'strict' or 'warning'")
	}
	if c.Risk.GFVEnforcementMode != "strict" && c.Risk.GFVEnforcementMode != "warning" {
		return fmt.Errorf("risk.gfv_enforcement_mode must be 'strict' or 'warning'")
	}
	if c.Risk.MaxPositionSizePct <= 0 || c.Risk.MaxPositionSizePct > 1 {
		return fmt.Errorf("risk.max_position_size_pct must be in (0,1]")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
