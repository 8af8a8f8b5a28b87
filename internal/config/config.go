package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AssetConfig holds the per-asset parameters. The RSI period is the only
// per-asset indicator knob; everything else is deployment-wide.
type AssetConfig struct {
	BinanceSymbol   string
	Keywords        []string
	RSIPeriod       int
	MinLiquidityUSD float64
}

// SizingPolicy selects how the per-trade stake is derived from capital.
type SizingPolicy string

const (
	SizingStepped  SizingPolicy = "stepped"  // floor(capital/divisor), clamped
	SizingFraction SizingPolicy = "fraction" // capital * pct, floored at min stake
)

// Config holds all application configuration
type Config struct {
	// Execution collaborator credentials
	ClobHost       string
	GammaHost      string
	PolygonRPCURLs []string
	APIKey         string
	APISecret      string
	APIPassphrase  string
	FunderAddress  string

	// Assets to trade
	Assets map[string]AssetConfig

	// Strategy
	Interval            string
	CandleCount         int
	BBPeriod            int
	BBStdDev            float64
	RSIOversold         float64
	RSIOverbought       float64
	DivergenceThreshold float64 // percentage points
	ImpliedSensitivity  float64 // prob points per 1% spot move; empirical tuning value
	SRLookback          int
	SpotChangeLookback  int

	// Risk
	InitialCapital  float64
	MaxPositions    int
	StopLossPct     float64
	TakeProfitPct   float64
	MaxExposurePct  float64
	Sizing          SizingPolicy
	StakeDivisor    float64
	MinStake        float64
	MaxStake        float64
	PositionSizePct float64
	ExpiryGrace     time.Duration

	// Orchestration
	EntryWindowStartMin int
	EntryWindowEndMin   int
	MarketWindowMinutes int
	IdleCycleSleep      time.Duration
	ActiveCycleSleep    time.Duration
	RequestTimeout      time.Duration

	// Ambient
	LogLevel       string
	DatabaseURL    string
	TelegramToken  string
	TelegramChatID int64

	// Backtest
	BacktestDays int
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		ClobHost:      getEnvWithDefault("CLOB_HOST", "https://clob.polymarket.com"),
		GammaHost:     getEnvWithDefault("GAMMA_HOST", "https://gamma-api.polymarket.com"),
		APIKey:        os.Getenv("POLYMARKET_API_KEY"),
		APISecret:     os.Getenv("POLYMARKET_SECRET"),
		APIPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		FunderAddress: os.Getenv("PROFILE_ADDRESS"),

		Interval:            getEnvWithDefault("INTERVAL", "5m"),
		CandleCount:         getEnvIntWithDefault("CANDLE_COUNT", 50),
		BBPeriod:            getEnvIntWithDefault("BB_PERIOD", 20),
		BBStdDev:            getEnvFloatWithDefault("BB_STD_DEV", 2.0),
		RSIOversold:         getEnvFloatWithDefault("RSI_OVERSOLD", 30),
		RSIOverbought:       getEnvFloatWithDefault("RSI_OVERBOUGHT", 70),
		DivergenceThreshold: getEnvFloatWithDefault("DIVERGENCE_THRESHOLD", 10.0),
		ImpliedSensitivity:  getEnvFloatWithDefault("IMPLIED_SENSITIVITY", 10.0),
		SRLookback:          getEnvIntWithDefault("SR_LOOKBACK", 20),
		SpotChangeLookback:  getEnvIntWithDefault("SPOT_CHANGE_LOOKBACK", 1),

		InitialCapital:  getEnvFloatWithDefault("INITIAL_CAPITAL", 100.0),
		MaxPositions:    getEnvIntWithDefault("MAX_POSITIONS", 2),
		StopLossPct:     getEnvFloatWithDefault("STOP_LOSS_PCT", 0.20),
		TakeProfitPct:   getEnvFloatWithDefault("TAKE_PROFIT_PCT", 0.30),
		MaxExposurePct:  getEnvFloatWithDefault("MAX_EXPOSURE_PCT", 0.50),
		Sizing:          SizingPolicy(getEnvWithDefault("SIZING_POLICY", string(SizingStepped))),
		StakeDivisor:    getEnvFloatWithDefault("STAKE_DIVISOR", 20),
		MinStake:        getEnvFloatWithDefault("MIN_STAKE", 5.0),
		MaxStake:        getEnvFloatWithDefault("MAX_STAKE", 50.0),
		PositionSizePct: getEnvFloatWithDefault("POSITION_SIZE_PCT", 0.05),
		ExpiryGrace:     time.Duration(getEnvIntWithDefault("EXPIRY_GRACE_SEC", 300)) * time.Second,

		EntryWindowStartMin: getEnvIntWithDefault("ENTRY_WINDOW_START_MIN", 2),
		EntryWindowEndMin:   getEnvIntWithDefault("ENTRY_WINDOW_END_MIN", 12),
		MarketWindowMinutes: getEnvIntWithDefault("MARKET_WINDOW_MINUTES", 15),
		IdleCycleSleep:      time.Duration(getEnvIntWithDefault("IDLE_CYCLE_SLEEP_SEC", 60)) * time.Second,
		ActiveCycleSleep:    time.Duration(getEnvIntWithDefault("ACTIVE_CYCLE_SLEEP_SEC", 15)) * time.Second,
		RequestTimeout:      time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 5)) * time.Second,

		LogLevel:       getEnvWithDefault("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: int64(getEnvIntWithDefault("TELEGRAM_CHAT_ID", 0)),

		BacktestDays: getEnvIntWithDefault("BACKTEST_DAYS", 7),
	}

	cfg.PolygonRPCURLs = []string{
		getEnvWithDefault("POLYGON_RPC", "https://polygon-rpc.com"),
		"https://polygon-bor-rpc.publicnode.com",
		"https://polygon.llamarpc.com",
	}

	cfg.Assets = map[string]AssetConfig{
		"BTC": {
			BinanceSymbol:   "BTCUSDT",
			Keywords:        []string{"bitcoin", "btc"},
			RSIPeriod:       getEnvIntWithDefault("BTC_RSI_PERIOD", 14),
			MinLiquidityUSD: getEnvFloatWithDefault("BTC_MIN_LIQUIDITY_USD", 500),
		},
		"ETH": {
			BinanceSymbol:   "ETHUSDT",
			Keywords:        []string{"ethereum", "eth"},
			RSIPeriod:       getEnvIntWithDefault("ETH_RSI_PERIOD", 14),
			MinLiquidityUSD: getEnvFloatWithDefault("ETH_MIN_LIQUIDITY_USD", 300),
		},
	}

	if cfg.APIKey == "" || cfg.APISecret == "" {
		log.Warn().Msg("CLOB credentials not found in environment; execution will run in signal-only mode")
	}

	return cfg, nil
}

// EntryWindowRemaining converts the entry window, configured as minutes
// elapsed within the market cycle, into bounds on minutes remaining before
// expiry. With the 2-12 defaults on a 15-minute cycle, entries are allowed
// while 3 to 13 minutes remain: never in the opening minute, never in the
// final two.
func (c *Config) EntryWindowRemaining() (lo, hi float64) {
	lo = float64(c.MarketWindowMinutes - c.EntryWindowEndMin)
	hi = float64(c.MarketWindowMinutes - c.EntryWindowStartMin)
	return lo, hi
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
