package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all tweakable application parameters. Values are loaded from
// environment variables or set to sensible defaults. Scalar trading
// parameters are hot-reloadable at batch boundaries (spec §6.3) via
// Snapshot; exchange endpoint, credentials, hedge/one-way mode and file
// paths require a restart.
type Config struct {
	// Hot-reloadable trading parameters (spec §6.3).
	RiskPercent             float64 // RISK_PERCENT
	Leverage                int     // LEVERAGE
	MaxConcurrentOrders     int     // MAX_CONCURRENT_ORDERS
	PollIntervalSeconds     int     // POLL_INTERVAL_SECONDS
	MaxSLTPAttempts         int     // MAX_SL_TP_ATTEMPTS
	TrailingTriggerFraction float64 // TRAILING_TRIGGER_FRACTION
	TrailingCloseFraction   float64 // TRAILING_CLOSE_FRACTION
	TrailingSLFraction      float64 // TRAILING_SL_FRACTION

	// Non-hot-reloadable: exchange endpoint / credentials / mode.
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceUseTestnet bool
	HedgeMode        bool // HEDGE_MODE

	// Non-hot-reloadable: notifier credentials.
	TelegramBotToken string
	TelegramChatID   string

	// Ambient logging knobs, in the teacher's own naming convention.
	LogLevel      string // WATCHER_LOG_LEVEL
	MaxLogSizeMB  int64  // WATCHER_MAX_LOG_SIZE_MB
	MaxLogBackups int    // WATCHER_MAX_LOG_BACKUPS

	// Non-hot-reloadable: file paths, overridable for tests.
	StateFilePath  string
	QueueFilePath  string
	TickerListPath string
	PIDFilePath    string

	// Rate-limiting knobs for the Exchange Gateway (spec §5).
	ExchangeWeightPerMinute int
	RateLimitSafetyMargin   float64

	// Worker pool size for the Scanner process (spec §5, default 8).
	WorkerPoolSize int
}

// Load initializes the configuration. It reads .env, fatally validates
// required secrets, and populates the Config struct with defaults overridden
// by environment variables — the teacher's own Load() shape, extended with
// the exchange/trading key set of spec.md §6.3.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	requiredSecretVars := map[string]bool{
		"BINANCE_API_KEY":    true,
		"BINANCE_API_SECRET": true,
		"TELEGRAM_BOT_TOKEN": true,
		"TELEGRAM_CHAT_ID":   true,
	}

	var missing []string
	for key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	envMap, err := godotenv.Read()
	if err == nil {
		log.Println("--- .env File Variables ---")
		for key, val := range envMap {
			if requiredSecretVars[key] {
				masked := "***"
				if len(val) > 4 {
					masked = "***" + val[len(val)-4:]
				}
				log.Printf("%s=%s", key, masked)
			} else {
				log.Printf("%s=%s", key, val)
			}
		}
		log.Println("---------------------------")
	}

	cfg := &Config{
		RiskPercent:             getEnvAsFloat64("RISK_PERCENT", 2.0),
		Leverage:                getEnvAsInt("LEVERAGE", 10),
		MaxConcurrentOrders:     getEnvAsInt("MAX_CONCURRENT_ORDERS", 1),
		PollIntervalSeconds:     getEnvAsInt("POLL_INTERVAL_SECONDS", 30),
		MaxSLTPAttempts:         getEnvAsInt("MAX_SL_TP_ATTEMPTS", 3),
		TrailingTriggerFraction: getEnvAsFloat64("TRAILING_TRIGGER_FRACTION", 0.80),
		TrailingCloseFraction:   getEnvAsFloat64("TRAILING_CLOSE_FRACTION", 0.80),
		TrailingSLFraction:      getEnvAsFloat64("TRAILING_SL_FRACTION", 0.50),

		BinanceAPIKey:     os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:  os.Getenv("BINANCE_API_SECRET"),
		BinanceUseTestnet: getEnvAsBool("BINANCE_USE_TESTNET", true),
		HedgeMode:         getEnvAsBool("HEDGE_MODE", true),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		LogLevel:      getEnv("WATCHER_LOG_LEVEL", "INFO"),
		MaxLogSizeMB:  getEnvAsInt64("WATCHER_MAX_LOG_SIZE_MB", 5),
		MaxLogBackups: getEnvAsInt("WATCHER_MAX_LOG_BACKUPS", 3),

		StateFilePath:  getEnv("STATE_FILE_PATH", "orders_watchdog_state.json"),
		QueueFilePath:  getEnv("QUEUE_FILE_PATH", "orders_watchdog_requests.json"),
		TickerListPath: getEnv("TICKER_LIST_PATH", "tickers.txt"),
		PIDFilePath:    getEnv("PID_FILE_PATH", "orchestrator.pid"),

		ExchangeWeightPerMinute: getEnvAsInt("EXCHANGE_WEIGHT_PER_MINUTE", 2400),
		RateLimitSafetyMargin:   getEnvAsFloat64("RATE_LIMIT_SAFETY_MARGIN", 0.5),

		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 8),
	}

	log.Printf("Configuration Loaded: Risk=%.2f%% Leverage=%dx MaxConcurrent=%d PollInterval=%ds HedgeMode=%v",
		cfg.RiskPercent, cfg.Leverage, cfg.MaxConcurrentOrders, cfg.PollIntervalSeconds, cfg.HedgeMode)

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return parseInt(valueStr, fallback)
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return parseInt64(valueStr, fallback)
}

func parseInt(s string, fallback int) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Warning: Invalid int for config %q, using default %d", s, fallback)
		return fallback
	}
	return val
}

func parseInt64(s string, fallback int64) int64 {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid int64 for config %q, using default %d", s, fallback)
		return fallback
	}
	return val
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Invalid bool for config %s, using default %v", key, fallback)
		return fallback
	}
	return val
}
