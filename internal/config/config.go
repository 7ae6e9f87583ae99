package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Bot        BotConfig        `mapstructure:"bot"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds upstream market feed configuration
type PolymarketConfig struct {
	GammaAPIURL    string        `mapstructure:"gamma_api_url"`
	CLOBAPIURL     string        `mapstructure:"clob_api_url"`
	DataAPIURL     string        `mapstructure:"data_api_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst      int           `mapstructure:"rate_burst"`
}

// SchedulerConfig holds tick orchestration bounds
type SchedulerConfig struct {
	MaxUsersPerTick        int           `mapstructure:"max_users_per_tick"`
	Concurrency            int           `mapstructure:"concurrency"`
	MinIntervalSeconds     int           `mapstructure:"min_interval_seconds"`
	MaxIntervalSeconds     int           `mapstructure:"max_interval_seconds"`
	MaxTradesPerScan       int           `mapstructure:"max_trades_per_scan"`
	DefaultBuysPerDay      int           `mapstructure:"default_buys_per_day"` // tenants without a directive
	DefaultCapitalPerTrade float64       `mapstructure:"default_capital_per_trade"`
	MaxCapitalPerTrade     float64       `mapstructure:"max_capital_per_trade"`
	MarketLimitPerTrade    int           `mapstructure:"market_limit_per_trade"`
	MinMarketLimit         int           `mapstructure:"min_market_limit"`
	MaxMarketLimit         int           `mapstructure:"max_market_limit"`
	FetchTimeout           time.Duration `mapstructure:"fetch_timeout"`
	TriggerInterval        time.Duration `mapstructure:"trigger_interval"` // 0 disables the embedded trigger
}

// BotConfig holds the global defaults every tenant's bot config starts from
type BotConfig struct {
	RiskLevel        string  `mapstructure:"risk_level"`
	MaxDailyLoss     float64 `mapstructure:"max_daily_loss"`
	EmergencyStopPct float64 `mapstructure:"emergency_stop_pct"`
	MinEdgePct       float64 `mapstructure:"min_edge_pct"`
	MaxCandidates    int     `mapstructure:"max_candidates"`
	FollowWhales     bool    `mapstructure:"follow_whales"`
}

// ServerConfig holds the tick endpoint configuration
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	TickSecret   string        `mapstructure:"tick_secret"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig holds tenant store configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	NotifyTrades   bool          `mapstructure:"notify_trades"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// POLYTRADER_SERVER_TICK_SECRET overrides server.tick_secret
	v.SetEnvPrefix("POLYTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.data_api_url", "https://data-api.polymarket.com")
	v.SetDefault("polymarket.timeout", "10s")
	v.SetDefault("polymarket.max_retries", 2)
	v.SetDefault("polymarket.retry_delay_base", "500ms")
	v.SetDefault("polymarket.rate_limit", 10.0)
	v.SetDefault("polymarket.rate_burst", 5)

	// Scheduler defaults
	v.SetDefault("scheduler.max_users_per_tick", 500)
	v.SetDefault("scheduler.concurrency", 12)
	v.SetDefault("scheduler.min_interval_seconds", 30)
	v.SetDefault("scheduler.max_interval_seconds", 3600)
	v.SetDefault("scheduler.max_trades_per_scan", 5)
	v.SetDefault("scheduler.default_buys_per_day", 24)
	v.SetDefault("scheduler.default_capital_per_trade", 10.0)
	v.SetDefault("scheduler.max_capital_per_trade", 250.0)
	v.SetDefault("scheduler.market_limit_per_trade", 40)
	v.SetDefault("scheduler.min_market_limit", 50)
	v.SetDefault("scheduler.max_market_limit", 500)
	v.SetDefault("scheduler.fetch_timeout", "15s")
	v.SetDefault("scheduler.trigger_interval", "0s")

	// Bot defaults
	v.SetDefault("bot.risk_level", "medium")
	v.SetDefault("bot.max_daily_loss", 25.0)
	v.SetDefault("bot.emergency_stop_pct", 100.0)
	v.SetDefault("bot.min_edge_pct", 1.0)
	v.SetDefault("bot.max_candidates", 200)
	v.SetDefault("bot.follow_whales", false)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tick_secret", "")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "120s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/polytrader.db")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.notify_trades", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.Timeout <= 0 {
		return fmt.Errorf("polymarket.timeout must be positive")
	}
	if c.Polymarket.MaxRetries < 0 {
		return fmt.Errorf("polymarket.max_retries must not be negative")
	}
	if c.Polymarket.RateLimit <= 0 || c.Polymarket.RateBurst < 1 {
		return fmt.Errorf("polymarket.rate_limit must be positive and rate_burst at least 1")
	}

	// Validate Scheduler config
	s := c.Scheduler
	if s.MaxUsersPerTick < 1 {
		return fmt.Errorf("scheduler.max_users_per_tick must be at least 1")
	}
	if s.Concurrency < 1 || s.Concurrency > 256 {
		return fmt.Errorf("scheduler.concurrency must be between 1 and 256")
	}
	if s.MinIntervalSeconds < 1 {
		return fmt.Errorf("scheduler.min_interval_seconds must be at least 1")
	}
	if s.MaxIntervalSeconds < s.MinIntervalSeconds {
		return fmt.Errorf("scheduler.max_interval_seconds must be >= min_interval_seconds")
	}
	if s.MaxTradesPerScan < 1 {
		return fmt.Errorf("scheduler.max_trades_per_scan must be at least 1")
	}
	if s.DefaultBuysPerDay < 1 || s.DefaultBuysPerDay > 100000 {
		return fmt.Errorf("scheduler.default_buys_per_day must be between 1 and 100000")
	}
	if s.DefaultCapitalPerTrade <= 0 || s.MaxCapitalPerTrade <= 0 {
		return fmt.Errorf("scheduler capital per trade values must be positive")
	}
	if s.MinMarketLimit < 1 || s.MaxMarketLimit < s.MinMarketLimit {
		return fmt.Errorf("scheduler market limits must satisfy 1 <= min_market_limit <= max_market_limit")
	}
	if s.MarketLimitPerTrade < 1 {
		return fmt.Errorf("scheduler.market_limit_per_trade must be at least 1")
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("scheduler.fetch_timeout must be positive")
	}
	if s.TriggerInterval < 0 {
		return fmt.Errorf("scheduler.trigger_interval must not be negative")
	}

	// Validate Bot config
	validRiskLevels := map[string]bool{"low": true, "medium": true, "high": true}
	if !validRiskLevels[c.Bot.RiskLevel] {
		return fmt.Errorf("bot.risk_level must be one of: low, medium, high")
	}
	if c.Bot.MaxDailyLoss <= 0 {
		return fmt.Errorf("bot.max_daily_loss must be positive")
	}
	if c.Bot.EmergencyStopPct < 0 || c.Bot.EmergencyStopPct > 100 {
		return fmt.Errorf("bot.emergency_stop_pct must be between 0 and 100")
	}
	if c.Bot.MaxCandidates < 1 {
		return fmt.Errorf("bot.max_candidates must be at least 1")
	}

	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
