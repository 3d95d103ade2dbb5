// Package config loads the trading daemon configuration from the
// environment, after merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"alphafx/internal/indicator"
	"alphafx/internal/strategy"
)

// Feed modes.
const (
	FeedSim  = "sim"
	FeedWS   = "ws"
	FeedHTTP = "http"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Indicators
	SMAPeriod          int     `envconfig:"SMA_PERIOD" default:"14"`
	EMAPeriod          int     `envconfig:"EMA_PERIOD" default:"5"`
	BollingerPeriod    int     `envconfig:"BOLLINGER_PERIOD" default:"20"`
	BollingerWidth     float64 `envconfig:"BOLLINGER_WIDTH" default:"2"`
	RSIPeriod          int     `envconfig:"RSI_PERIOD" default:"14"`
	MaxWindowRetention int     `envconfig:"MAX_WINDOW_RETENTION" default:"50"`

	// Trading
	CurrencyPair  string  `envconfig:"CURRENCY_PAIR" default:"USD/INR"`
	Strategy      string  `envconfig:"STRATEGY" default:"bollinger"`
	OrderQuantity float64 `envconfig:"ORDER_QUANTITY" default:"1"`
	VolumeLimit   float64 `envconfig:"VOLUME_LIMIT" default:"10000000"`
	AutoTrade     bool    `envconfig:"AUTO_TRADE" default:"false"`

	// Feed
	FeedMode       string  `envconfig:"FEED_MODE" default:"sim"`
	FeedURL        string  `envconfig:"FEED_URL"`
	TickIntervalMs int     `envconfig:"TICK_INTERVAL_MS" default:"3000"`
	StartRate      float64 `envconfig:"START_RATE" default:"83.0"`

	// Execution
	SubmitURL   string  `envconfig:"SUBMIT_URL"`
	SlippageBps float64 `envconfig:"SLIPPAGE_BPS" default:"0"`

	// Infrastructure
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr   string `envconfig:"METRICS_ADDR"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/trades.db"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load merges .env (if present) into the environment and parses it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.FeedMode = strings.ToLower(strings.TrimSpace(cfg.FeedMode))
	return &cfg, nil
}

// Validate checks the values that cannot be defaulted away.
func (c *Config) Validate() error {
	var errs []error
	if err := c.IndicatorConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := strategy.ParseKind(c.Strategy); err != nil {
		errs = append(errs, err)
	}
	if c.OrderQuantity <= 0 {
		errs = append(errs, fmt.Errorf("ORDER_QUANTITY must be positive, got %v", c.OrderQuantity))
	}
	if c.VolumeLimit <= 0 {
		errs = append(errs, fmt.Errorf("VOLUME_LIMIT must be positive, got %v", c.VolumeLimit))
	}
	if !strings.Contains(c.CurrencyPair, "/") {
		errs = append(errs, fmt.Errorf("CURRENCY_PAIR %q must look like BASE/QUOTE", c.CurrencyPair))
	}
	switch c.FeedMode {
	case FeedSim:
		if c.StartRate <= 0 {
			errs = append(errs, fmt.Errorf("START_RATE must be positive, got %v", c.StartRate))
		}
	case FeedWS, FeedHTTP:
		if c.FeedURL == "" {
			errs = append(errs, fmt.Errorf("FEED_URL is required for FEED_MODE=%s", c.FeedMode))
		}
	default:
		errs = append(errs, fmt.Errorf("FEED_MODE %q must be sim, ws or http", c.FeedMode))
	}
	if c.TickIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL_MS must be positive, got %d", c.TickIntervalMs))
	}
	return errors.Join(errs...)
}

// IndicatorConfig returns the indicator engine configuration.
func (c *Config) IndicatorConfig() indicator.Config {
	return indicator.Config{
		SMAPeriod:          c.SMAPeriod,
		EMAPeriod:          c.EMAPeriod,
		BollingerPeriod:    c.BollingerPeriod,
		BollingerWidth:     c.BollingerWidth,
		RSIPeriod:          c.RSIPeriod,
		MaxWindowRetention: c.MaxWindowRetention,
	}
}

// StrategyKind returns the configured strategy. Call Validate first.
func (c *Config) StrategyKind() strategy.Kind {
	kind, _ := strategy.ParseKind(c.Strategy)
	return kind
}

// TickInterval returns the simulator and poller interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}
