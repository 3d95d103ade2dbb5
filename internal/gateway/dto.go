package gateway

import (
	"alphafx/internal/backtest"
	"alphafx/internal/portfolio"
	"alphafx/internal/store/sqlite"
)

// OrderRequest is the body of POST /api/orders.
type OrderRequest struct {
	Action       string  `json:"action" binding:"required"`
	CurrencyPair string  `json:"currencyPair"`
	Quantity     float64 `json:"quantity" binding:"required,gt=0"`
	Price        float64 `json:"price" binding:"gte=0"` // 0 means the last observed rate
}

// AutoTradeRequest is the body of POST /api/autotrade.
type AutoTradeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// VolumeLimitRequest is the body of PUT /api/settings/volume-limit.
type VolumeLimitRequest struct {
	Limit float64 `json:"limit" binding:"required,gt=0"`
}

// StrategyRequest is the body of PUT /api/settings/strategy.
type StrategyRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

// RefreshIntervalRequest is the body of PUT /api/settings/refresh-interval.
type RefreshIntervalRequest struct {
	IntervalMs int64 `json:"intervalMs" binding:"required,gt=0"`
}

// RefreshIntervalResponse reports the feed's current refresh interval.
type RefreshIntervalResponse struct {
	IntervalMs int64 `json:"intervalMs"`
}

// RecommendationRequest is the body of POST /api/recommendation.
type RecommendationRequest struct {
	Signal string `json:"signal" binding:"required"`
}

// BacktestRequest is the body of POST /api/backtest and
// POST /api/backtest/compare. Prices, when given, replace the generated path.
type BacktestRequest struct {
	Strategy   string    `json:"strategy"`
	Strategies []string  `json:"strategies"`
	Steps      int       `json:"steps"`
	Seed       int64     `json:"seed"`
	Start      float64   `json:"start"`
	Prices     []float64 `json:"prices"`
}

// AnalyticsResponse is the body of GET /api/analytics.
type AnalyticsResponse struct {
	portfolio.Analytics
	Positions []portfolio.Position `json:"positions"`
}

// TradesResponse is the body of GET /api/trades.
type TradesResponse struct {
	Trades []sqlite.TradeRecord `json:"trades"`
	Count  int                  `json:"count"`
}

// BacktestResponse wraps a single run with the path it used.
type BacktestResponse struct {
	backtest.Result
	Seed int64 `json:"seed"`
}
