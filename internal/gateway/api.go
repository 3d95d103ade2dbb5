// Package gateway serves the dashboard API: REST endpoints over gin and a
// WebSocket hub that streams session updates.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"alphafx/internal/feed"
	"alphafx/internal/indicator"
	"alphafx/internal/metrics"
	"alphafx/internal/model"
	"alphafx/internal/portfolio"
	"alphafx/internal/session"
	"alphafx/internal/store/sqlite"
	"alphafx/internal/strategy"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultTradesLimit  = 100
	MaxTradesLimit      = 1000
	MaxBacktestSteps    = 100000
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// Trader is the live session as seen by the API. *session.Session
// implements it.
type Trader interface {
	Status() session.Status
	History() []model.PriceTick
	IndicatorConfig() indicator.Config
	SubmitManual(ctx context.Context, action model.Action, pair string, qty, price float64) (model.Order, error)
	SetAutoTrade(on bool) error
	SetVolumeLimit(limit float64) error
	SetStrategy(kind strategy.Kind) error
	Recommend(sig strategy.Signal)
	Analytics() portfolio.Analytics
	Positions() []portfolio.Position
}

// TradeHistory lists journaled order results. *sqlite.Journal implements it.
type TradeHistory interface {
	Trades(ctx context.Context, limit int) ([]sqlite.TradeRecord, error)
}

// Deps are the collaborators behind the API. Trades, Feed, Metrics and
// Health are optional; Feed is set only when the tick source is paced
// locally.
type Deps struct {
	Trader  Trader
	Trades  TradeHistory
	Feed    feed.Pacer
	Hub     *Hub
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
}

// APIHandler handles HTTP requests using gin.
type APIHandler struct {
	deps   Deps
	logger *slog.Logger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(deps Deps, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{deps: deps, logger: logger.With(slog.String("component", "gateway"))}
}

// SetupRoutes builds the router.
func (h *APIHandler) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(requestLogMiddleware(h.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	api := router.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/snapshot", h.GetSnapshot)
	api.GET("/ticks", h.GetTicks)
	api.POST("/orders", h.PlaceOrder)
	api.GET("/trades", h.GetTrades)
	api.GET("/analytics", h.GetAnalytics)
	api.GET("/autotrade", h.GetAutoTrade)
	api.POST("/autotrade", h.SetAutoTrade)
	api.PUT("/settings/volume-limit", h.SetVolumeLimit)
	api.PUT("/settings/strategy", h.SetStrategy)
	api.GET("/settings/refresh-interval", h.GetRefreshInterval)
	api.PUT("/settings/refresh-interval", h.SetRefreshInterval)
	api.POST("/recommendation", h.SetRecommendation)
	api.POST("/backtest", h.RunBacktest)
	api.POST("/backtest/compare", h.CompareBacktest)
	api.GET("/missed", h.GetMissed)

	if h.deps.Hub != nil {
		router.GET("/ws", gin.WrapF(h.deps.Hub.ServeWS))
	}
	if h.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.deps.Metrics.Handler()))
	}
	return router
}
