package gateway

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"alphafx/internal/autotrade"
	"alphafx/internal/backtest"
	"alphafx/internal/feed"
	"alphafx/internal/model"
	"alphafx/internal/portfolio"
	"alphafx/internal/strategy"
)

// Health handles GET /api/health.
func (h *APIHandler) Health(c *gin.Context) {
	if h.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC().Format(time.RFC3339)})
		return
	}
	report, code := h.deps.Health.Report()
	c.JSON(code, report)
}

// GetSnapshot handles GET /api/snapshot: the latest indicators, the last
// signal and the auto-trade status.
func (h *APIHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Trader.Status())
}

// GetTicks handles GET /api/ticks: the retained chart window.
func (h *APIHandler) GetTicks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ticks": h.deps.Trader.History()})
}

// PlaceOrder handles POST /api/orders.
func (h *APIHandler) PlaceOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	action, err := model.ParseAction(req.Action)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()
	order, err := h.deps.Trader.SubmitManual(ctx, action, req.CurrencyPair, req.Quantity, req.Price)
	if err != nil {
		h.handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, order)
}

// GetTrades handles GET /api/trades?limit=N.
func (h *APIHandler) GetTrades(c *gin.Context) {
	if h.deps.Trades == nil {
		h.handleError(c, errors.New("trade journal disabled"), http.StatusServiceUnavailable, "trade journal disabled")
		return
	}
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()
	trades, err := h.deps.Trades.Trades(ctx, limit)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, TradesResponse{Trades: trades, Count: len(trades)})
}

// GetAnalytics handles GET /api/analytics.
func (h *APIHandler) GetAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, AnalyticsResponse{
		Analytics: h.deps.Trader.Analytics(),
		Positions: h.deps.Trader.Positions(),
	})
}

// GetAutoTrade handles GET /api/autotrade.
func (h *APIHandler) GetAutoTrade(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Trader.Status().AutoTrade)
}

// SetAutoTrade handles POST /api/autotrade.
func (h *APIHandler) SetAutoTrade(c *gin.Context) {
	var req AutoTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	if err := h.deps.Trader.SetAutoTrade(*req.Enabled); err != nil {
		h.handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Trader.Status().AutoTrade)
}

// SetVolumeLimit handles PUT /api/settings/volume-limit.
func (h *APIHandler) SetVolumeLimit(c *gin.Context) {
	var req VolumeLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	if err := h.deps.Trader.SetVolumeLimit(req.Limit); err != nil {
		h.handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Trader.Status().AutoTrade.Ledger)
}

// SetStrategy handles PUT /api/settings/strategy.
func (h *APIHandler) SetStrategy(c *gin.Context) {
	var req StrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	kind, err := strategy.ParseKind(req.Strategy)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}
	if err := h.deps.Trader.SetStrategy(kind); err != nil {
		h.handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": kind})
}

// errFeedNotPaced is returned when the tick source sets its own pace.
var errFeedNotPaced = errors.New("feed refresh interval is set by the tick server")

// GetRefreshInterval handles GET /api/settings/refresh-interval.
func (h *APIHandler) GetRefreshInterval(c *gin.Context) {
	if h.deps.Feed == nil {
		h.handleError(c, errFeedNotPaced, http.StatusConflict, errFeedNotPaced.Error())
		return
	}
	c.JSON(http.StatusOK, RefreshIntervalResponse{IntervalMs: h.deps.Feed.Interval().Milliseconds()})
}

// SetRefreshInterval handles PUT /api/settings/refresh-interval.
func (h *APIHandler) SetRefreshInterval(c *gin.Context) {
	if h.deps.Feed == nil {
		h.handleError(c, errFeedNotPaced, http.StatusConflict, errFeedNotPaced.Error())
		return
	}
	var req RefreshIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	if err := h.deps.Feed.SetInterval(time.Duration(req.IntervalMs) * time.Millisecond); err != nil {
		h.handleDomainError(c, err)
		return
	}
	h.logger.Info("refresh interval changed", slog.Int64("interval_ms", req.IntervalMs))
	c.JSON(http.StatusOK, RefreshIntervalResponse{IntervalMs: h.deps.Feed.Interval().Milliseconds()})
}

// SetRecommendation handles POST /api/recommendation.
func (h *APIHandler) SetRecommendation(c *gin.Context) {
	var req RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	sig, err := strategy.ParseSignal(req.Signal)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}
	h.deps.Trader.Recommend(sig)
	c.JSON(http.StatusOK, gin.H{"signal": sig})
}

// RunBacktest handles POST /api/backtest.
func (h *APIHandler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	kind, err := strategy.ParseKind(req.Strategy)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}
	runner, prices, seed, err := h.backtestInputs(req)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}
	res, err := runner.Run(prices, kind)
	if err != nil {
		h.handleDomainError(c, err)
		return
	}
	h.countBacktest(kind)
	c.JSON(http.StatusOK, BacktestResponse{Result: res, Seed: seed})
}

// CompareBacktest handles POST /api/backtest/compare. Every strategy runs
// over the same path.
func (h *APIHandler) CompareBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}
	var kinds []strategy.Kind
	for _, s := range req.Strategies {
		kind, err := strategy.ParseKind(s)
		if err != nil {
			h.handleValidationError(c, err)
			return
		}
		kinds = append(kinds, kind)
	}
	runner, prices, seed, err := h.backtestInputs(req)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}
	cmp, err := runner.Compare(prices, kinds)
	if err != nil {
		h.handleDomainError(c, err)
		return
	}
	for _, r := range cmp.Results {
		h.countBacktest(r.Strategy)
	}
	c.JSON(http.StatusOK, gin.H{"comparison": cmp, "seed": seed})
}

// GetMissed handles GET /api/missed?from=N&to=M for WS gap backfill.
func (h *APIHandler) GetMissed(c *gin.Context) {
	if h.deps.Hub == nil {
		c.JSON(http.StatusOK, gin.H{"envelopes": []any{}, "seq": 0})
		return
	}
	from := parseInt64(c.Query("from"))
	to := parseInt64(c.DefaultQuery("to", strconv.FormatInt(h.deps.Hub.Seq(), 10)))
	if from <= 0 || to < from {
		h.handleValidationError(c, errors.New("from must be positive and not after to"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"envelopes": h.deps.Hub.Missed(from, to), "seq": h.deps.Hub.Seq()})
}

// backtestInputs builds a runner on the live indicator configuration and
// resolves the price path: the request's prices, or a generated random
// walk seeded by req.Seed (a zero seed picks one and reports it).
func (h *APIHandler) backtestInputs(req BacktestRequest) (*backtest.Runner, []float64, int64, error) {
	st := h.deps.Trader.Status()
	runner, err := backtest.NewRunner(h.deps.Trader.IndicatorConfig(), st.Pair)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(req.Prices) > 0 {
		if len(req.Prices) > MaxBacktestSteps {
			return nil, nil, 0, errors.New("too many prices")
		}
		return runner, req.Prices, 0, nil
	}

	pc := backtest.DefaultPathConfig()
	if req.Steps > 0 {
		pc.Steps = req.Steps
	}
	if pc.Steps > MaxBacktestSteps {
		return nil, nil, 0, errors.New("steps exceeds the maximum of " + strconv.Itoa(MaxBacktestSteps))
	}
	switch {
	case req.Start > 0:
		pc.Start = req.Start
	case st.Snapshot != nil:
		pc.Start = st.Snapshot.Rate
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prices, err := backtest.GeneratePath(rand.New(rand.NewSource(seed)), pc)
	if err != nil {
		return nil, nil, 0, err
	}
	return runner, prices, seed, nil
}

func (h *APIHandler) countBacktest(kind strategy.Kind) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.BacktestRuns.WithLabelValues(string(kind)).Inc()
	}
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return DefaultTradesLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("limit must be a valid number")
	}
	if n <= 0 || n > MaxTradesLimit {
		return 0, errors.New("limit must be between 1 and " + strconv.Itoa(MaxTradesLimit))
	}
	return n, nil
}

// handleDomainError maps package sentinels onto HTTP status codes.
func (h *APIHandler) handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, autotrade.ErrVolumeLimitReached):
		h.handleError(c, err, http.StatusConflict, err.Error())
	case errors.Is(err, autotrade.ErrInvalidOrder),
		errors.Is(err, portfolio.ErrInvalidLimit),
		errors.Is(err, portfolio.ErrInvalidQuantity),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, backtest.ErrInvalidPath),
		errors.Is(err, feed.ErrInvalidInterval):
		h.handleValidationError(c, err)
	default:
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
	}
}

// handleError logs the error and sends the response.
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := c.GetString(RequestIDContextKey)
	if requestID == "" {
		requestID = "unknown"
	}

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(c.Request.Context(), level, "API error",
		slog.String("request_id", requestID),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
		slog.Int("status_code", statusCode),
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}

func (h *APIHandler) handleValidationError(c *gin.Context, err error) {
	h.handleError(c, err, http.StatusBadRequest, err.Error())
}
