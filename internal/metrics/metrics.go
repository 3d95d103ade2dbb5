// Package metrics exposes Prometheus metrics and the health endpoint of the
// trading daemon. Every Metrics owns its registry, so several sessions or
// tests can coexist in one process.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the FX trading pipeline.
type Metrics struct {
	Registry *prometheus.Registry

	TicksTotal     prometheus.Counter
	TicksRejected  *prometheus.CounterVec // labels: reason
	TickProcessDur prometheus.Histogram
	FeedReconnects prometheus.Counter

	SignalsTotal *prometheus.CounterVec // labels: signal
	OrdersTotal  *prometheus.CounterVec // labels: source, status

	LedgerVolume    prometheus.Gauge
	LedgerPending   prometheus.Gauge
	ControllerState prometheus.Gauge // 0=inactive, 1=active, 2=suspended

	// Backpressure
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	WSClients        prometheus.Gauge

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	BacktestRuns *prometheus.CounterVec // labels: strategy
}

// New creates all metrics on a fresh registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,

		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphafx_ticks_total",
			Help: "Total price ticks accepted by the indicator engine",
		}),
		TicksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphafx_ticks_rejected_total",
			Help: "Ticks rejected before reaching the rolling windows",
		}, []string{"reason"}),
		TickProcessDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alphafx_tick_process_duration_seconds",
			Help:    "Latency from tick admission to signal and order decision",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphafx_feed_reconnects_total",
			Help: "Tick feed reconnection attempts",
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphafx_signals_total",
			Help: "Non-hold signals emitted by the signal generator",
		}, []string{"signal"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphafx_orders_total",
			Help: "Orders settled, by source and submission status",
		}, []string{"source", "status"}),

		LedgerVolume: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphafx_ledger_volume",
			Help: "Committed traded volume",
		}),
		LedgerPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphafx_ledger_pending_volume",
			Help: "Reserved volume awaiting confirmation",
		}),
		ControllerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphafx_autotrade_state",
			Help: "Auto-trade controller state (0=inactive, 1=active, 2=suspended)",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphafx_fanout_drops_total",
			Help: "Updates dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphafx_ws_clients",
			Help: "Connected dashboard WebSocket clients",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphafx_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphafx_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		BacktestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphafx_backtest_runs_total",
			Help: "Backtests executed, by strategy",
		}, []string{"strategy"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TicksTotal,
		m.TicksRejected,
		m.TickProcessDur,
		m.FeedReconnects,
		m.SignalsTotal,
		m.OrdersTotal,
		m.LedgerVolume,
		m.LedgerPending,
		m.ControllerState,
		m.FanoutDropsTotal,
		m.WSClients,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.BacktestRuns,
	)

	return m
}

// Handler serves this instance's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		log:  log.With(slog.String("component", "metrics")),
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
