// Package traderd wires the trading daemon: feed, session, order
// dispatch, journal, Redis fan-out and the dashboard gateway.
package traderd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"alphafx/config"
	"alphafx/internal/bus"
	"alphafx/internal/execution"
	"alphafx/internal/feed"
	"alphafx/internal/gateway"
	"alphafx/internal/metrics"
	"alphafx/internal/model"
	"alphafx/internal/notification"
	"alphafx/internal/session"
	redisstore "alphafx/internal/store/redis"
	sqlitestore "alphafx/internal/store/sqlite"
)

const (
	updateBufferSize = 256
	tickBufferSize   = 64
	shutdownTimeout  = 5 * time.Second
	livenessInterval = 10 * time.Second
	statsInterval    = time.Second
)

// Service is the top-level orchestrator of the trading daemon.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config
	log *slog.Logger

	prom    *metrics.Metrics
	health  *metrics.HealthStatus
	journal *sqlitestore.Journal
	redis   *redisstore.Publisher

	alerts     *notification.Async
	dispatcher *execution.Dispatcher
	session    *session.Session
	updates    *bus.FanOut[model.Update]
	hub        *gateway.Hub
	source     feed.Source

	resultCh chan model.OrderResult
}

// New connects the journal and Redis, builds the session and restores it
// from journaled trades. Redis and SQLite failures degrade the service
// instead of aborting it.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	svc := &Service{
		cfg:     cfg,
		log:     log,
		prom:    metrics.New(),
		health:  metrics.NewHealthStatus(),
		updates: bus.New[model.Update](updateBufferSize),
	}
	svc.updates.OnDrop = func(name string) {
		svc.prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	svc.hub = gateway.NewHub(svc.prom, log)

	// ---- Open SQLite ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("cannot create journal directory", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}
	journal, err := sqlitestore.New(sqlitestore.JournalConfig{DBPath: cfg.SQLitePath, Logger: log})
	if err != nil {
		log.Warn("trade journal unavailable, continuing without persistence", slog.String("error", err.Error()))
	} else {
		svc.journal = journal
		svc.resultCh = make(chan model.OrderResult, updateBufferSize)
	}
	svc.health.SetSQLiteOK(svc.journal != nil)

	// ---- Connect to Redis ----
	if cfg.RedisAddr != "" {
		pub, err := redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   log,
		})
		if err != nil {
			log.Warn("redis unavailable, updates stay local", slog.String("error", err.Error()))
		} else {
			svc.redis = pub
		}
	}
	svc.health.SetRedisEnabled(svc.redis != nil)

	// ---- Notifications ----
	sinks := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	svc.alerts = notification.NewAsync(sinks, 64, log)

	// ---- Order submission ----
	var sub execution.Submitter
	if cfg.SubmitURL != "" {
		sub = execution.NewHTTPSubmitter(cfg.SubmitURL)
	} else {
		sub = execution.NewPaperSubmitter(cfg.SlippageBps, 0)
	}
	svc.dispatcher = execution.NewDispatcher(sub, updateBufferSize, log)

	// ---- Session ----
	opts := []session.Option{
		session.WithQueue(svc.dispatcher),
		session.WithPublisher(svc.updates),
		session.WithNotifier(svc.alerts),
		session.WithMetrics(svc.prom),
		session.WithHealth(svc.health),
		session.WithLogger(log),
	}
	if svc.resultCh != nil {
		opts = append(opts, session.WithJournal(svc.resultCh))
	}
	svc.session, err = session.New(session.Config{
		Pair:        cfg.CurrencyPair,
		Strategy:    cfg.StrategyKind(),
		Quantity:    cfg.OrderQuantity,
		VolumeLimit: cfg.VolumeLimit,
		Indicators:  cfg.IndicatorConfig(),
	}, opts...)
	if err != nil {
		svc.close()
		return nil, err
	}

	if err := svc.restore(ctx); err != nil {
		log.Warn("trade history restore failed", slog.String("error", err.Error()))
	}
	if cfg.AutoTrade {
		if err := svc.session.SetAutoTrade(true); err != nil {
			log.Warn("auto-trade not enabled at startup", slog.String("error", err.Error()))
		}
	}

	svc.source, err = newSource(cfg, svc.prom, svc.health, svc.alerts, log)
	if err != nil {
		svc.close()
		return nil, err
	}
	return svc, nil
}

// Session returns the live trading session.
func (svc *Service) Session() *session.Session { return svc.session }

func (svc *Service) restore(ctx context.Context) error {
	if svc.journal == nil {
		return nil
	}
	orders, err := svc.journal.AcceptedOrders(ctx)
	if err != nil {
		return err
	}
	if err := svc.session.Restore(orders); err != nil {
		return err
	}

	rows, err := svc.journal.Count(ctx)
	if err != nil {
		return err
	}
	want, err := svc.journal.AcceptedVolume(ctx)
	if err != nil {
		return err
	}
	got := svc.session.Status().AutoTrade.Ledger.Total
	if math.Abs(got-want) > 1e-9 {
		svc.log.Warn("restored volume does not match journal",
			slog.Float64("ledger", got), slog.Float64("journal", want))
	}
	svc.log.Info("journal loaded",
		slog.Int("rows", rows),
		slog.Int("accepted", len(orders)),
		slog.Float64("volume", want))
	return nil
}

// Run starts all subsystems and blocks until ctx is cancelled or the HTTP
// server fails.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	svc.log.Info("starting trading daemon",
		slog.String("pair", cfg.CurrencyPair),
		slog.String("strategy", string(cfg.StrategyKind())),
		slog.String("feed", cfg.FeedMode))

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// ---- Outputs ----
	spawn(func() { svc.alerts.Run(ctx) })
	hubCh := svc.updates.Subscribe("ws")
	spawn(func() { svc.hub.Run(ctx, hubCh) })
	spawn(func() { svc.hub.RunStats(ctx, statsInterval) })
	if svc.journal != nil {
		spawn(func() { svc.journal.Run(ctx, svc.resultCh) })
	}
	if svc.redis != nil {
		svc.startRedis(ctx, spawn)
	}

	// ---- Order path ----
	spawn(func() { svc.dispatcher.Run(ctx) })
	spawn(func() { svc.session.RunResults(ctx, svc.dispatcher.Results()) })

	// ---- Tick path ----
	ticks := make(chan model.PriceTick, tickBufferSize)
	spawn(func() { svc.session.Run(ctx, ticks) })
	spawn(func() {
		if err := svc.source.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
			svc.log.Error("feed stopped", slog.String("error", err.Error()))
		}
	})

	// ---- HTTP ----
	srv, errCh := svc.startHTTP()
	var metricsSrv *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.MetricsAddr, svc.prom, svc.health, svc.log)
		metricsSrv.Start()
	}
	svc.health.StartLivenessChecker(ctx, svc.redisClient(), svc.journalDB(), livenessInterval)

	svc.log.Info("all systems running",
		slog.String("http", cfg.HTTPAddr),
		slog.Bool("redis", svc.redis != nil),
		slog.Bool("journal", svc.journal != nil),
		slog.Bool("auto_trade", cfg.AutoTrade))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// ---- Graceful shutdown ----
	svc.log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		svc.log.Warn("http shutdown", slog.String("error", err.Error()))
	}
	if metricsSrv != nil {
		metricsSrv.Stop(shutCtx)
	}
	stop()
	svc.updates.Close()
	wg.Wait()
	svc.close()
	return runErr
}

func (svc *Service) startRedis(ctx context.Context, spawn func(func())) {
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(_, to redisstore.State) {
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
	}
	buffered := redisstore.NewBufferedPublisher(svc.redis, cb, 0, svc.log)
	redisCh := svc.updates.Subscribe("redis")
	spawn(func() { buffered.Run(ctx, redisCh) })
	spawn(func() {
		err := svc.redis.SubscribeRecommendations(ctx, svc.cfg.CurrencyPair, svc.session.Recommend)
		if err != nil {
			svc.log.Warn("recommendation subscriber stopped", slog.String("error", err.Error()))
		}
	})
}

func (svc *Service) startHTTP() (*http.Server, <-chan error) {
	deps := gateway.Deps{
		Trader:  svc.session,
		Hub:     svc.hub,
		Metrics: svc.prom,
		Health:  svc.health,
	}
	if svc.journal != nil {
		deps.Trades = svc.journal
	}
	if p, ok := svc.source.(feed.Pacer); ok {
		deps.Feed = p
	}
	api := gateway.NewAPIHandler(deps, svc.log)
	srv := &http.Server{
		Addr:              svc.cfg.HTTPAddr,
		Handler:           api.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		svc.log.Info("http server listening", slog.String("addr", svc.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	return srv, errCh
}

func (svc *Service) redisClient() *goredis.Client {
	if svc.redis == nil {
		return nil
	}
	return svc.redis.Client()
}

func (svc *Service) journalDB() *sql.DB {
	if svc.journal == nil {
		return nil
	}
	return svc.journal.DB()
}

func (svc *Service) close() {
	if svc.journal != nil {
		if err := svc.journal.Close(); err != nil {
			svc.log.Warn("journal close", slog.String("error", err.Error()))
		}
	}
	if svc.redis != nil {
		if err := svc.redis.Close(); err != nil {
			svc.log.Warn("redis close", slog.String("error", err.Error()))
		}
	}
}
