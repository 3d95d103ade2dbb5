package traderd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alphafx/config"
	"alphafx/internal/feed"
	"alphafx/internal/metrics"
	"alphafx/internal/notification"
)

// newSource builds the tick source selected by FEED_MODE. alerts may be nil.
func newSource(cfg *config.Config, prom *metrics.Metrics, health *metrics.HealthStatus, alerts notification.Notifier, log *slog.Logger) (feed.Source, error) {
	switch cfg.FeedMode {
	case config.FeedSim:
		health.SetFeedConnected(true)
		return feed.NewSimulator(feed.SimulatorConfig{
			Pair:     cfg.CurrencyPair,
			Start:    cfg.StartRate,
			Interval: cfg.TickInterval(),
		}, log), nil

	case config.FeedHTTP:
		p, err := feed.NewHTTPPoller(feed.PollerConfig{
			BaseURL:  cfg.FeedURL,
			Pair:     cfg.CurrencyPair,
			Interval: cfg.TickInterval(),
		}, log)
		if err != nil {
			return nil, err
		}
		health.SetFeedConnected(true)
		return p, nil

	case config.FeedWS:
		ing, err := feed.NewWSIngest(feed.WSConfig{URL: cfg.FeedURL, Pair: cfg.CurrencyPair}, log)
		if err != nil {
			return nil, err
		}
		ing.OnReconnect = prom.FeedReconnects.Inc
		ing.OnConnState = func(connected bool) {
			health.SetFeedConnected(connected)
			if !connected && alerts != nil {
				alerts.Send(context.Background(), notification.Alert{
					Level:   notification.AlertWarning,
					Event:   notification.EventFeedLost,
					Pair:    cfg.CurrencyPair,
					Title:   "Feed disconnected",
					Message: fmt.Sprintf("%s feed at %s lost, reconnecting", cfg.CurrencyPair, cfg.FeedURL),
					Time:    time.Now(),
				})
			}
		}
		return ing, nil
	}
	return nil, fmt.Errorf("traderd: unknown feed mode %q", cfg.FeedMode)
}
