package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"alphafx/internal/model"
)

// PollerConfig configures the HTTP rate poller.
type PollerConfig struct {
	// BaseURL of an exchangerate-api style service; the poller requests
	// {BaseURL}/latest/{BASE} and reads conversion_rates[QUOTE].
	BaseURL  string
	Pair     string        // "BASE/QUOTE", e.g. "USD/INR"
	Interval time.Duration // defaults to 60s
	Client   *http.Client
}

// HTTPPoller fetches the latest rate for a pair on a fixed interval.
type HTTPPoller struct {
	cfg   PollerConfig
	base  string
	quote string
	pace  *pace
	log   *slog.Logger
	now   func() time.Time
}

type latestResponse struct {
	Base            string             `json:"base_code"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
	Rates           map[string]float64 `json:"rates"`
}

// NewHTTPPoller splits the pair and prepares the poller.
func NewHTTPPoller(cfg PollerConfig, log *slog.Logger) (*HTTPPoller, error) {
	parts := strings.Split(strings.ToUpper(cfg.Pair), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("feed: pair %q must look like BASE/QUOTE", cfg.Pair)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("feed: poller base url is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPPoller{
		cfg:   cfg,
		base:  parts[0],
		quote: parts[1],
		pace:  newPace(cfg.Interval),
		log:   log.With(slog.String("component", "feed-http")),
		now:   time.Now,
	}, nil
}

// Fetch performs one request and returns the current tick.
func (p *HTTPPoller) Fetch(ctx context.Context) (model.PriceTick, error) {
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/latest/" + p.base
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.PriceTick{}, err
	}
	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return model.PriceTick{}, fmt.Errorf("feed: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.PriceTick{}, fmt.Errorf("feed: fetch %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var lr latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return model.PriceTick{}, fmt.Errorf("feed: decode %s: %w", url, err)
	}
	rates := lr.ConversionRates
	if rates == nil {
		rates = lr.Rates
	}
	rate, ok := rates[p.quote]
	if !ok {
		return model.PriceTick{}, fmt.Errorf("feed: %s missing from response", p.quote)
	}
	return model.PriceTick{Pair: p.cfg.Pair, Rate: rate, Timestamp: p.now().UnixMilli()}, nil
}

// SetInterval changes the polling interval of a running poller.
func (p *HTTPPoller) SetInterval(d time.Duration) error { return p.pace.set(d) }

// Interval returns the current polling interval.
func (p *HTTPPoller) Interval() time.Duration { return p.pace.get() }

// Run polls immediately and then every interval until ctx is cancelled.
// Fetch errors are logged and the next poll proceeds.
func (p *HTTPPoller) Run(ctx context.Context, out chan<- model.PriceTick) error {
	ticker := time.NewTicker(p.pace.get())
	defer ticker.Stop()

	for {
		tick, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn("poll failed", slog.String("error", err.Error()))
		} else {
			emit(out, tick, p.log)
		}

		if !p.wait(ctx, ticker) {
			return nil
		}
	}
}

// wait blocks until the next poll is due, applying interval changes on the
// way. It returns false once ctx is done.
func (p *HTTPPoller) wait(ctx context.Context, ticker *time.Ticker) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-p.pace.changed:
			interval := p.pace.get()
			ticker.Reset(interval)
			p.log.Info("poll interval changed", slog.Duration("interval", interval))
		case <-ticker.C:
			return true
		}
	}
}
