package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"alphafx/internal/model"
)

// WSConfig configures the WebSocket ingest.
type WSConfig struct {
	// URL of the tick server, e.g. "ws://localhost:9001/ws".
	URL string

	// Pair filters incoming ticks; empty accepts every pair.
	Pair string

	// ReconnectDelay is the initial backoff. Defaults to 2s.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WSIngest reads JSON ticks from a WebSocket server:
//
//	{"pair":"USD/INR","rate":83.12,"timestamp":1700000000000}
//
// and reconnects with exponential backoff when the connection drops.
type WSIngest struct {
	cfg WSConfig
	log *slog.Logger

	// Optional hook, called each time a reconnection is scheduled.
	OnReconnect func()
	// Optional hook, called with true on connect and false on disconnect.
	OnConnState func(connected bool)
}

// NewWSIngest validates the URL and returns an ingest client.
func NewWSIngest(cfg WSConfig, log *slog.Logger) (*WSIngest, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: ws url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed: ws url %q: scheme must be ws or wss", cfg.URL)
	}
	if log == nil {
		log = slog.Default()
	}
	return &WSIngest{cfg: cfg, log: log.With(slog.String("component", "feed-ws"))}, nil
}

// Run connects and streams ticks into out. Blocks until ctx is cancelled.
func (ing *WSIngest) Run(ctx context.Context, out chan<- model.PriceTick) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := ing.runOnce(ctx, out)
		if err == nil {
			return nil
		}

		ing.log.Warn("disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (ing *WSIngest) runOnce(ctx context.Context, out chan<- model.PriceTick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ing.log.Info("connected", slog.String("url", ing.cfg.URL))
	ing.setConnected(true)
	defer ing.setConnected(false)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		tick, ok := ing.decode(raw)
		if !ok {
			continue
		}
		emit(out, tick, ing.log)
	}
}

func (ing *WSIngest) decode(raw []byte) (model.PriceTick, bool) {
	var tick model.PriceTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		ing.log.Warn("parse error", slog.String("error", err.Error()), slog.String("raw", string(raw)))
		return tick, false
	}
	if tick.Pair == "" {
		tick.Pair = ing.cfg.Pair
	}
	if ing.cfg.Pair != "" && !strings.EqualFold(tick.Pair, ing.cfg.Pair) {
		return tick, false
	}
	if tick.Timestamp == 0 {
		tick.Timestamp = time.Now().UnixMilli()
	}
	return tick, true
}

func (ing *WSIngest) setConnected(v bool) {
	if ing.OnConnState != nil {
		ing.OnConnState(v)
	}
}
