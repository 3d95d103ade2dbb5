// cmd/tickserver is a demo WebSocket rate server for running traderd with
// FEED_MODE=ws and no real rate provider.
//
// Every connected client receives the same random walk, one JSON tick per
// interval:
//
//	{"pair":"USD/INR","rate":83.0412,"timestamp":1700000000000}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  listen address (default ":9001")
//	CURRENCY_PAIR     pair to simulate (default "USD/INR")
//	START_RATE        initial rate (default 83.0)
//	TICK_INTERVAL_MS  broadcast interval in milliseconds (default 1000)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"

	"alphafx/internal/feed"
	"alphafx/internal/logger"
	"alphafx/internal/model"
)

type serverConfig struct {
	Addr           string  `envconfig:"TICK_SERVER_ADDR" default:":9001"`
	Pair           string  `envconfig:"CURRENCY_PAIR" default:"USD/INR"`
	StartRate      float64 `envconfig:"START_RATE" default:"83.0"`
	TickIntervalMs int     `envconfig:"TICK_INTERVAL_MS" default:"1000"`
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info"`
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop tick
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", slog.String("error", err.Error()))
			return
		}
		log.Info("client connected", slog.String("remote", r.RemoteAddr))

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Info("client disconnected", slog.String("remote", r.RemoteAddr))
		}()

		// Drain reads so close frames are noticed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(conn)
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func runBroadcaster(ctx context.Context, h *hub, ticks <-chan model.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticks:
			b, err := json.Marshal(t)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

func main() {
	var cfg serverConfig
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.Init("tickserver", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := feed.NewSimulator(feed.SimulatorConfig{
		Pair:     cfg.Pair,
		Start:    cfg.StartRate,
		Interval: time.Duration(cfg.TickIntervalMs) * time.Millisecond,
	}, log)
	ticks := make(chan model.PriceTick, 16)
	h := newHub()
	go sim.Run(ctx, ticks)
	go runBroadcaster(ctx, h, ticks)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
		defer stop()
		srv.Shutdown(shutCtx)
	}()

	log.Info("listening",
		slog.String("addr", cfg.Addr),
		slog.String("pair", cfg.Pair),
		slog.Int("interval_ms", cfg.TickIntervalMs))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
