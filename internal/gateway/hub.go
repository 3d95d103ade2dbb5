package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alphafx/internal/metrics"
	"alphafx/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub pushes session updates to connected dashboard WebSocket clients.
// Every update is wrapped in a sequenced envelope; clients that reconnect
// with ?last_seq=N receive what they missed from the replay buffer.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  map[string][]byte
	seq     int64
	replay  *ReplayBuffer

	latency *LatencyTracker
	stats   *statsCollector
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewHub creates a Hub. m may be nil.
func NewHub(m *metrics.Metrics, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		latest:  make(map[string][]byte),
		replay:  NewReplayBuffer(500),
		latency: NewLatencyTracker(10000),
		stats:   newStatsCollector(time.Now()),
		metrics: m,
		log:     log.With(slog.String("component", "ws-hub")),
		now:     time.Now,
	}
}

// Run broadcasts updates until ctx is cancelled or updates is closed.
func (h *Hub) Run(ctx context.Context, updates <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.BroadcastUpdate(u)
		}
	}
}

// BroadcastUpdate sends one session update and records how long it took
// from the tick timestamp to the broadcast.
func (h *Hub) BroadcastUpdate(u model.Update) {
	if ts := u.Snapshot.Timestamp; ts > 0 {
		if ms := float64(h.now().UnixMilli() - ts); ms >= 0 {
			h.latency.Record(ms)
		}
	}
	h.broadcast(ChannelUpdate, u.JSON(), true)
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	lastSeq := parseInt64(r.URL.Query().Get("last_seq"))
	h.register(conn, lastSeq)
}

func (h *Hub) register(conn *websocket.Conn, lastSeq int64) *Client {
	client := newClient(h, conn)
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.log.Info("ws client connected", slog.Int("clients", count))

	client.sendInitialState(lastSeq)
	go client.writePump()
	go client.readPump()
	return client
}

// removeClient unregisters c and closes its send queue.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.log.Info("ws client disconnected", slog.Int("clients", count))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last sequenced envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Missed returns the buffered envelopes with seq in [from, to].
func (h *Hub) Missed(from, to int64) []json.RawMessage {
	entries := h.replay.Range(from, to)
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Stats collects the current system stats.
func (h *Hub) Stats() SystemStats {
	s := h.stats.Collect()
	s.WSClients = h.ClientCount()
	s.LatencyP50, s.LatencyP95, s.LatencyP99 = h.latency.Percentiles()
	return s
}

// RunStats broadcasts system stats every interval until ctx is cancelled.
func (h *Hub) RunStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			data, _ := json.Marshal(h.Stats())
			h.broadcast(ChannelStats, data, false)
		}
	}
}
