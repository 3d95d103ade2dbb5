package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alphafx/internal/model"
)

// envelope is the parsed WS message structure.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	TS      string          `json:"ts"`
	Seq     int64           `json:"seq"`
}

func TestAppendEnvelopeFormat(t *testing.T) {
	data := []byte(`{"snapshot":{"rate":83.1},"signal":"Buy"}`)
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)

	buf := appendEnvelope(nil, ChannelUpdate, data, now, 42)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != ChannelUpdate || env.Seq != 42 {
		t.Errorf("envelope = %+v", env)
	}
	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil || !parsed.Equal(now) {
		t.Errorf("ts = %q (%v)", env.TS, err)
	}
	var u model.Update
	if err := json.Unmarshal(env.Data, &u); err != nil || u.Signal != "Buy" {
		t.Errorf("data = %s (%v)", env.Data, err)
	}
}

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, setupTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads one frame and splits coalesced envelopes.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []envelope
	for _, line := range strings.Split(string(msg), "\n") {
		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			t.Fatalf("bad envelope %q: %v", line, err)
		}
		out = append(out, env)
	}
	return out
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func update(ts int64, signal string) model.Update {
	return model.Update{Snapshot: model.IndicatorSnapshot{Pair: "USD/INR", Rate: 83, Timestamp: ts}, Signal: signal}
}

func TestHub_BroadcastsUpdates(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.BroadcastUpdate(update(time.Now().UnixMilli(), "Buy"))

	envs := readEnvelopes(t, conn)
	if len(envs) != 1 || envs[0].Channel != ChannelUpdate || envs[0].Seq != 1 {
		t.Fatalf("envelopes = %+v", envs)
	}
	if hub.latency.Count() != 1 {
		t.Errorf("latency samples = %d, want 1", hub.latency.Count())
	}
}

func TestHub_ReplaysMissedOnReconnect(t *testing.T) {
	hub, url := newTestHub(t)
	for i := int64(1); i <= 5; i++ {
		hub.BroadcastUpdate(update(i, "Hold"))
	}

	conn := dial(t, url+"?last_seq=2")
	var seqs []int64
	for len(seqs) < 3 {
		for _, env := range readEnvelopes(t, conn) {
			seqs = append(seqs, env.Seq)
		}
	}
	want := []int64{3, 4, 5}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("replayed seqs = %v, want %v", seqs, want)
		}
	}

	fresh := dial(t, url)
	envs := readEnvelopes(t, fresh)
	if len(envs) != 1 || envs[0].Seq != 5 {
		t.Errorf("new client initial state = %+v, want latest only", envs)
	}
}

func TestHub_PingPong(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","ping":123}`)); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var pong struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	if err := json.Unmarshal(msg, &pong); err != nil || pong.Type != "pong" || pong.Ping != 123 {
		t.Errorf("pong = %s (%v)", msg, err)
	}
}

func TestHub_TextPing(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "pong" {
		t.Errorf("reply = %q, want pong", msg)
	}
}

func TestHub_RemovesClientOnClose(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_Missed(t *testing.T) {
	hub := NewHub(nil, setupTestLogger())
	for i := int64(1); i <= 4; i++ {
		hub.BroadcastUpdate(update(i, "Hold"))
	}
	got := hub.Missed(2, 3)
	if len(got) != 2 || hub.Seq() != 4 {
		t.Fatalf("missed = %d envelopes, seq = %d", len(got), hub.Seq())
	}
	var env envelope
	if err := json.Unmarshal(got[0], &env); err != nil || env.Seq != 2 {
		t.Errorf("first missed = %s", got[0])
	}
}
