package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alphafx/internal/model"
)

func TestSimulator_Deterministic(t *testing.T) {
	a := NewSimulator(SimulatorConfig{Pair: "USD/INR", Start: 83, Seed: 7}, nil)
	b := NewSimulator(SimulatorConfig{Pair: "USD/INR", Start: 83, Seed: 7}, nil)

	for i := 0; i < 100; i++ {
		ta, tb := a.Next(), b.Next()
		if ta.Rate != tb.Rate {
			t.Fatalf("step %d: %v != %v", i, ta.Rate, tb.Rate)
		}
		if ta.Pair != "USD/INR" || !ta.Valid() {
			t.Fatalf("step %d: bad tick %+v", i, ta)
		}
	}
}

func TestSimulator_StepBoundAndFloor(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Pair: "X/Y", Start: 0.02, Step: 0.1, Floor: 0.01, Seed: 3}, nil)
	prev := 0.02
	for i := 0; i < 1000; i++ {
		tick := s.Next()
		if tick.Rate < 0.01 {
			t.Fatalf("step %d: rate %v below floor", i, tick.Rate)
		}
		if d := tick.Rate - prev; d > 0.05+1e-12 {
			t.Fatalf("step %d: moved up by %v", i, d)
		}
		prev = tick.Rate
	}
}

func TestSimulator_RunEmitsUntilCancelled(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Pair: "USD/INR", Start: 83, Interval: 5 * time.Millisecond, Seed: 1}, nil)
	out := make(chan model.PriceTick, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	select {
	case tick := <-out:
		if tick.Pair != "USD/INR" {
			t.Errorf("pair = %s", tick.Pair)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick emitted")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestSimulator_SetIntervalWhileRunning(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Pair: "USD/INR", Start: 83, Interval: time.Hour, Seed: 1}, nil)
	out := make(chan model.PriceTick, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, out)

	select {
	case <-out:
		t.Fatal("tick before the interval changed")
	case <-time.After(20 * time.Millisecond):
	}

	if err := s.SetInterval(5 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if s.Interval() != 5*time.Millisecond {
		t.Errorf("Interval = %v", s.Interval())
	}
	select {
	case <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick after shortening the interval")
	}
}

func TestPacer_RejectsNonPositive(t *testing.T) {
	s := NewSimulator(SimulatorConfig{Pair: "USD/INR", Start: 83, Interval: time.Second}, nil)
	for _, d := range []time.Duration{0, -time.Second} {
		if err := s.SetInterval(d); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("SetInterval(%v) err = %v", d, err)
		}
	}
	if s.Interval() != time.Second {
		t.Errorf("Interval = %v, want unchanged 1s", s.Interval())
	}

	var src Source = &WSIngest{}
	if _, ok := src.(Pacer); ok {
		t.Error("WebSocket ingest should not be pace-controlled")
	}
}

func TestHTTPPoller_SetIntervalWhileRunning(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"base_code":"USD","conversion_rates":{"INR":83.25}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPPoller(PollerConfig{BaseURL: srv.URL, Pair: "USD/INR", Interval: time.Hour}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan model.PriceTick, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, out)

	<-out // immediate first poll
	if err := p.SetInterval(5 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	select {
	case <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("no poll after shortening the interval")
	}
	if hits.Load() < 2 {
		t.Errorf("requests = %d, want at least 2", hits.Load())
	}
}

func TestHTTPPoller_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/USD" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"base_code":"USD","conversion_rates":{"INR":83.25,"EUR":0.92}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPPoller(PollerConfig{BaseURL: srv.URL, Pair: "USD/INR"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tick, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tick.Rate != 83.25 || tick.Pair != "USD/INR" || tick.Timestamp == 0 {
		t.Errorf("tick = %+v", tick)
	}
}

func TestHTTPPoller_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/GBP") {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("quota"))
			return
		}
		w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	}))
	defer srv.Close()

	p, _ := NewHTTPPoller(PollerConfig{BaseURL: srv.URL, Pair: "USD/INR"}, nil)
	if _, err := p.Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "INR") {
		t.Errorf("missing quote: err = %v", err)
	}

	p, _ = NewHTTPPoller(PollerConfig{BaseURL: srv.URL, Pair: "GBP/USD"}, nil)
	if _, err := p.Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("bad status: err = %v", err)
	}

	if _, err := NewHTTPPoller(PollerConfig{BaseURL: srv.URL, Pair: "USDINR"}, nil); err == nil {
		t.Error("pair without slash accepted")
	}
}

func TestWSIngest_ReadsTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"pair":"EUR/USD","rate":1.1,"timestamp":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"pair":"USD/INR","rate":83.1,"timestamp":2}`))
		conn.ReadMessage() // hold the connection open until the client closes it
	}))
	defer srv.Close()

	ing, err := NewWSIngest(WSConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Pair: "USD/INR"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var states []bool
	ing.OnConnState = func(c bool) { states = append(states, c) }

	out := make(chan model.PriceTick, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx, out) }()

	select {
	case tick := <-out:
		if tick.Pair != "USD/INR" || tick.Rate != 83.1 || tick.Timestamp != 2 {
			t.Errorf("tick = %+v", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if len(states) == 0 || !states[0] {
		t.Errorf("states = %v, want connect first", states)
	}
}

func TestNewWSIngest_RejectsHTTPScheme(t *testing.T) {
	if _, err := NewWSIngest(WSConfig{URL: "http://localhost:9001/ws"}, nil); err == nil {
		t.Error("expected error for http scheme")
	}
}
