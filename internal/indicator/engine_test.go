package indicator

import (
	"errors"
	"math"
	"testing"

	"alphafx/internal/model"
)

func tick(rate float64, ts int64) model.PriceTick {
	return model.PriceTick{Pair: "USD/INR", Rate: rate, Timestamp: ts}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.SMAPeriod = 0 },
		func(c *Config) { c.EMAPeriod = -1 },
		func(c *Config) { c.BollingerPeriod = 0 },
		func(c *Config) { c.BollingerWidth = 0 },
		func(c *Config) { c.RSIPeriod = 0 },
		func(c *Config) { c.MaxWindowRetention = 10 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := NewEngine(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: err = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func TestEngine_ConstantStream(t *testing.T) {
	// 20 ticks at 1.0: SMA(14) ready at tick 14, RSI(14) at tick 15 (=100),
	// Bollinger(20) at tick 20 with both bands at 1.0.
	e := newTestEngine(t)
	for i := 1; i <= 20; i++ {
		snap, err := e.PushTick(tick(1.0, int64(i)))
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}

		if snap.EMA == nil {
			t.Fatalf("tick %d: EMA not ready", i)
		}
		assertClose(t, "EMA", *snap.EMA, 1.0, 1e-12)
		if i < 14 && snap.SMA != nil {
			t.Fatalf("tick %d: SMA ready too early", i)
		}
		if i >= 14 && (snap.SMA == nil || *snap.SMA != 1.0) {
			t.Fatalf("tick %d: SMA = %v, want 1.0", i, snap.SMA)
		}
		if i < 15 && snap.RSI != nil {
			t.Fatalf("tick %d: RSI ready too early", i)
		}
		if i >= 15 && (snap.RSI == nil || *snap.RSI != 100) {
			t.Fatalf("tick %d: RSI = %v, want 100", i, snap.RSI)
		}
		if i < 20 && snap.HasBands() {
			t.Fatalf("tick %d: bands before ready", i)
		}
	}

	last, ok := e.Last()
	if !ok {
		t.Fatal("Last() reported no snapshot")
	}
	if last.BollingerUpper != 1.0 || last.BollingerLower != 1.0 {
		t.Errorf("bands = %v/%v, want 1/1", last.BollingerUpper, last.BollingerLower)
	}
}

func TestEngine_RejectsInvalidRate(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.PushTick(tick(83, 1)); err != nil {
		t.Fatal(err)
	}

	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := e.PushTick(tick(r, 2)); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("rate %v: err = %v, want ErrInvalidRate", r, err)
		}
	}
	if got := len(e.History()); got != 1 {
		t.Errorf("history len = %d after rejects, want 1", got)
	}
	last, _ := e.Last()
	if last.Rate != 83 {
		t.Errorf("last rate = %v, want 83", last.Rate)
	}
}

func TestEngine_RejectsOutOfOrder(t *testing.T) {
	e := newTestEngine(t)
	e.PushTick(tick(83, 100))

	if _, err := e.PushTick(tick(84, 99)); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	// Equal timestamps are accepted.
	if _, err := e.PushTick(tick(84, 100)); err != nil {
		t.Fatalf("equal timestamp rejected: %v", err)
	}
	if got := len(e.History()); got != 2 {
		t.Errorf("history len = %d, want 2", got)
	}
}

func TestEngine_RejectsOtherPair(t *testing.T) {
	e := newTestEngine(t)
	e.PushTick(tick(83, 1))
	_, err := e.PushTick(model.PriceTick{Pair: "GBP/USD", Rate: 1.27, Timestamp: 2})
	if !errors.Is(err, ErrPairMismatch) {
		t.Fatalf("err = %v, want ErrPairMismatch", err)
	}
}

func TestEngine_HistoryRetention(t *testing.T) {
	e := newTestEngine(t)
	for i := 1; i <= 120; i++ {
		e.PushTick(tick(80+float64(i)*0.01, int64(i)))
	}
	h := e.History()
	if len(h) != 50 {
		t.Fatalf("history len = %d, want 50", len(h))
	}
	if h[0].Timestamp != 71 || h[49].Timestamp != 120 {
		t.Errorf("history span = %d..%d, want 71..120", h[0].Timestamp, h[49].Timestamp)
	}
}

func TestEngine_Reset(t *testing.T) {
	e := newTestEngine(t)
	for i := 1; i <= 30; i++ {
		e.PushTick(tick(83, int64(i)))
	}
	e.Reset()
	if _, ok := e.Last(); ok {
		t.Fatal("Last() after Reset should report none")
	}
	if len(e.History()) != 0 {
		t.Fatal("history not cleared")
	}
	// Earlier timestamps are fine after a reset.
	snap, err := e.PushTick(tick(90, 1))
	if err != nil {
		t.Fatalf("push after reset: %v", err)
	}
	if snap.SMA != nil || snap.RSI != nil {
		t.Error("indicators should not be ready after reset")
	}
}

func TestCompute_MatchesStreaming(t *testing.T) {
	ticks := make([]model.PriceTick, 0, 60)
	for i := 1; i <= 60; i++ {
		ticks = append(ticks, tick(83+math.Sin(float64(i)/3), int64(i)))
	}
	ticks = append(ticks, tick(-1, 61))

	snaps, skipped, err := Compute(DefaultConfig(), ticks)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 || len(snaps) != 60 {
		t.Fatalf("snaps=%d skipped=%d, want 60/1", len(snaps), skipped)
	}

	e := newTestEngine(t)
	for i := 0; i < 60; i++ {
		s, _ := e.PushTick(ticks[i])
		if s.BollingerUpper != snaps[i].BollingerUpper {
			t.Fatalf("tick %d: batch and streaming differ", i)
		}
	}
}
