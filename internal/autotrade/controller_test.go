package autotrade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"alphafx/internal/model"
	"alphafx/internal/notification"
	"alphafx/internal/portfolio"
	"alphafx/internal/strategy"
)

type recorder struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (r *recorder) Send(_ context.Context, a notification.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.alerts))
	for i, a := range r.alerts {
		out[i] = a.Title
	}
	return out
}

func newController(t *testing.T, limit, qty float64) (*Controller, *portfolio.VolumeLedger, *recorder) {
	t.Helper()
	ledger, err := portfolio.NewVolumeLedger(limit)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	seq := 0
	c, err := New("USD/INR", qty, ledger,
		WithNotifier(rec),
		WithIDFunc(func() string { seq++; return fmt.Sprintf("ORD-%d", seq) }),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	return c, ledger, rec
}

func tick(rate float64) model.PriceTick {
	return model.PriceTick{Pair: "USD/INR", Rate: rate, Timestamp: 1}
}

func accept(o *model.Order) model.OrderResult {
	return model.OrderResult{Order: *o, Status: model.StatusAccepted}
}

func TestController_InactiveEmitsNothing(t *testing.T) {
	c, _, _ := newController(t, 10, 1)
	if _, ok := c.OnSignal(strategy.Buy, tick(83)); ok {
		t.Fatal("inactive controller emitted an order")
	}
	if c.State() != Inactive {
		t.Fatalf("state = %s, want inactive", c.State())
	}
}

func TestController_HoldEmitsNothing(t *testing.T) {
	c, ledger, _ := newController(t, 10, 1)
	c.Activate()
	if _, ok := c.OnSignal(strategy.Hold, tick(83)); ok {
		t.Fatal("Hold produced an order")
	}
	if ledger.Status().Pending != 0 {
		t.Fatal("Hold reserved volume")
	}
}

func TestController_OrderFields(t *testing.T) {
	c, ledger, _ := newController(t, 10, 2)
	c.Activate()

	o, ok := c.OnSignal(strategy.Sell, model.PriceTick{Pair: "USD/INR", Rate: 83.12, Timestamp: 42})
	if !ok {
		t.Fatal("no order")
	}
	want := model.Order{ID: "ORD-1", Action: model.ActionSell, CurrencyPair: "USD/INR",
		Quantity: 2, Price: 83.12, Timestamp: 42, Source: model.SourceAuto}
	if *o != want {
		t.Errorf("order = %+v, want %+v", *o, want)
	}
	if ledger.Status().Pending != 2 || ledger.Total() != 0 {
		t.Errorf("ledger pending=%v total=%v, want 2/0", ledger.Status().Pending, ledger.Total())
	}
}

func TestController_SuppressesOrderNPlusOne(t *testing.T) {
	cases := []struct{ limit, qty float64 }{{10, 3}, {10, 5}, {10, 1}, {7, 2}}
	for _, tc := range cases {
		c, _, rec := newController(t, tc.limit, tc.qty)
		if err := c.Activate(); err != nil {
			t.Fatal(err)
		}
		n := int(math.Floor(tc.limit / tc.qty))

		signals := []strategy.Signal{strategy.Buy, strategy.Sell}
		emitted := 0
		for i := 0; i < n+3; i++ {
			o, ok := c.OnSignal(signals[i%2], tick(83))
			if !ok {
				continue
			}
			emitted++
			c.Settle(accept(o))
		}

		if emitted != n {
			t.Errorf("L=%v q=%v: emitted %d orders, want %d", tc.limit, tc.qty, emitted, n)
		}
		if c.State() != Suspended {
			t.Errorf("L=%v q=%v: state = %s, want suspended", tc.limit, tc.qty, c.State())
		}
		if titles := rec.titles(); len(titles) != 1 || titles[0] != "Volume limit reached" {
			t.Errorf("L=%v q=%v: notices = %v", tc.limit, tc.qty, titles)
		}
	}
}

func TestController_ReactivationRefusedWhileFull(t *testing.T) {
	c, ledger, _ := newController(t, 2, 1)
	c.Activate()
	for i := 0; i < 3; i++ {
		if o, ok := c.OnSignal(strategy.Buy, tick(83)); ok {
			c.Settle(accept(o))
		}
	}
	if c.State() != Suspended {
		t.Fatalf("state = %s, want suspended", c.State())
	}

	if err := c.Activate(); !errors.Is(err, ErrVolumeLimitReached) {
		t.Fatalf("Activate err = %v, want ErrVolumeLimitReached", err)
	}
	if c.State() != Suspended {
		t.Fatalf("refused Activate changed state to %s", c.State())
	}

	c.Deactivate()
	if c.State() != Inactive {
		t.Fatal("Deactivate must always succeed")
	}

	ledger.SetLimit(5)
	if err := c.Activate(); err != nil {
		t.Fatalf("Activate after raising limit: %v", err)
	}
	if _, ok := c.OnSignal(strategy.Buy, tick(83)); !ok {
		t.Fatal("no order after reactivation")
	}
}

func TestController_RejectionReleasesVolume(t *testing.T) {
	c, ledger, rec := newController(t, 1, 1)
	c.Activate()

	o, ok := c.OnSignal(strategy.Buy, tick(83))
	if !ok {
		t.Fatal("no order")
	}
	if !c.Settle(model.OrderResult{Order: *o, Status: model.StatusRejected, Message: "insufficient margin"}) {
		t.Fatal("Settle did not recognise order")
	}
	if ledger.Status().Pending != 0 || ledger.Total() != 0 {
		t.Fatalf("ledger pending=%v total=%v after rejection", ledger.Status().Pending, ledger.Total())
	}
	if titles := rec.titles(); len(titles) != 1 || titles[0] != "Order rejected" {
		t.Fatalf("notices = %v", titles)
	}
	if a := rec.alerts[0]; a.Event != notification.EventOrderRejected || a.Order == nil || a.Order.ID != o.ID || a.Pair != o.CurrencyPair {
		t.Errorf("alert = %+v", a)
	}

	// Capacity is free again.
	if _, ok := c.OnSignal(strategy.Buy, tick(83)); !ok {
		t.Fatal("released capacity not reusable")
	}
}

func TestController_SettleUnknownOrder(t *testing.T) {
	c, ledger, _ := newController(t, 10, 1)
	if c.Settle(model.OrderResult{Order: model.Order{ID: "nope", Quantity: 1}, Status: model.StatusAccepted}) {
		t.Fatal("unknown order settled")
	}
	if ledger.Total() != 0 {
		t.Fatal("unknown order committed volume")
	}
}

func TestController_ManualOrders(t *testing.T) {
	c, ledger, _ := newController(t, 3, 1)

	o, err := c.PlaceManual(model.ActionBuy, "", 5, 83.5)
	if err != nil {
		t.Fatalf("PlaceManual: %v", err)
	}
	if o.Source != model.SourceManual || o.CurrencyPair != "USD/INR" || o.Timestamp != 1700000000000 {
		t.Errorf("order = %+v", o)
	}
	c.Settle(model.OrderResult{Order: o, Status: model.StatusAccepted})
	if ledger.Total() != 5 {
		t.Fatalf("total = %v, want 5", ledger.Total())
	}

	// Manual volume counts toward the cap for auto-trading.
	if err := c.Activate(); !errors.Is(err, ErrVolumeLimitReached) {
		t.Fatalf("Activate err = %v", err)
	}

	bad := []struct {
		action model.Action
		qty    float64
		price  float64
	}{
		{"Hold", 1, 83},
		{model.ActionBuy, 0, 83},
		{model.ActionSell, 1, 0},
	}
	for _, b := range bad {
		if _, err := c.PlaceManual(b.action, "USD/INR", b.qty, b.price); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("PlaceManual(%v,%v,%v) err = %v", b.action, b.qty, b.price, err)
		}
	}
}

func TestController_ConcurrentSignalsNeverOvershoot(t *testing.T) {
	c, ledger, _ := newController(t, 50, 1)
	c.Activate()

	var wg sync.WaitGroup
	var mu sync.Mutex
	emitted := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if o, ok := c.OnSignal(strategy.Buy, tick(83)); ok {
					c.Settle(accept(o))
					mu.Lock()
					emitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if emitted != 50 || ledger.Total() != 50 {
		t.Fatalf("emitted=%d total=%v, want 50/50", emitted, ledger.Total())
	}
}

func TestController_Status(t *testing.T) {
	c, _, _ := newController(t, 10, 1)
	c.Activate()
	c.OnSignal(strategy.Buy, tick(83))
	st := c.Status()
	if st.State != Active || st.InFlight != 1 || st.Ledger.Pending != 1 || st.Quantity != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestNew_Invalid(t *testing.T) {
	ledger, _ := portfolio.NewVolumeLedger(1)
	if _, err := New("", 1, ledger); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("empty pair err = %v", err)
	}
	if _, err := New("USD/INR", 0, ledger); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("zero qty err = %v", err)
	}
}
