package portfolio

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func newLedger(t *testing.T, limit float64) *VolumeLedger {
	t.Helper()
	l, err := NewVolumeLedger(limit)
	if err != nil {
		t.Fatalf("NewVolumeLedger: %v", err)
	}
	return l
}

func TestVolumeLedger_SuppressesAfterFloorLOverQ(t *testing.T) {
	cases := []struct {
		limit, qty float64
	}{
		{10, 3},
		{10, 5},
		{10, 1},
		{7.5, 2.5},
		{1e7, 1},
		{0.3, 0.1},
	}
	for _, c := range cases {
		l := newLedger(t, c.limit)
		n := int(math.Floor(c.limit/c.qty + 1e-9))
		if n > 1000 {
			n = 1000
			l.SetLimit(float64(n) * c.qty)
		}

		for i := 0; i < n; i++ {
			ok, err := l.TryReserve(c.qty)
			if err != nil || !ok {
				t.Fatalf("L=%v q=%v: order %d refused", c.limit, c.qty, i+1)
			}
			l.Commit(c.qty)
		}
		if ok, _ := l.TryReserve(c.qty); ok {
			t.Errorf("L=%v q=%v: order %d should be suppressed", c.limit, c.qty, n+1)
		}
	}
}

func TestVolumeLedger_PendingCountsAgainstLimit(t *testing.T) {
	l := newLedger(t, 2)
	for i := 0; i < 2; i++ {
		if ok, _ := l.TryReserve(1); !ok {
			t.Fatalf("reservation %d refused", i+1)
		}
	}
	if ok, _ := l.TryReserve(1); ok {
		t.Fatal("third reservation accepted while two are pending")
	}
	if st := l.Status(); st.Total != 0 || st.Pending != 2 {
		t.Fatalf("total=%v pending=%v, want 0/2", st.Total, st.Pending)
	}

	l.Release(1)
	if !l.CanFit(1) {
		t.Fatal("released capacity not available")
	}
	l.Commit(1)
	if st := l.Status(); st.Total != 1 || st.Pending != 0 {
		t.Fatalf("total=%v pending=%v, want 1/0", st.Total, st.Pending)
	}
}

func TestVolumeLedger_ManualReserveIsUncapped(t *testing.T) {
	l := newLedger(t, 5)
	if err := l.Reserve(8); err != nil {
		t.Fatal(err)
	}
	l.Commit(8)
	if l.CanFit(0.01) {
		t.Fatal("ledger over its limit still fits orders")
	}
	st := l.Status()
	if st.Total != 8 || st.Remaining != 0 || st.Limit != 5 {
		t.Errorf("status = %+v", st)
	}
}

func TestVolumeLedger_InvalidInput(t *testing.T) {
	if _, err := NewVolumeLedger(0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("NewVolumeLedger(0) err = %v", err)
	}
	l := newLedger(t, 10)
	if _, err := l.TryReserve(0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("TryReserve(0) err = %v", err)
	}
	if err := l.Reserve(-1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Reserve(-1) err = %v", err)
	}
	if err := l.SetLimit(-3); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("SetLimit(-3) err = %v", err)
	}
}

func TestVolumeLedger_SetLimitKeepsTotal(t *testing.T) {
	l := newLedger(t, 2)
	l.TryReserve(2)
	l.Commit(2)
	if l.CanFit(1) {
		t.Fatal("should be full")
	}
	l.SetLimit(5)
	if !l.CanFit(3) || l.CanFit(4) {
		t.Fatal("raised limit not applied to remaining capacity")
	}
	if l.Total() != 2 {
		t.Errorf("total = %v, want 2", l.Total())
	}
}

func TestVolumeLedger_ConcurrentReservationsNeverOvershoot(t *testing.T) {
	l := newLedger(t, 100)
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if ok, _ := l.TryReserve(1); ok {
					l.Commit(1)
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	if accepted != 100 || l.Total() != 100 {
		t.Fatalf("accepted=%d total=%v, want 100/100", accepted, l.Total())
	}
}
