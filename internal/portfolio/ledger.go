package portfolio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned for non-positive reservation sizes.
	ErrInvalidQuantity = errors.New("portfolio: quantity must be positive")
	// ErrInvalidLimit is returned for a non-positive volume limit.
	ErrInvalidLimit = errors.New("portfolio: volume limit must be positive")
)

// VolumeLedger caps the cumulative traded volume of a session.
//
// Volume moves through two stages: Reserve/TryReserve park a quantity as
// pending when an order is emitted, Commit moves it into the total once the
// order is confirmed, and Release drops it on rejection. Total only grows.
// All methods are safe for concurrent use; the check-and-reserve in
// TryReserve is a single critical section.
type VolumeLedger struct {
	mu      sync.Mutex
	total   decimal.Decimal
	pending decimal.Decimal
	limit   decimal.Decimal
}

// LedgerStatus is a point-in-time view of the ledger.
type LedgerStatus struct {
	Total     float64 `json:"totalVolume"`
	Pending   float64 `json:"pendingVolume"`
	Limit     float64 `json:"volumeLimit"`
	Remaining float64 `json:"remaining"`
}

// NewVolumeLedger creates a ledger with the given limit.
func NewVolumeLedger(limit float64) (*VolumeLedger, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLimit, limit)
	}
	return &VolumeLedger{limit: decimal.NewFromFloat(limit)}, nil
}

// TryReserve parks q as pending if committed + pending + q stays within the
// limit. It returns false, leaving the ledger unchanged, otherwise.
func (l *VolumeLedger) TryReserve(q float64) (bool, error) {
	if q <= 0 {
		return false, ErrInvalidQuantity
	}
	dq := decimal.NewFromFloat(q)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total.Add(l.pending).Add(dq).GreaterThan(l.limit) {
		return false, nil
	}
	l.pending = l.pending.Add(dq)
	return true, nil
}

// Reserve parks q as pending without checking the limit. Manual orders use it.
func (l *VolumeLedger) Reserve(q float64) error {
	if q <= 0 {
		return ErrInvalidQuantity
	}
	l.mu.Lock()
	l.pending = l.pending.Add(decimal.NewFromFloat(q))
	l.mu.Unlock()
	return nil
}

// Commit moves q from pending into the total.
func (l *VolumeLedger) Commit(q float64) {
	dq := decimal.NewFromFloat(q)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = l.pending.Sub(dq)
	if l.pending.IsNegative() {
		slog.Warn("volume ledger: commit exceeded pending", slog.Float64("qty", q))
		l.pending = decimal.Zero
	}
	l.total = l.total.Add(dq)
}

// Release drops q from pending.
func (l *VolumeLedger) Release(q float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = l.pending.Sub(decimal.NewFromFloat(q))
	if l.pending.IsNegative() {
		l.pending = decimal.Zero
	}
}

// CanFit reports whether another reservation of q would be accepted.
func (l *VolumeLedger) CanFit(q float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.total.Add(l.pending).Add(decimal.NewFromFloat(q)).GreaterThan(l.limit)
}

// Total returns the committed volume.
func (l *VolumeLedger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.InexactFloat64()
}

// SetLimit replaces the limit. Volume already committed is kept.
func (l *VolumeLedger) SetLimit(limit float64) error {
	if limit <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidLimit, limit)
	}
	l.mu.Lock()
	l.limit = decimal.NewFromFloat(limit)
	l.mu.Unlock()
	return nil
}

// Status returns current ledger status.
func (l *VolumeLedger) Status() LedgerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.limit.Sub(l.total).Sub(l.pending)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return LedgerStatus{
		Total:     l.total.InexactFloat64(),
		Pending:   l.pending.InexactFloat64(),
		Limit:     l.limit.InexactFloat64(),
		Remaining: remaining.InexactFloat64(),
	}
}
