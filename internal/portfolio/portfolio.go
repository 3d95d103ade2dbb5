// Package portfolio tracks traded volume, open FX positions and realized P/L.
//
// VolumeLedger enforces the session volume cap. Book keeps one position per
// currency pair and marks it against the latest rate. PnLTracker records
// confirmed trades and produces the dashboard analytics.
package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"alphafx/internal/model"
)

// Position is the open quantity held in one currency pair.
type Position struct {
	Pair     string  `json:"pair"`
	Qty      float64 `json:"qty"` // positive = long
	AvgPrice float64 `json:"avgPrice"`
	LastRate float64 `json:"lastRate"`
}

// UnrealizedPnL returns (last - avg) * qty.
func (p *Position) UnrealizedPnL() float64 {
	if p.LastRate == 0 {
		return 0
	}
	return (p.LastRate - p.AvgPrice) * p.Qty
}

type position struct {
	qty      decimal.Decimal
	avgPrice decimal.Decimal
	lastRate decimal.Decimal
}

// Book tracks open positions per currency pair using average-cost accounting.
// Sells never take a position short; excess sell quantity is ignored for P/L.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*position
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{positions: make(map[string]*position)}
}

// Apply books a confirmed order and returns the P/L it realized along with
// the quantity it closed. A Buy closes nothing.
func (b *Book) Apply(o model.Order) (realized, closed decimal.Decimal) {
	qty := decimal.NewFromFloat(o.Quantity)
	price := decimal.NewFromFloat(o.Price)

	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[o.CurrencyPair]
	if !ok {
		pos = &position{}
		b.positions[o.CurrencyPair] = pos
	}

	if o.Action == model.ActionBuy {
		cost := pos.avgPrice.Mul(pos.qty).Add(price.Mul(qty))
		pos.qty = pos.qty.Add(qty)
		pos.avgPrice = cost.Div(pos.qty)
		return decimal.Zero, decimal.Zero
	}

	closed = decimal.Min(qty, pos.qty)
	realized = price.Sub(pos.avgPrice).Mul(closed)
	pos.qty = pos.qty.Sub(closed)
	if !pos.qty.IsPositive() {
		pos.qty = decimal.Zero
		pos.avgPrice = decimal.Zero
	}
	return realized, closed
}

// Mark updates the last rate for the tick's pair, if a position exists.
func (b *Book) Mark(tick model.PriceTick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos, ok := b.positions[tick.Pair]; ok {
		pos.lastRate = decimal.NewFromFloat(tick.Rate)
	}
}

// Positions returns a snapshot of all open positions.
func (b *Book) Positions() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for pair, p := range b.positions {
		if !p.qty.IsPositive() {
			continue
		}
		out = append(out, Position{
			Pair:     pair,
			Qty:      p.qty.InexactFloat64(),
			AvgPrice: p.avgPrice.InexactFloat64(),
			LastRate: p.lastRate.InexactFloat64(),
		})
	}
	return out
}

// Unrealized returns the mark-to-market P/L of all open positions.
func (b *Book) Unrealized() float64 {
	var total float64
	for _, p := range b.Positions() {
		total += p.UnrealizedPnL()
	}
	return total
}
