package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"alphafx/internal/model"
)

// PnLTracker records confirmed trades and keeps the running analytics.
type PnLTracker struct {
	mu     sync.RWMutex
	book   *Book
	trades int

	realized decimal.Decimal
	volume   decimal.Decimal
	wins     int
	closes   int
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{book: NewBook()}
}

// RecordTrade books a confirmed order and returns the P/L it realized.
// Only a Sell that closes held quantity counts as a round trip for the win
// rate.
func (p *PnLTracker) RecordTrade(o model.Order) float64 {
	realized, closed := p.book.Apply(o)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades++
	p.volume = p.volume.Add(decimal.NewFromFloat(o.Quantity))
	if closed.IsPositive() {
		p.realized = p.realized.Add(realized)
		p.closes++
		if realized.IsPositive() {
			p.wins++
		}
	}
	return realized.InexactFloat64()
}

// Mark forwards the latest rate to the position book.
func (p *PnLTracker) Mark(tick model.PriceTick) { p.book.Mark(tick) }

// Positions returns the open positions.
func (p *PnLTracker) Positions() []Position { return p.book.Positions() }

// Analytics is the dashboard summary of confirmed trading.
type Analytics struct {
	TotalTrades   int     `json:"totalTrades"`
	TotalVolume   float64 `json:"totalVolume"`
	TotalProfit   float64 `json:"totalProfit"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	WinRate       float64 `json:"winRate"`
	OpenPositions int     `json:"openPositions"`
}

// Summary returns the current analytics.
func (p *PnLTracker) Summary() Analytics {
	positions := p.book.Positions()
	unrealized := p.book.Unrealized()

	p.mu.RLock()
	defer p.mu.RUnlock()

	winRate := 0.0
	if p.closes > 0 {
		winRate = float64(p.wins) / float64(p.closes) * 100
	}
	return Analytics{
		TotalTrades:   p.trades,
		TotalVolume:   p.volume.InexactFloat64(),
		TotalProfit:   p.realized.InexactFloat64(),
		UnrealizedPnL: unrealized,
		WinRate:       winRate,
		OpenPositions: len(positions),
	}
}

// Restore replays previously journaled trades, oldest first.
func (p *PnLTracker) Restore(orders []model.Order) {
	for _, o := range orders {
		p.RecordTrade(o)
	}
}
