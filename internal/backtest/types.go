// Package backtest replays a price path through a fresh indicator engine and
// signal generator and scores the round trips it produces.
//
// Runs are deterministic: the only randomness is the optional path
// generator, which takes its *rand.Rand from the caller.
package backtest

import "alphafx/internal/strategy"

// Trade is one completed long round trip.
type Trade struct {
	EntryIndex int     `json:"entryIndex"`
	ExitIndex  int     `json:"exitIndex"`
	Entry      float64 `json:"entry"`
	Exit       float64 `json:"exit"`
	PnL        float64 `json:"pnl"`
}

// Result is the score of one strategy over one price path.
type Result struct {
	Strategy      strategy.Kind `json:"strategy"`
	TotalProfit   float64       `json:"totalProfit"`
	TotalTrades   int           `json:"totalTrades"`
	WinningTrades int           `json:"winningTrades"`
	WinRate       float64       `json:"winRate"` // 0-100
	Ticks         int           `json:"ticks"`
	Skipped       int           `json:"skipped"`
	OpenPosition  bool          `json:"openPosition"`
	Trades        []Trade       `json:"trades,omitempty"`
}

// Comparison ranks several strategies over the same path.
type Comparison struct {
	Results []Result      `json:"results"` // best first
	Best    strategy.Kind `json:"best"`
	Ticks   int           `json:"ticks"`
}
