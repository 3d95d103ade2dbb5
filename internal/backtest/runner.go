package backtest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"alphafx/internal/indicator"
	"alphafx/internal/model"
	"alphafx/internal/strategy"
)

// Runner backtests strategies with a fixed indicator configuration.
type Runner struct {
	cfg  indicator.Config
	pair string
}

// NewRunner creates a runner. The config is validated up front.
func NewRunner(cfg indicator.Config, pair string) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pair == "" {
		pair = "USD/INR"
	}
	return &Runner{cfg: cfg, pair: pair}, nil
}

// Run feeds prices through a fresh engine and generator for kind. Each Buy
// while flat opens a position at that price and each Sell while long closes
// it. Invalid prices are skipped. An empty path yields a zero Result.
func (r *Runner) Run(prices []float64, kind strategy.Kind) (Result, error) {
	res := Result{Strategy: kind}

	gen, err := strategy.NewGeneratorFor(kind)
	if err != nil {
		return res, err
	}
	if len(prices) == 0 {
		return res, nil
	}
	engine, err := indicator.NewEngine(r.cfg)
	if err != nil {
		return res, err
	}

	var (
		total    decimal.Decimal
		inPos    bool
		entry    decimal.Decimal
		entryIdx int
	)
	for i, p := range prices {
		snap, err := engine.PushTick(model.PriceTick{Pair: r.pair, Rate: p, Timestamp: int64(i)})
		if err != nil {
			if errors.Is(err, indicator.ErrInvalidRate) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("backtest tick %d: %w", i, err)
		}
		res.Ticks++

		switch gen.Next(snap) {
		case strategy.Buy:
			if !inPos {
				inPos = true
				entry = decimal.NewFromFloat(p)
				entryIdx = i
			}
		case strategy.Sell:
			if inPos {
				exit := decimal.NewFromFloat(p)
				pnl := exit.Sub(entry)
				total = total.Add(pnl)
				res.TotalTrades++
				if pnl.IsPositive() {
					res.WinningTrades++
				}
				res.Trades = append(res.Trades, Trade{
					EntryIndex: entryIdx,
					ExitIndex:  i,
					Entry:      entry.InexactFloat64(),
					Exit:       p,
					PnL:        pnl.InexactFloat64(),
				})
				inPos = false
			}
		}
	}

	res.TotalProfit = total.InexactFloat64()
	res.OpenPosition = inPos
	if res.TotalTrades > 0 {
		res.WinRate = 100 * float64(res.WinningTrades) / float64(res.TotalTrades)
	}
	return res, nil
}

// Compare backtests every kind over the same prices and ranks them by total
// profit, best first. Ties keep the order of kinds. An empty kinds list
// compares the built-in strategies.
func (r *Runner) Compare(prices []float64, kinds []strategy.Kind) (Comparison, error) {
	if len(kinds) == 0 {
		kinds = strategy.Kinds()
	}
	cmp := Comparison{Results: make([]Result, 0, len(kinds))}
	for _, k := range kinds {
		res, err := r.Run(prices, k)
		if err != nil {
			return Comparison{}, err
		}
		cmp.Results = append(cmp.Results, res)
		cmp.Ticks = res.Ticks
	}
	sort.SliceStable(cmp.Results, func(i, j int) bool {
		return cmp.Results[i].TotalProfit > cmp.Results[j].TotalProfit
	})
	cmp.Best = cmp.Results[0].Strategy
	return cmp, nil
}
