// cmd/backtest scores strategies over a price path without a live feed.
// The path comes from a CSV file of rates or from a seeded random walk.
// Indicator periods are read from the same environment as the daemon.
//
// Usage:
//
//	go run ./cmd/backtest --strategy=bollinger --steps=1000 --seed=7
//	go run ./cmd/backtest --csv=rates.csv --compare --out=trades.csv
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"alphafx/config"
	"alphafx/internal/backtest"
	"alphafx/internal/logger"
	"alphafx/internal/strategy"
)

func main() {
	// Flags
	strategyName := flag.String("strategy", "bollinger", "Strategy to backtest (ema_crossover, bollinger, rsi, sma_crossover)")
	steps := flag.Int("steps", 500, "Random-walk length when no CSV is given")
	seed := flag.Int64("seed", 0, "Random-walk seed (0=clock)")
	start := flag.Float64("start", 83, "Random-walk starting rate")
	csvPath := flag.String("csv", "", "CSV file of rates (one per row, or a 'rate' column)")
	compare := flag.Bool("compare", false, "Rank every built-in strategy over the same path")
	outPath := flag.String("out", "", "Write the completed round trips to this CSV file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("config load failed", err)
	}
	logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	prices, skipped := loadPrices(*csvPath, *steps, *seed, *start)

	runner, err := backtest.NewRunner(cfg.IndicatorConfig(), cfg.CurrencyPair)
	if err != nil {
		fatal("runner init failed", err)
	}

	if *compare {
		cmp, err := runner.Compare(prices, nil)
		if err != nil {
			fatal("compare failed", err)
		}
		printComparison(cmp, skipped)
		if *outPath != "" {
			writeTrades(*outPath, cmp.Results[0])
		}
		return
	}

	kind, err := strategy.ParseKind(*strategyName)
	if err != nil {
		fatal("bad strategy", err)
	}
	res, err := runner.Run(prices, kind)
	if err != nil {
		fatal("backtest failed", err)
	}
	printResult(res, skipped)
	if *outPath != "" {
		writeTrades(*outPath, res)
	}
}

func loadPrices(csvPath string, steps int, seed int64, start float64) ([]float64, int) {
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			fatal("open csv", err)
		}
		defer f.Close()
		prices, skipped, err := backtest.LoadCSV(f)
		if err != nil {
			fatal("read csv", err)
		}
		if skipped > 0 {
			slog.Warn("skipped unparseable rows", slog.Int("rows", skipped))
		}
		return prices, skipped
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pc := backtest.DefaultPathConfig()
	pc.Steps = steps
	pc.Start = start
	prices, err := backtest.GeneratePath(rand.New(rand.NewSource(seed)), pc)
	if err != nil {
		fatal("generate path", err)
	}
	slog.Info("generated random walk", slog.Int("steps", steps), slog.Int64("seed", seed))
	return prices, 0
}

func writeTrades(path string, res backtest.Result) {
	f, err := os.Create(path)
	if err != nil {
		fatal("create output", err)
	}
	defer f.Close()
	if err := backtest.WriteTradesCSV(f, res); err != nil {
		fatal("write trades", err)
	}
	slog.Info("wrote trades", slog.String("path", path), slog.Int("trades", len(res.Trades)))
}

func printResult(res backtest.Result, skipped int) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Strategy:       %-19s ║\n", res.Strategy)
	fmt.Printf("║  Ticks:          %-19d ║\n", res.Ticks)
	fmt.Printf("║  Skipped rows:   %-19d ║\n", skipped)
	fmt.Printf("║  Trades:         %-19d ║\n", res.TotalTrades)
	fmt.Printf("║  Win rate:       %-18.2f%% ║\n", res.WinRate)
	fmt.Printf("║  Total profit:   %-19.4f ║\n", res.TotalProfit)
	fmt.Printf("║  Open position:  %-19v ║\n", res.OpenPosition)
	fmt.Println("╚══════════════════════════════════════╝")
}

func printComparison(cmp backtest.Comparison, skipped int) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║        STRATEGY COMPARISON                   ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Ticks: %-8d  Skipped rows: %-13d ║\n", cmp.Ticks, skipped)
	fmt.Println("╠══════════════════════════════════════════════╣")
	for i, r := range cmp.Results {
		fmt.Printf("║  %d. %-14s %4d trades %12.4f ║\n", i+1, r.Strategy, r.TotalTrades, r.TotalProfit)
	}
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Best: %-37s ║\n", cmp.Best)
	fmt.Println("╚══════════════════════════════════════════════╝")
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
