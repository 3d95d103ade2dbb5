package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoRateColumn is returned when a CSV header has no usable rate column.
var ErrNoRateColumn = errors.New("backtest: no rate column")

// rateColumns are header names accepted as the price column, in preference order.
var rateColumns = []string{"rate", "close", "price"}

// LoadCSV reads historical rates from r. The first row must be a header
// containing a "rate", "close" or "price" column. Rows whose rate does not
// parse are skipped and counted.
func LoadCSV(r io.Reader) (prices []float64, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("backtest csv header: %w", err)
	}
	col := -1
	for _, want := range rateColumns {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				col = i
				break
			}
		}
		if col >= 0 {
			break
		}
	}
	if col < 0 {
		return nil, 0, ErrNoRateColumn
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("backtest csv: %w", err)
		}
		if col >= len(rec) {
			skipped++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			skipped++
			continue
		}
		prices = append(prices, v)
	}
	return prices, skipped, nil
}

// WriteTradesCSV writes the round trips of a result.
func WriteTradesCSV(w io.Writer, res Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"strategy", "entry_index", "exit_index", "entry", "exit", "pnl"})
	for _, t := range res.Trades {
		_ = cw.Write([]string{
			string(res.Strategy),
			strconv.Itoa(t.EntryIndex), strconv.Itoa(t.ExitIndex),
			formatF(t.Entry), formatF(t.Exit), formatF(t.PnL),
		})
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
