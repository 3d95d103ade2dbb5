package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"alphafx/internal/model"
)

// TradeRecord represents a row from the trades table.
type TradeRecord struct {
	ID     int64             `json:"id"`
	Result model.OrderResult `json:"result"`
}

// Trades returns the last limit results, newest first.
func (j *Journal) Trades(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, order_id, action, currency_pair, quantity, price, ts, source, status, COALESCE(message, '')
		FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite trades: %w", err)
	}
	defer rows.Close()

	trades := make([]TradeRecord, 0, limit)
	for rows.Next() {
		var rec TradeRecord
		if err := scanResult(rows, &rec.ID, &rec.Result); err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

// AcceptedOrders returns every accepted order, oldest first, for replaying
// analytics after a restart.
func (j *Journal) AcceptedOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, order_id, action, currency_pair, quantity, price, ts, source, status, COALESCE(message, '')
		FROM trades WHERE status = ? ORDER BY id ASC`, string(model.StatusAccepted))
	if err != nil {
		return nil, fmt.Errorf("sqlite accepted orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var id int64
		var res model.OrderResult
		if err := scanResult(rows, &id, &res); err != nil {
			return nil, err
		}
		orders = append(orders, res.Order)
	}
	return orders, rows.Err()
}

// AcceptedVolume returns the summed quantity of accepted orders.
func (j *Journal) AcceptedVolume(ctx context.Context) (float64, error) {
	var v sql.NullFloat64
	err := j.db.QueryRowContext(ctx,
		`SELECT SUM(quantity) FROM trades WHERE status = ?`, string(model.StatusAccepted)).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("sqlite accepted volume: %w", err)
	}
	return v.Float64, nil
}

// Count returns the number of journaled results.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count: %w", err)
	}
	return n, nil
}

func scanResult(rows *sql.Rows, id *int64, res *model.OrderResult) error {
	var action, source, status string
	o := &res.Order
	if err := rows.Scan(id, &o.ID, &action, &o.CurrencyPair, &o.Quantity, &o.Price,
		&o.Timestamp, &source, &status, &res.Message); err != nil {
		return fmt.Errorf("sqlite scan: %w", err)
	}
	o.Action = model.Action(action)
	o.Source = model.OrderSource(source)
	res.Status = model.OrderStatus(status)
	return nil
}
