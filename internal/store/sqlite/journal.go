// Package sqlite persists submitted orders and their outcomes to a local
// SQLite trade journal. The journal backs trade history, analytics restore
// and the volume ledger restore on restart.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"alphafx/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// JournalConfig configures the SQLite journal.
type JournalConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/trades.db"
	Logger *slog.Logger
}

// Journal is a single-writer SQLite trade journal with transaction batching.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens (or creates) the journal with WAL mode and schema.
func New(cfg JournalConfig) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "journal"))
	log.Info("opened trade journal", slog.String("path", cfg.DBPath))
	return &Journal{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id      TEXT    NOT NULL UNIQUE,
			action        TEXT    NOT NULL,
			currency_pair TEXT    NOT NULL,
			quantity      REAL    NOT NULL,
			price         REAL    NOT NULL,
			ts            INTEGER NOT NULL,
			source        TEXT    NOT NULL,
			status        TEXT    NOT NULL,
			message       TEXT,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_trades_pair ON trades(currency_pair);
		CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	`)
	return err
}

// Record persists one order result immediately.
func (j *Journal) Record(ctx context.Context, res model.OrderResult) error {
	_, err := j.db.ExecContext(ctx, insertSQL, args(res)...)
	if err != nil {
		return fmt.Errorf("sqlite record %s: %w", res.Order.ID, err)
	}
	return nil
}

// Run reads results from resultCh and inserts them in batched transactions.
// Flushes every batchSize results OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or resultCh is closed.
func (j *Journal) Run(ctx context.Context, resultCh <-chan model.OrderResult) {
	batch := make([]model.OrderResult, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := j.insertBatch(batch); err != nil {
			j.log.Warn("batch insert failed, retrying rows", slog.Int("count", len(batch)), slog.String("error", err.Error()))
			j.insertEach(batch)
		} else {
			j.log.Debug("committed trades", slog.Int("count", len(batch)), slog.Duration("took", time.Since(start)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case res, ok := <-resultCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, res)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

const insertSQL = `
	INSERT OR REPLACE INTO trades (order_id, action, currency_pair, quantity, price, ts, source, status, message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func args(res model.OrderResult) []any {
	o := res.Order
	return []any{o.ID, string(o.Action), o.CurrencyPair, o.Quantity, o.Price, o.Timestamp,
		string(o.Source), string(res.Status), res.Message}
}

// insertBatch inserts a batch of results in a single transaction.
func (j *Journal) insertBatch(results []model.OrderResult) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.Exec(args(r)...); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// insertEach records results one at a time after a failed batch, so one bad
// row only loses itself.
func (j *Journal) insertEach(results []model.OrderResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range results {
		if err := j.Record(ctx, r); err != nil {
			j.log.Error("trade lost", slog.String("order_id", r.Order.ID), slog.String("error", err.Error()))
		}
	}
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
