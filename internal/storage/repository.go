// Package storage is the sqlite dataset backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	applog "txfilter/internal/log"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

var (
	_ dataset.Source = (*SQLiteRepository)(nil)
	_ dataset.Writer = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs pending migrations. logger may be nil.
func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = applog.Discard()
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ready checks that the database answers and the schema is migrated.
func (r *SQLiteRepository) Ready(ctx context.Context) error {
	_, err := r.Count(ctx)
	return err
}

// ListTransactions implements dataset.Source, in insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Transaction{
			Date:      row.Date,
			IsBuy:     row.IsBuy,
			Quantity:  row.Quantity,
			UnitPrice: row.UnitPrice,
		})
	}
	return out, nil
}

// AppendTransactions implements dataset.Writer. The batch is stored
// atomically.
func (r *SQLiteRepository) AppendTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	return r.insert(ctx, "", txs)
}

// AppendBatch stores txs once per batch id. A batch that was already
// ingested is skipped and reports 0 rows.
func (r *SQLiteRepository) AppendBatch(ctx context.Context, batchID string, txs []core.Transaction) (int, error) {
	return r.insert(ctx, batchID, txs)
}

func (r *SQLiteRepository) insert(ctx context.Context, batchID string, txs []core.Transaction) (int, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()
	q := r.queries.WithTx(dbtx)

	if batchID != "" {
		n, err := q.InsertBatch(ctx, batchID, int64(len(txs)))
		if err != nil {
			return 0, fmt.Errorf("record batch %s: %w", batchID, err)
		}
		if n == 0 {
			r.logger.InfoContext(ctx, "Batch already ingested, skipping", applog.FieldBatchID, batchID)
			return 0, nil
		}
	}

	for i, tx := range txs {
		_, err := q.CreateTransaction(ctx, CreateTransactionParams{
			Date:      tx.Date,
			IsBuy:     tx.IsBuy,
			Quantity:  tx.Quantity,
			UnitPrice: tx.UnitPrice,
			BatchID:   sql.NullString{String: batchID, Valid: batchID != ""},
		})
		if err != nil {
			return 0, fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Transactions saved to SQLite",
		applog.FieldOperation, applog.OpIngest,
		applog.FieldBatchID, batchID,
		applog.FieldCount, len(txs))
	return len(txs), nil
}

// Count returns the number of stored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
