package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	ID        int64
	Date      string
	IsBuy     bool
	Quantity  int64
	UnitPrice string
	BatchID   sql.NullString
	CreatedAt time.Time
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (date, is_buy, quantity, unit_price, batch_id)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type CreateTransactionParams struct {
	Date      string
	IsBuy     bool
	Quantity  int64
	UnitPrice string
	BatchID   sql.NullString
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date,
		arg.IsBuy,
		arg.Quantity,
		arg.UnitPrice,
		arg.BatchID,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listTransactions = `-- name: ListTransactions :many
SELECT id, date, is_buy, quantity, unit_price, batch_id, created_at
FROM transactions
ORDER BY id
`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.IsBuy,
			&i.Quantity,
			&i.UnitPrice,
			&i.BatchID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactions = `-- name: CountTransactions :one
SELECT COUNT(*) FROM transactions
`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactions)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertBatch = `-- name: InsertBatch :execrows
INSERT INTO ingested_batches (id, row_count)
VALUES (?, ?)
ON CONFLICT (id) DO NOTHING
`

// InsertBatch records a batch id and reports how many rows were inserted:
// 0 when the batch was already recorded.
func (q *Queries) InsertBatch(ctx context.Context, id string, rowCount int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertBatch, id, rowCount)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
