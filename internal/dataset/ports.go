// Package dataset defines where transactions come from.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"txfilter/internal/core"
)

// ErrNotWritable is returned by backends that cannot store transactions.
var ErrNotWritable = errors.New("dataset backend is read-only")

// Ports for outbound adapters.
type (
	// Source returns the full transaction list, in dataset order.
	Source interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// Writer appends transactions and returns how many were stored.
	Writer interface {
		AppendTransactions(ctx context.Context, txs []core.Transaction) (int, error)
	}

	// Invalidator drops any cached copy of the dataset.
	Invalidator interface {
		Invalidate()
	}
)

// Envelope is the JSON document served at /transactions.json.
type Envelope struct {
	Transactions []core.Transaction `json:"transactions"`
}

// Decode reads an Envelope from r.
func Decode(r io.Reader) ([]core.Transaction, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if env.Transactions == nil {
		env.Transactions = []core.Transaction{}
	}
	return env.Transactions, nil
}

// Encode writes txs as an Envelope to w.
func Encode(w io.Writer, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	return json.NewEncoder(w).Encode(Envelope{Transactions: txs})
}
