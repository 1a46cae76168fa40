// Package memory is the default dataset backend: a JSON file read once at
// startup and kept in memory.
package memory

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
)

//go:embed sample.json
var sample []byte

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

var (
	_ dataset.Source = (*Store)(nil)
	_ dataset.Writer = (*Store)(nil)
)

func New(txs []core.Transaction) *Store {
	return &Store{items: slices.Clone(txs)}
}

// NewFromFile loads the envelope at path. A missing file falls back to the
// bundled sample dataset; any other read or decode failure is returned.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Sample(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	txs, err := dataset.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(txs), nil
}

// Sample returns a store holding the bundled sample dataset.
func Sample() *Store {
	txs, err := dataset.Decode(bytes.NewReader(sample))
	if err != nil {
		panic("memory: bundled sample is invalid: " + err.Error())
	}
	return New(txs)
}

// ListTransactions returns a copy of the stored transactions.
func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items), nil
}

// AppendTransactions validates every transaction before storing any.
func (s *Store) AppendTransactions(_ context.Context, txs []core.Transaction) (int, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, txs...)
	return len(txs), nil
}
