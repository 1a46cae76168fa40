package dataset

import (
	"context"
	"slices"
	"time"

	"txfilter/internal/cache"
	"txfilter/internal/core"
)

const cacheKey = "transactions"

// Cached wraps a slow Source with an LRU cache. Writes through Cached drop
// the cached copy.
type Cached struct {
	src   Source
	cache *cache.LRUCache[[]core.Transaction]
}

var (
	_ Source      = (*Cached)(nil)
	_ Writer      = (*Cached)(nil)
	_ Invalidator = (*Cached)(nil)
)

// NewCached caches src results for ttl.
func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{src: src, cache: cache.NewLRUCache[[]core.Transaction](1, ttl)}
}

// Cleaner exposes the underlying cache for a cache.Manager.
func (c *Cached) Cleaner() cache.Cleaner { return c.cache }

func (c *Cached) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if txs, ok := c.cache.Get(cacheKey); ok {
		return slices.Clone(txs), nil
	}
	txs, err := c.src.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, slices.Clone(txs))
	return txs, nil
}

// AppendTransactions forwards to the wrapped source when it is a Writer.
func (c *Cached) AppendTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	w, ok := c.src.(Writer)
	if !ok {
		return 0, ErrNotWritable
	}
	n, err := w.AppendTransactions(ctx, txs)
	if n > 0 {
		c.Invalidate()
	}
	return n, err
}

func (c *Cached) Invalidate() {
	c.cache.Purge()
	if inv, ok := c.src.(Invalidator); ok {
		inv.Invalidate()
	}
}
