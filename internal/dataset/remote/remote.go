// Package remote loads the dataset from an HTTP endpoint serving the
// transactions envelope, e.g. another txfilter's /transactions.json.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	applog "txfilter/internal/log"
)

const cacheKey = "transactions"

// Source fetches GET <URL>. Concurrent loads share one request and
// successful payloads are reused for the TTL. Failures are not retried.
type Source struct {
	url    string
	client *http.Client
	cache  *cache.Cache
	group  singleflight.Group
	logger *applog.Logger
}

var (
	_ dataset.Source      = (*Source)(nil)
	_ dataset.Invalidator = (*Source)(nil)
)

// Options configures a remote Source.
type Options struct {
	URL    string
	TTL    time.Duration // zero disables caching
	Client *http.Client
	Logger *applog.Logger
}

func New(opts Options) *Source {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Source{
		url:    opts.URL,
		client: client,
		logger: logger.WithComponent(applog.ComponentDataset),
	}
	if opts.TTL > 0 {
		s.cache = cache.New(opts.TTL, 2*opts.TTL)
	}
	return s
}

func (s *Source) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			return slices.Clone(v.([]core.Transaction)), nil
		}
	}
	v, err, shared := s.group.Do(cacheKey, func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	txs := v.([]core.Transaction)
	if shared {
		s.logger.DebugContext(ctx, "Shared in-flight dataset request", applog.FieldCount, len(txs))
	}
	return slices.Clone(txs), nil
}

func (s *Source) fetch(ctx context.Context) ([]core.Transaction, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %s", s.url, resp.Status)
	}
	txs, err := dataset.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(cacheKey, txs, cache.DefaultExpiration)
	}
	s.logger.InfoContext(ctx, "Dataset fetched",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldCount, len(txs),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return txs, nil
}

// Invalidate forgets the cached payload.
func (s *Source) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(cacheKey)
	}
}
