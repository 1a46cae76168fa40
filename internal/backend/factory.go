package backend

import (
	"context"
	"fmt"

	"txfilter/internal/cache"
	"txfilter/internal/dataset"
	gsheet "txfilter/internal/dataset/google"
	"txfilter/internal/dataset/memory"
	"txfilter/internal/dataset/remote"
	applog "txfilter/internal/log"
	"txfilter/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) *DefaultFactory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentDataset)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	case RemoteBackend:
		res, err = f.createRemoteBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res.Type = config.Type
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.DataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory dataset: %w", err)
	}
	f.logger.Info("Initialized memory backend", "data_file", config.DataFile)
	return &BackendResult{Source: store, Writer: store}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	src := remote.New(remote.Options{URL: config.RemoteURL, TTL: config.CacheTTL, Logger: f.logger})
	f.logger.Info("Initialized remote backend", "url", config.RemoteURL, "cache_ttl", config.CacheTTL.String())
	return &BackendResult{Source: src, Invalidator: src}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsFile: config.GoogleCredentialsFile,
		Logger:          f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return cached(cli, config), nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Source:  repo,
		Writer:  repo,
		Ready:   repo.Ready,
		Cleanup: repo.Close,
	}, nil
}

// cached fronts a slow source with the LRU cache when a TTL is set.
func cached(src dataset.Source, config Config) *BackendResult {
	if config.CacheTTL <= 0 {
		res := &BackendResult{Source: src}
		res.Writer, _ = src.(dataset.Writer)
		return res
	}
	c := dataset.NewCached(src, config.CacheTTL)
	return &BackendResult{
		Source:      c,
		Writer:      c,
		Invalidator: c,
		Cleaners:    []cache.Cleaner{c.Cleaner()},
	}
}
