package backend

import (
	"context"
	"time"

	"txfilter/internal/cache"
	"txfilter/internal/dataset"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the dataset backend and its optional capabilities.
type BackendResult struct {
	Type   BackendType
	Source dataset.Source
	// Writer is nil for read-only backends.
	Writer dataset.Writer
	// Invalidator is nil when nothing is cached.
	Invalidator dataset.Invalidator
	// Cleaners are caches to register with a cache.Manager.
	Cleaners []cache.Cleaner
	// Ready reports whether the backend can serve; nil means always ready.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	DataFile string

	// Remote
	RemoteURL string

	// Cache lifetime for remote and sheets backends
	CacheTTL time.Duration

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	RemoteBackend BackendType = "remote"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, RemoteBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
