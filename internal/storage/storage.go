// Package storage persists releases, naming state and the pipeline event
// log.
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/rna3dhub/motifatlas/internal/events"
	"github.com/rna3dhub/motifatlas/internal/storage/postgres"
	"github.com/rna3dhub/motifatlas/internal/storage/sqlite"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// Storage defines the interface for release storage backends
type Storage interface {
	// Releases are append-only. CreateRelease writes everything or nothing.
	CreateRelease(ctx context.Context, rel *types.Release) error
	GetRelease(ctx context.Context, loopType types.LoopType, id string) (*types.Release, error)
	LatestRelease(ctx context.Context, loopType types.LoopType) (*types.Release, error)
	ListReleases(ctx context.Context, loopType types.LoopType) ([]*types.ReleaseInfo, error)

	// Naming state
	KnownHandles(ctx context.Context) (map[string]struct{}, error)
	NamingState(ctx context.Context, loopType types.LoopType) (types.NamingState, error)

	// Pipeline events
	RecordEvent(ctx context.Context, event *events.PipelineEvent) error
	GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.PipelineEvent, error)
	CleanupEvents(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error)

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultPath is where the SQLite database lives relative to the project.
const DefaultPath = ".atlas/atlas.db"

// Config holds database configuration
type Config struct {
	// Backend is "sqlite" (default) or "postgres"
	Backend string
	// Path is the SQLite database file path
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
	// Postgres configures the postgres backend
	Postgres *postgres.Config
}

// DefaultConfig returns a config with sensible defaults. ATLAS_DB_PATH
// overrides the SQLite path.
func DefaultConfig() *Config {
	path := DefaultPath
	if env := os.Getenv("ATLAS_DB_PATH"); env != "" {
		path = env
	}
	return &Config{
		Backend: BackendSQLite,
		Path:    path,
	}
}

// NewStorage opens the configured backend.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "", BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultPath
		}
		return sqlite.New(path)
	case BackendPostgres:
		return postgres.New(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", cfg.Backend, BackendSQLite, BackendPostgres)
	}
}
