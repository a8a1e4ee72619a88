package ports

import (
	"context"

	"go.trai.ch/synapse/internal/core/domain"
)

// CacheStore is durable key to CacheEntry storage shared by every worker.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Get retrieves the entry for key.
	// Returns nil, nil on a miss.
	Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error)

	// Put stores entry under entry.Key. Storing a key that already exists is a no-op.
	Put(ctx context.Context, entry *domain.CacheEntry) error

	// Invalidate removes every entry matching pred and returns how many were removed.
	Invalidate(ctx context.Context, pred func(domain.CacheEntryMeta) bool) (int, error)

	// Close flushes pending index writes and releases resources.
	Close() error
}

// CacheOpener opens the cache store described by a configuration.
type CacheOpener interface {
	// Open returns the store for cfg.Cache. Relative cache directories are
	// joined onto cfg.Root. A disabled cache yields a store that always misses.
	Open(ctx context.Context, cfg domain.CompilerConfig) (CacheStore, error)
}
