package cas

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.CacheStore  = (*Store)(nil)
	_ ports.CacheOpener = (*Opener)(nil)
)

// Store layers the memory, disk and remote tiers. Reads fall through the tiers
// in that order and promote hits upward; writes go through every tier.
// A nil tier is skipped, so a Store with no tiers always misses.
type Store struct {
	memory *memoryTier
	disk   *diskTier
	index  *index
	remote *remoteTier

	maxDiskEntries int
	evictMu        sync.Mutex
}

// Open builds the store described by cfg. Relative directories are joined onto root.
func Open(ctx context.Context, cfg domain.CacheConfig, root string) (*Store, error) {
	s := &Store{maxDiskEntries: cfg.MaxDiskEntries}
	if cfg.Disabled {
		return s, nil
	}

	if cfg.MemoryEntries > 0 {
		m, err := newMemoryTier(cfg.MemoryEntries)
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
		}
		s.memory = m
	}

	if cfg.Dir != "" {
		dir := cfg.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		s.disk = newDiskTier(dir)
		// The index only speeds up invalidation and eviction. Without it the
		// disk tier is scanned instead.
		if idx, err := openIndex(ctx, domain.IndexPath(dir), s.disk); err == nil {
			s.index = idx
		}
	}

	if cfg.Remote.Enabled() {
		r, err := newRemoteTier(cfg.Remote)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.remote = r
	}
	return s, nil
}

// Get returns nil, nil on a miss. A tier that fails is skipped; its error is
// returned only when no later tier hits.
func (s *Store) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	if s.memory != nil {
		if e, ok := s.memory.get(key); ok {
			return e, nil
		}
	}

	var errs error
	if s.disk != nil {
		e, err := s.disk.get(key)
		switch {
		case err != nil:
			errs = errors.Join(errs, err)
			if s.index != nil {
				_ = s.index.delete(ctx, []domain.CacheKey{key})
			}
		case e != nil:
			if s.memory != nil {
				s.memory.add(e)
			}
			return e, nil
		}
	}

	if s.remote != nil {
		e, err := s.remote.get(ctx, key)
		switch {
		case err != nil:
			errs = errors.Join(errs, err)
		case e != nil:
			if s.memory != nil {
				s.memory.add(e)
			}
			// A failed local copy only costs a refetch.
			_ = s.putDisk(ctx, e)
			return e, nil
		}
	}
	return nil, errs
}

// Put stores entry in every tier. A key already held in memory is a no-op.
func (s *Store) Put(ctx context.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.Key.IsZero() {
		return zerr.Wrap(zerr.New("entry has no key"), domain.ErrCacheWriteFailed.Error())
	}
	if s.memory != nil {
		if _, ok := s.memory.get(entry.Key); ok {
			return nil
		}
		s.memory.add(entry)
	}

	var errs error
	if s.disk != nil {
		errs = errors.Join(errs, s.putDisk(ctx, entry))
	}
	if s.remote != nil {
		errs = errors.Join(errs, s.remote.put(ctx, entry))
	}
	return errs
}

func (s *Store) putDisk(ctx context.Context, e *domain.CacheEntry) error {
	size, written, err := s.disk.put(e)
	if err != nil || !written {
		return err
	}
	if s.index == nil {
		return nil
	}
	if err := s.index.record(ctx, e.Meta(size)); err != nil {
		return err
	}
	return s.evict(ctx)
}

// evict drops the oldest disk entries beyond the configured bound.
func (s *Store) evict(ctx context.Context) error {
	if s.maxDiskEntries <= 0 {
		return nil
	}
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	n, err := s.index.count(ctx)
	if err != nil || n <= s.maxDiskEntries {
		return err
	}
	victims, err := s.index.oldest(ctx, n-s.maxDiskEntries)
	if err != nil {
		return err
	}
	keys := make([]domain.CacheKey, 0, len(victims))
	var errs error
	for _, m := range victims {
		errs = errors.Join(errs, s.disk.remove(m.Key))
		keys = append(keys, m.Key)
	}
	return errors.Join(errs, s.index.delete(ctx, keys))
}

// Invalidate removes matching entries from the memory and disk tiers. The
// remote tier is shared between machines and keeps its objects.
func (s *Store) Invalidate(ctx context.Context, pred func(domain.CacheEntryMeta) bool) (int, error) {
	if pred == nil {
		pred = domain.MatchAll
	}
	metas, errs := s.localMetas(ctx)

	seen := make(map[domain.CacheKey]struct{})
	var keys []domain.CacheKey
	for _, m := range metas {
		if _, ok := seen[m.Key]; ok || !pred(m) {
			continue
		}
		seen[m.Key] = struct{}{}
		keys = append(keys, m.Key)
	}

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return 0, errors.Join(errs, err)
		}
		if s.memory != nil {
			s.memory.remove(k)
		}
		if s.disk != nil {
			errs = errors.Join(errs, s.disk.remove(k))
		}
	}
	if s.index != nil {
		errs = errors.Join(errs, s.index.delete(ctx, keys))
	}
	return len(keys), errs
}

func (s *Store) localMetas(ctx context.Context) ([]domain.CacheEntryMeta, error) {
	var (
		metas []domain.CacheEntryMeta
		errs  error
	)
	if s.memory != nil {
		metas = append(metas, s.memory.metas()...)
	}
	if s.disk == nil {
		return metas, nil
	}
	if s.index != nil {
		indexed, err := s.index.all(ctx)
		if err == nil {
			return append(metas, indexed...), nil
		}
		errs = err
	}
	err := s.disk.scan(func(m domain.CacheEntryMeta) { metas = append(metas, m) })
	return metas, errors.Join(errs, err)
}

// Close releases the index.
func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	err := s.index.close()
	s.index = nil
	return err
}

// Opener opens a Store per configuration.
type Opener struct{}

// NewOpener creates a new Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open implements ports.CacheOpener.
func (o *Opener) Open(ctx context.Context, cfg domain.CompilerConfig) (ports.CacheStore, error) {
	return Open(ctx, cfg.Cache, cfg.Root)
}
