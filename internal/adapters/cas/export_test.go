package cas

import "go.trai.ch/synapse/internal/core/domain"

// EntryPath exposes the disk location of key for testing.
func EntryPath(s *Store, key domain.CacheKey) string {
	return s.disk.path(key)
}

// HasIndex reports whether the store opened its SQLite index.
func HasIndex(s *Store) bool {
	return s.index != nil
}

// HeldLocks exposes the number of live per-key locks for testing.
func HeldLocks(s *Store) int {
	return s.disk.locks.held()
}
