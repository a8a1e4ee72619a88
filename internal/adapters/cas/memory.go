package cas

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/synapse/internal/core/domain"
)

const memoryShards = 16

// memoryTier is an LRU split into shards picked by key hash, so lookups of
// different keys rarely meet on the same lock.
type memoryTier struct {
	shards [memoryShards]*lru.Cache[domain.CacheKey, *domain.CacheEntry]
}

func newMemoryTier(capacity int) (*memoryTier, error) {
	per := max(1, capacity/memoryShards)
	m := &memoryTier{}
	for i := range m.shards {
		c, err := lru.New[domain.CacheKey, *domain.CacheEntry](per)
		if err != nil {
			return nil, err
		}
		m.shards[i] = c
	}
	return m, nil
}

func (m *memoryTier) shard(key domain.CacheKey) *lru.Cache[domain.CacheKey, *domain.CacheEntry] {
	return m.shards[xxhash.Sum64(key[:])%memoryShards]
}

func (m *memoryTier) get(key domain.CacheKey) (*domain.CacheEntry, bool) {
	return m.shard(key).Get(key)
}

// add stores e unless its key is already present.
func (m *memoryTier) add(e *domain.CacheEntry) {
	m.shard(e.Key).ContainsOrAdd(e.Key, e)
}

func (m *memoryTier) remove(key domain.CacheKey) bool {
	return m.shard(key).Remove(key)
}

// metas returns the metadata of every entry held in memory.
func (m *memoryTier) metas() []domain.CacheEntryMeta {
	var out []domain.CacheEntryMeta
	for _, s := range m.shards {
		for _, e := range s.Values() {
			out = append(out, e.Meta(int64(len(e.Code))))
		}
	}
	return out
}

func (m *memoryTier) len() int {
	n := 0
	for _, s := range m.shards {
		n += s.Len()
	}
	return n
}
