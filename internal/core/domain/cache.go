package domain

import (
	"encoding/hex"
	"time"

	"go.trai.ch/zerr"
)

// CacheKeySize is the digest length of a CacheKey in bytes.
const CacheKeySize = 32

// CacheKey is the fingerprint of one source unit under one configuration.
type CacheKey [CacheKeySize]byte

// Hex returns the lowercase hex encoding used for entry file names.
func (k CacheKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// String implements fmt.Stringer.
func (k CacheKey) String() string {
	return k.Hex()
}

// IsZero reports whether k is the zero key.
func (k CacheKey) IsZero() bool {
	return k == CacheKey{}
}

// ParseCacheKey decodes a hex-encoded key.
func ParseCacheKey(s string) (CacheKey, error) {
	var k CacheKey
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != CacheKeySize {
		return k, zerr.With(ErrCacheCorrupt, "key", s)
	}
	copy(k[:], b)
	return k, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k CacheKey) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CacheKey) UnmarshalText(text []byte) error {
	parsed, err := ParseCacheKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CacheEntry is one persisted compiled artifact. Entries are written once and
// never edited; invalidation removes them.
//
// Entries are independent of where the source lives: diagnostics carry no file
// and the source map carries no file or sources, so identical inputs at
// different paths share an entry.
type CacheEntry struct {
	Key CacheKey `json:"key"`
	// Source is the project-relative path of the unit that first produced the entry.
	Source      string        `json:"source"`
	Code        []byte        `json:"code"`
	Map         *SourceMap    `json:"map,omitempty"`
	Shape       *ExportShape  `json:"shape,omitempty"`
	Diagnostics Diagnostics   `json:"diagnostics,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Meta returns the index record describing e.
func (e *CacheEntry) Meta(size int64) CacheEntryMeta {
	return CacheEntryMeta{
		Key:       e.Key,
		Source:    e.Source,
		CreatedAt: e.CreatedAt,
		Size:      size,
		Duration:  e.Duration,
	}
}

// CacheEntryMeta is the metadata an invalidation predicate sees.
type CacheEntryMeta struct {
	Key       CacheKey
	Source    string
	CreatedAt time.Time
	Size      int64
	Duration  time.Duration
}

// OlderThan returns a predicate matching entries created before t.
func OlderThan(t time.Time) func(CacheEntryMeta) bool {
	return func(m CacheEntryMeta) bool { return m.CreatedAt.Before(t) }
}

// ForSource returns a predicate matching entries produced for source, whatever their content hash.
func ForSource(source string) func(CacheEntryMeta) bool {
	return func(m CacheEntryMeta) bool { return m.Source == source }
}

// MatchAll is a predicate matching every entry.
func MatchAll(CacheEntryMeta) bool { return true }

// CompiledUnit is the output of transforming one SourceUnit.
type CompiledUnit struct {
	Code  []byte
	Map   *SourceMap
	Shape *ExportShape
}
