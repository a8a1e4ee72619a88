package cas

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

// diskTier keeps one compressed file per key under <dir>/entries/<hh>/<hex>.entry.
type diskTier struct {
	dir   string
	locks keyLocks
}

func newDiskTier(dir string) *diskTier {
	return &diskTier{dir: dir, locks: keyLocks{m: make(map[domain.CacheKey]*keyLock)}}
}

func (d *diskTier) path(key domain.CacheKey) string {
	h := key.Hex()
	return filepath.Join(domain.EntriesPath(d.dir), h[:2], h+domain.EntryFileExt)
}

// get returns nil, nil on a miss. A corrupt entry is removed and reported.
func (d *diskTier) get(key domain.CacheKey) (*domain.CacheEntry, error) {
	p := d.path(key)
	data, err := os.ReadFile(p) //nolint:gosec // Path is derived from the key
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "path", p)
	}
	e, err := Decode(data, key)
	if err != nil {
		_ = os.Remove(p)
		return nil, zerr.With(err, "path", p)
	}
	return e, nil
}

// put writes e atomically and returns the size written. An existing entry is
// left untouched and reported with written false.
func (d *diskTier) put(e *domain.CacheEntry) (size int64, written bool, err error) {
	unlock := d.locks.lock(e.Key)
	defer unlock()

	p := d.path(e.Key)
	if _, err := os.Stat(p); err == nil {
		return 0, false, nil
	}
	data, err := Encode(e)
	if err != nil {
		return 0, false, err
	}
	if err := writeAtomic(p, data); err != nil {
		return 0, false, err
	}
	return int64(len(data)), true, nil
}

func (d *diskTier) remove(key domain.CacheKey) error {
	unlock := d.locks.lock(key)
	defer unlock()

	p := d.path(key)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", p)
	}
	return nil
}

// scan decodes every entry file and reports its metadata. Undecodable files
// are removed.
func (d *diskTier) scan(fn func(domain.CacheEntryMeta)) error {
	root := domain.EntriesPath(d.dir)
	err := filepath.WalkDir(root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), domain.EntryFileExt) {
			return nil
		}
		key, err := domain.ParseCacheKey(strings.TrimSuffix(de.Name(), domain.EntryFileExt))
		if err != nil {
			_ = os.Remove(p)
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		e, err := d.get(key)
		if err != nil || e == nil {
			return nil
		}
		fn(e.Meta(info.Size()))
		return nil
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "path", root)
	}
	return nil
}

func writeAtomic(p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", p)
	}
	name := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(name)
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", p)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", p)
	}
	if err := os.Rename(name, p); err != nil {
		_ = os.Remove(name)
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", p)
	}
	return nil
}

// keyLocks serializes writers of the same key without blocking other keys.
// Locks are reference counted and dropped when the last holder leaves.
type keyLocks struct {
	mu sync.Mutex
	m  map[domain.CacheKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLocks) lock(key domain.CacheKey) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.m[key]
	if !ok {
		kl = &keyLock{}
		l.m[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

// held returns the number of keys with a live lock.
func (l *keyLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
