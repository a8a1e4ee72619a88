package cas

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	duration   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_created_at ON entries(created_at);
CREATE INDEX IF NOT EXISTS entries_source ON entries(source);
`

// index is the optional manifest of the disk tier. It is never the source of
// truth and is rebuilt from the entry files whenever it is missing or unreadable.
type index struct {
	db   *sql.DB
	path string
}

// openIndex opens the manifest at path, recreating it from disk when it does
// not exist or fails its integrity check.
func openIndex(ctx context.Context, path string, disk *diskTier) (*index, error) {
	info, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist) || (statErr == nil && info.Size() == 0)

	idx, err := connectIndex(ctx, path)
	if err != nil {
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			_ = os.Remove(p)
		}
		fresh = true
		if idx, err = connectIndex(ctx, path); err != nil {
			return nil, err
		}
	}
	if fresh {
		if err := idx.rebuild(ctx, disk); err != nil {
			_ = idx.close()
			return nil, err
		}
	}
	return idx, nil
}

func connectIndex(ctx context.Context, path string) (*index, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheIndexFailed.Error()), "path", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheIndexFailed.Error()), "path", path)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheIndexFailed.Error()), "path", path)
		}
	}
	var check string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		_ = db.Close()
		if err == nil {
			err = zerr.With(domain.ErrCacheIndexFailed, "quick_check", check)
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheIndexFailed.Error()), "path", path)
	}
	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheIndexFailed.Error()), "path", path)
	}
	return &index{db: db, path: path}, nil
}

// rebuild replaces the manifest with what the entry files say.
func (x *index) rebuild(ctx context.Context, disk *diskTier) error {
	var metas []domain.CacheEntryMeta
	if err := disk.scan(func(m domain.CacheEntryMeta) { metas = append(metas, m) }); err != nil {
		return err
	}
	return x.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
			return err
		}
		for _, m := range metas {
			if err := insertMeta(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *index) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
	}
	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMeta(ctx context.Context, db execer, m domain.CacheEntryMeta) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entries (key, source, created_at, size, duration) VALUES (?, ?, ?, ?, ?)`,
		m.Key.Hex(), m.Source, m.CreatedAt.UnixNano(), m.Size, int64(m.Duration))
	return err
}

func (x *index) record(ctx context.Context, m domain.CacheEntryMeta) error {
	if err := insertMeta(ctx, x.db, m); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheIndexFailed.Error()), "key", m.Key.Hex())
	}
	return nil
}

func (x *index) delete(ctx context.Context, keys []domain.CacheKey) error {
	if len(keys) == 0 {
		return nil
	}
	return x.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", k.Hex()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *index) all(ctx context.Context) ([]domain.CacheEntryMeta, error) {
	return x.query(ctx, "SELECT key, source, created_at, size, duration FROM entries ORDER BY created_at, key")
}

// oldest returns the n entries created first.
func (x *index) oldest(ctx context.Context, n int) ([]domain.CacheEntryMeta, error) {
	return x.query(ctx, "SELECT key, source, created_at, size, duration FROM entries ORDER BY created_at, key LIMIT ?", n)
}

func (x *index) count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
	}
	return n, nil
}

func (x *index) query(ctx context.Context, q string, args ...any) ([]domain.CacheEntryMeta, error) {
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	var out []domain.CacheEntryMeta
	for rows.Next() {
		var (
			hex      string
			m        domain.CacheEntryMeta
			created  int64
			duration int64
		)
		if err := rows.Scan(&hex, &m.Source, &created, &m.Size, &duration); err != nil {
			return nil, zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
		}
		key, err := domain.ParseCacheKey(hex)
		if err != nil {
			continue
		}
		m.Key = key
		m.CreatedAt = time.Unix(0, created).UTC()
		m.Duration = time.Duration(duration)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheIndexFailed.Error())
	}
	return out, nil
}

func (x *index) close() error {
	return x.db.Close()
}
