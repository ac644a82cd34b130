package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/pkg/errors"
)

// SQLiteCache is a Provider storing entries in an SQLite database.
type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) (SQLiteCache, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteCache{}, errors.Wrap(err, "opening sqlite cache")
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteCache{}, errors.Wrap(err, "initializing sqlite cache")
		}
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expires int64
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, bytes FROM cache WHERE key = ?", key).Scan(&expires, &bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expires != 0 && expired(time.Unix(expires, 0), time.Now()) {
		return nil, false, s.Purge(ctx, key)
	}
	return bytes, true, nil
}

func (s SQLiteCache) Put(ctx context.Context, key string, expires time.Time, bytes []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	var exp int64
	if !expires.IsZero() {
		exp = expires.Unix()
	}
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO cache (key, expires, bytes) VALUES (?, ?, ?)", key, exp, bytes)
	return err
}

func (s SQLiteCache) Purge(ctx context.Context, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
	return err
}

// PurgeExpired removes all expired entries and returns how many were removed.
func (s SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE expires > 0 AND expires <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s SQLiteCache) Close() error {
	return s.db.Close()
}
