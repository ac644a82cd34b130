package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelDBEntryPrefix = "e:"

// LevelDBCache is a Provider storing gob encoded entries in a LevelDB directory.
type LevelDBCache struct {
	db *leveldb.DB
}

type levelDBEntry struct {
	Expires time.Time
	Bytes   []byte
}

func NewLevelDBCache(path string) (*LevelDBCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb cache %s", path)
	}
	return &LevelDBCache{db: db}, nil
}

func (l *LevelDBCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := l.db.Get([]byte(levelDBEntryPrefix+key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ent levelDBEntry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&ent); err != nil {
		return nil, false, errors.Wrapf(err, "decoding leveldb entry %s", key)
	}
	if expired(ent.Expires, time.Now()) {
		return nil, false, l.Purge(ctx, key)
	}
	return ent.Bytes, true, nil
}

func (l *LevelDBCache) Put(ctx context.Context, key string, expires time.Time, value []byte) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(levelDBEntry{Expires: expires, Bytes: value}); err != nil {
		return err
	}
	return l.db.Put([]byte(levelDBEntryPrefix+key), buf.Bytes(), nil)
}

func (l *LevelDBCache) Purge(ctx context.Context, key string) error {
	return l.db.Delete([]byte(levelDBEntryPrefix+key), nil)
}

// PurgeExpired removes all expired entries in one batch.
func (l *LevelDBCache) PurgeExpired(ctx context.Context) (int, error) {
	it := l.db.NewIterator(util.BytesPrefix([]byte(levelDBEntryPrefix)), nil)
	defer it.Release()

	now := time.Now()
	batch := new(leveldb.Batch)
	for it.Next() {
		var ent levelDBEntry
		if err := gob.NewDecoder(bytes.NewReader(it.Value())).Decode(&ent); err != nil || expired(ent.Expires, now) {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	return batch.Len(), l.db.Write(batch, nil)
}

func (l *LevelDBCache) Close() error {
	return l.db.Close()
}
