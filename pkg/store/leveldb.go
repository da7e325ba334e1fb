package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	entryPrefix = "e:"
	metaPrefix  = "m:"
)

// entryMeta is stored next to every entry under the "m:" prefix.
type entryMeta struct {
	UpdatedAt int64 // unix nanoseconds
	Size      int64
}

// LevelDBStore keeps pages in a local leveldb database.
// Page bytes live under "e:<key>" and their metadata under "m:<key>"; both are
// written in one batch.
type LevelDBStore struct {
	db     *leveldb.DB
	logger zerolog.Logger
	now    func() time.Time
}

// OpenLevelDB opens or creates the database directory at path.
func OpenLevelDB(path string, logger zerolog.Logger) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return NewLevelDB(db, logger), nil
}

// NewLevelDB wraps an already opened database.
func NewLevelDB(db *leveldb.DB, logger zerolog.Logger) *LevelDBStore {
	if db == nil {
		panic("leveldb cannot be nil")
	}
	return &LevelDBStore{
		db:     db,
		logger: logger.With().Str("store", "leveldb").Logger(),
		now:    time.Now,
	}
}

// Close closes the underlying database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := s.db.Get([]byte(entryPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leveldb get %s: %w", key, err)
	}
	return b, nil
}

func (s *LevelDBStore) Put(_ context.Context, key string, data []byte) error {
	mb, err := encodeGob(entryMeta{
		UpdatedAt: s.now().UnixNano(),
		Size:      int64(len(data)),
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(entryPrefix+key), data)
	batch.Put([]byte(metaPrefix+key), mb)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) Delete(_ context.Context, key string) error {
	batch := new(leveldb.Batch)
	batch.Delete([]byte(entryPrefix + key))
	batch.Delete([]byte(metaPrefix + key))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) LastWriteTime(_ context.Context, key string) (time.Time, error) {
	mb, err := s.db.Get([]byte(metaPrefix+key), nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
		}
		if ok, _ := s.db.Has([]byte(entryPrefix+key), nil); ok {
			return time.Time{}, ErrMetadataUnavailable
		}
		return time.Time{}, ErrNotFound
	}

	var meta entryMeta
	if err := decodeGob(mb, &meta); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt entry metadata")
		return time.Time{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return time.Unix(0, meta.UpdatedAt), nil
}

// Entry reads page and metadata from one snapshot.
func (s *LevelDBStore) Entry(_ context.Context, key string) ([]byte, time.Time, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()

	data, err := snap.Get([]byte(entryPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("leveldb get %s: %w", key, err)
	}

	mb, err := snap.Get([]byte(metaPrefix+key), nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	var meta entryMeta
	if err := decodeGob(mb, &meta); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt entry metadata")
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return data, time.Unix(0, meta.UpdatedAt), nil
}

func (s *LevelDBStore) List(_ context.Context) ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	defer it.Release()

	seen := map[string]struct{}{}
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), []byte(entryPrefix)))
		seen[TopLevel(key)] = struct{}{}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("leveldb list: %w", err)
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *LevelDBStore) DeleteRecursive(_ context.Context, name string) error {
	batch := new(leveldb.Batch)
	for _, prefix := range []string{entryPrefix, metaPrefix} {
		batch.Delete([]byte(prefix + name))

		it := s.db.NewIterator(util.BytesPrefix([]byte(prefix+name+"/")), nil)
		for it.Next() {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
		it.Release()
		if err := it.Error(); err != nil {
			return fmt.Errorf("leveldb scan %s: %w", name, err)
		}
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", name, err)
	}
	s.logger.Debug().Str("shard", name).Int("keys", batch.Len()).Msg("Deleted shard")
	return nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
