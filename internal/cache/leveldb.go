package cache

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

type levelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates a LevelDB directory at path.
func OpenLevelDB(path string) (Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &levelDBStore{db: db}, nil
}

func (s *levelDBStore) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *levelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *levelDBStore) Keys() ([]string, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

func (s *levelDBStore) Close() error {
	return s.db.Close()
}
