// Package cache persists classifications keyed by repository and change
// request number in an embedded key-value store.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/pkg/models"
)

const (
	// DriverLevelDB stores entries in a LevelDB directory.
	DriverLevelDB = "leveldb"
	// DriverSQLite stores entries in a single sqlite3 table.
	DriverSQLite = "sqlite3"

	// DefaultPath matches the directory earlier deployments wrote to.
	DefaultPath = "./pr-analysis-cache"
)

// ErrNotFound is returned by a Store when a key has never been written.
var ErrNotFound = errors.New("cache: key not found")

// Store is the byte-level backend of a Cache.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Keys() ([]string, error)
	Close() error
}

// Key identifies a change request across runs.
type Key struct {
	Repository string
	Number     int
}

// String renders the key in its stored form, "owner/repo:42".
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Repository, k.Number)
}

// Cache maps keys to classifications. Once written, an entry is authoritative.
type Cache struct {
	store Store
}

// Open opens the store selected by driver at path. Callers must Close it.
func Open(driver, path string) (*Cache, error) {
	if path == "" {
		path = DefaultPath
	}

	var (
		store Store
		err   error
	)
	switch driver {
	case "", DriverLevelDB:
		store, err = OpenLevelDB(path)
	case DriverSQLite:
		store, err = OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown cache driver %q, expected %s or %s", driver, DriverLevelDB, DriverSQLite)
	}
	if err != nil {
		return nil, err
	}

	logging.Debug("opened classification cache", "driver", driver, "path", path)
	return New(store), nil
}

// New wraps an already open store.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Get returns the cached classification for key. Missing entries, read
// errors and values that do not decode to a valid classification are all
// reported as a miss.
func (c *Cache) Get(key Key) (models.Classification, bool) {
	raw, err := c.store.Get([]byte(key.String()))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Warn("cache read failed, treating as miss", "key", key.String(), "error", err)
		}
		return models.Classification{}, false
	}

	var cl models.Classification
	if err := json.Unmarshal(raw, &cl); err != nil {
		logging.Warn("discarding malformed cache entry", "key", key.String(), "error", err)
		return models.Classification{}, false
	}
	if !cl.Impact.Valid() {
		logging.Warn("discarding cache entry with unknown impact", "key", key.String(), "impact", cl.Impact)
		return models.Classification{}, false
	}
	return cl, true
}

// Put stores cl under key. Unclassified results are rejected so they are
// retried on a later run.
func (c *Cache) Put(key Key, cl models.Classification) error {
	if !cl.Impact.Valid() {
		return fmt.Errorf("refusing to cache %s with impact %q", key, cl.Impact)
	}

	raw, err := json.Marshal(cl)
	if err != nil {
		return fmt.Errorf("failed to encode classification for %s: %w", key, err)
	}
	if err := c.store.Put([]byte(key.String()), raw); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in store order.
func (c *Cache) Keys() ([]string, error) {
	return c.store.Keys()
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
