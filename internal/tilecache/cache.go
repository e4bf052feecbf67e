// Package tilecache caches served tiles in a badger key value store so
// repeated map panning does not hit the tile package on every request.
package tilecache

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/samber/do/v2"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
)

type TileCache interface {
	Has(tile model.ServeTile) bool
	Tile(tile model.ServeTile) ([]byte, bool)
	Save(tile model.ServeTile, data []byte) error
	IsActive() bool
}

type Config struct {
	Path   string `yaml:"path"`
	Active bool   `yaml:"active"`
	MaxAge int    `yaml:"maxage"` // in hours
}

type Cache struct {
	log    *logging.Logger
	db     *badger.DB
	active bool
	ttl    time.Duration
}

type cacheConfig interface {
	GetCacheConfig() Config
}

func Init(inj do.Injector) {
	cfg := do.MustInvokeAs[cacheConfig](inj).GetCacheConfig()
	c, err := New(cfg)
	if err != nil {
		logging.New().WithName("tilecache").Fatalf("error opening tile cache: %v", err)
	}
	do.ProvideValue(inj, c)
}

// New opens the cache store. An empty path means an in memory store that
// is gone after a restart.
func New(cfg Config) (*Cache, error) {
	c := &Cache{
		log:    logging.New().WithName("tilecache"),
		active: cfg.Active,
		ttl:    time.Duration(cfg.MaxAge) * time.Hour,
	}
	if !c.active {
		return c, nil
	}
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	c.db = db
	return c, nil
}

func (c *Cache) IsActive() bool {
	return c.active
}

func (c *Cache) Has(tile model.ServeTile) bool {
	if !c.active {
		return false
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(tile))
		return err
	})
	return err == nil
}

func (c *Cache) Tile(tile model.ServeTile) ([]byte, bool) {
	if !c.active {
		return nil, false
	}
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(tile))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) Save(tile model.ServeTile, data []byte) error {
	if !c.active {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(tile), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func key(tile model.ServeTile) []byte {
	return []byte(fmt.Sprintf("%s/%d/%d/%d", tile.Source, tile.Z, tile.X, tile.Y))
}
