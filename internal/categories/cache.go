// Package categories implements the single-slot cache of the last fetched
// category list.
package categories

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gfycat/feedcore/internal/domain"
	"github.com/gfycat/feedcore/internal/kv"
)

// schemaVersion guards the stored entry layout; entries written by an
// incompatible build are dropped on read.
const schemaVersion = 2

const cacheKey = "categories"

type entry struct {
	List           domain.CategoriesList `json:"list"`
	LastUpdateUnix int64                 `json:"lastUpdate"`
	Version        int                   `json:"version"`
}

// Cache stores at most one category list together with its fetch time.
// Staleness is a pure function of the fetch time and the configured TTL;
// a zero TTL means every cached entry is reported stale, so callers serve
// it immediately and refresh in the background.
type Cache struct {
	store *kv.Store
	ttl   time.Duration
	log   zerolog.Logger

	// now is swapped in tests.
	now func() time.Time
}

// New returns a cache backed by store with the given staleness window.
func New(store *kv.Store, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "categories-cache").Logger(),
		now:   time.Now,
	}
}

// Get returns the cached list and whether it is stale. ok is false when
// nothing usable is cached; a schema-version mismatch counts as nothing
// cached and drops the stored entry as a side effect.
func (c *Cache) Get() (list domain.CategoriesList, stale bool, ok bool, err error) {
	var e entry
	found, err := c.store.Get(cacheKey, &e)
	if err != nil || !found {
		return domain.CategoriesList{}, false, false, err
	}
	if e.Version != schemaVersion {
		c.log.Debug().Int("stored", e.Version).Int("current", schemaVersion).Msg("schema changed, dropping cached categories")
		if err := c.Drop(); err != nil {
			return domain.CategoriesList{}, false, false, err
		}
		return domain.CategoriesList{}, false, false, nil
	}
	lastUpdate := time.Unix(0, e.LastUpdateUnix)
	return e.List, lastUpdate.Add(c.ttl).Before(c.now()), true, nil
}

// Update stores list unconditionally and reports whether the cached content
// changed, so callers can decide whether observers need a fresh emission.
func (c *Cache) Update(list domain.CategoriesList) (bool, error) {
	previous, _, hadPrevious, err := c.Get()
	if err != nil {
		return false, err
	}
	e := entry{List: list, LastUpdateUnix: c.now().UnixNano(), Version: schemaVersion}
	if err := c.store.Put(cacheKey, e); err != nil {
		return false, err
	}
	return !hadPrevious || !list.Equal(previous), nil
}

// Drop removes the cached entry.
func (c *Cache) Drop() error {
	return c.store.Delete(cacheKey)
}
