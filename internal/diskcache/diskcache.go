// Package diskcache implements a size-budgeted LRU file cache for media
// blobs. Entries are written to a temp file and committed with a rename;
// readers always see either a complete file or nothing.
//
// Cache files are read-only for callers: do not modify or delete them.
package diskcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// MB is one megabyte in bytes.
const MB = int64(1 << 20)

// ErrNotValidCache is returned when the cache could not be constructed or
// its directory became unusable; callers should skip the cache and go to
// the network.
var ErrNotValidCache = errors.New("disk cache is not usable")

// ErrOtherEditInProgress is returned when a second writer attempts to put
// the same key while a first put has not finished. With in-flight download
// deduplication in place this indicates a cache-discipline bug upstream, so
// callers are expected to fail loudly in addition to degrading gracefully.
var ErrOtherEditInProgress = errors.New("another edit of this cache entry is in progress")

type cacheEntry struct {
	name string // on-disk file name
	size int64
}

// Cache is an LRU file cache with a total-size budget. Get and Put are safe
// for concurrent use; eviction happens synchronously on Put once the budget
// is exceeded, oldest access first.
type Cache struct {
	dir      string
	maxBytes int64
	log      zerolog.Logger

	mu       sync.Mutex
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	curBytes int64
	editing  map[string]struct{}
}

// New opens (or creates) a cache rooted at dir with the given byte budget.
// Existing entries are indexed by modification time so the LRU order
// survives restarts.
func New(dir string, maxBytes int64, log zerolog.Logger) (*Cache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("diskcache: byte budget must be positive, got %d", maxBytes)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: create dir %s: %w", dir, err)
	}

	c := &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "diskcache").Logger(),
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		editing:  make(map[string]struct{}),
	}
	if err := c.scan(); err != nil {
		return nil, err
	}
	c.log.Info().Str("dir", dir).Int64("budget_bytes", maxBytes).Int("entries", c.ll.Len()).Msg("disk cache ready")
	return c, nil
}

// scan rebuilds the index from the files already on disk, oldest first so
// they end up at the back of the LRU list.
func (c *Cache) scan() error {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("diskcache: scan %s: %w", c.dir, err)
	}

	type fileInfo struct {
		name    string
		size    int64
		modUnix int64
	}
	var files []fileInfo
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if filepath.Ext(de.Name()) == ".tmp" {
			// leftover from an interrupted put
			_ = os.Remove(filepath.Join(c.dir, de.Name()))
			continue
		}
		files = append(files, fileInfo{name: de.Name(), size: info.Size(), modUnix: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modUnix < files[j].modUnix })

	for _, f := range files {
		elem := c.ll.PushFront(cacheEntry{name: f.name, size: f.size})
		c.items[f.name] = elem
		c.curBytes += f.size
	}
	return nil
}

// fileName maps a cache key to its on-disk name. Keys are hashed so any
// string is a valid key.
func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns the path of the cached file for key, or "" on a miss.
// A hit refreshes the entry's LRU position.
func (c *Cache) Get(key string) string {
	name := fileName(key)

	c.mu.Lock()
	elem, ok := c.items[name]
	if ok {
		c.ll.MoveToFront(elem)
	}
	c.mu.Unlock()

	if !ok {
		return ""
	}

	path := filepath.Join(c.dir, name)
	if _, err := os.Stat(path); err != nil {
		// file vanished underneath us, drop the index entry
		c.mu.Lock()
		if elem, ok := c.items[name]; ok {
			c.curBytes -= elem.Value.(cacheEntry).size
			c.ll.Remove(elem)
			delete(c.items, name)
		}
		c.mu.Unlock()
		return ""
	}
	return path
}

// Put streams r into the cache under key and evicts least-recently-used
// entries until the budget holds again. A concurrent put of the same key
// returns ErrOtherEditInProgress.
func (c *Cache) Put(key string, r io.Reader) error {
	name := fileName(key)

	c.mu.Lock()
	if _, busy := c.editing[name]; busy {
		c.mu.Unlock()
		return ErrOtherEditInProgress
	}
	c.editing[name] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.editing, name)
		c.mu.Unlock()
	}()

	tmp, err := os.CreateTemp(c.dir, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotValidCache, err)
	}
	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrNotValidCache, err)
	}

	c.mu.Lock()
	if elem, ok := c.items[name]; ok {
		c.curBytes -= elem.Value.(cacheEntry).size
		c.ll.Remove(elem)
	}
	c.items[name] = c.ll.PushFront(cacheEntry{name: name, size: written})
	c.curBytes += written
	evicted := c.evictLocked()
	c.mu.Unlock()

	if evicted > 0 {
		c.log.Debug().Int("evicted", evicted).Int64("bytes", c.curBytes).Msg("evicted entries over budget")
	}
	return nil
}

// evictLocked removes entries from the LRU tail until the budget holds.
// The newest entry is never evicted, even if it alone exceeds the budget.
func (c *Cache) evictLocked() int {
	evicted := 0
	for c.curBytes > c.maxBytes && c.ll.Len() > 1 {
		tail := c.ll.Back()
		entry := tail.Value.(cacheEntry)
		c.ll.Remove(tail)
		delete(c.items, entry.name)
		c.curBytes -= entry.size
		_ = os.Remove(filepath.Join(c.dir, entry.name))
		evicted++
	}
	return evicted
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Size returns the total bytes currently stored.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}
