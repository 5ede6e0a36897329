// Package cache provides an LRU cache of model responses with disk persistence.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrVersionMismatch is returned by Load when the data was written by an
// incompatible cache format.
var ErrVersionMismatch = errors.New("cache format version mismatch")

// formatVersion is written into every persisted cache.
const formatVersion = 1

// Entry is one cached response.
type Entry struct {
	Key        string    `msgpack:"key"`
	Value      string    `msgpack:"value"`
	CreatedAt  time.Time `msgpack:"created_at"`
	AccessedAt time.Time `msgpack:"accessed_at"`
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// HitRate returns hits over lookups, or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Options configures the cache.
type Options struct {
	// MaxEntries is the maximum number of entries.
	// 0 means unlimited.
	MaxEntries int

	// MaxAge drops entries older than this on lookup and load.
	// 0 means entries never expire.
	MaxAge time.Duration
}

// ResponseCache is an in-memory LRU cache of model responses. It is safe for
// concurrent use.
type ResponseCache struct {
	mu         sync.Mutex
	items      map[string]*listItem
	lru        list
	maxEntries int
	maxAge     time.Duration
	stats      Stats
	dirty      bool
	now        func() time.Time
}

// listItem is an item in the doubly-linked list.
type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list with the most recently used item at head.
type list struct {
	head *listItem
	tail *listItem
	len  int
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list) remove(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.remove(item)
	l.pushFront(item)
}

// New creates a cache with the given options.
func New(opts Options) *ResponseCache {
	return &ResponseCache{
		items:      make(map[string]*listItem),
		maxEntries: opts.MaxEntries,
		maxAge:     opts.MaxAge,
		now:        time.Now,
	}
}

// Get returns the response stored under key.
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if found && c.expired(item.Entry) {
		c.removeItem(item)
		found = false
	}
	if !found {
		c.stats.Misses++
		return "", false
	}

	c.stats.Hits++
	item.AccessedAt = c.now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a response, evicting the least recently used entries when full.
func (c *ResponseCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.dirty = true
	if item, exists := c.items[key]; exists {
		item.Value = value
		item.AccessedAt = now
		c.lru.moveToFront(item)
		return
	}

	item := &listItem{Entry: Entry{Key: key, Value: value, CreatedAt: now, AccessedAt: now}}
	c.items[key] = item
	c.lru.pushFront(item)
	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *ResponseCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found {
		c.removeItem(item)
	}
}

// Clear removes all entries from the cache.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = list{}
	c.dirty = true
}

// Len returns the number of entries in the cache.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	return s
}

// Dirty reports whether the cache changed since it was last saved or loaded.
func (c *ResponseCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *ResponseCache) expired(e Entry) bool {
	return c.maxAge > 0 && c.now().Sub(e.CreatedAt) > c.maxAge
}

func (c *ResponseCache) removeItem(item *listItem) {
	c.lru.remove(item)
	delete(c.items, item.Key)
	c.dirty = true
}

func (c *ResponseCache) evictIfNeeded() {
	for c.maxEntries > 0 && c.lru.len > c.maxEntries {
		c.removeItem(c.lru.tail)
		c.stats.Evictions++
	}
}

// persisted is the on-disk layout.
type persisted struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save writes the cache to w using msgpack, least recently used first.
func (c *ResponseCache) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := persisted{Version: formatVersion, Entries: make([]Entry, 0, c.lru.len)}
	for item := c.lru.tail; item != nil; item = item.prev {
		data.Entries = append(data.Entries, item.Entry)
	}
	if err := msgpack.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Load replaces the cache contents with data read from r. Expired entries
// are dropped, and the entry limit applies.
func (c *ResponseCache) Load(r io.Reader) error {
	var data persisted
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	if data.Version != formatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, data.Version, formatVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = list{}
	for _, entry := range data.Entries {
		if c.expired(entry) {
			continue
		}
		if old, exists := c.items[entry.Key]; exists {
			c.lru.remove(old)
		}
		item := &listItem{Entry: entry}
		c.items[entry.Key] = item
		c.lru.pushFront(item)
	}
	for c.maxEntries > 0 && c.lru.len > c.maxEntries {
		tail := c.lru.tail
		c.lru.remove(tail)
		delete(c.items, tail.Key)
	}
	c.dirty = false
	return nil
}

// PersistToFile saves the cache to path, creating parent directories. The
// file is replaced atomically.
func PersistToFile(c *ResponseCache, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".responses-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// LoadFromFile loads the cache from path. A missing file is not an error.
func LoadFromFile(c *ResponseCache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// Key hashes v, typically a struct of the request inputs, into a cache key.
func Key(v interface{}) (string, error) {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash cache key: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
