package templatecache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"docbatch/internal/logging"
)

// Stats is a point-in-time view of cache accounting. Hits, misses, and
// evictions only grow; bytes and entries reflect current contents.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Bytes     int64 `json:"bytes"`
	Entries   int   `json:"entries"`
	MaxBytes  int64 `json:"max_bytes"`
}

type entry struct {
	key        string
	data       []byte
	lastAccess time.Time
}

// Cache is a byte-bounded LRU keyed by template content id.
type Cache struct {
	maxBytes int64
	logger   *slog.Logger

	mu      sync.Mutex
	order   *list.List // front is most recently used
	items   map[string]*list.Element
	bytes   int64
	hits    int64
	misses  int64
	evicted int64
	now     func() time.Time
}

// New builds a cache holding at most maxBytes of template data.
func New(maxBytes int64, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "templatecache"),
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached bytes for key and refreshes its recency.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.lookup(key, true)
}

func (c *Cache) lookup(key string, count bool) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		if count {
			c.misses++
		}
		return nil, false
	}
	if count {
		c.hits++
	}
	ent := elem.Value.(*entry)
	ent.lastAccess = c.now()
	c.order.MoveToFront(elem)
	return ent.data, true
}

// Set stores data under key, replacing any existing entry and evicting the
// least recently used entries until the budget fits. An entry larger than the
// whole budget is still stored once everything else is gone.
func (c *Cache) Set(key string, data []byte) {
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.logger.Warn("replacing cached template",
			logging.String(logging.FieldEventType, "template_cache_replace"),
			logging.String(logging.FieldContentID, key),
			logging.String(logging.FieldErrorHint, "the same content id was stored twice"),
			logging.String(logging.FieldImpact, "previous bytes are discarded"),
		)
		c.removeElement(elem)
	}

	for c.order.Len() > 0 && c.bytes+size > c.maxBytes {
		oldest := c.order.Back()
		victim := oldest.Value.(*entry)
		c.removeElement(oldest)
		c.evicted++
		c.logger.Debug("evicted cached template",
			logging.String(logging.FieldContentID, victim.key),
			logging.Int("bytes", len(victim.data)),
		)
	}
	if size > c.maxBytes {
		c.logger.Warn("template exceeds cache budget",
			logging.String(logging.FieldEventType, "template_cache_oversize"),
			logging.String(logging.FieldContentID, key),
			logging.Int64("bytes", size),
			logging.Int64("max_bytes", c.maxBytes),
			logging.String(logging.FieldErrorHint, "raise cache.max_bytes"),
			logging.String(logging.FieldImpact, "cache holds only this template"),
		)
	}

	elem := c.order.PushFront(&entry{key: key, data: data, lastAccess: c.now()})
	c.items[key] = elem
	c.bytes += size
}

// Purge drops every entry. Counters are kept.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Stats returns current accounting.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
		Bytes:     c.bytes,
		Entries:   c.order.Len(),
		MaxBytes:  c.maxBytes,
	}
}

func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.items, ent.key)
	c.bytes -= int64(len(ent.data))
}
