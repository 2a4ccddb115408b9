package importerrors

import (
	"container/list"
	"sync"
)

// mappingCache is a thread-safe LRU of folder-name → client-id mappings.
// Mappings are standing records that never change once created, so cached
// entries can only go stale by eviction, never by mutation.
type mappingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.RWMutex
}

// cacheEntry represents a folder/client pair in the cache
type cacheEntry struct {
	folder   string
	clientID string
}

// newMappingCache creates a new LRU cache with the specified capacity
func newMappingCache(capacity int) *mappingCache {
	return &mappingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get retrieves a client id for a folder name.
// Returns the id and true if found, empty string and false otherwise.
func (c *mappingCache) Get(folder string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[folder]; exists {
		// Move to front (most recently used)
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).clientID, true
	}
	return "", false
}

// Put adds or updates a mapping in the cache
func (c *mappingCache) Put(folder, clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// If folder exists, update and move to front
	if elem, exists := c.cache[folder]; exists {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).clientID = clientID
		return
	}

	// Evict oldest if at capacity
	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).folder)
		}
	}

	// Add new entry
	entry := &cacheEntry{folder: folder, clientID: clientID}
	elem := c.lru.PushFront(entry)
	c.cache[folder] = elem
}

// Len returns the current number of items in the cache
func (c *mappingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Clear removes all items from the cache
func (c *mappingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru = list.New()
}
