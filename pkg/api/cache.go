package api

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// cacheEntry is one solved request
type cacheEntry struct {
	key         string
	fingerprint string
	sim         *results.Simulation
	resilience  []float64
}

// resultCache is an LRU of simulations keyed by network fingerprint and
// step count. A capacity of zero disables it.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
}

func newResultCache(capacity int) *resultCache {
	return &resultCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func cacheKey(fingerprint string, steps int) string {
	return fmt.Sprintf("%s/%d", fingerprint, steps)
}

func (c *resultCache) get(key string) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry), true
	}
	return nil, false
}

// latest returns the most recently used entry for a fingerprint
func (c *resultCache) latest(fingerprint string) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if e := elem.Value.(*cacheEntry); e.fingerprint == fingerprint {
			return e, true
		}
	}
	return nil, false
}

func (c *resultCache) put(e *cacheEntry) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[e.key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}
	c.entries[e.key] = c.lru.PushFront(e)
	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
