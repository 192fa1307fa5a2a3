package state

import "sync"

type cacheKey struct {
	version int64
	lastSet bool
}

// lookaside remembers the most recently resolved queries. Entries are stored
// uncopied; callers clone on the way out.
type lookaside struct {
	mu    sync.Mutex
	size  int
	keys  []cacheKey // oldest first
	items map[cacheKey]Entry
}

func newLookaside(size int) *lookaside {
	if size < 0 {
		size = 0
	}
	return &lookaside{
		size:  size,
		items: make(map[cacheKey]Entry, size),
	}
}

func (c *lookaside) get(key cacheKey) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	return e, ok
}

func (c *lookaside) put(key cacheKey, e Entry) {
	if c.size == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		c.items[key] = e
		return
	}
	if len(c.keys) >= c.size {
		oldest := c.keys[0]
		c.keys = c.keys[1:]
		delete(c.items, oldest)
	}
	c.keys = append(c.keys, key)
	c.items[key] = e
}

func (c *lookaside) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = c.keys[:0]
	clear(c.items)
}
