package query

import (
	"sync"

	"github.com/jpalmerr/gnos/internal/facts"
)

// Cache memoizes compiled queries by their source text.
//
// A failed compilation is cached too and is not retried for the lifetime of
// the cache: every later lookup of the same text returns the original error.
// Cache is safe for concurrent use; compiling one text does not block lookups
// of others.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	query *Query
	err   error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the compiled form of text, compiling it on first use.
func (c *Cache) Get(text string) (*Query, error) {
	c.mu.RLock()
	e, ok := c.entries[text]
	c.mu.RUnlock()
	if ok {
		return e.query, e.err
	}

	q, err := Compile(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	// another goroutine may have won the race; keep the first entry so there
	// is never more than one compiled form per text
	if e, ok := c.entries[text]; ok {
		return e.query, e.err
	}
	c.entries[text] = cacheEntry{query: q, err: err}
	return q, err
}

// Eval compiles text through the cache and evaluates it against store.
func (c *Cache) Eval(store *facts.Store, text string) (ResultSet, error) {
	q, err := c.Get(text)
	if err != nil {
		return nil, err
	}
	return q.Eval(store)
}

// Len returns the number of cached texts, failed ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
