package eval

import (
	"sync"

	"calcfield.io/calc/ast"
	"fortio.org/log"
)

// DefaultCacheSize is the number of distinct formulas kept parsed.
const DefaultCacheSize = 1024

// ParseCache memoizes parsed formulas by their text, trees being immutable
// they are shared by every evaluation (and goroutine) of the same formula.
type ParseCache struct {
	mu      sync.Mutex
	entries map[string]ast.Node
	max     int
	hits    int64
	misses  int64
}

func NewParseCache(maxEntries int) *ParseCache {
	return &ParseCache{entries: make(map[string]ast.Node), max: maxEntries}
}

func (c *ParseCache) Get(code string) (ast.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.entries[code]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return node, ok
}

// Set adds code's tree, the cache starts over once full.
func (c *ParseCache) Set(code string, node ast.Node) {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		log.LogVf("parse cache full (%d entries, %d hits, %d misses), resetting", len(c.entries), c.hits, c.misses)
		clear(c.entries)
	}
	c.entries[code] = node
}

func (c *ParseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the number of hits and misses so far.
func (c *ParseCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Cache returns the parse cache of the evaluator.
func (ev *Evaluator) Cache() *ParseCache {
	return ev.cache
}
