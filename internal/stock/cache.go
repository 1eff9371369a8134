// Package stock keeps the most recently seen feed item per notification
// category. Best-effort process memory: no expiry, reset on restart.
package stock

import (
	"sort"
	"sync"

	"gardenbot/internal/classify"
	"gardenbot/internal/feed"
)

// Cache is safe for concurrent use: the feed handler writes while the
// webhook summary path reads.
type Cache struct {
	mu   sync.RWMutex
	last map[classify.Category]feed.Item
}

func NewCache() *Cache {
	return &Cache{last: map[classify.Category]feed.Item{}}
}

// Update unconditionally replaces the entry for the category (last write wins).
func (c *Cache) Update(cat classify.Category, it feed.Item) {
	c.mu.Lock()
	c.last[cat] = it
	c.mu.Unlock()
}

// Read returns the last item seen in the category, if any.
func (c *Cache) Read(cat classify.Category) (feed.Item, bool) {
	c.mu.RLock()
	it, ok := c.last[cat]
	c.mu.RUnlock()
	return it, ok
}

// Entry pairs a category with its cached item, for summary rendering.
type Entry struct {
	Category classify.Category
	Item     feed.Item
}

// Snapshot returns all entries ordered by category name, so summaries are
// deterministic.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.last))
	for cat, it := range c.last {
		out = append(out, Entry{Category: cat, Item: it})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
