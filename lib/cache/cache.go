// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"container/list"
	"sync"

	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// DefaultCapacity is used when New is given a zero capacity.
const DefaultCapacity = 1024

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Invalidations uint64
	Size          int
}

// Cache maps concrete paths to values of type V.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List

	hits          uint64
	misses        uint64
	invalidations uint64
}

type item[V any] struct {
	path  string
	value V
}

// New returns a cache holding at most capacity entries. A zero
// capacity selects DefaultCapacity; a negative capacity stores nothing
// but still counts lookups.
func New[V any](capacity int) *Cache[V] {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Lookup returns the entry for path, counting a hit or a miss.
func (c *Cache[V]) Lookup(path string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	element, ok := c.entries[path]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return element.Value.(*item[V]).value, true
}

// Store records value for path, evicting the oldest entry when full.
func (c *Cache[V]) Store(path string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity < 0 {
		return
	}
	if element, ok := c.entries[path]; ok {
		element.Value.(*item[V]).value = value
		return
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*item[V]).path)
	}
	c.entries[path] = c.order.PushBack(&item[V]{path: path, value: value})
}

// Invalidate drops the entry for path. Every call counts as one
// invalidation, whether or not an entry was present.
func (c *Cache[V]) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	c.removeLocked(path)
}

// InvalidatePrefix drops every entry at or below prefix and returns
// the number removed.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	return c.invalidateWhere(func(path string) bool {
		_, under := spacepath.TrimPrefix(spacepath.Path(path), spacepath.Path(prefix))
		return under
	})
}

// InvalidateMatching drops every entry whose path matches pattern and
// returns the number removed.
func (c *Cache[V]) InvalidateMatching(pattern string) int {
	glob := spacepath.Path(pattern)
	return c.invalidateWhere(func(path string) bool {
		return spacepath.Match(glob, spacepath.Path(path))
	})
}

// Clear drops every entry.
func (c *Cache[V]) Clear() int {
	return c.invalidateWhere(func(string) bool { return true })
}

func (c *Cache[V]) invalidateWhere(match func(path string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for path := range c.entries {
		if match(path) {
			c.removeLocked(path)
			removed++
		}
	}
	c.invalidations += uint64(removed)
	return removed
}

func (c *Cache[V]) removeLocked(path string) {
	if element, ok := c.entries[path]; ok {
		c.order.Remove(element)
		delete(c.entries, path)
	}
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Invalidations: c.invalidations,
		Size:          len(c.entries),
	}
}
