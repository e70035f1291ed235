// Package lru provides the bounded cache backing per-login entity
// lookups: recently fetched users, channels and guilds stay hot while
// cold entries fall out once capacity is reached.
package lru

import "sync"

type entry[K comparable, V any] struct {
	key        K
	val        V
	prev, next *entry[K, V]
}

// Cache is a fixed-capacity map with least-recently-used eviction. All
// methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	cap   int
	items map[K]*entry[K, V]

	// root is the sentinel of a circular list: root.next is the most
	// recently used entry, root.prev the next eviction victim.
	root entry[K, V]
}

// New creates a cache holding at most capacity entries. Panics if
// capacity is less than 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		panic("lru: capacity must be >= 1")
	}
	c := &Cache[K, V]{
		cap:   capacity,
		items: make(map[K]*entry[K, V], capacity),
	}
	c.root.prev = &c.root
	c.root.next = &c.root
	return c
}

// Get returns the cached value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.promote(e)
	return e.val, true
}

// Put stores a value under key, replacing any existing entry. When the
// cache is full the least recently used entry is dropped.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.val = val
		c.promote(e)
		return
	}

	if len(c.items) >= c.cap {
		victim := c.root.prev
		c.unlink(victim)
		delete(c.items, victim.key)
	}

	e := &entry[K, V]{key: key, val: val}
	c.items[key] = e
	c.pushFront(e)
}

// Delete removes the entry for key. It reports whether one existed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.items, key)
	return true
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.next = c.root.next
	e.prev = &c.root
	c.root.next.prev = e
	c.root.next = e
}

func (c *Cache[K, V]) promote(e *entry[K, V]) {
	c.unlink(e)
	c.pushFront(e)
}
