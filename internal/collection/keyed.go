// Package collection provides an ordered, identifier-keyed collection with
// merge-if-absent semantics for reconciling pushed entities into fetched ones.
package collection

// Keyed is an insertion-ordered collection of T indexed by a key derived
// from each item. It is not safe for concurrent use.
type Keyed[K comparable, T any] struct {
	key   func(T) K
	items []T
	index map[K]int
}

// NewKeyed creates a collection keyed by key, seeded with items.
// When items contain duplicate keys only the first occurrence is kept.
func NewKeyed[K comparable, T any](key func(T) K, items ...T) *Keyed[K, T] {
	c := &Keyed[K, T]{key: key}
	c.Replace(items)
	return c
}

// MergeIfAbsent appends item unless an item with the same key is already
// present. It reports whether the item was added.
func (c *Keyed[K, T]) MergeIfAbsent(item T) bool {
	k := c.key(item)
	if _, ok := c.index[k]; ok {
		return false
	}
	c.index[k] = len(c.items)
	c.items = append(c.items, item)
	return true
}

// Replace discards the current contents and loads items in order.
func (c *Keyed[K, T]) Replace(items []T) {
	c.items = make([]T, 0, len(items))
	c.index = make(map[K]int, len(items))
	for _, item := range items {
		c.MergeIfAbsent(item)
	}
}

// Get returns the item stored under k.
func (c *Keyed[K, T]) Get(k K) (T, bool) {
	i, ok := c.index[k]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Contains reports whether an item with key k is present.
func (c *Keyed[K, T]) Contains(k K) bool {
	_, ok := c.index[k]
	return ok
}

// Len returns the number of items.
func (c *Keyed[K, T]) Len() int {
	return len(c.items)
}

// Items returns a copy of the items in insertion order.
func (c *Keyed[K, T]) Items() []T {
	return append([]T(nil), c.items...)
}

// MergeIfAbsent appends item to items unless an element with the same key
// exists, for callers that keep plain slices.
func MergeIfAbsent[K comparable, T any](items []T, item T, key func(T) K) ([]T, bool) {
	k := key(item)
	for _, existing := range items {
		if key(existing) == k {
			return items, false
		}
	}
	return append(items, item), true
}
