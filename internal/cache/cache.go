// Package cache holds the bounded, chain-keyed cache of per-scope context.
//
// Each entry is keyed by a hash chained over its ancestors (see [Key]) and
// remembers the keys of those ancestors, so that dropping a scope also
// drops everything computed beneath it.
package cache

import (
	"errors"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidSize is returned by New for a non-positive capacity.
var ErrInvalidSize = errors.New("cache: size must be positive")

type entry[V any] struct {
	ancestors []string
	value     V
}

// Cache is an LRU cache of values of type V. It is safe for concurrent use.
type Cache[V any] struct {
	lru *lru.Cache[string, entry[V]]
}

// New creates a cache holding at most size entries.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	c, err := lru.New[string, entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: c}, nil
}

// Get returns the value stored under key and marks it most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.lru.Get(key)
	return e.value, ok
}

// Add stores value under key. ancestors lists the keys (and root file path)
// the entry was chained from. Reports whether an older entry was evicted to
// make room.
func (c *Cache[V]) Add(key string, ancestors []string, value V) (evicted bool) {
	return c.lru.Add(key, entry[V]{ancestors: slices.Clone(ancestors), value: value})
}

// Invalidate removes the entry stored under prefix and every entry chained
// beneath it. A file path works as a prefix and drops all entries for that
// file. Returns the number of entries removed.
func (c *Cache[V]) Invalidate(prefix string) int {
	return c.RemoveFunc(func(key string, ancestors []string, _ V) bool {
		return key == prefix || slices.Contains(ancestors, prefix)
	})
}

// RemoveFunc removes every entry for which fn returns true.
func (c *Cache[V]) RemoveFunc(fn func(key string, ancestors []string, value V) bool) int {
	n := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if fn(key, e.ancestors, e.value) && c.lru.Remove(key) {
			n++
		}
	}
	return n
}

// Len returns the number of entries in the cache.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge removes all entries.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}
