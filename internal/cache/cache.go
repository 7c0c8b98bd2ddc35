// Package cache memoizes GetStats results behind a bounded in-memory
// LRU. A result is cacheable forever once computed: the key embeds the
// Aggregator's position at query time, and position only ever
// increases, so a cached entry can never be invalidated by a later
// Append — it simply stops being the key any new query will ask for.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quantedge/symstat"
)

// Cache is an LRU-bounded symstat.StatsCache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu sync.Mutex
	c  *lru.Cache[string, symstat.Stats]
}

// New returns a Cache holding at most size entries. Once full, the
// least recently used entry is evicted to make room for a new one.
func New(size int) *Cache {
	c, err := lru.New[string, symstat.Stats](size)
	if err != nil {
		// Only returned for a non-positive size, which is a caller bug.
		panic(fmt.Errorf("cache.New(%d): %v", size, err))
	}
	return &Cache{c: c}
}

// Get returns the cached Stats for key, if present.
func (c *Cache) Get(key symstat.StatsCacheKey) (symstat.Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.Get(encodeKey(key))
}

// Put records stats as the result for key, possibly evicting the
// least recently used entry.
func (c *Cache) Put(key symstat.StatsCacheKey, stats symstat.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.c.Add(encodeKey(key), stats)
}

// encodeKey flattens a StatsCacheKey to a string so it can key a
// generic string-keyed LRU. Symbols are arbitrary strings, so they're
// length-prefixed to avoid ambiguity with the numeric suffix.
func encodeKey(key symstat.StatsCacheKey) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(key.Symbol)))
	b.WriteByte(':')
	b.WriteString(string(key.Symbol))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(key.K))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(key.Position))
	return b.String()
}
