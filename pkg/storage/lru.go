package storage

import (
	"container/list"
	"regexp"
	"sync"

	"github.com/adfharrison1/go-docstore/pkg/domain"
	"github.com/adfharrison1/go-docstore/pkg/query"
)

// LRUCache keeps recently compiled query matchers keyed by canonical query
// text. A capacity of zero disables caching.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	list     *list.List
	cache    map[string]*list.Element
	hits     int64
	misses   int64
}

type cacheEntry struct {
	key   string
	value *query.Matcher
}

func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		list:     list.New(),
		cache:    make(map[string]*list.Element),
	}
}

func (lru *LRUCache) Get(key string) (*query.Matcher, bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if element, exists := lru.cache[key]; exists {
		lru.list.MoveToFront(element)
		lru.hits++
		return element.Value.(*cacheEntry).value, true
	}
	lru.misses++
	return nil, false
}

func (lru *LRUCache) Put(key string, matcher *query.Matcher) {
	if lru.capacity <= 0 {
		return
	}
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if element, exists := lru.cache[key]; exists {
		element.Value.(*cacheEntry).value = matcher
		lru.list.MoveToFront(element)
		return
	}

	entry := &cacheEntry{key: key, value: matcher}
	element := lru.list.PushFront(entry)
	lru.cache[key] = element

	if lru.list.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *LRUCache) evictOldest() {
	element := lru.list.Back()
	if element != nil {
		entry := element.Value.(*cacheEntry)
		delete(lru.cache, entry.key)
		lru.list.Remove(element)
	}
}

// Clear drops every cached matcher
func (lru *LRUCache) Clear() {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	lru.list.Init()
	lru.cache = make(map[string]*list.Element)
}

func (lru *LRUCache) Capacity() int {
	return lru.capacity
}

func (lru *LRUCache) Len() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.list.Len()
}

// Stats returns hit and miss counters
func (lru *LRUCache) Stats() (hits, misses int64) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.hits, lru.misses
}

// matcher compiles q, reusing a cached matcher for an identical query.
// Queries holding compiled regular expressions have no canonical text and
// are never cached.
func (se *StorageEngine) matcher(q domain.Document) (*query.Matcher, error) {
	if len(q) == 0 || se.matchers.Capacity() <= 0 || hasRegexp(q) {
		return query.Compile(q)
	}
	normalized, err := domain.NormalizeValueMap(q)
	if err != nil {
		return query.Compile(q)
	}
	key := domain.CanonicalKey(normalized)
	if m, ok := se.matchers.Get(key); ok {
		return m, nil
	}
	m, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	se.matchers.Put(key, m)
	return m, nil
}

func hasRegexp(v interface{}) bool {
	switch val := v.(type) {
	case *regexp.Regexp:
		return true
	case domain.Document:
		return hasRegexp(map[string]interface{}(val))
	case map[string]interface{}:
		for _, item := range val {
			if hasRegexp(item) {
				return true
			}
		}
	case []interface{}:
		for _, item := range val {
			if hasRegexp(item) {
				return true
			}
		}
	}
	return false
}
