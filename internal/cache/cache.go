// Package cache provides a thread-safe generic map and the console's derived-content caches.
package cache

import "sync"

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// GetOrCreate returns the value for key, storing create() first when it is absent.
// create runs under the write lock, so concurrent callers share one value.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.RLock()
	val, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return val
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.items[key]; ok {
		return val
	}
	val = create()
	c.items[key] = val
	return val
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// DeleteFunc removes every entry for which del returns true and reports how many went.
func (c *Cache[K, V]) DeleteFunc(del func(K, V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, v := range c.items {
		if del(k, v) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

// PreviewKey identifies one rendering of section content.
type PreviewKey struct {
	ContentHash string
	SyntaxTheme string
	Renderer    string
	RTL         bool
}

var previewCache = NewCache[PreviewKey, []byte]()

func GetPreview(key PreviewKey) ([]byte, bool) {
	return previewCache.Get(key)
}

func SetPreview(key PreviewKey, html []byte) {
	previewCache.Set(key, html)
}

func ClearPreviews() {
	previewCache.Clear()
}
