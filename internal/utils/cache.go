package utils

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// TTLCache 带过期时间的本地 LRU 缓存
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, CacheItem[V]]
	mu       sync.Mutex
	now      func() time.Time
}

func NewTTLCache[V any](size int) (*TTLCache[V], error) {
	l, err := lru.New[string, CacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *TTLCache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, CacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期返回 false
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}
	return val.Data, true
}

// Incr 计数加一并返回新值；窗口期从第一次计数开始
func (c *TTLCache[V]) Incr(key string, window time.Duration, add func(V) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.lruCache.Get(key)
	if !ok || c.now().After(item.ExpiresAt) {
		var zero V
		item = CacheItem[V]{Data: zero, ExpiresAt: c.now().Add(window)}
	}
	item.Data = add(item.Data)
	c.lruCache.Add(key, item)
	return item.Data
}

func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}
