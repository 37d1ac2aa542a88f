package utils

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mdobak/go-xerrors"
)

// FragmentStore 片段缓存接口，后端可替换（LRU 或不缓存）
type FragmentStore interface {
	Get(key string) (interface{}, bool)
	Set(key string, data interface{}, ttl time.Duration)
	Delete(key string)
	// DeleteFragment drops every variant cached under the fragment name.
	DeleteFragment(name string)
}

// FragmentKey builds the cache key for a rendering unit, optionally varied
// by extra values (page number and so on).
func FragmentKey(name string, varyOn ...interface{}) string {
	key := "fragment:" + name
	for _, v := range varyOn {
		key += fmt.Sprintf(":%v", v)
	}
	return key
}

// NewFragmentStore 根据配置返回缓存实现
func NewFragmentStore(backend string, size int) (FragmentStore, error) {
	switch backend {
	case "lru":
		return NewLRUCache(size)
	case "none":
		return NoopCache{}, nil
	default:
		return nil, xerrors.Newf("unknown cache backend %q", backend)
	}
}

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// LRUCache 本地 LRU 缓存，条目按 TTL 过期
type LRUCache struct {
	lruCache *lru.Cache[string, CacheItem]
	now      func() time.Time
}

func NewLRUCache(size int) (*LRUCache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, xerrors.Newf("failed to create LRU cache: %w", err)
	}
	return &LRUCache{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *LRUCache) Set(key string, data interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，若不存在或已过期则返回 false
func (c *LRUCache) Get(key string) (interface{}, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false
	}

	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil, false
	}

	return val.Data, true
}

func (c *LRUCache) Delete(key string) {
	c.lruCache.Remove(key)
}

func (c *LRUCache) DeleteFragment(name string) {
	base := FragmentKey(name)
	for _, key := range c.lruCache.Keys() {
		if key == base || strings.HasPrefix(key, base+":") {
			c.lruCache.Remove(key)
		}
	}
}

// NoopCache never stores anything, every Get misses.
type NoopCache struct{}

func (NoopCache) Get(string) (interface{}, bool) { return nil, false }

func (NoopCache) Set(string, interface{}, time.Duration) {}

func (NoopCache) Delete(string) {}

func (NoopCache) DeleteFragment(string) {}
