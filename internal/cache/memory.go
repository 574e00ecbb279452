package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry 内存缓存条目
type memoryEntry struct {
	data      []byte
	expiresAt time.Time // 零值表示不过期
}

// MemoryCache 进程内缓存,适用于单实例部署
type MemoryCache struct {
	entries *sync.Map
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() Cache {
	return &MemoryCache{entries: &sync.Map{}}
}

// Get 获取缓存,过期的条目会被删除
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found := c.entries.Load(key)
	if !found {
		return nil, false, nil
	}
	entry := val.(*memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

// Set 写入缓存
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := &memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries.Store(key, entry)
	return nil
}

// Delete 删除缓存
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.entries.Delete(key)
	return nil
}

// Clear 清空缓存
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.entries.Range(func(key, _ interface{}) bool {
		c.entries.Delete(key)
		return true
	})
	return nil
}

// Close 清空缓存
func (c *MemoryCache) Close() error {
	return c.Clear(context.Background())
}

var _ Cache = (*MemoryCache)(nil)
