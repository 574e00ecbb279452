package cache

import (
	"context"
	"time"
)

// NullCache 不缓存任何内容,用于关闭缓存
type NullCache struct{}

// NewNullCache 创建空缓存
func NewNullCache() Cache {
	return &NullCache{}
}

// Get 总是未命中
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set 不做任何事
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete 不做任何事
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Clear 不做任何事
func (c *NullCache) Clear(ctx context.Context) error {
	return nil
}

// Close 不做任何事
func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
