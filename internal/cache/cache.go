// Package cache 提供解析结果的读穿缓存。
//
// 底层存储只处理字节,ResolvedCache 在其上完成序列化。
// 缓存只在容器保存后按容器 ID 失效,TTL 只是兜底。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/pkg/resolve"
	"github.com/sirupsen/logrus"
)

// Cache 字节级缓存存储
type Cache interface {
	// Get 返回缓存的数据,未命中时 found 为 false
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Set 写入数据,ttl 为 0 表示不过期
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete 删除数据,键不存在时不报错
	Delete(ctx context.Context, key string) error

	// Clear 删除全部数据
	Clear(ctx context.Context) error

	// Close 释放资源
	Close() error
}

// pinger 支持连接检查的缓存存储
type pinger interface {
	Ping(ctx context.Context) error
}

// New 根据配置创建缓存存储
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(cfg.Redis)
	case "none":
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Driver)
	}
}

// ResolvedCache 按容器 ID 缓存解析结果
type ResolvedCache struct {
	store Cache
	ttl   time.Duration
}

// NewResolvedCache 创建解析结果缓存
func NewResolvedCache(store Cache, ttl time.Duration) *ResolvedCache {
	return &ResolvedCache{store: store, ttl: ttl}
}

func resolvedKey(containerID string) string {
	return "container:" + containerID
}

// Get 读取容器的解析结果
// 存储出错或数据损坏时按未命中处理
func (c *ResolvedCache) Get(ctx context.Context, containerID string) (*resolve.ResolvedContainer, bool) {
	data, found, err := c.store.Get(ctx, resolvedKey(containerID))
	if err != nil {
		logrus.WithError(err).WithField("container_id", containerID).Warn("Failed to read resolved cache")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var rc resolve.ResolvedContainer
	if err := json.Unmarshal(data, &rc); err != nil {
		logrus.WithError(err).WithField("container_id", containerID).Warn("Discarding corrupt resolved cache entry")
		_ = c.store.Delete(ctx, resolvedKey(containerID))
		return nil, false
	}
	return &rc, true
}

// Set 写入容器的解析结果
func (c *ResolvedCache) Set(ctx context.Context, rc *resolve.ResolvedContainer) error {
	data, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("failed to marshal resolved container: %w", err)
	}
	return c.store.Set(ctx, resolvedKey(rc.ID), data, c.ttl)
}

// Invalidate 删除容器的解析结果
func (c *ResolvedCache) Invalidate(ctx context.Context, containerID string) error {
	return c.store.Delete(ctx, resolvedKey(containerID))
}

// InvalidateAll 删除全部解析结果,组件定义变更后调用
func (c *ResolvedCache) InvalidateAll(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Ping 检查底层存储连接,内存缓存总是可用
func (c *ResolvedCache) Ping(ctx context.Context) error {
	if p, ok := c.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close 关闭底层存储
func (c *ResolvedCache) Close() error {
	return c.store.Close()
}
