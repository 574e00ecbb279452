package container

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pixelprecision/reticstudio/internal/cache"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/pixelprecision/reticstudio/internal/integration"
	"github.com/pixelprecision/reticstudio/internal/repository"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/pixelprecision/reticstudio/internal/websocket"
	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、缓存、服务、推送等
type Container struct {
	db            *gorm.DB
	registry      definition.Registry
	store         instance.Store
	resolvedCache *cache.ResolvedCache
	hub           *websocket.Hub

	auditLogSvc   service.AuditLogService
	definitionSvc service.DefinitionService
	layoutSvc     service.LayoutService
	resolveSvc    service.ResolveService
	statisticsSvc service.StatisticsService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化解析结果缓存
	store, err := cache.New(cfg.Cache)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	return build(db, cache.NewResolvedCache(store, cfg.Cache.TTLDuration())), nil
}

// NewContainerWithDB 使用已有数据库连接创建容器,用于命令行工具和测试
func NewContainerWithDB(db *gorm.DB, resolvedCache *cache.ResolvedCache) *Container {
	if resolvedCache == nil {
		resolvedCache = cache.NewResolvedCache(cache.NewNullCache(), 0)
	}
	return build(db, resolvedCache)
}

func build(db *gorm.DB, resolvedCache *cache.ResolvedCache) *Container {
	registry := integration.NewDefinitionRegistry(db)
	store := integration.NewContainerStore(db)
	hub := websocket.NewHub()

	instanceRepo := repository.NewInstanceRepository(db)
	auditLogSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	definitionSvc := service.NewDefinitionService(registry, instanceRepo, auditLogSvc)
	layoutSvc := service.NewLayoutService(store, registry, repository.NewContainerRepository(db), instanceRepo, auditLogSvc, hub)
	resolveSvc := service.NewResolveService(store, registry, resolvedCache)

	// 容器保存后只失效该容器,定义变更可能影响任意容器
	store.OnSave(func(ctx context.Context, containerID string) {
		resolveSvc.Invalidate(ctx, containerID)
	})
	definitionSvc.OnChange(func(ctx context.Context, _ string) {
		resolveSvc.InvalidateAll(ctx)
	})

	return &Container{
		db:            db,
		registry:      registry,
		store:         store,
		resolvedCache: resolvedCache,
		hub:           hub,
		auditLogSvc:   auditLogSvc,
		definitionSvc: definitionSvc,
		layoutSvc:     layoutSvc,
		resolveSvc:    resolveSvc,
		statisticsSvc: service.NewStatisticsService(db),
	}
}

// SeedCatalog 写入内置组件目录,path 不为空时追加目录文件中的定义
// 已存在的 slug 保持不变,返回新写入的数量
func (c *Container) SeedCatalog(path string) (int, error) {
	defs, err := definition.Builtin()
	if err != nil {
		return 0, fmt.Errorf("failed to load builtin catalog: %w", err)
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("failed to open catalog %s: %w", path, err)
		}
		defer f.Close()

		extra, err := definition.LoadCatalog(f)
		if err != nil {
			return 0, fmt.Errorf("failed to load catalog %s: %w", path, err)
		}
		defs = append(defs, extra...)
	}

	created, err := definition.Seed(c.registry, defs)
	if err != nil {
		return created, err
	}
	if created > 0 {
		// 新定义可能修复了此前的孤立引用
		c.resolveSvc.InvalidateAll(context.Background())
	}

	logrus.WithFields(logrus.Fields{
		"created": created,
		"total":   len(defs),
	}).Info("Component catalog seeded")
	return created, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Registry 获取组件定义注册表
func (c *Container) Registry() definition.Registry {
	return c.registry
}

// Store 获取容器存储
func (c *Container) Store() instance.Store {
	return c.store
}

// ResolvedCache 获取解析结果缓存
func (c *Container) ResolvedCache() *cache.ResolvedCache {
	return c.resolvedCache
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogSvc
}

// DefinitionService 获取组件定义服务
func (c *Container) DefinitionService() service.DefinitionService {
	return c.definitionSvc
}

// LayoutService 获取布局编辑服务
func (c *Container) LayoutService() service.LayoutService {
	return c.layoutSvc
}

// ResolveService 获取解析服务
func (c *Container) ResolveService() service.ResolveService {
	return c.resolveSvc
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statisticsSvc
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.resolvedCache != nil {
		if err := c.resolvedCache.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close cache")
		}
	}
	closeDB(c.db)
	return nil
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
