package service

import (
	"context"
	"sync"
	"time"

	"github.com/pixelprecision/reticstudio/internal/cache"
	"github.com/pixelprecision/reticstudio/internal/metrics"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/layout"
	"github.com/pixelprecision/reticstudio/pkg/resolve"
	"github.com/sirupsen/logrus"
)

// ResolveService 解析服务接口
type ResolveService interface {
	// ResolveContainer 返回容器的渲染数据,优先读取缓存
	ResolveContainer(ctx context.Context, containerID string) (*resolve.ResolvedContainer, error)

	// PreviewInstance 解析单个实例,不经过缓存
	PreviewInstance(ctx context.Context, containerID string, instanceID string) (*resolve.ResolvedInstance, error)

	// Invalidate 使容器的缓存失效
	Invalidate(ctx context.Context, containerID string)

	// InvalidateAll 使全部缓存失效
	InvalidateAll(ctx context.Context)
}

// resolveService 解析服务实现
type resolveService struct {
	store    instance.Store
	resolver *resolve.Resolver
	cache    *cache.ResolvedCache

	// 每次失效递增;读取期间代数变化的解析结果不得留在缓存中
	genMu       sync.Mutex
	generations map[string]uint64
	epoch       uint64
}

// cacheGeneration 容器缓存代数与全局代数
type cacheGeneration struct {
	container uint64
	epoch     uint64
}

// NewResolveService 创建解析服务
// 缓存只在容器保存或定义变更时失效,由调用方注册对应的回调
func NewResolveService(store instance.Store, defs resolve.DefinitionSource, resolvedCache *cache.ResolvedCache) ResolveService {
	return &resolveService{
		store:       store,
		resolver:    resolve.NewResolver(defs),
		cache:       resolvedCache,
		generations: make(map[string]uint64),
	}
}

func (s *resolveService) generation(containerID string) cacheGeneration {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return cacheGeneration{container: s.generations[containerID], epoch: s.epoch}
}

// ResolveContainer 读穿缓存解析容器
func (s *resolveService) ResolveContainer(ctx context.Context, containerID string) (*resolve.ResolvedContainer, error) {
	if s.cache != nil {
		if rc, found := s.cache.Get(ctx, containerID); found {
			metrics.RecordCacheLookup(true)
			return rc, nil
		}
		metrics.RecordCacheLookup(false)
	}

	gen := s.generation(containerID)
	c, err := s.store.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	layout.Normalize(c)

	start := time.Now()
	rc := s.resolver.ResolveContainer(c)
	metrics.ObserveResolve(time.Since(start).Seconds())
	recordWarnings(rc.WarningCounts())

	if s.cache != nil && s.generation(containerID) == gen {
		if err := s.cache.Set(ctx, rc); err != nil {
			logrus.WithError(err).WithField("container_id", containerID).Warn("Failed to write resolved cache")
		}
		// 写入与失效交错时再删一次
		if s.generation(containerID) != gen {
			s.evict(ctx, containerID)
		}
	}
	return rc, nil
}

// PreviewInstance 解析单个实例,用于编辑器中的设置预览
func (s *resolveService) PreviewInstance(ctx context.Context, containerID string, instanceID string) (*resolve.ResolvedInstance, error) {
	c, err := s.store.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	layout.Normalize(c)

	inst, _, err := c.Find(instanceID)
	if err != nil {
		return nil, err
	}
	ri := s.resolver.Resolve(inst)
	return &ri, nil
}

// Invalidate 使容器的缓存失效
func (s *resolveService) Invalidate(ctx context.Context, containerID string) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	s.generations[containerID]++
	s.genMu.Unlock()
	s.evict(ctx, containerID)
}

func (s *resolveService) evict(ctx context.Context, containerID string) {
	if err := s.cache.Invalidate(ctx, containerID); err != nil {
		logrus.WithError(err).WithField("container_id", containerID).Error("Failed to invalidate resolved cache")
	}
}

// InvalidateAll 使全部缓存失效
func (s *resolveService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	s.epoch++
	s.genMu.Unlock()
	if err := s.cache.InvalidateAll(ctx); err != nil {
		logrus.WithError(err).Error("Failed to clear resolved cache")
	}
}

func recordWarnings(counts map[resolve.WarningCode]int) {
	if len(counts) == 0 {
		return
	}
	byCode := make(map[string]int, len(counts))
	for code, n := range counts {
		byCode[string(code)] = n
	}
	metrics.RecordResolutionWarnings(byCode)
}
