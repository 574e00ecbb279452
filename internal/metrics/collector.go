package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Collector 定期采集数据库相关指标
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// CollectOnce 立即采集一次
func (c *Collector) CollectOnce() error {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		return err
	}

	var rows []struct {
		Kind  string
		Count int64
	}
	err := c.db.WithContext(c.ctx).
		Table("component_instances").
		Select("layout_containers.kind AS kind, COUNT(*) AS count").
		Joins("JOIN layout_containers ON layout_containers.id = component_instances.container_id").
		Where("component_instances.deleted_at IS NULL AND layout_containers.deleted_at IS NULL").
		Group("layout_containers.kind").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		UpdateInstancesByKind(row.Kind, float64(row.Count))
	}
	return nil
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.CollectOnce(); err != nil {
				logrus.WithError(err).Debug("Failed to collect metrics")
			}
		}
	}
}
