package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 布局变更数
	layoutMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_mutations_total",
			Help: "Total number of layout mutations",
		},
		[]string{"op", "result"}, // insert/remove/move/reorder..., ok/rejected
	)

	// 解析告警数
	resolutionWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolution_warnings_total",
			Help: "Total number of warnings emitted while resolving instances",
		},
		[]string{"code"},
	)

	// 容器解析耗时
	resolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "container_resolve_duration_seconds",
			Help:    "Time spent resolving a container",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 解析结果缓存命中情况
	resolvedCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolved_cache_requests_total",
			Help: "Resolved container cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 各类容器中的存活实例数
	instancesByKind = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "component_instances_by_kind",
			Help: "Number of live component instances by container kind",
		},
		[]string{"kind"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(layoutMutationsTotal)
	prometheus.MustRegister(resolutionWarningsTotal)
	prometheus.MustRegister(resolveDuration)
	prometheus.MustRegister(resolvedCacheRequests)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(instancesByKind)

	// Go 运行时指标只注册一次,已注册时忽略错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordLayoutMutation 记录布局变更,err 非空表示变更被拒绝
func RecordLayoutMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	layoutMutationsTotal.WithLabelValues(op, result).Inc()
}

// RecordResolutionWarnings 按告警代码累加解析告警
func RecordResolutionWarnings(counts map[string]int) {
	for code, n := range counts {
		resolutionWarningsTotal.WithLabelValues(code).Add(float64(n))
	}
}

// ObserveResolve 记录一次容器解析耗时(秒)
func ObserveResolve(seconds float64) {
	resolveDuration.Observe(seconds)
}

// RecordCacheLookup 记录缓存查询结果
func RecordCacheLookup(hit bool) {
	if hit {
		resolvedCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	resolvedCacheRequests.WithLabelValues("miss").Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateInstancesByKind 更新某类容器的实例数指标
func UpdateInstancesByKind(kind string, count float64) {
	instancesByKind.WithLabelValues(kind).Set(count)
}
