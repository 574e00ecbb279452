package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/pixelprecision/reticstudio/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandler 测试记录的指标出现在输出中
func TestHandler(t *testing.T) {
	metrics.RecordAPIRequest("GET", "/api/v1/containers/:id", http.StatusOK, 0.01)
	metrics.RecordLayoutMutation("move", nil)
	metrics.RecordLayoutMutation("insert", errors.New("column 4 does not exist"))
	metrics.RecordResolutionWarnings(map[string]int{"orphaned_definition": 2})
	metrics.RecordCacheLookup(true)
	metrics.RecordCacheLookup(false)
	metrics.ObserveResolve(0.002)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `layout_mutations_total{op="move",result="ok"}`))
	assert.True(t, strings.Contains(body, `layout_mutations_total{op="insert",result="rejected"}`))
	assert.True(t, strings.Contains(body, `resolution_warnings_total{code="orphaned_definition"}`))
	assert.True(t, strings.Contains(body, `resolved_cache_requests_total{result="hit"}`))
	assert.True(t, strings.Contains(body, "container_resolve_duration_seconds"))
}

// TestCollector 测试采集数据库指标
func TestCollector(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	collector := metrics.NewCollector(db, 10*time.Millisecond)
	require.NoError(t, collector.CollectOnce())
	collector.Start()
	time.Sleep(30 * time.Millisecond)
	collector.Stop()

	assert.Error(t, metrics.UpdateDatabaseConnections(nil))
}
