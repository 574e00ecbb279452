package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/api"
	"github.com/pixelprecision/reticstudio/internal/cache"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/pixelprecision/reticstudio/internal/integration"
	"github.com/pixelprecision/reticstudio/internal/repository"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, mutate func(cfg *config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api.SetLoggerOutput(io.Discard)

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	registry := integration.NewDefinitionRegistry(db)
	defs, err := definition.Builtin()
	require.NoError(t, err)
	_, err = definition.Seed(registry, defs)
	require.NoError(t, err)

	store := integration.NewContainerStore(db)
	instanceRepo := repository.NewInstanceRepository(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	resolvedCache := cache.NewResolvedCache(cache.NewMemoryCache(), time.Minute)

	definitionSvc := service.NewDefinitionService(registry, instanceRepo, audit)
	layoutSvc := service.NewLayoutService(store, registry, repository.NewContainerRepository(db), instanceRepo, audit, nil)
	resolveSvc := service.NewResolveService(store, registry, resolvedCache)
	store.OnSave(func(ctx context.Context, id string) { resolveSvc.Invalidate(ctx, id) })
	definitionSvc.OnChange(func(ctx context.Context, _ string) { resolveSvc.InvalidateAll(ctx) })

	return api.SetupRoutes(api.RouterDeps{
		Config:            cfg,
		DB:                db,
		ResolvedCache:     resolvedCache,
		DefinitionService: definitionSvc,
		LayoutService:     layoutSvc,
		ResolveService:    resolveSvc,
		StatisticsService: service.NewStatisticsService(db),
	})
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// TestHealth 测试健康检查
func TestHealth(t *testing.T) {
	router := setupRouter(t, nil)

	w, _ := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "healthy", body.Checks["cache"])
}

// TestRequestID 测试请求 ID 的生成与透传
func TestRequestID(t *testing.T) {
	router := setupRouter(t, nil)

	w, _ := do(t, router, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get(api.HeaderRequestID))

	w, _ = do(t, router, http.MethodGet, "/health", nil, api.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(api.HeaderRequestID))
}

// TestNoRoute 测试未匹配的路由返回 JSON
func TestNoRoute(t *testing.T) {
	router := setupRouter(t, nil)

	w, env := do(t, router, http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", env.Message)
}

// TestCORSPreflight 测试预检请求
func TestCORSPreflight(t *testing.T) {
	router := setupRouter(t, nil)

	w, _ := do(t, router, http.MethodOptions, "/api/v1/containers", nil, "Origin", "https://editor.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

// TestRateLimit 测试超过限流后返回 429
func TestRateLimit(t *testing.T) {
	router := setupRouter(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	})

	w, _ := do(t, router, http.MethodGet, "/api/v1/definitions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, router, http.MethodGet, "/api/v1/definitions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 健康检查不受限流影响
	w, _ = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestDefinitionRoutes 测试组件定义接口与错误映射
func TestDefinitionRoutes(t *testing.T) {
	router := setupRouter(t, nil)

	body := map[string]interface{}{
		"slug":     "promo",
		"name":     "Promo Banner",
		"category": "marketing",
		"schema": []map[string]interface{}{
			{"key": "headline", "label": "Headline", "kind": "text", "default": "Sale"},
		},
	}
	w, env := do(t, router, http.MethodPost, "/api/v1/definitions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created definition.Definition
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "promo", created.Slug)
	assert.True(t, created.IsActive)

	w, _ = do(t, router, http.MethodPost, "/api/v1/definitions", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/definitions", map[string]string{"name": "No slug"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/definitions", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, router, http.MethodGet, "/api/v1/definitions/promo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Slug       string `json:"slug"`
		UsageCount int64  `json:"usage_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "promo", view.Slug)
	assert.Zero(t, view.UsageCount)

	w, _ = do(t, router, http.MethodPost, "/api/v1/definitions/promo/deactivate", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, router, http.MethodGet, "/api/v1/definitions?category=marketing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Empty(t, active)

	w, env = do(t, router, http.MethodGet, "/api/v1/definitions?category=marketing&include_inactive=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 1)

	w, _ = do(t, router, http.MethodGet, "/api/v1/definitions?include_inactive=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 系统组件受保护
	w, _ = do(t, router, http.MethodDelete, "/api/v1/definitions/copyright", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/api/v1/definitions/promo", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, router, http.MethodGet, "/api/v1/definitions/promo", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestContainerRoutes 测试容器编辑与解析接口
func TestContainerRoutes(t *testing.T) {
	router := setupRouter(t, nil)
	actor := []string{api.HeaderActor, "editor@example.com"}

	w, env := do(t, router, http.MethodPost, "/api/v1/containers", map[string]interface{}{"id": "footer-1", "kind": "footer", "name": "Footer"}, actor...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var container struct {
		ID      string `json:"id"`
		Columns int    `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &container))
	assert.Equal(t, 3, container.Columns)

	w, _ = do(t, router, http.MethodPost, "/api/v1/containers", map[string]interface{}{"id": "footer-1", "kind": "footer", "name": "Footer"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/containers", map[string]interface{}{"kind": "sidebar", "name": "Nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, router, http.MethodPost, "/api/v1/containers/footer-1/instances", map[string]interface{}{
		"type_tag":  "text",
		"position":  "column_1",
		"overrides": map[string]interface{}{"content": "Hello"},
	}, actor...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inst struct {
		ID    string `json:"id"`
		Order int    `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inst))
	assert.Equal(t, 1, inst.Order)

	w, env = do(t, router, http.MethodPost, "/api/v1/containers/footer-1/instances", map[string]interface{}{
		"type_tag": "text",
		"position": "column_4",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "column 4 does not exist in a 3-column layout", env.Detail)

	w, _ = do(t, router, http.MethodGet, "/api/v1/containers/missing/resolved", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, router, http.MethodGet, "/api/v1/containers/bad%20id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, router, http.MethodGet, "/api/v1/containers/footer-1/resolved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resolved struct {
		Buckets []struct {
			Position  string `json:"position"`
			Instances []struct {
				ID    string                 `json:"id"`
				Props map[string]interface{} `json:"props"`
			} `json:"instances"`
		} `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	require.Len(t, resolved.Buckets, 1)
	assert.Equal(t, "column_1", resolved.Buckets[0].Position)
	assert.Equal(t, "Hello", resolved.Buckets[0].Instances[0].Props["content"])

	w, _ = do(t, router, http.MethodPut, "/api/v1/containers/footer-1/instances/"+inst.ID+"/settings", map[string]interface{}{
		"overrides": map[string]interface{}{"content": "Bye"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = do(t, router, http.MethodGet, "/api/v1/containers/footer-1/instances/"+inst.ID+"/resolved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Props map[string]interface{} `json:"props"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &preview))
	assert.Equal(t, "Bye", preview.Props["content"])

	w, _ = do(t, router, http.MethodPost, "/api/v1/containers/footer-1/instances/"+inst.ID+"/move", map[string]interface{}{"position": "column_2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = do(t, router, http.MethodPost, "/api/v1/containers/footer-1/reorder", map[string]interface{}{
		"position":     "column_2",
		"instance_ids": []string{"someone-else"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/api/v1/containers/footer-1/instances/"+inst.ID, nil, actor...)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, router, http.MethodGet, "/api/v1/containers/footer-1/removed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var removed []api.RemovedInstanceView
	require.NoError(t, json.Unmarshal(env.Data, &removed))
	require.Len(t, removed, 1)
	assert.Equal(t, inst.ID, removed[0].ID)

	w, env = do(t, router, http.MethodGet, "/api/v1/containers/footer-1/history?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []api.HistoryEntryView
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.NotEmpty(t, history)
	assert.Equal(t, "editor@example.com", history[0].Actor)

	w, _ = do(t, router, http.MethodGet, "/api/v1/containers?kind=footer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Pagination api.PaginationInfo `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Pagination.Total)

	w, _ = do(t, router, http.MethodDelete, "/api/v1/containers/footer-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, router, http.MethodGet, "/api/v1/containers/footer-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestStatisticsRoutes 测试统计接口
func TestStatisticsRoutes(t *testing.T) {
	router := setupRouter(t, nil)

	for _, path := range []string{"/api/v1/statistics/kinds", "/api/v1/statistics/type-tags", "/api/v1/statistics/definitions"} {
		w, _ := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w, _ := do(t, router, http.MethodGet, "/api/v1/statistics/definitions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestLoggerFromConfig 测试按配置创建日志记录器
func TestLoggerFromConfig(t *testing.T) {
	logger, err := api.NewLoggerFromConfig(&config.LogConfig{Level: "warn", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger, err = api.NewLoggerFromConfig(&config.LogConfig{Level: "nonsense", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
