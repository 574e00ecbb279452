package database_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func sqliteConfig() config.DatabaseConfig {
	return config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
}

// TestBuildDSN 测试 PostgreSQL DSN
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "secret", DBName: "reticstudio", SSLMode: "disable",
	})
	assert.True(t, strings.Contains(dsn, "host=localhost"))
	assert.True(t, strings.Contains(dsn, "dbname=reticstudio"))
	assert.True(t, strings.Contains(dsn, "sslmode=disable"))
}

// TestGetPoolConfig 测试连接池默认值
func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{MaxOpenConns: 50})
	assert.Equal(t, 50, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)
	assert.Equal(t, 600, pool.ConnMaxIdleTime)
}

// TestDialector_Unsupported 测试不支持的驱动
func TestDialector_Unsupported(t *testing.T) {
	_, err := database.Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

// TestConnectAndMigrate 测试 SQLite 连接、迁移与健康检查
func TestConnectAndMigrate(t *testing.T) {
	db, err := database.Connect(sqliteConfig())
	require.NoError(t, err)
	assert.True(t, database.IsSQLite(db))

	require.NoError(t, database.Migrate(db))
	// 迁移可重复执行
	require.NoError(t, database.Migrate(db))
	assert.True(t, database.CheckHealth(db))
	assert.False(t, database.CheckHealth(nil))

	var indexes []string
	require.NoError(t, db.Raw("SELECT name FROM sqlite_master WHERE type='index' AND name LIKE 'idx_%'").Scan(&indexes).Error)
	assert.Contains(t, indexes, "idx_instances_bucket")
	assert.Contains(t, indexes, "idx_audit_resource")
}

// TestInstanceModel_SoftDelete 测试实例软删除后不再被查询到
func TestInstanceModel_SoftDelete(t *testing.T) {
	db, err := database.Connect(sqliteConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	now := time.Now()
	require.NoError(t, db.Create(&model.ContainerModel{ID: "footer-1", Kind: "footer", Name: "Footer", Columns: 3, CreatedAt: now, UpdatedAt: now}).Error)
	inst := &model.InstanceModel{
		ID:          "inst-1",
		ContainerID: "footer-1",
		TypeTag:     "text",
		Overrides:   datatypes.JSON(`{"content":"Hi"}`),
		Position:    "footer_bar",
		Order:       1,
		Visibility:  "all",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, inst.Validate())
	require.NoError(t, db.Create(inst).Error)
	require.NoError(t, db.Delete(&model.InstanceModel{}, "id = ?", "inst-1").Error)

	var live int64
	require.NoError(t, db.Model(&model.InstanceModel{}).Count(&live).Error)
	assert.Zero(t, live)

	var all int64
	require.NoError(t, db.Unscoped().Model(&model.InstanceModel{}).Count(&all).Error)
	assert.Equal(t, int64(1), all)
}

// TestConnectWithRetry_Fails 测试重试耗尽后返回错误
func TestConnectWithRetry_Fails(t *testing.T) {
	_, err := database.ConnectWithRetry(config.DatabaseConfig{Driver: "oracle"}, 2, time.Millisecond)
	assert.Error(t, err)
}

// TestModelValidate 测试模型校验
func TestModelValidate(t *testing.T) {
	assert.Error(t, (&model.DefinitionModel{}).Validate())
	assert.NoError(t, (&model.DefinitionModel{ID: "d", Slug: "hero", Name: "Hero", Schema: datatypes.JSON(`[]`)}).Validate())
	assert.Error(t, (&model.ContainerModel{ID: "c"}).Validate())
	assert.Error(t, (&model.InstanceModel{ID: "i", ContainerID: "c", TypeTag: "text", Position: "hero"}).Validate())
	assert.Error(t, (&model.AuditLogModel{ID: "a"}).Validate())
}
