package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelprecision/reticstudio/cmd"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/container"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "reticstudio.db")
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
cache:
  driver: none
log:
  level: error
  format: json
  output: stderr
`, dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.GetRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// TestRootCommand 测试根命令帮助信息
func TestRootCommand(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "reticstudio")
	assert.Contains(t, out, "server")
	assert.Contains(t, out, "render")
}

// TestMigrateSeedRender 测试迁移、写入目录与渲染命令
func TestMigrateSeedRender(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	out, err := run(t, "migrate", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "migrations completed")

	out, err = run(t, "seed", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded")

	_, err = run(t, "render", "missing", "--config", configPath, "--instance", "")
	assert.Error(t, err)

	// 通过服务写入一个页脚
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	ctr := container.NewContainerWithDB(db, nil)
	ctx := context.Background()
	_, err = ctr.LayoutService().CreateContainer(ctx, &service.CreateContainerRequest{ID: "footer-1", Kind: "footer", Name: "Footer"})
	require.NoError(t, err)
	inst, err := ctr.LayoutService().AddInstance(ctx, "footer-1", &service.AddInstanceRequest{TypeTag: "copyright", Position: "footer_bar"})
	require.NoError(t, err)
	require.NoError(t, ctr.Close())

	out, err = run(t, "render", "footer-1", "--config", configPath, "--instance", "")
	require.NoError(t, err)
	var resolved struct {
		ID      string `json:"id"`
		Columns int    `json:"columns"`
		Buckets []struct {
			Position string `json:"position"`
		} `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resolved))
	assert.Equal(t, "footer-1", resolved.ID)
	assert.Equal(t, 3, resolved.Columns)
	require.Len(t, resolved.Buckets, 1)
	assert.Equal(t, "footer_bar", resolved.Buckets[0].Position)

	out, err = run(t, "render", "footer-1", "--config", configPath, "--instance", inst.ID)
	require.NoError(t, err)
	var preview struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &preview))
	assert.Equal(t, inst.ID, preview.ID)
}
