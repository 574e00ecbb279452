/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/api"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/container"
	"github.com/pixelprecision/reticstudio/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Reticstudio API server.
The server will listen on the configured host and port,
and provide REST API interfaces for component definitions, layout editing
and resolved container content.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		cfg, configPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if err := setupLogger(cfg); err != nil {
			return err
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 3. 写入内置组件目录
		if cfg.Catalog.SeedOnStart {
			if _, err := ctr.SeedCatalog(cfg.Catalog.Path); err != nil {
				return fmt.Errorf("failed to seed catalog: %w", err)
			}
		}

		// 4. 后台任务
		hub := ctr.Hub()
		go hub.Run()
		defer hub.Stop()

		collector := metrics.NewCollector(ctr.DB(), 30*time.Second)
		collector.Start()
		defer collector.Stop()

		// 配置文件变更时调整日志级别
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(newCfg *config.Config) {
				level, err := logrus.ParseLevel(newCfg.Log.Level)
				if err != nil {
					logrus.WithField("level", newCfg.Log.Level).Warn("Ignoring invalid log level")
					return
				}
				api.SetLoggerLevel(level)
				logrus.SetLevel(level)
				logrus.WithField("level", level.String()).Info("Log level reloaded")
			})
			if err := watcher.Start(); err != nil {
				logrus.WithError(err).Warn("Config hot reload disabled")
			} else {
				defer watcher.Stop()
			}
		}

		// 5. 设置路由
		router := api.SetupRoutes(api.RouterDeps{
			Config:            cfg,
			DB:                ctr.DB(),
			Hub:               hub,
			ResolvedCache:     ctr.ResolvedCache(),
			DefinitionService: ctr.DefinitionService(),
			LayoutService:     ctr.LayoutService(),
			ResolveService:    ctr.ResolveService(),
			StatisticsService: ctr.StatisticsService(),
		})

		// 6. 启动服务器
		addr := cfg.Server.Addr()
		srv := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logrus.WithField("addr", addr).Info("Server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		}

		logrus.Info("Shutting down server...")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logrus.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
