/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pixelprecision/reticstudio/internal/api"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reticstudio",
	Short: "Page builder layout and component API server",
	Long: `Reticstudio stores component definitions and the component instances
placed into pages, headers and footers. It provides REST APIs for layout
editing and serves resolved, render-ready container content.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.reticstudio)")
}

// GetRootCmd 返回根命令(用于测试)
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig 按 --config 标志加载配置
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, configPath, nil
}

// setupLogger 按配置初始化 API 日志与全局 logrus 日志
func setupLogger(cfg *config.Config) error {
	logger, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	api.SetLogger(logger)
	return api.ApplyLogConfig(logrus.StandardLogger(), &cfg.Log)
}
