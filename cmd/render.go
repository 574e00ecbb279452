package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixelprecision/reticstudio/internal/container"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/spf13/cobra"
)

// renderCmd 输出容器的解析结果
var renderCmd = &cobra.Command{
	Use:   "render <containerId>",
	Short: "Print the resolved render payload of a container",
	Long: `Resolve a page, header or footer the same way the API does and print
the result as JSON. Use --instance to preview a single instance.
The resolved cache is bypassed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogger(cfg); err != nil {
			return err
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		ctr := container.NewContainerWithDB(db, nil)
		defer ctr.Close()

		ctx := context.Background()
		instanceID, _ := cmd.Flags().GetString("instance")

		var result interface{}
		if instanceID != "" {
			result, err = ctr.ResolveService().PreviewInstance(ctx, args[0], instanceID)
		} else {
			result, err = ctr.ResolveService().ResolveContainer(ctx, args[0])
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("instance", "", "Preview a single instance of the container")
}
