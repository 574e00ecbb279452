package cmd

import (
	"fmt"

	"github.com/pixelprecision/reticstudio/internal/container"
	"github.com/pixelprecision/reticstudio/internal/database"
	"github.com/spf13/cobra"
)

// seedCmd 写入内置组件目录
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the builtin component catalog",
	Long: `Register the builtin system components (logo, menu, text, social, contact,
copyright and the page components) and optionally the definitions of an extra
catalog file. Slugs that already exist are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogger(cfg); err != nil {
			return err
		}

		catalogPath, _ := cmd.Flags().GetString("catalog")
		if catalogPath == "" {
			catalogPath = cfg.Catalog.Path
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		ctr := container.NewContainerWithDB(db, nil)
		defer ctr.Close()

		created, err := ctr.SeedCatalog(catalogPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d component definitions\n", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("catalog", "", "Extra catalog file (YAML), overrides catalog.path")
}
