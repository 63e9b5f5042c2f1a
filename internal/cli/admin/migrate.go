package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/lessonlens/internal/config"
	"github.com/cloo-solutions/lessonlens/internal/database"
)

const defaultMigrationsDir = "migrations"

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply every pending migration from the migrations directory and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			dir, _ := cmd.Flags().GetString("migrations-dir")
			return database.Migrate(cfg.DatabaseURL, dir, log)
		},
	}

	cmd.Flags().String("migrations-dir", defaultMigrationsDir, "Directory holding the SQL migrations")

	return cmd
}
