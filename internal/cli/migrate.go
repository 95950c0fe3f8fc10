package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticketflow/internal/persistence"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SQL migrations to the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pg, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		dir := migrationsDir
		if dir == "" {
			dir = cfg.Postgres.MigrationsDir
		}
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), dir, logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
}
