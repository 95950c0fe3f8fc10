package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticketflow/internal/repository"
	"github.com/spec-kit/ticketflow/internal/seed"
	"github.com/spec-kit/ticketflow/internal/service"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create initial accounts when the user table is empty",
	Long: `Create initial accounts when the user table is empty.

Without --file the built-in admin, agent and user accounts are created.
The file format is a YAML document with a "users" list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		accounts, err := seed.Load(seedFile)
		if err != nil {
			return err
		}

		pg, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		users := service.NewUserService(repository.NewPostgresStore(pg.PoolHandle()), cfg.Auth.BcryptCost, nil)
		created, err := users.Bootstrap(ctx, accounts)
		if err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		if created == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "users already present; nothing seeded")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users\n", created)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML file listing accounts to create")
}
