package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairvault/pairvault/internal/infra"
)

func newMigrateCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Apply pending PostgreSQL migrations",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipBackends: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.cfg.DatabaseURL == "" {
				if state.cfg.SQLitePath != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema is applied when the database is opened")
					return nil
				}
				return fmt.Errorf("DATABASE_URL must be set")
			}
			if err := infra.RunMigrations(state.cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
