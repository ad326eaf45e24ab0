package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd(loader EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd.Context(), loader)
			if err != nil {
				return err
			}
			client, err := openDatabase(cmd.Context(), loaded.App.Database)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("leads: migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", loaded.App.Database.Driver)
			return nil
		},
	}
}
