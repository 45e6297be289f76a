package main

import (
	"fmt"

	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireDatabase(); err != nil {
				return err
			}
			if err := store.RunMigrations(opts.databaseURL, opts.migrationsDir); err != nil {
				return err
			}
			version, _, err := store.MigrationVersion(opts.databaseURL, opts.migrationsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireDatabase(); err != nil {
				return err
			}
			version, dirty, err := store.MigrationVersion(opts.databaseURL, opts.migrationsDir)
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
			return nil
		},
	})

	return cmd
}
