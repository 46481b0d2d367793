package main

import (
	"fmt"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return connect()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			disconnect()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := database.NewMigrator(app.db, app.logger)
			if err != nil {
				return err
			}
			return migrator.Up(app.ctx)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, err := database.NewMigrator(app.db, app.logger)
			if err != nil {
				return err
			}
			if err := migrator.Status(app.ctx); err != nil {
				return err
			}
			version, err := migrator.Version(app.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)
			return nil
		},
	})

	return cmd
}
