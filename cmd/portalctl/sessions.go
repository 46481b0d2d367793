package main

import (
	"fmt"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored sign-in sessions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return connect()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			disconnect()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired and revoked sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions := services.NewSessionService(database.NewSessionRepository(app.db), nil, 0, app.logger)
			cron := services.NewCronService(sessions, nil, nil, "", app.logger)

			removed, err := cron.RunPurgeNow()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sessions\n", removed)
			return nil
		},
	})

	return cmd
}
