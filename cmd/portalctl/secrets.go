package main

import (
	"fmt"

	"github.com/carelink/shift-portal/internal/utils"
	"github.com/spf13/cobra"
)

func secretsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secrets",
		Short: "Generate a JWT access and refresh secret pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
			if err != nil {
				return fmt.Errorf("failed to generate secrets: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "# Add these to your .env file. Never commit them.")
			fmt.Fprintf(out, "JWT_SECRET=%s\n", accessSecret)
			fmt.Fprintf(out, "JWT_REFRESH_SECRET=%s\n", refreshSecret)
			return nil
		},
	}
}
