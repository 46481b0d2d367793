package main

import (
	"context"
	"fmt"
	"os"

	"github.com/carelink/shift-portal/internal/config"
	"github.com/carelink/shift-portal/internal/database"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// App holds the dependencies shared by every command
type App struct {
	db     *database.PostgresDB
	logger *logrus.Logger
	ctx    context.Context
}

var (
	databaseURL string
	verbose     bool
	app         *App
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "portalctl",
		Short:        "Operator tooling for the care shift portal",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(secretsCmd())

	return rootCmd
}

// connect opens the database for commands that need it
func connect() error {
	// .env in the working directory is optional
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	url := databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return fmt.Errorf("DATABASE_URL is not set and --database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                url,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		return err
	}

	app = &App{db: db, logger: logger, ctx: context.Background()}
	return nil
}

func disconnect() {
	if app != nil && app.db != nil {
		app.db.Close()
	}
}
