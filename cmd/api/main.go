package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "incident-router",
		Short: "Ticket routing service",
		Long:  "Routes incident tickets between areas and operators, tracks SLA deadlines and arbitrates claims.",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the SLA monitor",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	}

	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE:  runMigrateDown,
	}

	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE:  runMigrateStatus,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an actor",
		RunE:  runToken,
	}
)

var (
	skipMigrations bool
	disableMonitor bool
	tokenActorID   int64
)

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	serveCmd.Flags().BoolVar(&disableMonitor, "no-sla-monitor", false, "do not start the SLA breach monitor")

	tokenCmd.Flags().Int64Var(&tokenActorID, "actor-id", 0, "actor the token is issued for")
	_ = tokenCmd.MarkFlagRequired("actor-id")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
