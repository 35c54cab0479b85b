// Package cli wires this service's Postgres/Redis persistence, POS/finance
// /cloud upstream clients, Telegram bot transport, scheduler, and operator
// HTTP surface into one running process, behind a small cobra command
// tree (run, init-schema, version).
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vostok-rest/backoffice/config"
	"github.com/vostok-rest/backoffice/db"
	"github.com/vostok-rest/backoffice/version"
)

// RootCmd is the application's entry point command tree.
var RootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Telegram back-office bot: POS/finance/cloud sync, write-offs, invoices, stop-list tracking",
}

func init() {
	RootCmd.AddCommand(runCmd, initSchemaCmd, versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot, scheduler, and operator HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return Run(ctx)
	},
}

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create (or update) the Postgres schema this service needs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := context.Background()
		pg, err := db.NewPostgresDB(ctx, cfg.Database.DSN, db.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()

		if err := db.InitSchema(ctx, pg); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		cmd.Println("schema initialized")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and dependency version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println(version.GetModuleVersion())
		return nil
	},
}
