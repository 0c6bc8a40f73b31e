package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/DachengChen/obsql/applog"
	"github.com/DachengChen/obsql/config"
	"github.com/DachengChen/obsql/db"
	"github.com/spf13/cobra"
)

var schemaTables []string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema text of a saved connection",
	Long: `Connect to a saved connection (through its SSH tunnel if configured),
introspect the tables of its schema and print them in the form the
composer's schema field expects. Pipe it into 'obsql compose --schema-file'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if connFlag == "" {
			return errors.New("--conn is required")
		}
		store, err := config.NewConnectionStore()
		if err != nil {
			return fmt.Errorf("failed to load connections: %w", err)
		}
		conn, ok := store.Get(connFlag)
		if !ok {
			return fmt.Errorf("unknown connection %q", connFlag)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		text, err := db.ImportSchema(ctx, conn, schemaTables)
		if err != nil {
			applog.Error("schema import from %s failed: %v", conn.Name, err)
			return fmt.Errorf("import schema from %s: %w", conn.Name, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringArrayVar(&schemaTables, "table", nil, "table to include (repeatable, default all)")
	rootCmd.AddCommand(schemaCmd)
}
